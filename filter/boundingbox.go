package filter

import (
	"github.com/golang/geo/r3"

	"github.com/brunokinder/norlab-icp-mapper/pointcloud"
)

// BoundingBoxFilter keeps (or drops, if RemoveInside) points whose
// coordinates fall within an axis-aligned box. This is the typical
// world-frame input filter, used for bounding-box culls in world
// coordinates.
type BoundingBoxFilter struct {
	MinX, MaxX   float64
	MinY, MaxY   float64
	MinZ, MaxZ   float64
	RemoveInside bool
}

func newBoundingBoxFilter(params map[string]interface{}) (DataPointsFilter, error) {
	return BoundingBoxFilter{
		MinX:         floatParam(params, "xMin", negInf),
		MaxX:         floatParam(params, "xMax", posInf),
		MinY:         floatParam(params, "yMin", negInf),
		MaxY:         floatParam(params, "yMax", posInf),
		MinZ:         floatParam(params, "zMin", negInf),
		MaxZ:         floatParam(params, "zMax", posInf),
		RemoveInside: boolParam(params, "removeInside", false),
	}, nil
}

const (
	posInf = 1e308
	negInf = -1e308
)

func (f BoundingBoxFilter) inside(p r3.Vector) bool {
	return p.X >= f.MinX && p.X <= f.MaxX &&
		p.Y >= f.MinY && p.Y <= f.MaxY &&
		p.Z >= f.MinZ && p.Z <= f.MaxZ
}

// Apply returns a new cloud containing only the points that pass the
// filter, preserving column order.
func (f BoundingBoxFilter) Apply(pc *pointcloud.PointCloud) (*pointcloud.PointCloud, error) {
	keep := make([]int, 0, pc.Size())
	for i := 0; i < pc.Size(); i++ {
		if f.inside(pc.Point(i)) != f.RemoveInside {
			keep = append(keep, i)
		}
	}
	return pc.SelectColumns(keep), nil
}

// InPlaceFilter mutates pc to only contain the points that pass the filter.
func (f BoundingBoxFilter) InPlaceFilter(pc *pointcloud.PointCloud) error {
	result, err := f.Apply(pc)
	if err != nil {
		return err
	}
	*pc = *result
	return nil
}
