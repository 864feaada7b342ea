package filter

import (
	"github.com/brunokinder/norlab-icp-mapper/pointcloud"
)

// RadiusFilter drops points farther than Dist from the origin (sensor
// origin, when applied in sensor frame). It is the standalone sensor-range
// cull the mapper applies before registration. RemoveInside flips the
// filter to keep only points at or beyond Dist instead; the mapper never
// constructs it that way, but the field is kept since the underlying
// DataPointsFilter config format supports both directions.
type RadiusFilter struct {
	Dist         float64
	RemoveInside bool
}

func newRadiusFilter(params map[string]interface{}) (DataPointsFilter, error) {
	return RadiusFilter{
		Dist:         floatParam(params, "dist", 0),
		RemoveInside: boolParam(params, "removeInside", false),
	}, nil
}

// Apply returns a new cloud containing only the points that pass the
// filter, preserving column order.
func (f RadiusFilter) Apply(pc *pointcloud.PointCloud) (*pointcloud.PointCloud, error) {
	keep := make([]int, 0, pc.Size())
	for i := 0; i < pc.Size(); i++ {
		p := pc.Point(i)
		within := p.Norm() < f.Dist
		if within != f.RemoveInside {
			keep = append(keep, i)
		}
	}
	return pc.SelectColumns(keep), nil
}

// InPlaceFilter mutates pc to only contain the points that pass the filter.
func (f RadiusFilter) InPlaceFilter(pc *pointcloud.PointCloud) error {
	result, err := f.Apply(pc)
	if err != nil {
		return err
	}
	*pc = *result
	return nil
}
