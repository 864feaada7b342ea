package filter

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/brunokinder/norlab-icp-mapper/pointcloud"
)

// voxelCoords identifies a cell in a regular 3D grid: I,J,K indices into a
// grid anchored at the cloud's minimum corner.
type voxelCoords struct {
	I, J, K int64
}

// VoxelGridFilter downsamples a cloud by averaging every point (and
// descriptor) that falls in the same grid cell of side VoxelSize. This is
// the map-post filter chain's typical member, run after fusing new points
// into the map.
type VoxelGridFilter struct {
	VoxelSize float64
}

func newVoxelGridFilter(params map[string]interface{}) (DataPointsFilter, error) {
	return VoxelGridFilter{VoxelSize: floatParam(params, "voxelSize", 0.1)}, nil
}

func (f VoxelGridFilter) key(p r3.Vector, min r3.Vector) voxelCoords {
	return voxelCoords{
		I: int64(math.Floor((p.X - min.X) / f.VoxelSize)),
		J: int64(math.Floor((p.Y - min.Y) / f.VoxelSize)),
		K: int64(math.Floor((p.Z - min.Z) / f.VoxelSize)),
	}
}

// Apply buckets points into voxels and replaces each occupied voxel with
// the centroid of the points (and averaged descriptor values) it contains.
func (f VoxelGridFilter) Apply(pc *pointcloud.PointCloud) (*pointcloud.PointCloud, error) {
	n := pc.Size()
	if n == 0 || f.VoxelSize <= 0 {
		return pc.Clone(), nil
	}

	min := pc.Point(0)
	for i := 1; i < n; i++ {
		p := pc.Point(i)
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		min.Z = math.Min(min.Z, p.Z)
	}

	buckets := map[voxelCoords][]int{}
	order := make([]voxelCoords, 0)
	for i := 0; i < n; i++ {
		k := f.key(pc.Point(i), min)
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], i)
	}

	out := pc.Clone()
	keepRepresentative := make([]int, 0, len(order))
	for _, k := range order {
		members := buckets[k]
		centroid := r3.Vector{}
		for _, idx := range members {
			p := pc.Point(idx)
			centroid = centroid.Add(p)
		}
		centroid = centroid.Mul(1 / float64(len(members)))

		// Overwrite the first member of the bucket with the averaged
		// point and descriptors, then keep only that column.
		rep := members[0]
		out.SetPoint(rep, centroid)
		for _, d := range out.Descriptors {
			rows, _ := d.Dims()
			for r := 0; r < rows; r++ {
				sum := 0.
				for _, idx := range members {
					sum += d.At(r, idx)
				}
				d.Set(r, rep, sum/float64(len(members)))
			}
		}
		keepRepresentative = append(keepRepresentative, rep)
	}

	return out.SelectColumns(keepRepresentative), nil
}

// InPlaceFilter mutates pc to its voxel-downsampled form.
func (f VoxelGridFilter) InPlaceFilter(pc *pointcloud.PointCloud) error {
	result, err := f.Apply(pc)
	if err != nil {
		return err
	}
	*pc = *result
	return nil
}
