package mapper

import (
	"github.com/golang/geo/r3"

	"github.com/brunokinder/norlab-icp-mapper/knn"
	"github.com/brunokinder/norlab-icp-mapper/pointcloud"
	"github.com/brunokinder/norlab-icp-mapper/transform"
)

// filterNovelPoints retains only the input points not already represented
// in the locally relevant map: an input point survives iff its nearest map
// neighbour, among map points within sensorMaxRange of the sensor, lies
// farther than minDistNewPoint.
func filterNovelPoints(currentInput, currentMap *pointcloud.PointCloud, currentSensorPose transform.Rigid, minDistNewPoint, sensorMaxRange float64) (*pointcloud.PointCloud, error) {
	cropped, _, err := cropToSensorRange(currentMap, currentSensorPose, sensorMaxRange)
	if err != nil {
		return nil, err
	}
	if cropped.IsEmpty() {
		return currentInput.Clone(), nil
	}

	tree := knn.New(euclideanColumns(cropped))
	minDistSq := minDistNewPoint * minDistNewPoint

	keep := make([]int, 0, currentInput.Size())
	for i := 0; i < currentInput.Size(); i++ {
		res := tree.Nearest(pointQuery(cropped.Dim, currentInput.Point(i)))
		if !res.Found || res.SquaredDist >= minDistSq {
			keep = append(keep, i)
		}
	}
	return currentInput.SelectColumns(keep), nil
}

// pointQuery returns the dim-length coordinate slice a knn.Tree query needs
// for an r3.Vector, dropping Z for 2D clouds.
func pointQuery(dim int, p r3.Vector) []float64 {
	if dim == 3 {
		return []float64{p.X, p.Y, p.Z}
	}
	return []float64{p.X, p.Y}
}
