package mapper

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/brunokinder/norlab-icp-mapper/pointcloud"
)

// euclideanColumns returns a dim x N matrix of pc's Euclidean coordinates,
// dropping the homogeneous row. It is the coordinate matrix the novelty
// filter's k-d tree is built over.
func euclideanColumns(pc *pointcloud.PointCloud) *mat.Dense {
	return mat.DenseCopyOf(pc.Features.Slice(0, pc.Dim, 0, pc.Size()))
}

// sphericalAngles returns a 2 x N matrix, row 0 = elevation
// (asin(z/radius), zero in 2D), row 1 = azimuth (atan2(y,x)), for every
// point of pc together with its radius (Euclidean norm).
func sphericalAngles(pc *pointcloud.PointCloud) (angles *mat.Dense, radii []float64) {
	n := pc.Size()
	angles = mat.NewDense(2, n, nil)
	radii = make([]float64, n)
	for i := 0; i < n; i++ {
		p := pc.Point(i)
		r := p.Norm()
		radii[i] = r
		azimuth := math.Atan2(p.Y, p.X)
		elevation := 0.
		if pc.Dim == 3 && r > 0 {
			elevation = math.Asin(p.Z / r)
		}
		angles.Set(0, i, elevation)
		angles.Set(1, i, azimuth)
	}
	return angles, radii
}

// vectorAt returns column col of a descriptor matrix as an r3.Vector,
// treating a 2-row matrix (2D clouds) as having a zero Z component.
func vectorAt(m *mat.Dense, col int) r3.Vector {
	rows, _ := m.Dims()
	v := r3.Vector{X: m.At(0, col), Y: m.At(1, col)}
	if rows == 3 {
		v.Z = m.At(2, col)
	}
	return v
}

// safeNorm guards against dividing by a zero-length vector norm (a map
// point exactly at the sensor origin).
func safeNorm(n float64) float64 {
	if n == 0 {
		return epsilonProbability
	}
	return n
}
