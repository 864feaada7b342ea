package icp

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/brunokinder/norlab-icp-mapper/transform"
)

var errNoConvergence = errors.New("icp: SVD of cross-covariance matrix did not converge")

// kabsch computes the rigid transform that best aligns src onto ref in a
// least-squares sense (the Kabsch algorithm), given two dim x n matrices of
// matched Euclidean point pairs, column i of src corresponding to column i
// of ref. This is the point-to-point error minimizer's per-iteration
// update step.
func kabsch(dim int, src, ref *mat.Dense) (transform.Rigid, error) {
	_, n := src.Dims()

	srcCentroid := centroid(src, dim, n)
	refCentroid := centroid(ref, dim, n)

	centeredSrc := centered(src, srcCentroid, dim, n)
	centeredRef := centered(ref, refCentroid, dim, n)

	h := mat.NewDense(dim, dim, nil)
	h.Mul(centeredSrc, centeredRef.T())

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return transform.Rigid{}, errNoConvergence
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	rotation := mat.NewDense(dim, dim, nil)
	rotation.Mul(&v, u.T())
	if mat.Det(rotation) < 0 {
		for i := 0; i < dim; i++ {
			v.Set(i, dim-1, -v.At(i, dim-1))
		}
		rotation.Mul(&v, u.T())
	}

	rotatedSrcCentroid := mat.NewVecDense(dim, nil)
	rotatedSrcCentroid.MulVec(rotation, mat.NewVecDense(dim, srcCentroid))

	translation := make([]float64, dim)
	for i := 0; i < dim; i++ {
		translation[i] = refCentroid[i] - rotatedSrcCentroid.AtVec(i)
	}

	m := mat.NewDense(dim+1, dim+1, nil)
	m.Slice(0, dim, 0, dim).(*mat.Dense).Copy(rotation)
	for i := 0; i < dim; i++ {
		m.Set(i, dim, translation[i])
	}
	m.Set(dim, dim, 1)

	return transform.NewFromMatrix(dim, m)
}

func centroid(m *mat.Dense, dim, n int) []float64 {
	out := make([]float64, dim)
	if n == 0 {
		return out
	}
	for row := 0; row < dim; row++ {
		sum := 0.
		for col := 0; col < n; col++ {
			sum += m.At(row, col)
		}
		out[row] = sum / float64(n)
	}
	return out
}

func centered(m *mat.Dense, c []float64, dim, n int) *mat.Dense {
	out := mat.NewDense(dim, n, nil)
	for row := 0; row < dim; row++ {
		for col := 0; col < n; col++ {
			out.Set(row, col, m.At(row, col)-c[row])
		}
	}
	return out
}
