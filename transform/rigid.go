// Package transform implements the rigid-body homogeneous transform used to
// move point clouds between sensor and map frames, and the renormalization
// step ("correctParameters" in the original mapper) that keeps a
// transform's rotation block orthonormal under repeated composition.
package transform

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/brunokinder/norlab-icp-mapper/pointcloud"
)

// Rigid is a (dim+1) x (dim+1) homogeneous rigid transform: an orthonormal
// rotation block plus a translation column, with a trailing [0 ... 0 1] row.
type Rigid struct {
	Dim    int
	Matrix *mat.Dense
}

// Identity returns the identity transform for the given Euclidean dimension.
func Identity(dim int) Rigid {
	m := mat.NewDense(dim+1, dim+1, nil)
	for i := 0; i <= dim; i++ {
		m.Set(i, i, 1)
	}
	return Rigid{Dim: dim, Matrix: m}
}

// NewFromMatrix wraps an existing (dim+1) x (dim+1) matrix as a Rigid
// transform. The caller must ensure the matrix is square of the right size;
// use Normalized to correct small numerical drift in the rotation block.
func NewFromMatrix(dim int, m *mat.Dense) (Rigid, error) {
	r, c := m.Dims()
	if r != dim+1 || c != dim+1 {
		return Rigid{}, errors.Errorf("expected a %dx%d matrix, got %dx%d", dim+1, dim+1, r, c)
	}
	return Rigid{Dim: dim, Matrix: mat.DenseCopyOf(m)}, nil
}

// Clone returns a deep copy.
func (t Rigid) Clone() Rigid {
	return Rigid{Dim: t.Dim, Matrix: mat.DenseCopyOf(t.Matrix)}
}

// Compose returns t · other (apply other first, then t).
func (t Rigid) Compose(other Rigid) Rigid {
	out := mat.NewDense(t.Dim+1, t.Dim+1, nil)
	out.Mul(t.Matrix, other.Matrix)
	return Rigid{Dim: t.Dim, Matrix: out}
}

// Inverse returns the inverse transform. For a rigid transform this is
// R^T, -R^T*t, computed directly rather than through a general matrix
// inverse so that a slightly non-orthonormal rotation block doesn't blow up
// numerically.
func (t Rigid) Inverse() Rigid {
	d := t.Dim
	rot := t.Matrix.Slice(0, d, 0, d)
	transl := t.Matrix.Slice(0, d, d, d+1)

	rotT := mat.NewDense(d, d, nil)
	rotT.CloneFrom(rot.T())

	negTransl := mat.NewDense(d, 1, nil)
	negTransl.Mul(rotT, transl)
	negTransl.Scale(-1, negTransl)

	out := Identity(d)
	out.Matrix.Slice(0, d, 0, d).(*mat.Dense).Copy(rotT)
	out.Matrix.Slice(0, d, d, d+1).(*mat.Dense).Copy(negTransl)
	return out
}

// Translation returns the translation column of the transform.
func (t Rigid) Translation() []float64 {
	d := t.Dim
	out := make([]float64, d)
	for i := 0; i < d; i++ {
		out[i] = t.Matrix.At(i, d)
	}
	return out
}

// Normalized returns a copy of t whose rotation block has been
// re-orthonormalized via a polar decomposition (SVD-based), correcting the
// small numerical drift that accumulates from repeated composition. This is
// the Go analogue of libpointmatcher's Transformation::correctParameters,
// applied implicitly by RigidTransformation::compute before every use.
func (t Rigid) Normalized() Rigid {
	d := t.Dim
	rot := mat.DenseCopyOf(t.Matrix.Slice(0, d, 0, d))

	var svd mat.SVD
	ok := svd.Factorize(rot, mat.SVDFull)
	out := t.Clone()
	if !ok {
		return out
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	corrected := mat.NewDense(d, d, nil)
	corrected.Mul(&u, v.T())

	// Guard against a reflection (det < 0) introduced by the SVD of a
	// near-singular or improper rotation block.
	if mat.Det(corrected) < 0 {
		for i := 0; i < d; i++ {
			u.Set(i, d-1, -u.At(i, d-1))
		}
		corrected.Mul(&u, v.T())
	}

	out.Matrix.Slice(0, d, 0, d).(*mat.Dense).Copy(corrected)
	return out
}

// Apply transforms every point (and every "normals" descriptor, which
// rotates but does not translate) of pc into the frame t maps into,
// returning a new cloud. t is renormalized first, matching the original
// mapper's reliance on RigidTransformation::compute to silently correct
// rotation drift before every use.
func Apply(t Rigid, pc *pointcloud.PointCloud) (*pointcloud.PointCloud, error) {
	if pc.Dim != t.Dim {
		return nil, errors.Errorf("transform dimension %d does not match cloud dimension %d", t.Dim, pc.Dim)
	}
	if pc.IsEmpty() {
		return pc.Clone(), nil
	}
	t = t.Normalized()

	out := pc.Clone()
	rows, n := out.Features.Dims()
	transformed := mat.NewDense(rows, n, nil)
	transformed.Mul(t.Matrix, out.Features)
	out.Features = transformed

	if normals, ok := out.Descriptor(pointcloud.DescriptorNormals); ok {
		rotated := mat.NewDense(t.Dim, n, nil)
		rotated.Mul(t.Matrix.Slice(0, t.Dim, 0, t.Dim), normals)
		out.Descriptors[pointcloud.DescriptorNormals] = rotated
	}
	return out, nil
}
