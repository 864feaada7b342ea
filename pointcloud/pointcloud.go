// Package pointcloud defines the homogeneous-coordinate point cloud used
// throughout the mapper: an ordered collection of points in a Euclidean
// space of dimension 2 or 3, carried as a dense (dim+1) x N matrix of
// features plus named (k x N) descriptor matrices.
package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Descriptor names recognized by the mapper core.
const (
	DescriptorNormals            = "normals"
	DescriptorProbabilityDynamic = "probabilityDynamic"
)

// PointCloud is a dense, homogeneous-coordinate point cloud. Features is a
// (Dim+1) x N matrix; row Dim is the homogeneous row and is always 1 for a
// well-formed cloud. Descriptors map a name to a (k x N) matrix of per-point
// values, k depending on the descriptor (e.g. k=Dim for normals, k=1 for
// probabilityDynamic).
type PointCloud struct {
	Dim         int
	Features    *mat.Dense
	Descriptors map[string]*mat.Dense
}

// New returns an empty point cloud of the given Euclidean dimension (2 or 3).
// Its Features is an empty (zero-value) matrix, since gonum has no
// zero-column dense matrix.
func New(dim int) *PointCloud {
	return &PointCloud{
		Dim:         dim,
		Features:    &mat.Dense{},
		Descriptors: map[string]*mat.Dense{},
	}
}

// NewFromPoints builds a point cloud from a slice of Euclidean points. For a
// 2D cloud, only the X and Y components of each r3.Vector are used.
func NewFromPoints(dim int, points []r3.Vector) (*PointCloud, error) {
	if dim != 2 && dim != 3 {
		return nil, errors.Errorf("unsupported dimension %d, must be 2 or 3", dim)
	}
	if len(points) == 0 {
		return New(dim), nil
	}
	features := mat.NewDense(dim+1, len(points), nil)
	for col, p := range points {
		features.Set(0, col, p.X)
		features.Set(1, col, p.Y)
		if dim == 3 {
			features.Set(2, col, p.Z)
		}
		features.Set(dim, col, 1)
	}
	return &PointCloud{Dim: dim, Features: features, Descriptors: map[string]*mat.Dense{}}, nil
}

// Size returns the number of points in the cloud.
func (pc *PointCloud) Size() int {
	if pc == nil || pc.Features == nil {
		return 0
	}
	_, n := pc.Features.Dims()
	return n
}

// IsEmpty reports whether the cloud has zero points.
func (pc *PointCloud) IsEmpty() bool {
	return pc.Size() == 0
}

// Point returns the Euclidean coordinates of column i as an r3.Vector. For a
// 2D cloud, Z is always zero.
func (pc *PointCloud) Point(i int) r3.Vector {
	v := r3.Vector{X: pc.Features.At(0, i), Y: pc.Features.At(1, i)}
	if pc.Dim == 3 {
		v.Z = pc.Features.At(2, i)
	}
	return v
}

// SetPoint overwrites the Euclidean coordinates of column i, preserving the
// homogeneous row.
func (pc *PointCloud) SetPoint(i int, p r3.Vector) {
	pc.Features.Set(0, i, p.X)
	pc.Features.Set(1, i, p.Y)
	if pc.Dim == 3 {
		pc.Features.Set(2, i, p.Z)
	}
	pc.Features.Set(pc.Dim, i, 1)
}

// HasDescriptor reports whether the named descriptor is present.
func (pc *PointCloud) HasDescriptor(name string) bool {
	_, ok := pc.Descriptors[name]
	return ok
}

// Descriptor returns the named descriptor matrix and whether it exists.
func (pc *PointCloud) Descriptor(name string) (*mat.Dense, bool) {
	d, ok := pc.Descriptors[name]
	return d, ok
}

// AddDescriptor attaches a k x N descriptor matrix to the cloud. N must
// match the cloud's current point count.
func (pc *PointCloud) AddDescriptor(name string, data *mat.Dense) error {
	_, n := data.Dims()
	if n != pc.Size() {
		return errors.Errorf("descriptor %q has %d columns, cloud has %d points", name, n, pc.Size())
	}
	pc.Descriptors[name] = data
	return nil
}

// EnsureDescriptor attaches a k x N descriptor matrix filled with fillValue
// in every cell, but only if the descriptor is not already present. This
// mirrors the original mapper's re-entrant buildMap call, where the input
// cloud may already carry a probabilityDynamic descriptor from a previous
// pass over the same snapshot.
func (pc *PointCloud) EnsureDescriptor(name string, rows int, fillValue float64) {
	if pc.HasDescriptor(name) {
		return
	}
	n := pc.Size()
	data := make([]float64, rows*n)
	for i := range data {
		data[i] = fillValue
	}
	pc.Descriptors[name] = mat.NewDense(rows, n, data)
}

// Clone returns a deep copy of the cloud: the builder and store rely on
// value semantics across goroutine boundaries, so every matrix is copied
// rather than aliased.
func (pc *PointCloud) Clone() *PointCloud {
	out := &PointCloud{Dim: pc.Dim, Descriptors: make(map[string]*mat.Dense, len(pc.Descriptors))}
	out.Features = mat.DenseCopyOf(pc.Features)
	for name, d := range pc.Descriptors {
		out.Descriptors[name] = mat.DenseCopyOf(d)
	}
	return out
}

// Concatenate appends other's columns (features and matching descriptors)
// onto a clone of pc and returns the result. A descriptor present on one
// cloud but not the other is dropped from the result, matching
// libpointmatcher's concatenate semantics of only keeping shared
// descriptors.
func (pc *PointCloud) Concatenate(other *PointCloud) (*PointCloud, error) {
	if other.Size() == 0 {
		return pc.Clone(), nil
	}
	if pc.Size() == 0 {
		return other.Clone(), nil
	}
	if pc.Dim != other.Dim {
		return nil, errors.Errorf("cannot concatenate clouds of dimension %d and %d", pc.Dim, other.Dim)
	}

	rows, n1 := pc.Features.Dims()
	_, n2 := other.Features.Dims()
	features := mat.NewDense(rows, n1+n2, nil)
	features.Slice(0, rows, 0, n1).(*mat.Dense).Copy(pc.Features)
	features.Slice(0, rows, n1, n1+n2).(*mat.Dense).Copy(other.Features)

	out := &PointCloud{Dim: pc.Dim, Features: features, Descriptors: map[string]*mat.Dense{}}
	for name, d1 := range pc.Descriptors {
		d2, ok := other.Descriptors[name]
		if !ok {
			continue
		}
		k, _ := d1.Dims()
		merged := mat.NewDense(k, n1+n2, nil)
		merged.Slice(0, k, 0, n1).(*mat.Dense).Copy(d1)
		merged.Slice(0, k, n1, n1+n2).(*mat.Dense).Copy(d2)
		out.Descriptors[name] = merged
	}
	return out, nil
}

// SelectColumns returns a new cloud containing only the given column
// indices, preserving their relative order. This is the shape-preserving
// primitive behind the novelty filter and sensor-range cropping.
func (pc *PointCloud) SelectColumns(idx []int) *PointCloud {
	if len(idx) == 0 {
		out := New(pc.Dim)
		for name := range pc.Descriptors {
			out.Descriptors[name] = &mat.Dense{}
		}
		return out
	}
	rows, _ := pc.Features.Dims()
	features := mat.NewDense(rows, len(idx), nil)
	for col, srcCol := range idx {
		features.Slice(0, rows, col, col+1).(*mat.Dense).Copy(pc.Features.Slice(0, rows, srcCol, srcCol+1))
	}
	out := &PointCloud{Dim: pc.Dim, Features: features, Descriptors: map[string]*mat.Dense{}}
	for name, d := range pc.Descriptors {
		k, _ := d.Dims()
		sel := mat.NewDense(k, len(idx), nil)
		for col, srcCol := range idx {
			sel.Slice(0, k, col, col+1).(*mat.Dense).Copy(d.Slice(0, k, srcCol, srcCol+1))
		}
		out.Descriptors[name] = sel
	}
	return out
}

// ConservativeResize truncates the cloud to its first k columns in place,
// matching libpointmatcher's conservativeResize used to shrink a
// preallocated scratch cloud down to its actual point count after a
// filtering pass.
func (pc *PointCloud) ConservativeResize(k int) {
	rows, n := pc.Features.Dims()
	if k >= n {
		return
	}
	pc.Features = mat.DenseCopyOf(pc.Features.Slice(0, rows, 0, k))
	for name, d := range pc.Descriptors {
		dk, _ := d.Dims()
		pc.Descriptors[name] = mat.DenseCopyOf(d.Slice(0, dk, 0, k))
	}
}
