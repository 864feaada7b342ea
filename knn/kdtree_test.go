package knn

import (
	"math"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestNearestExact(t *testing.T) {
	pts := mat.NewDense(2, 4, []float64{
		0, 10, 0, 5,
		0, 0, 10, 5,
	})
	tree := New(pts)

	res := tree.Nearest([]float64{4, 4})
	test.That(t, res.Found, test.ShouldBeTrue)
	test.That(t, res.Index, test.ShouldEqual, 3)
}

func TestNearestWithinRadiusUnmatched(t *testing.T) {
	pts := mat.NewDense(2, 1, []float64{100, 100})
	tree := New(pts)

	res := tree.NearestWithinRadius([]float64{0, 0}, 1)
	test.That(t, res.Found, test.ShouldBeFalse)
}

func TestNearestWithinRadiusAtExactCutoffIsIncluded(t *testing.T) {
	pts := mat.NewDense(1, 1, []float64{3})
	tree := New(pts)

	res := tree.NearestWithinRadius([]float64{0}, 9) // squared dist exactly 9
	test.That(t, res.Found, test.ShouldBeTrue)
}

func TestEmptyTree(t *testing.T) {
	// gonum cannot build a zero-column matrix with NewDense; the zero-value
	// Dense is its empty matrix.
	tree := New(&mat.Dense{})
	res := tree.Nearest([]float64{0, 0, 0})
	test.That(t, res.Found, test.ShouldBeFalse)
}

func TestManyPointsFindsTrueNearest(t *testing.T) {
	n := 200
	data := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		data[i] = float64(i)
		data[n+i] = float64(i) * 0.5
	}
	pts := mat.NewDense(2, n, nil)
	for i := 0; i < n; i++ {
		pts.Set(0, i, data[i])
		pts.Set(1, i, data[n+i])
	}
	tree := New(pts)

	query := []float64{42.3, 21.1}
	res := tree.Nearest(query)
	test.That(t, res.Found, test.ShouldBeTrue)

	// Brute-force cross-check.
	bestIdx, bestDist := -1, math.Inf(1)
	for i := 0; i < n; i++ {
		d := (pts.At(0, i)-query[0])*(pts.At(0, i)-query[0]) + (pts.At(1, i)-query[1])*(pts.At(1, i)-query[1])
		if d < bestDist {
			bestDist, bestIdx = d, i
		}
	}
	test.That(t, res.Index, test.ShouldEqual, bestIdx)
}
