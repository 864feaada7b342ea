// Package knn implements the two nearest-neighbour search primitives the
// mapper needs: a Euclidean nearest-neighbour query (novelty filter, ICP
// correspondences) and an angular nearest-neighbour query bounded by a
// maximum radius (the dynamic-probability updater's beam matching).
//
// Both are backed by the same small k-d tree, built over whatever
// coordinate matrix the caller supplies (Euclidean xyz or spherical
// elevation/azimuth), since both searches reduce to "nearest point in a
// low-dimensional Euclidean space."
package knn

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Tree is a balanced k-d tree over a fixed set of points, each a row vector
// of length Dims. It is built once and queried many times; it does not
// support insertion after construction, matching the mapper's use (a fresh
// tree per processInput/buildMap call over a snapshot).
type Tree struct {
	dims  int
	nodes []node
	root  int
}

type node struct {
	index       int // index into the original point list
	coords      []float64
	left, right int // -1 if absent
}

// New builds a k-d tree over the columns of m (a dims x N matrix, one point
// per column). Returns an empty tree if m has zero columns.
func New(m *mat.Dense) *Tree {
	dims, n := m.Dims()
	t := &Tree{dims: dims, nodes: make([]node, n), root: -1}
	if n == 0 {
		return t
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
		coords := make([]float64, dims)
		for d := 0; d < dims; d++ {
			coords[d] = m.At(d, i)
		}
		t.nodes[i] = node{index: i, coords: coords, left: -1, right: -1}
	}
	t.root = t.build(idx, 0)
	return t
}

// build partitions idx (indices into t.nodes) around the median along axis
// depth%dims, and returns the index (into t.nodes) of the subtree root. It
// mutates the idx slice, but every node in it already lives in t.nodes, so
// this only ever reorders node *references*, never duplicates data.
func (t *Tree) build(idx []int, depth int) int {
	if len(idx) == 0 {
		return -1
	}
	axis := depth % t.dims
	sort.Slice(idx, func(i, j int) bool {
		return t.nodes[idx[i]].coords[axis] < t.nodes[idx[j]].coords[axis]
	})
	mid := len(idx) / 2
	rootIdx := idx[mid]
	t.nodes[rootIdx].left = t.build(idx[:mid], depth+1)
	t.nodes[rootIdx].right = t.build(idx[mid+1:], depth+1)
	return rootIdx
}

// Result is a single nearest-neighbour match.
type Result struct {
	Index       int
	SquaredDist float64
	Found       bool
}

// Nearest returns the closest point to query (squared Euclidean distance in
// the tree's coordinate space), with no distance bound.
func (t *Tree) Nearest(query []float64) Result {
	return t.NearestWithinRadius(query, math.Inf(1))
}

// NearestWithinRadius returns the closest point to query whose squared
// distance does not exceed maxSquaredDist. If no point qualifies,
// Result.Found is false, letting callers skip unmatched entries instead of
// treating an infinite distance as a real correspondence.
func (t *Tree) NearestWithinRadius(query []float64, maxSquaredDist float64) Result {
	best := Result{SquaredDist: maxSquaredDist}
	if t.root == -1 {
		return best
	}
	t.search(t.root, query, 0, &best)
	return best
}

func (t *Tree) search(n int, query []float64, depth int, best *Result) {
	if n == -1 {
		return
	}
	cur := &t.nodes[n]
	d := squaredDist(query, cur.coords)
	if d <= best.SquaredDist {
		best.Index = cur.index
		best.SquaredDist = d
		best.Found = true
	}

	axis := depth % t.dims
	diff := query[axis] - cur.coords[axis]

	near, far := cur.left, cur.right
	if diff > 0 {
		near, far = cur.right, cur.left
	}
	t.search(near, query, depth+1, best)
	// Only descend into the far side if it could possibly contain a closer
	// point than what we've already found.
	if diff*diff <= best.SquaredDist {
		t.search(far, query, depth+1, best)
	}
}

func squaredDist(a, b []float64) float64 {
	sum := 0.
	for i := range a {
		delta := a[i] - b[i]
		sum += delta * delta
	}
	return sum
}
