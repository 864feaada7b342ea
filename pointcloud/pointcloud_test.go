package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestNewFromPoints(t *testing.T) {
	pc, err := NewFromPoints(3, []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: -1, Y: 0, Z: 1}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 2)
	test.That(t, pc.IsEmpty(), test.ShouldBeFalse)
	test.That(t, pc.Point(0), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, pc.Features.At(3, 0), test.ShouldEqual, 1.)

	_, err = NewFromPoints(5, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEmptyCloud(t *testing.T) {
	pc := New(3)
	test.That(t, pc.IsEmpty(), test.ShouldBeTrue)
	test.That(t, pc.Size(), test.ShouldEqual, 0)
}

func TestEnsureDescriptor(t *testing.T) {
	pc, err := NewFromPoints(3, []r3.Vector{{X: 1}, {X: 2}, {X: 3}})
	test.That(t, err, test.ShouldBeNil)

	pc.EnsureDescriptor(DescriptorProbabilityDynamic, 1, 0.6)
	test.That(t, pc.HasDescriptor(DescriptorProbabilityDynamic), test.ShouldBeTrue)
	d, ok := pc.Descriptor(DescriptorProbabilityDynamic)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, d.At(0, 1), test.ShouldEqual, 0.6)

	// Re-entrant call must not clobber existing values.
	d.Set(0, 1, 0.9)
	pc.EnsureDescriptor(DescriptorProbabilityDynamic, 1, 0.6)
	test.That(t, d.At(0, 1), test.ShouldEqual, 0.9)
}

func TestConcatenate(t *testing.T) {
	a, err := NewFromPoints(3, []r3.Vector{{X: 1}, {X: 2}})
	test.That(t, err, test.ShouldBeNil)
	b, err := NewFromPoints(3, []r3.Vector{{X: 3}})
	test.That(t, err, test.ShouldBeNil)

	a.Descriptors[DescriptorProbabilityDynamic] = mat.NewDense(1, 2, []float64{0.5, 0.6})
	b.Descriptors[DescriptorProbabilityDynamic] = mat.NewDense(1, 1, []float64{0.7})

	merged, err := a.Concatenate(b)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, merged.Size(), test.ShouldEqual, 3)
	test.That(t, merged.Point(2), test.ShouldResemble, r3.Vector{X: 3})
	d, ok := merged.Descriptor(DescriptorProbabilityDynamic)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, d.At(0, 2), test.ShouldEqual, 0.7)

	// Concatenating onto an empty cloud returns a clone of other.
	empty := New(3)
	merged2, err := empty.Concatenate(a)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, merged2.Size(), test.ShouldEqual, 2)
}

func TestSelectColumnsPreservesOrder(t *testing.T) {
	pc, err := NewFromPoints(3, []r3.Vector{{X: 1}, {X: 2}, {X: 3}, {X: 4}})
	test.That(t, err, test.ShouldBeNil)

	sel := pc.SelectColumns([]int{3, 0})
	test.That(t, sel.Size(), test.ShouldEqual, 2)
	test.That(t, sel.Point(0), test.ShouldResemble, r3.Vector{X: 4})
	test.That(t, sel.Point(1), test.ShouldResemble, r3.Vector{X: 1})
}

func TestConservativeResize(t *testing.T) {
	pc, err := NewFromPoints(3, []r3.Vector{{X: 1}, {X: 2}, {X: 3}})
	test.That(t, err, test.ShouldBeNil)
	pc.Descriptors[DescriptorProbabilityDynamic] = mat.NewDense(1, 3, []float64{0.1, 0.2, 0.3})

	pc.ConservativeResize(2)
	test.That(t, pc.Size(), test.ShouldEqual, 2)
	d, _ := pc.Descriptor(DescriptorProbabilityDynamic)
	_, n := d.Dims()
	test.That(t, n, test.ShouldEqual, 2)
}

func TestCloneIsIndependent(t *testing.T) {
	pc, err := NewFromPoints(2, []r3.Vector{{X: 1, Y: 1}})
	test.That(t, err, test.ShouldBeNil)
	clone := pc.Clone()
	clone.SetPoint(0, r3.Vector{X: 5, Y: 5})
	test.That(t, pc.Point(0), test.ShouldResemble, r3.Vector{X: 1, Y: 1})
}
