package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/brunokinder/norlab-icp-mapper/pointcloud"
)

func rotationZ(theta float64) Rigid {
	t := Identity(3)
	c, s := math.Cos(theta), math.Sin(theta)
	t.Matrix.Set(0, 0, c)
	t.Matrix.Set(0, 1, -s)
	t.Matrix.Set(1, 0, s)
	t.Matrix.Set(1, 1, c)
	return t
}

func TestIdentityRoundTrip(t *testing.T) {
	id := Identity(3)
	pc, err := pointcloud.NewFromPoints(3, nil)
	test.That(t, err, test.ShouldBeNil)
	out, err := Apply(id, pc)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Size(), test.ShouldEqual, 0)
}

func TestComposeAndInverse(t *testing.T) {
	a := rotationZ(math.Pi / 4)
	a.Matrix.Set(0, 3, 1)
	a.Matrix.Set(1, 3, 2)

	inv := a.Inverse()
	roundTrip := a.Compose(inv)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := 0.
			if i == j {
				want = 1
			}
			test.That(t, math.Abs(roundTrip.Matrix.At(i, j)-want), test.ShouldBeLessThan, 1e-9)
		}
	}
}

func TestFrameRoundTripWithinTolerance(t *testing.T) {
	// transform(transform(c, T), T^-1) should recover c within tolerance.
	pc, err := pointcloud.NewFromPoints(3, []r3.Vector{
		{X: 1, Y: 2, Z: 3}, {X: -1, Y: 0, Z: 2}, {X: 0, Y: 0, Z: 0}, {X: 4, Y: -4, Z: 1},
	})
	test.That(t, err, test.ShouldBeNil)

	tr := rotationZ(0.3)
	tr.Matrix.Set(0, 3, 5)
	tr.Matrix.Set(2, 3, -2)

	forward, err := Apply(tr, pc)
	test.That(t, err, test.ShouldBeNil)
	back, err := Apply(tr.Inverse(), forward)
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < pc.Size(); i++ {
		p0 := pc.Point(i)
		p1 := back.Point(i)
		test.That(t, math.Abs(p0.X-p1.X), test.ShouldBeLessThan, 1e-4)
		test.That(t, math.Abs(p0.Y-p1.Y), test.ShouldBeLessThan, 1e-4)
		test.That(t, math.Abs(p0.Z-p1.Z), test.ShouldBeLessThan, 1e-4)
	}
}

func TestNormalizedCorrectsDrift(t *testing.T) {
	tr := Identity(3)
	// Perturb the rotation block slightly off-orthonormal.
	tr.Matrix.Set(0, 0, 1.01)
	tr.Matrix.Set(1, 1, 0.99)

	norm := tr.Normalized()
	rot := norm.Matrix.Slice(0, 3, 0, 3)
	var product mat.Dense
	product.Mul(rot, rot.T())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.
			if i == j {
				want = 1
			}
			test.That(t, math.Abs(product.At(i, j)-want), test.ShouldBeLessThan, 1e-6)
		}
	}
}
