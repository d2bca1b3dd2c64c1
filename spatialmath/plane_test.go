package spatialmath

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestPlaneFromPoints(t *testing.T) {
	p0 := r3.Vector{X: 0, Y: 0, Z: 1}
	p1 := r3.Vector{X: 2, Y: 1, Z: 3}
	p2 := r3.Vector{X: -1, Y: 4, Z: 0.5}
	plane := PlaneFromPoints(p0, p1, p2)
	test.That(t, IsDegeneratePlane(plane), test.ShouldBeFalse)
	for _, p := range []r3.Vector{p0, p1, p2} {
		test.That(t, EvaluatePlane(plane, p), test.ShouldAlmostEqual, 0, 1e-9)
	}
}

func TestPlaneFromCollinearPoints(t *testing.T) {
	p0 := r3.Vector{X: 0, Y: 0, Z: 0}
	p1 := r3.Vector{X: 1, Y: 1, Z: 1}
	p2 := r3.Vector{X: 2, Y: 2, Z: 2}
	plane := PlaneFromPoints(p0, p1, p2)
	test.That(t, IsDegeneratePlane(plane), test.ShouldBeTrue)
}

func TestEstimateGroundPlaneIdentity(t *testing.T) {
	// With identity ego->sensor the ground points stay on z=0, whose fitted
	// plane is (0,0,-1,0); negation gives (0,0,1,0).
	plane, err := EstimateGroundPlane(mgl64.Ident4())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, plane[0], test.ShouldAlmostEqual, 0)
	test.That(t, plane[1], test.ShouldAlmostEqual, 0)
	test.That(t, plane[2], test.ShouldAlmostEqual, 1)
	test.That(t, plane[3], test.ShouldAlmostEqual, 0)
}

func TestReferenceHeight(t *testing.T) {
	// plane y = 1.5 in sensor space, normal (0,1,0), d = -1.5.
	plane := [4]float64{0, 2, 0, -3}
	test.That(t, ReferenceHeight(plane), test.ShouldAlmostEqual, 1.5)

	// Height is invariant to the ego->sensor translation along the probe
	// axis only through the full estimate path.
	ego2sensor := SE3FromParts(mgl64.Rotate3DX(-math.Pi/2), r3.Vector{Y: 2.2})
	est, err := EstimateGroundPlane(ego2sensor)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ReferenceHeight(est), test.ShouldAlmostEqual, 2.2, 1e-9)
}
