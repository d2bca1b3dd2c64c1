package spatialmath

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

// camDown is an ego->sensor rotation putting the sensor in the usual
// camera convention: x right, y down, z forward.
var camDown = mgl64.Rotate3DX(math.Pi / 2)

func TestSensorToVirtualAligned(t *testing.T) {
	ego2sensor := SE3FromParts(camDown, r3.Vector{Y: 1.5})
	plane, err := EstimateGroundPlane(ego2sensor)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ReferenceHeight(plane), test.ShouldAlmostEqual, 1.5, 1e-9)

	rot, err := SensorToVirtual(plane)
	test.That(t, err, test.ShouldBeNil)
	ident := mgl64.Ident4()
	for i := range ident {
		test.That(t, rot[i], test.ShouldAlmostEqual, ident[i], 1e-9)
	}
}

func TestSensorToVirtualTilted(t *testing.T) {
	// Roll the camera: the virtual rotation must bring the negated plane
	// normal back onto the up axis.
	roll := mgl64.Rotate3DZ(0.2)
	ego2sensor := SE3FromParts(roll.Mul3(camDown), r3.Vector{Y: 1.5})
	plane, err := EstimateGroundPlane(ego2sensor)
	test.That(t, err, test.ShouldBeNil)

	rot, err := SensorToVirtual(plane)
	test.That(t, err, test.ShouldBeNil)
	n := PlaneNormal(plane)
	aligned := RotatePoint(rot, n.Mul(-1/n.Norm()))
	test.That(t, aligned.X, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, aligned.Y, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, aligned.Z, test.ShouldAlmostEqual, 0, 1e-9)
}

func TestSensorToVirtualDegenerate(t *testing.T) {
	_, err := SensorToVirtual([4]float64{0, 0, 0, 1})
	test.That(t, err, test.ShouldNotBeNil)
}
