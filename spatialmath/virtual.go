package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// virtualUp is the canonical up axis of the virtual ground frame. The ground
// plane's normal, rotated by SensorToVirtual, aligns with this axis.
var virtualUp = r3.Vector{X: 0, Y: 1, Z: 0}

// SensorToVirtual computes the rotation taking the sensor frame to the
// ground-aligned virtual frame: the axis-angle (Rodrigues) rotation whose
// angle is arccos of the dot product between the negated plane normal and
// the up axis, about the axis given by their cross product. A normal already
// aligned with up has an undefined rotation axis, so zero angle is
// special-cased to the identity. A zero normal or an anti-parallel normal is
// an error.
func SensorToVirtual(plane [4]float64) (mgl64.Mat4, error) {
	target := PlaneNormal(plane).Mul(-1)
	norm := target.Norm()
	if norm < 1e-12 {
		return mgl64.Mat4{}, errors.Wrap(ErrDegeneratePlane, "sensor to virtual")
	}
	target = target.Mul(1 / norm)

	dot := target.Dot(virtualUp)
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	angle := math.Acos(dot)
	if angle < 1e-9 {
		return mgl64.Ident4(), nil
	}

	axis := target.Cross(virtualUp)
	axisNorm := axis.Norm()
	if axisNorm < 1e-12 {
		// angle is pi: the plane normal points straight away from up and the
		// rotation axis is not defined.
		return mgl64.Mat4{}, errors.New("sensor to virtual: plane normal anti-parallel to up axis")
	}
	axis = axis.Mul(1 / axisNorm)
	return mgl64.HomogRotate3D(angle, mgl64.Vec3{axis.X, axis.Y, axis.Z}), nil
}
