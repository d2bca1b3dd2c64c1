package spatialmath

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Transform chains follow an A2B naming convention: a matrix called a2b
// left-multiplies a homogeneous column vector expressed in frame A and
// yields the same point in frame B. The reverse direction is always obtained
// with Invert, never re-derived from the source records, so that matched
// pairs stay numerically consistent.

// RotationFromQuat converts a (w,x,y,z) quaternion to a 3x3 rotation matrix.
// The quaternion is normalized first.
func RotationFromQuat(q quat.Number) mgl64.Mat3 {
	mq := mgl64.Quat{W: q.Real, V: mgl64.Vec3{q.Imag, q.Jmag, q.Kmag}}
	return mq.Normalize().Mat4().Mat3()
}

// SE3FromParts builds a 4x4 homogeneous transform out of a rotation and a
// translation.
func SE3FromParts(rot mgl64.Mat3, tran r3.Vector) mgl64.Mat4 {
	m := mgl64.Ident4()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.Set(r, c, rot.At(r, c))
		}
	}
	m.Set(0, 3, tran.X)
	m.Set(1, 3, tran.Y)
	m.Set(2, 3, tran.Z)
	return m
}

// Compose chains transforms in frame order: Compose(a2b, b2c, c2d) returns
// a2d. Rotation submatrices are not renormalized between multiplications.
func Compose(chain ...mgl64.Mat4) mgl64.Mat4 {
	out := mgl64.Ident4()
	for _, m := range chain {
		out = m.Mul4(out)
	}
	return out
}

// Invert reverses a transform's frame direction.
func Invert(m mgl64.Mat4) mgl64.Mat4 {
	return m.Inv()
}

// TransformPoint applies a homogeneous transform to a 3D point.
func TransformPoint(m mgl64.Mat4, p r3.Vector) r3.Vector {
	v := m.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

// RotatePoint applies only the rotation block of a homogeneous transform.
func RotatePoint(m mgl64.Mat4, p r3.Vector) r3.Vector {
	v := m.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 0})
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}
