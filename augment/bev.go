package augment

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Box is a 3D ground-truth box in the key ego frame:
// x, y, z, l, w, h, yaw, vx, vy.
type Box [9]float64

// BEVParams are the bird's-eye-view label augmentation values, sampled once
// per sample and shared across all cameras and boxes.
type BEVParams struct {
	RotateDeg float64
	Scale     float64
	FlipDX    bool
	FlipDY    bool
}

// SampleBEV returns the label augmentation for one sample. The current
// policy is the identity; the parameterization is the extension point.
func SampleBEV() BEVParams {
	return BEVParams{RotateDeg: 0, Scale: 1.0}
}

// TransformBoxes applies rotation, scaling, and flips jointly to box
// centers, dimensions, yaw, and velocity. The combined rotation is
// R = flipY * flipX * scale * rotate, flips outermost. Yaw gains the
// rotation angle, then flip_dx maps yaw to pi-yaw, then flip_dy negates it;
// both may apply and the dx check comes first. An empty box slice passes
// through unchanged, still yielding an R consistent with the parameters.
// Boxes are mutated in place and returned along with R.
func TransformBoxes(boxes []Box, p BEVParams) ([]Box, mgl64.Mat3) {
	rad := mgl64.DegToRad(p.RotateDeg)
	rot := mgl64.Rotate3DZ(rad)
	scale := mgl64.Ident3().Mul(p.Scale)
	flip := mgl64.Ident3()
	if p.FlipDX {
		flip = flip.Mul3(mgl64.Diag3(mgl64.Vec3{-1, 1, 1}))
	}
	if p.FlipDY {
		flip = flip.Mul3(mgl64.Diag3(mgl64.Vec3{1, -1, 1}))
	}
	r := flip.Mul3(scale.Mul3(rot))

	for i := range boxes {
		b := &boxes[i]
		c := r.Mul3x1(mgl64.Vec3{b[0], b[1], b[2]})
		b[0], b[1], b[2] = c[0], c[1], c[2]
		b[3] *= p.Scale
		b[4] *= p.Scale
		b[5] *= p.Scale
		b[6] += rad
		if p.FlipDX {
			b[6] = math.Pi - b[6]
		}
		if p.FlipDY {
			b[6] = -b[6]
		}
		vx := r.At(0, 0)*b[7] + r.At(0, 1)*b[8]
		vy := r.At(1, 0)*b[7] + r.At(1, 1)*b[8]
		b[7], b[8] = vx, vy
	}
	return boxes, r
}

// BDAMatrix embeds the 3x3 label rotation into the 4x4 matrix handed to the
// model alongside the camera transforms.
func BDAMatrix(r mgl64.Mat3) mgl64.Mat4 {
	m := mgl64.Ident4()
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			m.Set(row, col, r.At(row, col))
		}
	}
	return m
}
