package augment

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Fill values for pixels with no source measurement after warping. Depth
// uses 0, the same as "no measurement"; height uses 10 so padded background
// is distinguishable from an unmeasured cell.
const (
	DepthFill  float32 = 0
	HeightFill float32 = 10
)

// DepthPoint is one sparse image-plane measurement: pixel coordinates plus a
// value (depth in meters, or height above ground).
type DepthPoint struct {
	X, Y  float64
	Value float64
}

// Grid is a dense single-channel float map, the rasterized form of sparse
// LiDAR projections. Data is row-major.
type Grid struct {
	W, H int
	Data []float32
}

// NewGrid returns a w by h grid filled with the given value.
func NewGrid(w, h int, fill float32) *Grid {
	g := &Grid{W: w, H: h, Data: make([]float32, w*h)}
	if fill != 0 {
		for i := range g.Data {
			g.Data[i] = fill
		}
	}
	return g
}

// At returns the value at (x, y). Callers must stay in bounds.
func (g *Grid) At(x, y int) float32 { return g.Data[y*g.W+x] }

// Set writes the value at (x, y). Callers must stay in bounds.
func (g *Grid) Set(x, y int, v float32) { g.Data[y*g.W+x] = v }

// Scatter rasterizes sparse points into a zeroed w by h grid. Coordinates
// are truncated to integers; points outside the grid are dropped. Later
// points overwrite earlier ones in the same cell.
func Scatter(points []DepthPoint, w, h int) *Grid {
	g := NewGrid(w, h, 0)
	for _, p := range points {
		x := int(math.Trunc(p.X))
		y := int(math.Trunc(p.Y))
		if x < 0 || x >= w || y < 0 || y >= h {
			continue
		}
		g.Set(x, y, float32(p.Value))
	}
	return g
}

// WarpAffine resamples the grid through a homogeneous 2D pixel map (the same
// 3x3 convention as PerspAffine, or the top-left block of an ida matrix)
// into an outW by outH grid. Inverse mapping with nearest-neighbor lookup;
// destination cells with no source are set to fill.
func (g *Grid) WarpAffine(m mgl64.Mat3, outW, outH int, fill float32) *Grid {
	out := NewGrid(outW, outH, fill)
	inv := m.Inv()
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			src := inv.Mul3x1(mgl64.Vec3{float64(x), float64(y), 1})
			sx := int(math.Round(src[0]))
			sy := int(math.Round(src[1]))
			if sx < 0 || sx >= g.W || sy < 0 || sy >= g.H {
				continue
			}
			out.Set(x, y, g.At(sx, sy))
		}
	}
	return out
}

// IDAMatrix2D extracts the 2D homogeneous pixel map out of a 4x4 ida matrix
// for use with WarpAffine.
func IDAMatrix2D(ida mgl64.Mat4) mgl64.Mat3 {
	return mgl64.Mat3FromRows(
		mgl64.Vec3{ida.At(0, 0), ida.At(0, 1), ida.At(0, 3)},
		mgl64.Vec3{ida.At(1, 0), ida.At(1, 1), ida.At(1, 3)},
		mgl64.Vec3{0, 0, 1},
	)
}

// TransformDepthPoints applies the affine augmentation stage to sparse
// measurements and rasterizes them at the final size. Coordinates are scaled
// by the resize factor and shifted by the crop; a flip mirrors x about the
// final width; rotation is a 2x2 rotation of the coordinates about the final
// image center. This sparse path is exact and is preferred whenever the
// perturbation stage has not already forced a dense warp.
func TransformDepthPoints(points []DepthPoint, p IDAParams, finalW, finalH int) *Grid {
	rot := rot2(mgl64.DegToRad(p.RotateDeg))
	halfW := float64(finalW) / 2
	halfH := float64(finalH) / 2
	out := make([]DepthPoint, 0, len(points))
	for _, pt := range points {
		x := pt.X*p.Resize - float64(p.Crop.Min.X)
		y := pt.Y*p.Resize - float64(p.Crop.Min.Y)
		if p.Flip {
			x = float64(finalW) - x
		}
		v := rot.Mul2x1(mgl64.Vec2{x - halfW, y - halfH})
		out = append(out, DepthPoint{X: v[0] + halfW, Y: v[1] + halfH, Value: pt.Value})
	}
	return Scatter(out, finalW, finalH)
}
