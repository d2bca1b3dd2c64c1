// Package augment implements the synchronized image/depth augmentation
// pipeline: affine image-domain augmentation with its equivalent homogeneous
// matrix, the intrinsic/extrinsic perturbation stage, dense depth/height
// grids, and the bird's-eye-view label transform. The 2D pixel-space
// operations and the matrices handed to the model must stay numerically
// consistent; every image operation here has a matching matrix path.
package augment

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/go-gl/mathgl/mgl64"
)

// IDAConfig describes the image-domain augmentation policy for one dataset
// variant: the source raster size, the final network input size, and the
// bottom-crop band.
type IDAConfig struct {
	SrcWidth    int        `json:"src_width"`
	SrcHeight   int        `json:"src_height"`
	FinalWidth  int        `json:"final_width"`
	FinalHeight int        `json:"final_height"`
	BotPctLim   [2]float64 `json:"bot_pct_lim"`
}

// IDAParams are the sampled image-domain augmentation values, shared across
// every sweep of one camera within a sample.
type IDAParams struct {
	Resize     float64
	ResizeDims image.Point // width, height after resize
	Crop       image.Rectangle
	Flip       bool
	RotateDeg  float64
}

// SampleIDA derives the augmentation parameters for one camera. The resize
// and crop are deterministic given the config; the flip and rotation hooks
// are kept in the parameterization but the current policy leaves them off.
func SampleIDA(cfg IDAConfig) IDAParams {
	resize := math.Max(
		float64(cfg.FinalHeight)/float64(cfg.SrcHeight),
		float64(cfg.FinalWidth)/float64(cfg.SrcWidth),
	)
	newW := int(float64(cfg.SrcWidth) * resize)
	newH := int(float64(cfg.SrcHeight) * resize)
	botPct := (cfg.BotPctLim[0] + cfg.BotPctLim[1]) / 2
	cropH := int((1-botPct)*float64(newH)) - cfg.FinalHeight
	cropW := 0
	if newW > cfg.FinalWidth {
		cropW = (newW - cfg.FinalWidth) / 2
	}
	return IDAParams{
		Resize:     resize,
		ResizeDims: image.Pt(newW, newH),
		Crop:       image.Rect(cropW, cropH, cropW+cfg.FinalWidth, cropH+cfg.FinalHeight),
	}
}

// IDAMatrix returns the 4x4 homogeneous matrix equivalent to the pixel
// transform of p: a 2x2 linear map plus translation embedded with identity
// z and homogeneous rows. Applying it to a homogeneous image-plane point
// reproduces TransformImage's pixel mapping.
func IDAMatrix(p IDAParams) mgl64.Mat4 {
	rot := mgl64.Ident2().Mul(p.Resize)
	tran := mgl64.Vec2{-float64(p.Crop.Min.X), -float64(p.Crop.Min.Y)}
	if p.Flip {
		a := mgl64.Mat2FromRows(mgl64.Vec2{-1, 0}, mgl64.Vec2{0, 1})
		b := mgl64.Vec2{float64(p.Crop.Dx()), 0}
		rot = a.Mul2(rot)
		tran = a.Mul2x1(tran).Add(b)
	}
	a := rot2(mgl64.DegToRad(p.RotateDeg))
	b := mgl64.Vec2{float64(p.Crop.Dx()) / 2, float64(p.Crop.Dy()) / 2}
	b = a.Mul2x1(b.Mul(-1)).Add(b)
	rot = a.Mul2(rot)
	tran = a.Mul2x1(tran).Add(b)

	m := mgl64.Ident4()
	m.Set(0, 0, rot.At(0, 0))
	m.Set(0, 1, rot.At(0, 1))
	m.Set(1, 0, rot.At(1, 0))
	m.Set(1, 1, rot.At(1, 1))
	m.Set(0, 3, tran[0])
	m.Set(1, 3, tran[1])
	return m
}

// rot2 matches the 2x2 rotation convention used for both the ida matrix and
// the sparse depth transform: [[cos, sin], [-sin, cos]].
func rot2(rad float64) mgl64.Mat2 {
	sin, cos := math.Sincos(rad)
	return mgl64.Mat2FromRows(mgl64.Vec2{cos, sin}, mgl64.Vec2{-sin, cos})
}

// TransformImage applies resize, crop, optional horizontal flip, and
// optional rotation to an RGB raster, returning the augmented image together
// with the matching ida matrix. Crop regions outside the resized raster are
// filled with black, mirroring the rasterized-label fill policy.
func TransformImage(img image.Image, p IDAParams) (image.Image, mgl64.Mat4) {
	out := imaging.Resize(img, p.ResizeDims.X, p.ResizeDims.Y, imaging.Lanczos)
	canvas := imaging.New(p.Crop.Dx(), p.Crop.Dy(), color.NRGBA{0, 0, 0, 255})
	out = imaging.Paste(canvas, out, image.Pt(-p.Crop.Min.X, -p.Crop.Min.Y))
	if p.Flip {
		out = imaging.FlipH(out)
	}
	if p.RotateDeg != 0 {
		rotated := imaging.Rotate(out, p.RotateDeg, color.NRGBA{0, 0, 0, 255})
		out = imaging.CropCenter(rotated, p.Crop.Dx(), p.Crop.Dy())
	}
	return out, IDAMatrix(p)
}
