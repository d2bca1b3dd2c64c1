package augment

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/exp/rand"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/stat/distuv"
)

// PerspConfig holds the standard deviations of the intrinsic/extrinsic
// perturbation stage. Means are fixed: ratio around 1, roll and pitch around
// zero degrees.
type PerspConfig struct {
	RatioStd float64 `json:"ratio_std"`
	RollStd  float64 `json:"roll_std"`
	PitchStd float64 `json:"pitch_std"`
}

// DefaultPerspConfig matches the calibration-noise model the detector is
// trained against.
var DefaultPerspConfig = PerspConfig{RatioStd: 0.20, RollStd: 2.00, PitchStd: 0.67}

// PerspParams are the sampled perturbation values for one camera.
// TransformPitch is the derived vertical pixel shift and is filled in by
// PerturbCalibration.
type PerspParams struct {
	Ratio          float64
	RollDeg        float64
	PitchDeg       float64
	TransformPitch int
}

// SamplePersp draws perturbation parameters from the configured Gaussians
// using the caller's random stream.
func SamplePersp(rng *rand.Rand, cfg PerspConfig) PerspParams {
	return PerspParams{
		Ratio:    distuv.Normal{Mu: 1.0, Sigma: cfg.RatioStd, Src: rng}.Rand(),
		RollDeg:  distuv.Normal{Mu: 0.0, Sigma: cfg.RollStd, Src: rng}.Rand(),
		PitchDeg: distuv.Normal{Mu: 0.0, Sigma: cfg.PitchStd, Src: rng}.Rand(),
	}
}

// PerturbCalibration applies the sampled perturbation to a camera's
// intrinsic matrix and ego->sensor extrinsic. The intrinsic focal block is
// scaled by ratio; the extrinsic is perturbed by a roll about the sensor z
// axis followed by a pitch about the sensor x axis. The vertical pixel shift
// induced by the pitch is computed by mapping the principal point through
// M = K_r * R_r * R^-1 * K^-1, where R is the roll-only rotation and R_r
// includes the pitch. Returns the rectified intrinsic, the rectified
// ego->sensor transform, and the params with TransformPitch set.
func PerturbCalibration(intrin, ego2sensor mgl64.Mat4, p PerspParams) (mgl64.Mat4, mgl64.Mat4, PerspParams) {
	intrinRect := intrin
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			intrinRect.Set(r, c, intrin.At(r, c)*p.Ratio)
		}
	}

	rollRect := mgl64.HomogRotate3DZ(mgl64.DegToRad(p.RollDeg))
	ego2sensorRoll := rollRect.Mul4(ego2sensor)
	pitchRect := mgl64.HomogRotate3DX(mgl64.DegToRad(p.PitchDeg))
	ego2sensorPitch := pitchRect.Mul4(ego2sensorRoll)

	k := intrinRect.Mat3()
	m := k.Mul3(ego2sensorPitch.Mat3()).Mul3(ego2sensorRoll.Mat3().Inv()).Mul3(k.Inv())
	cx, cy := intrinRect.At(0, 2), intrinRect.At(1, 2)
	centerRef := m.Mul3x1(mgl64.Vec3{cx, cy, 1})
	p.TransformPitch = int(centerRef[1] - cy)

	return intrinRect, ego2sensorPitch, p
}

// perspOffsets returns the paste/crop offset of the ratio stage, truncated
// the same way for the image and the grid paths.
func perspOffsets(p PerspParams, cx, cy float64) (int, int) {
	wMin := int(cx * math.Abs(1.0-p.Ratio))
	hMin := int(cy * math.Abs(1.0-p.Ratio))
	return wMin, hMin
}

// PerspAffine returns the composed 2D pixel-space map of the perturbation
// stage as a homogeneous 3x3: scale by ratio about the principal point, then
// rotate by -roll about the principal point with a vertical shift of
// TransformPitch. Used for the depth/height grid path and for tests; the
// image path resamples in the same two steps.
func PerspAffine(p PerspParams, intrin mgl64.Mat4) mgl64.Mat3 {
	cx, cy := intrin.At(0, 2), intrin.At(1, 2)
	wMin, hMin := perspOffsets(p, cx, cy)
	sign := 1.0
	if p.Ratio > 1.0 {
		sign = -1.0
	}
	scale := mgl64.Mat3FromRows(
		mgl64.Vec3{p.Ratio, 0, sign * float64(wMin)},
		mgl64.Vec3{0, p.Ratio, sign * float64(hMin)},
		mgl64.Vec3{0, 0, 1},
	)

	sin, cos := math.Sincos(mgl64.DegToRad(-p.RollDeg))
	// rotation about (cx,cy) plus the pitch-induced vertical shift
	rot := mgl64.Mat3FromRows(
		mgl64.Vec3{cos, sin, cx - cos*cx - sin*cy},
		mgl64.Vec3{-sin, cos, cy + sin*cx - cos*cy + float64(p.TransformPitch)},
		mgl64.Vec3{0, 0, 1},
	)
	return rot.Mul3(scale)
}

// WarpImagePersp applies the perturbation stage to an RGB raster: resize by
// ratio, pad or crop back to the original size around the principal point,
// then rotate by -roll about the principal point with the vertical
// TransformPitch shift. Out-of-bounds pixels are black.
func WarpImagePersp(img image.Image, p PerspParams, intrin mgl64.Mat4) image.Image {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	cx, cy := intrin.At(0, 2), intrin.At(1, 2)

	newW := int(float64(w) * p.Ratio)
	newH := int(float64(h) * p.Ratio)
	resized := imaging.Resize(img, newW, newH, imaging.Lanczos)

	wMin, hMin := perspOffsets(p, cx, cy)
	off := image.Pt(wMin, hMin)
	if p.Ratio > 1.0 {
		off = image.Pt(-wMin, -hMin)
	}
	staged := imaging.Paste(imaging.New(w, h, color.NRGBA{0, 0, 0, 255}), resized, off)

	sin, cos := math.Sincos(mgl64.DegToRad(-p.RollDeg))
	ty := float64(p.TransformPitch)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Transform(dst, f64.Aff3{
		cos, sin, cx - cos*cx - sin*cy,
		-sin, cos, cy + sin*cx - cos*cy + ty,
	}, staged, staged.Bounds(), xdraw.Src, nil)
	return dst
}
