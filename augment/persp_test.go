package augment

import (
	"image"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"go.viam.com/test"
	"golang.org/x/exp/rand"
)

func testIntrin(fx, fy, cx, cy float64) mgl64.Mat4 {
	m := mgl64.Ident4()
	m.Set(0, 0, fx)
	m.Set(1, 1, fy)
	m.Set(0, 2, cx)
	m.Set(1, 2, cy)
	return m
}

func TestSamplePerspSeeded(t *testing.T) {
	a := SamplePersp(rand.New(rand.NewSource(7)), DefaultPerspConfig)
	b := SamplePersp(rand.New(rand.NewSource(7)), DefaultPerspConfig)
	test.That(t, a, test.ShouldResemble, b)
	c := SamplePersp(rand.New(rand.NewSource(8)), DefaultPerspConfig)
	test.That(t, c, test.ShouldNotResemble, a)
}

func TestPerturbCalibrationIdentityParams(t *testing.T) {
	intrin := testIntrin(500, 500, 320, 240)
	ego2sensor := mgl64.HomogRotate3DX(0.4)
	p := PerspParams{Ratio: 1, RollDeg: 0, PitchDeg: 0}
	gotK, gotE, gotP := PerturbCalibration(intrin, ego2sensor, p)
	for i := range intrin {
		test.That(t, gotK[i], test.ShouldAlmostEqual, intrin[i], 1e-9)
		test.That(t, gotE[i], test.ShouldAlmostEqual, ego2sensor[i], 1e-9)
	}
	test.That(t, gotP.TransformPitch, test.ShouldEqual, 0)
}

func TestPerturbCalibrationRatio(t *testing.T) {
	intrin := testIntrin(500, 400, 320, 240)
	p := PerspParams{Ratio: 1.5}
	gotK, _, _ := PerturbCalibration(intrin, mgl64.Ident4(), p)
	test.That(t, gotK.At(0, 0), test.ShouldAlmostEqual, 750)
	test.That(t, gotK.At(1, 1), test.ShouldAlmostEqual, 600)
	// principal point is untouched
	test.That(t, gotK.At(0, 2), test.ShouldAlmostEqual, 320)
	test.That(t, gotK.At(1, 2), test.ShouldAlmostEqual, 240)
}

func TestPerturbCalibrationPitchShift(t *testing.T) {
	// pitching the camera down moves the principal point's image of the
	// scene vertically; the shift must be nonzero and scale with focal
	// length
	intrin := testIntrin(500, 500, 320, 240)
	p := PerspParams{Ratio: 1, RollDeg: 0, PitchDeg: 2}
	_, _, gotP := PerturbCalibration(intrin, mgl64.HomogRotate3DX(1.2), p)
	test.That(t, gotP.TransformPitch, test.ShouldNotEqual, 0)

	long := testIntrin(1000, 1000, 320, 240)
	_, _, gotLong := PerturbCalibration(long, mgl64.HomogRotate3DX(1.2), p)
	test.That(t, abs(gotLong.TransformPitch) > abs(gotP.TransformPitch), test.ShouldBeTrue)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestPerspAffineIdentity(t *testing.T) {
	p := PerspParams{Ratio: 1}
	m := PerspAffine(p, testIntrin(500, 500, 320, 240))
	ident := mgl64.Ident3()
	for i := range ident {
		test.That(t, m[i], test.ShouldAlmostEqual, ident[i], 1e-9)
	}
}

func TestPerspAffineScaleFixedPoint(t *testing.T) {
	// scaling happens about the principal point, which stays put up to the
	// integer truncation of the paste offsets
	p := PerspParams{Ratio: 2}
	m := PerspAffine(p, testIntrin(500, 500, 100, 50))
	v := m.Mul3x1(mgl64.Vec3{100, 50, 1})
	test.That(t, v[0], test.ShouldAlmostEqual, 100, 1.0)
	test.That(t, v[1], test.ShouldAlmostEqual, 50, 1.0)
	// points away from the center spread out by the ratio
	v2 := m.Mul3x1(mgl64.Vec3{110, 50, 1})
	test.That(t, v2[0]-v[0], test.ShouldAlmostEqual, 20, 1e-9)
}

func TestWarpImagePerspIdentity(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := range src.Pix {
		src.Pix[i] = uint8(i % 251)
	}
	p := PerspParams{Ratio: 1}
	out := WarpImagePersp(src, p, testIntrin(500, 500, 8, 8))
	test.That(t, out.Bounds().Dx(), test.ShouldEqual, 16)
	test.That(t, out.Bounds().Dy(), test.ShouldEqual, 16)
}
