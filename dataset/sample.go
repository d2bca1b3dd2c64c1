package dataset

import (
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"

	"github.com/helios-av/bevload/augment"
	"github.com/helios-av/bevload/spatialmath"
)

// BoxTypeLidar tags ground-truth boxes expressed in the LiDAR/ego
// convention (x forward, y left, yaw about z).
const BoxTypeLidar = "lidar"

// SampleMeta is the variable-form metadata carried alongside a sample's
// tensors.
type SampleMeta struct {
	BoxType               string
	Ego2GlobalRotation    [4]float64
	Ego2GlobalTranslation r3.Vector
	Token                 string
	// LidarValid is false when the point file was missing and the
	// depth/height labels were built from the placeholder cloud.
	LidarValid bool
}

// Sample is the per-index accessor output. Imgs is shaped
// [sweeps, cams, 3, H, W]; the matrix families [sweeps, cams, 4, 4];
// timestamps and reference heights [sweeps, cams]. Boxes and labels are
// left as slices since their length varies per sample. Depth and Height are
// nil unless depth supervision is configured.
type Sample struct {
	Imgs               *tensor.Dense
	Sensor2EgoMats     *tensor.Dense
	IntrinMats         *tensor.Dense
	IDAMats            *tensor.Dense
	Sensor2SensorMats  *tensor.Dense
	Sensor2VirtualMats *tensor.Dense
	BDAMat             *tensor.Dense
	Timestamps         *tensor.Dense
	RefHeights         *tensor.Dense
	Meta               SampleMeta
	Boxes              []augment.Box
	Labels             []int
	Depth              *tensor.Dense
	Height             *tensor.Dense
}

// camSweepUnit is the per-camera, per-frame computation result: the
// augmented raster plus every transform the model consumes for that unit.
type camSweepUnit struct {
	img             image.Image
	sensor2KeyEgo   mgl64.Mat4
	keySensor2Sweep mgl64.Mat4
	intrin          mgl64.Mat4
	ida             mgl64.Mat4
	sensor2Virtual  mgl64.Mat4
	refHeight       float64
	timestamp       int64
}

// assembled is the stacked output of one assembly pass.
type assembled struct {
	imgs           *tensor.Dense
	sensor2Ego     *tensor.Dense
	intrins        *tensor.Dense
	idas           *tensor.Dense
	sensor2Sensor  *tensor.Dense
	sensor2Virtual *tensor.Dense
	timestamps     *tensor.Dense
	refHeights     *tensor.Dense
	depth          *tensor.Dense
	height         *tensor.Dense
	meta           SampleMeta
}

// assemble walks the chosen cameras and resolved frames, computing the
// transform chain and augmented raster for each unit and stacking them
// sweep-major. Augmentation parameters are sampled once per camera so every
// sweep of that camera, its intrinsics, and its depth labels stay
// consistent.
func (ds *Dataset) assemble(frames []resolvedFrame, cams []string, rng *rand.Rand) (*assembled, error) {
	numSweeps := len(frames)
	numCams := len(cams)
	fW, fH := ds.cfg.IDA.FinalWidth, ds.cfg.IDA.FinalHeight

	imgData := make([]float32, numSweeps*numCams*3*fH*fW)
	s2eData := make([]float64, numSweeps*numCams*16)
	intrinData := make([]float64, numSweeps*numCams*16)
	idaData := make([]float64, numSweeps*numCams*16)
	s2sData := make([]float64, numSweeps*numCams*16)
	s2vData := make([]float64, numSweeps*numCams*16)
	tsData := make([]float64, numSweeps*numCams)
	rhData := make([]float64, numSweeps*numCams)
	var depthData, heightData []float32
	if ds.cfg.ReturnDepth {
		depthData = make([]float32, numCams*fH*fW)
		heightData = make([]float32, numCams*fH*fW)
	}
	lidarValid := true

	keyFrame := frames[0]
	for ci, cam := range cams {
		idaParams := augment.SampleIDA(ds.cfg.IDA)

		perspOn := ds.cfg.IsTrain && ds.perspAugAllowed() && rng.Float64() < 0.5
		var perspParams augment.PerspParams
		if perspOn {
			perspParams = augment.SamplePersp(rng, ds.cfg.Persp)
		}

		keyCam, ok := keyFrame.cams[cam]
		if !ok {
			return nil, errors.Errorf("key frame has no record for camera %q", cam)
		}
		keySensor2KeyEgo := keyCam.CalibratedSensor.SE3()
		global2KeyEgo := spatialmath.Invert(keyCam.EgoPose.SE3())
		keyEgo2KeySensor := spatialmath.Invert(keySensor2KeyEgo)

		for si := range frames {
			rec, ok := frames[si].cams[cam]
			if !ok {
				return nil, errors.Errorf("resolved frame %d has no record for camera %q", si, cam)
			}

			img, err := imaging.Open(filepath.Join(ds.cfg.DataRoot, rec.Filename))
			if err != nil {
				return nil, errors.Wrapf(err, "reading image for camera %q", cam)
			}

			sweepEgo2Global := rec.EgoPose.SE3()
			intrin := rec.CalibratedSensor.IntrinMat()
			sweepEgo2SweepSensor := spatialmath.Invert(rec.CalibratedSensor.SE3())

			pp := perspParams
			if perspOn {
				intrin, sweepEgo2SweepSensor, pp = augment.PerturbCalibration(intrin, sweepEgo2SweepSensor, perspParams)
				img = augment.WarpImagePersp(img, pp, intrin)
			}

			denorm, err := spatialmath.EstimateGroundPlane(sweepEgo2SweepSensor)
			if err != nil {
				return nil, errors.Wrapf(err, "camera %q frame %d", cam, si)
			}
			sweepSensor2SweepEgo := spatialmath.Invert(sweepEgo2SweepSensor)

			sweepSensor2KeyEgo := spatialmath.Compose(sweepSensor2SweepEgo, sweepEgo2Global, global2KeyEgo)
			keySensor2SweepSensor := spatialmath.Invert(spatialmath.Compose(
				sweepSensor2SweepEgo, sweepEgo2Global, global2KeyEgo, keyEgo2KeySensor,
			))
			sensor2Virtual, err := spatialmath.SensorToVirtual(denorm)
			if err != nil {
				return nil, errors.Wrapf(err, "camera %q frame %d", cam, si)
			}
			refHeight := spatialmath.ReferenceHeight(denorm)

			if ds.cfg.ReturnDepth && si == 0 {
				valid, err := ds.depthGroundTruth(
					frames[si], &rec, pp, perspOn, idaParams, intrin,
					sweepSensor2KeyEgo, sensor2Virtual, refHeight,
					depthData[ci*fH*fW:(ci+1)*fH*fW], heightData[ci*fH*fW:(ci+1)*fH*fW],
				)
				if err != nil {
					return nil, errors.Wrapf(err, "depth ground truth for camera %q", cam)
				}
				lidarValid = lidarValid && valid
			}

			outImg, ida := augment.TransformImage(img, idaParams)
			unit := camSweepUnit{
				img:             outImg,
				sensor2KeyEgo:   sweepSensor2KeyEgo,
				keySensor2Sweep: keySensor2SweepSensor,
				intrin:          intrin,
				ida:             ida,
				sensor2Virtual:  sensor2Virtual,
				refHeight:       refHeight,
				timestamp:       rec.Timestamp,
			}

			flat := si*numCams + ci
			ds.writeNormalized(imgData[flat*3*fH*fW:(flat+1)*3*fH*fW], unit.img)
			writeMat(s2eData, flat, unit.sensor2KeyEgo)
			writeMat(intrinData, flat, unit.intrin)
			writeMat(idaData, flat, unit.ida)
			writeMat(s2sData, flat, unit.keySensor2Sweep)
			writeMat(s2vData, flat, unit.sensor2Virtual)
			tsData[flat] = float64(unit.timestamp)
			rhData[flat] = unit.refHeight
		}
	}

	meanRot, meanTran := meanEgoPose(keyFrame.cams, cams)
	out := &assembled{
		imgs:           tensor.New(tensor.WithShape(numSweeps, numCams, 3, fH, fW), tensor.WithBacking(imgData)),
		sensor2Ego:     tensor.New(tensor.WithShape(numSweeps, numCams, 4, 4), tensor.WithBacking(s2eData)),
		intrins:        tensor.New(tensor.WithShape(numSweeps, numCams, 4, 4), tensor.WithBacking(intrinData)),
		idas:           tensor.New(tensor.WithShape(numSweeps, numCams, 4, 4), tensor.WithBacking(idaData)),
		sensor2Sensor:  tensor.New(tensor.WithShape(numSweeps, numCams, 4, 4), tensor.WithBacking(s2sData)),
		sensor2Virtual: tensor.New(tensor.WithShape(numSweeps, numCams, 4, 4), tensor.WithBacking(s2vData)),
		timestamps:     tensor.New(tensor.WithShape(numSweeps, numCams), tensor.WithBacking(tsData)),
		refHeights:     tensor.New(tensor.WithShape(numSweeps, numCams), tensor.WithBacking(rhData)),
		meta: SampleMeta{
			BoxType:               BoxTypeLidar,
			Ego2GlobalRotation:    meanRot,
			Ego2GlobalTranslation: meanTran,
			LidarValid:            lidarValid,
		},
	}
	if ds.cfg.ReturnDepth {
		out.depth = tensor.New(tensor.WithShape(numCams, fH, fW), tensor.WithBacking(depthData))
		out.height = tensor.New(tensor.WithShape(numCams, fH, fW), tensor.WithBacking(heightData))
	}
	return out, nil
}

// depthGroundTruth projects the frame's LiDAR into the camera, converts the
// kept points to depth and height-above-ground measurements, and writes the
// augmented dense maps into dst slices of length finalH*finalW. Returns
// false when the point file was missing and the placeholder cloud was used.
func (ds *Dataset) depthGroundTruth(
	frame resolvedFrame,
	rec *CamRecord,
	pp augment.PerspParams,
	perspOn bool,
	idaParams augment.IDAParams,
	intrin mgl64.Mat4,
	sweepSensor2KeyEgo, sensor2Virtual mgl64.Mat4,
	refHeight float64,
	depthDst, heightDst []float32,
) (bool, error) {
	lidarRec, ok := frame.lidar[ds.lidarKey]
	if !ok {
		return false, errors.Errorf("no lidar record %q in resolved frame", ds.lidarKey)
	}

	valid := true
	lidarPath := filepath.Join(ds.cfg.DataRoot, lidarRec.Filename)
	pts, err := ReadLidarFile(lidarPath)
	if err != nil {
		if !os.IsNotExist(errors.Cause(err)) {
			return false, err
		}
		// Soft failure: proceed with a placeholder cloud so the sample is
		// still usable, but flag the depth labels as degraded.
		ds.logger.Warnw("lidar file missing, substituting placeholder cloud", "path", lidarPath)
		pts = placeholderCloud()
		valid = false
	}

	srcW, srcH := ds.cfg.IDA.SrcWidth, ds.cfg.IDA.SrcHeight
	fW, fH := ds.cfg.IDA.FinalWidth, ds.cfg.IDA.FinalHeight
	lidar2cam := lidarRec.CalibratedSensor.SE3()

	// projection uses the record's own intrinsic; the rectified intrinsic
	// only drives the raster warp below
	depthPts, keep := ProjectToImage(pts, lidar2cam, rec.CalibratedSensor.IntrinMat(), srcW, srcH, 0)
	heights := HeightAboveGround(pts, sweepSensor2KeyEgo, sensor2Virtual, refHeight)
	heightPts := make([]augment.DepthPoint, len(depthPts))
	for i, dp := range depthPts {
		heightPts[i] = augment.DepthPoint{X: dp.X, Y: dp.Y, Value: heights[keep[i]]}
	}

	var depthGrid, heightGrid *augment.Grid
	if perspOn {
		// dense path: the perturbation warp needs fill-value semantics
		persp := augment.PerspAffine(pp, intrin)
		ida2 := augment.IDAMatrix2D(augment.IDAMatrix(idaParams))
		depthGrid = augment.Scatter(depthPts, srcW, srcH).
			WarpAffine(persp, srcW, srcH, augment.DepthFill).
			WarpAffine(ida2, fW, fH, augment.DepthFill)
		heightGrid = augment.Scatter(heightPts, srcW, srcH).
			WarpAffine(persp, srcW, srcH, augment.HeightFill).
			WarpAffine(ida2, fW, fH, augment.HeightFill)
	} else {
		depthGrid = augment.TransformDepthPoints(depthPts, idaParams, fW, fH)
		heightGrid = augment.TransformDepthPoints(heightPts, idaParams, fW, fH)
	}
	copy(depthDst, depthGrid.Data)
	copy(heightDst, heightGrid.Data)
	return valid, nil
}

// writeNormalized converts a raster to normalized CHW float32 planes.
func (ds *Dataset) writeNormalized(dst []float32, img image.Image) {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()
	mean, std := ds.cfg.Img.Mean, ds.cfg.Img.Std
	for c := 0; c < 3; c++ {
		src := c
		if !ds.cfg.Img.ToRGB {
			// stats were computed on BGR-ordered data
			src = 2 - c
		}
		plane := dst[c*h*w : (c+1)*h*w]
		for y := 0; y < h; y++ {
			row := nrgba.Pix[y*nrgba.Stride:]
			for x := 0; x < w; x++ {
				plane[y*w+x] = float32((float64(row[x*4+src]) - mean[c]) / std[c])
			}
		}
	}
}

// writeMat flattens a 4x4 matrix row-major into the unit slot of a stacked
// buffer.
func writeMat(dst []float64, flat int, m mgl64.Mat4) {
	base := flat * 16
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			dst[base+r*4+c] = m.At(r, c)
		}
	}
}

// matToTensor converts a 4x4 matrix to a row-major (4,4) tensor.
func matToTensor(m mgl64.Mat4) *tensor.Dense {
	data := make([]float64, 16)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			data[r*4+c] = m.At(r, c)
		}
	}
	return tensor.New(tensor.WithShape(4, 4), tensor.WithBacking(data))
}
