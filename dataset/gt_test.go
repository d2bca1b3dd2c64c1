package dataset

import (
	"math"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

func TestYawFromQuat(t *testing.T) {
	test.That(t, yawFromQuat(quat.Number{Real: 1}), test.ShouldAlmostEqual, 0)

	// rotation of 0.5 rad about z
	q := quat.Number{Real: math.Cos(0.25), Kmag: math.Sin(0.25)}
	test.That(t, yawFromQuat(q), test.ShouldAlmostEqual, 0.5, 1e-9)

	q = quat.Number{Real: math.Cos(math.Pi / 4), Kmag: -math.Sin(math.Pi / 4)}
	test.That(t, yawFromQuat(q), test.ShouldAlmostEqual, -math.Pi/2, 1e-9)
}

func TestDetectionName(t *testing.T) {
	test.That(t, detectionName("vehicle.car"), test.ShouldEqual, "car")
	test.That(t, detectionName("human.pedestrian.adult"), test.ShouldEqual, "pedestrian")
	test.That(t, detectionName("animal"), test.ShouldEqual, DetectionNameIgnore)
	test.That(t, detectionName("car"), test.ShouldEqual, "car")
}

func TestMeanEgoPose(t *testing.T) {
	camInfos := map[string]CamRecord{
		"CAM_FRONT": {EgoPose: EgoPose{Rotation: []float64{1, 0, 0, 0}, Translation: []float64{2, 0, 0}}},
		"CAM_BACK":  {EgoPose: EgoPose{Rotation: []float64{1, 0, 0, 0}, Translation: []float64{4, 2, 0}}},
	}
	rot, tran := meanEgoPose(camInfos, []string{"CAM_FRONT", "CAM_BACK"})
	test.That(t, rot[0], test.ShouldAlmostEqual, 1)
	test.That(t, rot[3], test.ShouldAlmostEqual, 0)
	test.That(t, tran.X, test.ShouldAlmostEqual, 3)
	test.That(t, tran.Y, test.ShouldAlmostEqual, 1)
}

func TestGroundTruthFiltering(t *testing.T) {
	ds := &Dataset{cfg: Config{Classes: []string{"car", "pedestrian"}}}
	pose := EgoPose{Rotation: []float64{1, 0, 0, 0}, Translation: []float64{0, 0, 0}}
	info := SampleRecord{
		CamInfos: map[string]CamRecord{"CAM_FRONT": {EgoPose: pose}},
		AnnInfos: []Annotation{
			{
				CategoryName: "vehicle.car",
				Translation:  []float64{10, 0, 0},
				Size:         []float64{2, 5, 1.5}, // w, l, h
				Rotation:     []float64{1, 0, 0, 0},
				Velocity:     []float64{1, 0},
				NumLidarPts:  4,
			},
			// ignored category
			{
				CategoryName: "animal",
				Translation:  []float64{1, 1, 0},
				Size:         []float64{1, 1, 1},
				Rotation:     []float64{1, 0, 0, 0},
				Velocity:     []float64{0, 0},
				NumLidarPts:  4,
			},
			// no point support
			{
				CategoryName: "vehicle.car",
				Translation:  []float64{5, 5, 0},
				Size:         []float64{2, 5, 1.5},
				Rotation:     []float64{1, 0, 0, 0},
				Velocity:     []float64{0, 0},
			},
		},
	}

	boxes, labels := ds.groundTruth(&info, []string{"CAM_FRONT"})
	test.That(t, len(boxes), test.ShouldEqual, 1)
	test.That(t, labels, test.ShouldResemble, []int{0})
	test.That(t, boxes[0][0], test.ShouldAlmostEqual, 10)
	test.That(t, boxes[0][1], test.ShouldAlmostEqual, 0)
	// dims reorder to l, w, h
	test.That(t, boxes[0][3], test.ShouldAlmostEqual, 5)
	test.That(t, boxes[0][4], test.ShouldAlmostEqual, 2)
	test.That(t, boxes[0][5], test.ShouldAlmostEqual, 1.5)
	test.That(t, boxes[0][6], test.ShouldAlmostEqual, 0)
	test.That(t, boxes[0][7], test.ShouldAlmostEqual, 1)
}

func TestGroundTruthEgoRelative(t *testing.T) {
	ds := &Dataset{cfg: Config{Classes: []string{"car"}}}
	// ego rotated 90 degrees about z and shifted
	s := math.Sqrt(0.5)
	pose := EgoPose{Rotation: []float64{s, 0, 0, s}, Translation: []float64{10, 0, 0}}
	info := SampleRecord{
		CamInfos: map[string]CamRecord{"CAM_FRONT": {EgoPose: pose}},
		AnnInfos: []Annotation{{
			CategoryName: "vehicle.car",
			Translation:  []float64{10, 5, 0},
			Size:         []float64{2, 5, 1.5},
			Rotation:     []float64{s, 0, 0, s},
			Velocity:     []float64{0, 1},
			NumLidarPts:  1,
		}},
	}

	boxes, _ := ds.groundTruth(&info, []string{"CAM_FRONT"})
	test.That(t, len(boxes), test.ShouldEqual, 1)
	// the global offset (0, 5, 0) lands on the ego x axis
	test.That(t, boxes[0][0], test.ShouldAlmostEqual, 5, 1e-9)
	test.That(t, boxes[0][1], test.ShouldAlmostEqual, 0, 1e-9)
	// matching heading means zero relative yaw
	test.That(t, boxes[0][6], test.ShouldAlmostEqual, 0, 1e-9)
	// global +y velocity becomes ego +x
	test.That(t, boxes[0][7], test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, boxes[0][8], test.ShouldAlmostEqual, 0, 1e-9)
}
