package dataset

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/helios-av/bevload/augment"
)

// meanEgoPose averages the key-frame ego pose across the chosen cameras:
// component-wise quaternion mean and translation mean. Cameras are sampled
// microseconds apart, so the naive quaternion mean stays well-conditioned.
func meanEgoPose(camInfos map[string]CamRecord, cams []string) ([4]float64, r3.Vector) {
	var rot [4]float64
	var tran r3.Vector
	for _, cam := range cams {
		pose := camInfos[cam].EgoPose
		for i := 0; i < 4; i++ {
			rot[i] += pose.Rotation[i]
		}
		tran = tran.Add(r3.Vector{X: pose.Translation[0], Y: pose.Translation[1], Z: pose.Translation[2]})
	}
	n := float64(len(cams))
	for i := range rot {
		rot[i] /= n
	}
	return rot, tran.Mul(1 / n)
}

// yawFromQuat extracts the yaw angle (rotation about z) of a quaternion,
// matching the yaw/pitch/roll decomposition the annotations were produced
// with.
func yawFromQuat(q quat.Number) float64 {
	q = normalizeQuat(q)
	return math.Atan2(
		2*(q.Real*q.Kmag-q.Imag*q.Jmag),
		1-2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag),
	)
}

func normalizeQuat(q quat.Number) quat.Number {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// rotateByQuat applies a unit quaternion rotation to a vector.
func rotateByQuat(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// groundTruth derives boxes and class labels in the key ego frame from the
// record's annotation list. Annotations whose normalized category is not in
// the configured class list, or with no LiDAR/radar point support, are
// filtered out. Boxes are rebuilt fresh on every call; nothing is cached.
func (ds *Dataset) groundTruth(info *SampleRecord, cams []string) ([]augment.Box, []int) {
	meanRot, meanTran := meanEgoPose(info.CamInfos, cams)
	egoQuat := normalizeQuat(quat.Number{Real: meanRot[0], Imag: meanRot[1], Jmag: meanRot[2], Kmag: meanRot[3]})
	invQuat := quat.Conj(egoQuat)

	classIdx := make(map[string]int, len(ds.cfg.Classes))
	for i, name := range ds.cfg.Classes {
		classIdx[name] = i
	}

	boxes := make([]augment.Box, 0, len(info.AnnInfos))
	labels := make([]int, 0, len(info.AnnInfos))
	for i := range info.AnnInfos {
		ann := &info.AnnInfos[i]
		name := detectionName(ann.CategoryName)
		label, ok := classIdx[name]
		if !ok || ann.NumLidarPts+ann.NumRadarPts <= 0 {
			continue
		}

		center := r3.Vector{X: ann.Translation[0], Y: ann.Translation[1], Z: ann.Translation[2]}
		center = rotateByQuat(invQuat, center.Sub(meanTran))

		annQuat := normalizeQuat(quat.Number{
			Real: ann.Rotation[0], Imag: ann.Rotation[1], Jmag: ann.Rotation[2], Kmag: ann.Rotation[3],
		})
		yaw := yawFromQuat(quat.Mul(invQuat, annQuat))

		vel := r3.Vector{X: ann.Velocity[0], Y: ann.Velocity[1]}
		vel = rotateByQuat(invQuat, vel)

		// size is stored (w, l, h); boxes carry (l, w, h)
		boxes = append(boxes, augment.Box{
			center.X, center.Y, center.Z,
			ann.Size[1], ann.Size[0], ann.Size[2],
			yaw,
			vel.X, vel.Y,
		})
		labels = append(labels, label)
	}
	return boxes, labels
}
