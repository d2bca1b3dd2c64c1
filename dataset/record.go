// Package dataset assembles multi-camera, multi-sweep driving samples into
// batched tensors: record model, multi-sweep resolution, per-camera
// transform chains, depth/height ground truth, and batch collation.
package dataset

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/num/quat"

	"github.com/helios-av/bevload/spatialmath"
)

// CalibratedSensor is a sensor mount calibration: a rotation given either as
// a (w,x,y,z) quaternion or a row-major 3x3 matrix, a translation, and for
// cameras an intrinsic matrix (3x3 or 3x4). The rotation/translation map
// sensor coordinates into the ego frame — except for the LiDAR record on the
// depth path, where the stored calibration maps LiDAR points into the
// camera frame.
type CalibratedSensor struct {
	Rotation        []float64   `json:"rotation,omitempty"`
	RotationMatrix  [][]float64 `json:"rotation_matrix,omitempty"`
	Translation     []float64   `json:"translation"`
	CameraIntrinsic [][]float64 `json:"camera_intrinsic,omitempty"`
}

// Validate ensures the calibration has a usable rotation, translation, and
// (if present) intrinsic shape.
func (cs *CalibratedSensor) Validate(path string) error {
	switch {
	case cs.RotationMatrix != nil:
		if len(cs.RotationMatrix) != 3 {
			return utils.NewConfigValidationError(path, fmt.Errorf("rotation_matrix must have 3 rows, got %d", len(cs.RotationMatrix)))
		}
		for i, row := range cs.RotationMatrix {
			if len(row) != 3 {
				return utils.NewConfigValidationError(path, fmt.Errorf("rotation_matrix row %d must have 3 entries, got %d", i, len(row)))
			}
		}
	case cs.Rotation != nil:
		if len(cs.Rotation) != 4 {
			return utils.NewConfigValidationError(path, fmt.Errorf("rotation quaternion must have 4 entries, got %d", len(cs.Rotation)))
		}
	default:
		return utils.NewConfigValidationFieldRequiredError(path, "rotation")
	}
	if len(cs.Translation) != 3 {
		return utils.NewConfigValidationError(path, fmt.Errorf("translation must have 3 entries, got %d", len(cs.Translation)))
	}
	if cs.CameraIntrinsic != nil {
		if len(cs.CameraIntrinsic) != 3 {
			return utils.NewConfigValidationError(path, fmt.Errorf("camera_intrinsic must have 3 rows, got %d", len(cs.CameraIntrinsic)))
		}
		cols := len(cs.CameraIntrinsic[0])
		if cols != 3 && cols != 4 {
			return utils.NewConfigValidationError(path, fmt.Errorf("camera_intrinsic must have 3 or 4 columns, got %d", cols))
		}
		for i, row := range cs.CameraIntrinsic {
			if len(row) != cols {
				return utils.NewConfigValidationError(path, fmt.Errorf("camera_intrinsic row %d has %d entries, want %d", i, len(row), cols))
			}
		}
	}
	return nil
}

// RotationMat returns the calibration rotation as a 3x3 matrix, preferring
// the explicit matrix form when both are present.
func (cs *CalibratedSensor) RotationMat() mgl64.Mat3 {
	if cs.RotationMatrix != nil {
		return mat3FromRows(cs.RotationMatrix)
	}
	return spatialmath.RotationFromQuat(quat.Number{
		Real: cs.Rotation[0],
		Imag: cs.Rotation[1],
		Jmag: cs.Rotation[2],
		Kmag: cs.Rotation[3],
	})
}

// SE3 returns the sensor->ego homogeneous transform.
func (cs *CalibratedSensor) SE3() mgl64.Mat4 {
	return spatialmath.SE3FromParts(cs.RotationMat(), r3.Vector{
		X: cs.Translation[0], Y: cs.Translation[1], Z: cs.Translation[2],
	})
}

// IntrinMat returns the camera intrinsic embedded into a 4x4 matrix with
// identity elsewhere, handling both 3x3 and 3x4 forms.
func (cs *CalibratedSensor) IntrinMat() mgl64.Mat4 {
	m := mgl64.Ident4()
	for r, row := range cs.CameraIntrinsic {
		for c, v := range row {
			m.Set(r, c, v)
		}
	}
	return m
}

// EgoPose is the vehicle body frame relative to the global frame at one
// timestamp.
type EgoPose struct {
	Rotation    []float64 `json:"rotation"`
	Translation []float64 `json:"translation"`
}

// Validate checks the pose fields.
func (ep *EgoPose) Validate(path string) error {
	if len(ep.Rotation) != 4 {
		return utils.NewConfigValidationError(path, fmt.Errorf("rotation quaternion must have 4 entries, got %d", len(ep.Rotation)))
	}
	if len(ep.Translation) != 3 {
		return utils.NewConfigValidationError(path, fmt.Errorf("translation must have 3 entries, got %d", len(ep.Translation)))
	}
	return nil
}

// Quat returns the pose rotation as a quaternion.
func (ep *EgoPose) Quat() quat.Number {
	return quat.Number{Real: ep.Rotation[0], Imag: ep.Rotation[1], Jmag: ep.Rotation[2], Kmag: ep.Rotation[3]}
}

// SE3 returns the ego->global homogeneous transform.
func (ep *EgoPose) SE3() mgl64.Mat4 {
	return spatialmath.SE3FromParts(spatialmath.RotationFromQuat(ep.Quat()), r3.Vector{
		X: ep.Translation[0], Y: ep.Translation[1], Z: ep.Translation[2],
	})
}

// CamRecord is one camera's capture within a snapshot.
type CamRecord struct {
	CalibratedSensor CalibratedSensor `json:"calibrated_sensor"`
	EgoPose          EgoPose          `json:"ego_pose"`
	Filename         string           `json:"filename"`
	Timestamp        int64            `json:"timestamp"`
}

// Validate checks the camera record.
func (cr *CamRecord) Validate(path string) error {
	if cr.Filename == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "filename")
	}
	if err := cr.CalibratedSensor.Validate(path + ".calibrated_sensor"); err != nil {
		return err
	}
	return cr.EgoPose.Validate(path + ".ego_pose")
}

// LidarRecord is one LiDAR capture. In the depth path the calibration maps
// LiDAR points directly into the paired camera frame.
type LidarRecord struct {
	CalibratedSensor CalibratedSensor `json:"calibrated_sensor"`
	EgoPose          EgoPose          `json:"ego_pose"`
	Filename         string           `json:"filename"`
	Timestamp        int64            `json:"timestamp"`
}

// Validate checks the LiDAR record.
func (lr *LidarRecord) Validate(path string) error {
	if lr.Filename == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "filename")
	}
	if err := lr.CalibratedSensor.Validate(path + ".calibrated_sensor"); err != nil {
		return err
	}
	return lr.EgoPose.Validate(path + ".ego_pose")
}

// Annotation is one labeled 3D object in the global frame.
type Annotation struct {
	CategoryName string    `json:"category_name"`
	Translation  []float64 `json:"translation"`
	Size         []float64 `json:"size"` // w, l, h
	Rotation     []float64 `json:"rotation"`
	Velocity     []float64 `json:"velocity"`
	NumLidarPts  int       `json:"num_lidar_pts"`
	NumRadarPts  int       `json:"num_radar_pts"`
}

// Validate checks the annotation fields.
func (a *Annotation) Validate(path string) error {
	if a.CategoryName == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "category_name")
	}
	if len(a.Translation) != 3 || len(a.Size) != 3 || len(a.Rotation) != 4 {
		return utils.NewConfigValidationError(path, fmt.Errorf("annotation %q has malformed geometry fields", a.CategoryName))
	}
	if len(a.Velocity) < 2 {
		return utils.NewConfigValidationError(path, fmt.Errorf("annotation %q velocity must have at least 2 entries", a.CategoryName))
	}
	return nil
}

// SweepRecord is a non-keyframe snapshot: camera records only, no labels.
// Cameras may be missing when a sensor dropped out upstream.
type SweepRecord map[string]CamRecord

// SampleRecord is one annotated keyframe snapshot plus its temporal context.
// Records are immutable once loaded.
type SampleRecord struct {
	SampleToken string                 `json:"sample_token"`
	SceneToken  string                 `json:"scene_token"`
	Timestamp   int64                  `json:"timestamp"`
	CamInfos    map[string]CamRecord   `json:"cam_infos"`
	LidarInfos  map[string]LidarRecord `json:"lidar_infos"`
	Sweeps      []SweepRecord          `json:"sweeps"`
	AnnInfos    []Annotation           `json:"ann_infos"`
}

// Validate checks the record and everything under it.
func (sr *SampleRecord) Validate(path string) error {
	if sr.SampleToken == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "sample_token")
	}
	if sr.SceneToken == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "scene_token")
	}
	if len(sr.CamInfos) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "cam_infos")
	}
	for name, cam := range sr.CamInfos {
		cam := cam
		if err := cam.Validate(fmt.Sprintf("%s.cam_infos.%s", path, name)); err != nil {
			return err
		}
	}
	for name, lidar := range sr.LidarInfos {
		lidar := lidar
		if err := lidar.Validate(fmt.Sprintf("%s.lidar_infos.%s", path, name)); err != nil {
			return err
		}
	}
	for i, sweep := range sr.Sweeps {
		for name, cam := range sweep {
			cam := cam
			if err := cam.Validate(fmt.Sprintf("%s.sweeps.%d.%s", path, i, name)); err != nil {
				return err
			}
		}
	}
	for i, ann := range sr.AnnInfos {
		ann := ann
		if err := ann.Validate(fmt.Sprintf("%s.ann_infos.%d", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func mat3FromRows(rows [][]float64) mgl64.Mat3 {
	return mgl64.Mat3FromRows(
		mgl64.Vec3{rows[0][0], rows[0][1], rows[0][2]},
		mgl64.Vec3{rows[1][0], rows[1][1], rows[1][2]},
		mgl64.Vec3{rows[2][0], rows[2][1], rows[2][2]},
	)
}
