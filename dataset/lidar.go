package dataset

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/helios-av/bevload/augment"
	"github.com/helios-av/bevload/spatialmath"
)

// lidarLoadDim is the per-point record width in the binary file:
// x, y, z, intensity as little-endian float32.
const lidarLoadDim = 4

// placeholderCloudSize is the synthetic cloud substituted when a point file
// is missing. The values are meaningless; the sample's depth labels are
// degraded and flagged via SampleMeta.LidarValid.
const placeholderCloudSize = 1000

// ReadLidarFile reads a raw binary float32 point file and returns the xyz
// coordinates; intensity is parsed and discarded.
func ReadLidarFile(path string) ([]r3.Vector, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading lidar file %q", path)
	}
	stride := lidarLoadDim * 4
	if len(raw)%stride != 0 {
		return nil, errors.Errorf("lidar file %q has %d bytes, not a multiple of %d", path, len(raw), stride)
	}
	pts := make([]r3.Vector, 0, len(raw)/stride)
	for off := 0; off < len(raw); off += stride {
		pts = append(pts, r3.Vector{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[off+4:]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[off+8:]))),
		})
	}
	return pts, nil
}

// placeholderCloud is the fixed-size synthetic fallback cloud.
func placeholderCloud() []r3.Vector {
	pts := make([]r3.Vector, placeholderCloudSize)
	for i := range pts {
		pts[i] = r3.Vector{X: 1, Y: 1, Z: 1}
	}
	return pts
}

// ProjectToImage maps LiDAR points through the lidar->camera calibration and
// the pinhole intrinsic into image-plane measurements carrying depth values.
// Points behind the camera (depth <= minDist) or outside the 1-pixel image
// border are masked out; the returned keep slice indexes the surviving
// points in the input so companion values (heights) can be filtered the same
// way.
func ProjectToImage(pts []r3.Vector, lidar2cam mgl64.Mat4, intrin mgl64.Mat4, imgW, imgH int, minDist float64) ([]augment.DepthPoint, []int) {
	out := make([]augment.DepthPoint, 0, len(pts))
	keep := make([]int, 0, len(pts))
	fx := intrin.At(0, 0)
	fy := intrin.At(1, 1)
	skew := intrin.At(0, 1)
	cx := intrin.At(0, 2)
	cy := intrin.At(1, 2)
	for i, p := range pts {
		cam := spatialmath.TransformPoint(lidar2cam, p)
		depth := cam.Z
		if depth <= minDist {
			continue
		}
		u := (fx*cam.X + skew*cam.Y + cx*cam.Z) / depth
		v := (fy*cam.Y + cy*cam.Z) / depth
		if u <= 1 || u >= float64(imgW)-1 || v <= 1 || v >= float64(imgH)-1 {
			continue
		}
		out = append(out, augment.DepthPoint{X: u, Y: v, Value: depth})
		keep = append(keep, i)
	}
	return out, keep
}

// HeightAboveGround converts points to height-above-ground values in the
// virtual frame of the key sensor: each point is mapped through
// keyEgo->virtual (the composition of the virtual rotation with the inverse
// of sweepSensor->keyEgo) and its vertical coordinate subtracted from the
// reference height.
func HeightAboveGround(pts []r3.Vector, sweepSensor2KeyEgo, sensor2Virtual mgl64.Mat4, refHeight float64) []float64 {
	keyEgo2Virtual := spatialmath.Compose(spatialmath.Invert(sweepSensor2KeyEgo), sensor2Virtual)
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = refHeight - spatialmath.TransformPoint(keyEgo2Virtual, p).Y
	}
	return out
}
