package dataset

import (
	"fmt"
	"strings"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"golang.org/x/exp/rand"

	"github.com/helios-av/bevload/augment"
)

// perspDisabledVariants are dataset roots for which the intrinsic/extrinsic
// perturbation stage is never applied, matching how those variants were
// calibrated.
var perspDisabledVariants = []string{"waymo", "thutraf"}

// ImgConfig holds the per-channel normalization statistics applied to
// decoded rasters before stacking. When ToRGB is false the channel order is
// treated as BGR to match stats computed on BGR-decoded data.
type ImgConfig struct {
	Mean  [3]float64 `json:"img_mean"`
	Std   [3]float64 `json:"img_std"`
	ToRGB bool       `json:"to_rgb"`
}

// DefaultImgConfig is the ImageNet statistic set used by the detector.
var DefaultImgConfig = ImgConfig{
	Mean:  [3]float64{123.675, 116.28, 103.53},
	Std:   [3]float64{58.395, 57.12, 57.375},
	ToRGB: true,
}

// Config is the externally supplied construction surface of a Dataset.
type Config struct {
	IDA         augment.IDAConfig   `json:"ida_aug_conf"`
	Persp       augment.PerspConfig `json:"persp_aug_conf"`
	Cams        []string            `json:"cams"`
	NCams       int                 `json:"num_cams"`
	Classes     []string            `json:"classes"`
	DataRoot    string              `json:"data_root"`
	InfoPath    string              `json:"info_path"`
	IsTrain     bool                `json:"is_train"`
	UseCBGS     bool                `json:"use_cbgs"`
	NumSweeps   int                 `json:"num_sweeps"`
	Img         ImgConfig           `json:"img_conf"`
	ReturnDepth bool                `json:"return_depth"`
	SweepIdxes  []int               `json:"sweep_idxes"`
	KeyIdxes    []int               `json:"key_idxes"`
	LidarKey    string              `json:"lidar_key"`
}

// Validate checks the construction invariants before any I/O happens.
func (cfg *Config) Validate(path string) error {
	if cfg.DataRoot == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "data_root")
	}
	if cfg.InfoPath == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "info_path")
	}
	if len(cfg.Cams) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "cams")
	}
	if cfg.NCams <= 0 || cfg.NCams > len(cfg.Cams) {
		return utils.NewConfigValidationError(path, fmt.Errorf("num_cams must be in [1, %d], got %d", len(cfg.Cams), cfg.NCams))
	}
	if len(cfg.Classes) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "classes")
	}
	if cfg.IDA.SrcWidth <= 0 || cfg.IDA.SrcHeight <= 0 || cfg.IDA.FinalWidth <= 0 || cfg.IDA.FinalHeight <= 0 {
		return utils.NewConfigValidationError(path, errors.New("ida_aug_conf dimensions must be positive"))
	}
	for _, idx := range cfg.SweepIdxes {
		if idx < 0 {
			return utils.NewConfigValidationError(path, fmt.Errorf("all sweep_idxes must be >= 0, got %d", idx))
		}
	}
	for _, idx := range cfg.KeyIdxes {
		if idx >= 0 {
			return utils.NewConfigValidationError(path, fmt.Errorf("all key_idxes must be < 0, got %d", idx))
		}
	}
	return nil
}

// Dataset is a pull-based per-sample accessor over an immutable record
// store. It holds no mutable state across calls; callers provide the random
// stream, so independent workers can pull samples concurrently.
type Dataset struct {
	cfg           Config
	infos         []SampleRecord
	keyIdxes      []int
	lidarKey      string
	sampleIndices []int
	logger        golog.Logger
}

// NewDataset validates the config, loads the record index, and (when
// class-balanced resampling is on) builds the resampling index table with
// the provided random stream. The rng is not retained.
func NewDataset(cfg Config, rng *rand.Rand, logger golog.Logger) (*Dataset, error) {
	if err := cfg.Validate("dataset"); err != nil {
		return nil, err
	}
	infos, err := LoadIndex(cfg.InfoPath)
	if err != nil {
		return nil, err
	}
	lidarKey := cfg.LidarKey
	if lidarKey == "" {
		lidarKey = "LIDAR_TOP"
	}
	if cfg.Img.Std == [3]float64{} {
		cfg.Img = DefaultImgConfig
	}
	ds := &Dataset{
		cfg:      cfg,
		infos:    infos,
		keyIdxes: append([]int{0}, cfg.KeyIdxes...),
		lidarKey: lidarKey,
		logger:   logger,
	}
	if cfg.UseCBGS {
		ds.sampleIndices = balancedSampleIndices(infos, cfg.Classes, rng)
		logger.Infow("class-balanced resampling enabled",
			"records", len(infos), "resampled", len(ds.sampleIndices))
	}
	logger.Debugf("dataset ready: %d records, train=%t, sweeps/key=%d, keys=%d",
		len(infos), cfg.IsTrain, len(cfg.SweepIdxes), len(ds.keyIdxes))
	return ds, nil
}

// Len returns the number of addressable samples, after resampling when
// class-balanced sampling is enabled.
func (ds *Dataset) Len() int {
	if ds.cfg.UseCBGS {
		return len(ds.sampleIndices)
	}
	return len(ds.infos)
}

// perspAugAllowed reports whether the perturbation stage may run for this
// dataset variant.
func (ds *Dataset) perspAugAllowed() bool {
	if !ds.cfg.ReturnDepth {
		return true
	}
	for _, tag := range perspDisabledVariants {
		if strings.Contains(ds.cfg.DataRoot, tag) {
			return false
		}
	}
	return true
}

// chooseCams picks the camera subset for one sample: a random NCams-subset
// without replacement while training, the full configured list otherwise.
func (ds *Dataset) chooseCams(rng *rand.Rand) []string {
	if !ds.cfg.IsTrain || ds.cfg.NCams >= len(ds.cfg.Cams) {
		return ds.cfg.Cams
	}
	perm := rng.Perm(len(ds.cfg.Cams))
	cams := make([]string, ds.cfg.NCams)
	for i := 0; i < ds.cfg.NCams; i++ {
		cams[i] = ds.cfg.Cams[perm[i]]
	}
	return cams
}

// resolvedFrame is one temporal frame chosen for a sample: a complete
// camera map plus the lidar records of its key group.
type resolvedFrame struct {
	cams  map[string]CamRecord
	lidar map[string]LidarRecord
	isKey bool
}

// resolveFrames selects the key frames and sweeps for a requested index.
// A key offset that would run off the start of storage or cross into a
// different scene resolves to the requested index itself. For each sweep
// offset, the resolver walks backward from the offset toward zero and takes
// the first sweep covering every chosen camera; an empty or never-covering
// sweep list falls back to the key frame's own cameras.
func (ds *Dataset) resolveFrames(idx int, cams []string) []resolvedFrame {
	frames := make([]resolvedFrame, 0, len(ds.keyIdxes)*(1+len(ds.cfg.SweepIdxes)))
	for _, keyIdx := range ds.keyIdxes {
		curIdx := keyIdx + idx
		if curIdx < 0 || ds.infos[curIdx].SceneToken != ds.infos[idx].SceneToken {
			curIdx = idx
		}
		info := &ds.infos[curIdx]
		key := resolvedFrame{cams: info.CamInfos, lidar: info.LidarInfos, isKey: true}
		frames = append(frames, key)
		for _, sweepIdx := range ds.cfg.SweepIdxes {
			chosen := key
			chosen.isKey = false
			start := sweepIdx
			if start > len(info.Sweeps)-1 {
				start = len(info.Sweeps) - 1
			}
			for i := start; i >= 0; i-- {
				if sweepCovers(info.Sweeps[i], cams) {
					chosen = resolvedFrame{cams: info.Sweeps[i], lidar: info.LidarInfos}
					break
				}
			}
			frames = append(frames, chosen)
		}
	}
	return frames
}

// sweepCovers reports whether a sweep has a record for every chosen camera.
func sweepCovers(sweep SweepRecord, cams []string) bool {
	for _, cam := range cams {
		if _, ok := sweep[cam]; !ok {
			return false
		}
	}
	return true
}

// Sample builds the training/eval sample for one index. The caller owns the
// random stream; seeding it per worker and sample makes the output
// reproducible. The call is single-threaded and touches no shared mutable
// state.
func (ds *Dataset) Sample(idx int, rng *rand.Rand) (*Sample, error) {
	if idx < 0 || idx >= ds.Len() {
		return nil, errors.Errorf("sample index %d out of range [0, %d)", idx, ds.Len())
	}
	if ds.cfg.UseCBGS {
		idx = ds.sampleIndices[idx]
	}
	cams := ds.chooseCams(rng)
	frames := ds.resolveFrames(idx, cams)

	asm, err := ds.assemble(frames, cams, rng)
	if err != nil {
		return nil, errors.Wrapf(err, "assembling sample %d", idx)
	}

	var boxes []augment.Box
	var labels []int
	if ds.cfg.IsTrain {
		boxes, labels = ds.groundTruth(&ds.infos[idx], cams)
	}
	bda := augment.SampleBEV()
	boxes, bdaRot := augment.TransformBoxes(boxes, bda)

	asm.meta.Token = ds.infos[idx].SampleToken
	return &Sample{
		Imgs:               asm.imgs,
		Sensor2EgoMats:     asm.sensor2Ego,
		IntrinMats:         asm.intrins,
		IDAMats:            asm.idas,
		Sensor2SensorMats:  asm.sensor2Sensor,
		Sensor2VirtualMats: asm.sensor2Virtual,
		BDAMat:             matToTensor(augment.BDAMatrix(bdaRot)),
		Timestamps:         asm.timestamps,
		RefHeights:         asm.refHeights,
		Meta:               asm.meta,
		Boxes:              boxes,
		Labels:             labels,
		Depth:              asm.depth,
		Height:             asm.height,
	}, nil
}
