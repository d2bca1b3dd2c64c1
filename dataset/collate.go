package dataset

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/helios-av/bevload/augment"
)

// Batch is a stack of samples: each tensor family gains a leading batch
// dimension, while per-sample variable-length fields (boxes, labels, metas)
// stay as slices indexed by position in the batch.
type Batch struct {
	Imgs               *tensor.Dense
	Sensor2EgoMats     *tensor.Dense
	IntrinMats         *tensor.Dense
	IDAMats            *tensor.Dense
	Sensor2SensorMats  *tensor.Dense
	Sensor2VirtualMats *tensor.Dense
	BDAMats            *tensor.Dense
	Timestamps         *tensor.Dense
	RefHeights         *tensor.Dense
	Metas              []SampleMeta
	Boxes              [][]augment.Box
	Labels             [][]int
	Depth              *tensor.Dense
	Height             *tensor.Dense
}

// Collate stacks samples into a batch. All samples must share tensor shapes;
// returnDepth must match how the samples were built.
func Collate(samples []*Sample, returnDepth bool) (*Batch, error) {
	if len(samples) == 0 {
		return nil, errors.New("cannot collate an empty batch")
	}

	b := &Batch{
		Metas:  make([]SampleMeta, len(samples)),
		Boxes:  make([][]augment.Box, len(samples)),
		Labels: make([][]int, len(samples)),
	}
	for i, s := range samples {
		b.Metas[i] = s.Meta
		b.Boxes[i] = s.Boxes
		b.Labels[i] = s.Labels
	}

	var err error
	pick := func(name string, f func(*Sample) *tensor.Dense) []*tensor.Dense {
		out := make([]*tensor.Dense, len(samples))
		for i, s := range samples {
			t := f(s)
			if t == nil && err == nil {
				err = errors.Errorf("sample %d is missing tensor %q", i, name)
			}
			out[i] = t
		}
		return out
	}

	stacked := []struct {
		dst **tensor.Dense
		src []*tensor.Dense
	}{
		{&b.Imgs, pick("imgs", func(s *Sample) *tensor.Dense { return s.Imgs })},
		{&b.Sensor2EgoMats, pick("sensor2ego", func(s *Sample) *tensor.Dense { return s.Sensor2EgoMats })},
		{&b.IntrinMats, pick("intrin", func(s *Sample) *tensor.Dense { return s.IntrinMats })},
		{&b.IDAMats, pick("ida", func(s *Sample) *tensor.Dense { return s.IDAMats })},
		{&b.Sensor2SensorMats, pick("sensor2sensor", func(s *Sample) *tensor.Dense { return s.Sensor2SensorMats })},
		{&b.Sensor2VirtualMats, pick("sensor2virtual", func(s *Sample) *tensor.Dense { return s.Sensor2VirtualMats })},
		{&b.BDAMats, pick("bda", func(s *Sample) *tensor.Dense { return s.BDAMat })},
		{&b.Timestamps, pick("timestamps", func(s *Sample) *tensor.Dense { return s.Timestamps })},
		{&b.RefHeights, pick("refheights", func(s *Sample) *tensor.Dense { return s.RefHeights })},
	}
	if returnDepth {
		stacked = append(stacked,
			struct {
				dst **tensor.Dense
				src []*tensor.Dense
			}{&b.Depth, pick("depth", func(s *Sample) *tensor.Dense { return s.Depth })},
			struct {
				dst **tensor.Dense
				src []*tensor.Dense
			}{&b.Height, pick("height", func(s *Sample) *tensor.Dense { return s.Height })},
		)
	}
	if err != nil {
		return nil, err
	}

	for _, fam := range stacked {
		t, err := stackTensors(fam.src)
		if err != nil {
			return nil, err
		}
		*fam.dst = t
	}
	return b, nil
}

// stackTensors concatenates same-shaped tensors along a new leading axis.
func stackTensors(ts []*tensor.Dense) (*tensor.Dense, error) {
	shape := ts[0].Shape()
	for i, t := range ts[1:] {
		if !t.Shape().Eq(shape) {
			return nil, errors.Errorf("tensor %d has shape %v, want %v", i+1, t.Shape(), shape)
		}
	}
	outShape := append(tensor.Shape{len(ts)}, shape...)

	switch ts[0].Data().(type) {
	case []float32:
		n := shape.TotalSize()
		data := make([]float32, len(ts)*n)
		for i, t := range ts {
			src, ok := t.Data().([]float32)
			if !ok {
				return nil, errors.Errorf("tensor %d backing type mismatch", i)
			}
			copy(data[i*n:], src)
		}
		return tensor.New(tensor.WithShape(outShape...), tensor.WithBacking(data)), nil
	case []float64:
		n := shape.TotalSize()
		data := make([]float64, len(ts)*n)
		for i, t := range ts {
			src, ok := t.Data().([]float64)
			if !ok {
				return nil, errors.Errorf("tensor %d backing type mismatch", i)
			}
			copy(data[i*n:], src)
		}
		return tensor.New(tensor.WithShape(outShape...), tensor.WithBacking(data)), nil
	default:
		return nil, errors.Errorf("unsupported backing type %T", ts[0].Data())
	}
}
