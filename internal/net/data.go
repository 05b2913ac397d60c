package net

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/VectorFist/MicroNet/internal/nn"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// DataProvider serves batches from parallel columns of samples (for example
// images and labels). Each sample is a flat row of c*h*w values.
//
// Batches are taken in order; when the next batch would run past the end,
// the epoch wraps to the start, reshuffling first when shuffling is on.
type DataProvider struct {
	columns [][][]float32
	index   []int
	pos     int
	shuffle bool
	rng     *rand.Rand
}

// NewDataProvider creates a provider over columns, which must all hold the
// same positive number of samples.
func NewDataProvider(columns [][][]float32, shuffle bool, seed uint64) (*DataProvider, error) {
	if len(columns) == 0 || len(columns[0]) == 0 {
		return nil, ErrEmptyData
	}
	for i, c := range columns {
		if len(c) != len(columns[0]) {
			return nil, errors.Wrapf(ErrEmptyData, "column %d has %d samples, column 0 has %d", i, len(c), len(columns[0]))
		}
	}
	p := &DataProvider{
		columns: columns,
		index:   make([]int, len(columns[0])),
		shuffle: shuffle,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for i := range p.index {
		p.index[i] = i
	}
	if shuffle {
		p.reshuffle()
	}
	return p, nil
}

// NumSamples returns the number of samples per column.
func (p *DataProvider) NumSamples() int { return len(p.index) }

// LoadBatch reshapes dst[i] to (batch, c, h, w), keeping its per-sample
// shape, and copies the next batch of column i into it.
func (p *DataProvider) LoadBatch(dst []*tensor.Tensor, batch int) error {
	if len(dst) != len(p.columns) {
		return errors.Errorf("load batch: %d tensors for %d columns", len(dst), len(p.columns))
	}
	if batch <= 0 || batch > len(p.index) {
		return errors.Errorf("load batch: batch size %d not in [1, %d]", batch, len(p.index))
	}
	if p.pos+batch > len(p.index) {
		if p.shuffle {
			p.reshuffle()
		}
		p.pos = 0
	}
	rows := p.index[p.pos : p.pos+batch]
	p.pos += batch

	for i, t := range dst {
		s := t.Shape()
		dim := s.Channels() * s.Height() * s.Width()
		t.Reshape(tensor.NewShape(batch, s.Channels(), s.Height(), s.Width()))
		data := t.Data()
		for j, r := range rows {
			row := p.columns[i][r]
			if len(row) != dim {
				return errors.Wrapf(nn.ErrShapeMismatch, "load batch: column %d sample %d has %d values, want %d", i, r, len(row), dim)
			}
			copy(data[j*dim:], row)
		}
	}
	return nil
}

func (p *DataProvider) reshuffle() {
	p.rng.Shuffle(len(p.index), func(i, j int) {
		p.index[i], p.index[j] = p.index[j], p.index[i]
	})
	klog.V(2).Infof("data provider: reshuffled %d samples", len(p.index))
}
