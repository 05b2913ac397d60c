// Package optim implements the parameter update rules used to train MicroNet
// graphs.
//
// This package provides:
//   - Optimizer interface: per-parameter update keyed by tensor identity
//   - Schedule: step decay of the learning rate at fractions of training
//   - SGD (momentum), AdaGrad, RMSProp and Adam
//   - New: rebuilds an optimizer from its persisted type and hyper-parameters
//
// Example usage:
//
//	opt := optim.NewAdam(optim.AdamConfig{LR: 0.001, DecayLocs: []float32{0.5, 0.75}})
//	opt.SetTotalIterations(epochs * batches)
//
//	for iter := range epochs * batches {
//	    _ = graph.Forward(true)
//	    _ = graph.Backward(loss)
//	    _ = graph.Update(opt, iter)
//	}
package optim

import (
	"math"
	"slices"

	"github.com/VectorFist/MicroNet/internal/tensor"
)

// Optimizer updates parameters in place from their gradients.
//
// Auxiliary state (velocities, accumulators, moments) is kept per parameter
// tensor and created zero-filled the first time a tensor is seen, so tensors
// shared by several layers share their state too.
type Optimizer interface {
	// Optimize updates param.Data() from param.Grad() for iteration iter.
	Optimize(param *tensor.Tensor, iter int)

	// LearningRate returns the effective rate at iteration iter.
	LearningRate(iter int) float32

	// SetTotalIterations anchors the decay schedule.
	SetTotalIterations(n int)

	// Schedule returns the decay schedule.
	Schedule() Schedule

	// Type returns the persisted type name.
	Type() string

	// HyperParams returns the rule-specific hyper-parameters by name.
	HyperParams() map[string]float32
}

// Schedule is a step decay: the rate is BaseRate * 0.1^k, where k counts the
// decay locations (fractions of TotalIters) already reached.
type Schedule struct {
	BaseRate   float32
	DecayLocs  []float32
	TotalIters int
}

// NewSchedule returns a schedule with sorted decay locations.
func NewSchedule(base float32, decayLocs []float32) Schedule {
	locs := slices.Clone(decayLocs)
	slices.Sort(locs)
	return Schedule{BaseRate: base, DecayLocs: locs}
}

// Rate returns the learning rate at iteration iter. Without a total the
// schedule does not decay.
func (s Schedule) Rate(iter int) float32 {
	if s.TotalIters <= 0 {
		return s.BaseRate
	}
	progress := float32(iter) / float32(s.TotalIters)
	k := 0
	for _, loc := range s.DecayLocs {
		if loc > progress {
			break
		}
		k++
	}
	return s.BaseRate * float32(math.Pow(0.1, float64(k)))
}

// scheduled carries the schedule shared by every rule.
type scheduled struct {
	sched Schedule
}

func (s *scheduled) LearningRate(iter int) float32 { return s.sched.Rate(iter) }

func (s *scheduled) SetTotalIterations(n int) { s.sched.TotalIters = n }

func (s *scheduled) Schedule() Schedule { return s.sched }

// slots lazily allocates per-parameter state buffers.
type slots map[*tensor.Tensor][]float32

func (s slots) get(param *tensor.Tensor) []float32 {
	buf, ok := s[param]
	if !ok {
		buf = make([]float32, param.Count())
		s[param] = buf
	}
	return buf
}

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}
