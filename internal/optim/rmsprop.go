package optim

import (
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// RMSProp keeps a decaying average of squared gradients.
//
//	acc = decay * acc + (1 - decay) * gradient²
//	param = param - lr * gradient / sqrt(acc + eps)
type RMSProp struct {
	scheduled
	decay float32
	eps   float32
	acc   slots
}

// RMSPropConfig holds configuration for RMSProp optimizer.
type RMSPropConfig struct {
	LR        float32   // Base learning rate (default: 0.001)
	DecayRate float32   // Average decay (default: 0.9)
	Eps       float32   // Term for numerical stability (default: 1e-7)
	DecayLocs []float32 // Fractions of training where the rate drops 10x
}

// NewRMSProp creates a new RMSProp optimizer.
func NewRMSProp(config RMSPropConfig) *RMSProp {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.DecayRate == 0 {
		config.DecayRate = 0.9
	}
	if config.Eps == 0 {
		config.Eps = 1e-7
	}
	return &RMSProp{
		scheduled: scheduled{sched: NewSchedule(config.LR, config.DecayLocs)},
		decay:     config.DecayRate,
		eps:       config.Eps,
		acc:       make(slots),
	}
}

// Optimize implements Optimizer.
func (o *RMSProp) Optimize(param *tensor.Tensor, iter int) {
	lr := o.LearningRate(iter)
	data, grad := param.Data(), param.Grad()
	acc := o.acc.get(param)
	for i := range data {
		acc[i] = o.decay*acc[i] + (1-o.decay)*grad[i]*grad[i]
		data[i] -= lr / sqrt32(acc[i]+o.eps) * grad[i]
	}
}

// Type implements Optimizer.
func (o *RMSProp) Type() string { return TypeRMSProp }

// HyperParams implements Optimizer.
func (o *RMSProp) HyperParams() map[string]float32 {
	return map[string]float32{"decay_rate": o.decay, "eps": o.eps}
}
