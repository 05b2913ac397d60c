package optim

import (
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// AdaGrad scales each element's step by the root of its accumulated squared
// gradients.
//
//	acc = acc + gradient²
//	param = param - lr * gradient / sqrt(acc + eps)
type AdaGrad struct {
	scheduled
	eps float32
	acc slots
}

// AdaGradConfig holds configuration for AdaGrad optimizer.
type AdaGradConfig struct {
	LR        float32   // Base learning rate (default: 0.01)
	Eps       float32   // Term for numerical stability (default: 1e-7)
	DecayLocs []float32 // Fractions of training where the rate drops 10x
}

// NewAdaGrad creates a new AdaGrad optimizer.
func NewAdaGrad(config AdaGradConfig) *AdaGrad {
	if config.LR == 0 {
		config.LR = 0.01
	}
	if config.Eps == 0 {
		config.Eps = 1e-7
	}
	return &AdaGrad{
		scheduled: scheduled{sched: NewSchedule(config.LR, config.DecayLocs)},
		eps:       config.Eps,
		acc:       make(slots),
	}
}

// Optimize implements Optimizer.
func (o *AdaGrad) Optimize(param *tensor.Tensor, iter int) {
	lr := o.LearningRate(iter)
	data, grad := param.Data(), param.Grad()
	acc := o.acc.get(param)
	for i := range data {
		acc[i] += grad[i] * grad[i]
		data[i] -= lr / sqrt32(acc[i]+o.eps) * grad[i]
	}
}

// Type implements Optimizer.
func (o *AdaGrad) Type() string { return TypeAdaGrad }

// HyperParams implements Optimizer.
func (o *AdaGrad) HyperParams() map[string]float32 {
	return map[string]float32{"eps": o.eps}
}
