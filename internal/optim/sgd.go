package optim

import (
	"github.com/VectorFist/MicroNet/internal/backend/cpu"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// SGD implements stochastic gradient descent with momentum.
//
// Update rule:
//
//	velocity = momentum * velocity - lr * gradient
//	param = param + velocity
type SGD struct {
	scheduled
	momentum   float32
	velocities slots
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR        float32   // Base learning rate (default: 0.01)
	Momentum  float32   // Momentum factor (default: 0.0, range: [0, 1))
	DecayLocs []float32 // Fractions of training where the rate drops 10x
}

// NewSGD creates a new SGD optimizer.
func NewSGD(config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		scheduled:  scheduled{sched: NewSchedule(config.LR, config.DecayLocs)},
		momentum:   config.Momentum,
		velocities: make(slots),
	}
}

// Optimize implements Optimizer.
func (o *SGD) Optimize(param *tensor.Tensor, iter int) {
	lr := o.LearningRate(iter)
	data, grad := param.Data(), param.Grad()
	v := o.velocities.get(param)
	cpu.Axpby(-lr, grad, o.momentum, v)
	cpu.AddTo(data, v)
}

// Type implements Optimizer.
func (o *SGD) Type() string { return TypeSGD }

// HyperParams implements Optimizer.
func (o *SGD) HyperParams() map[string]float32 {
	return map[string]float32{"momentum": o.momentum}
}
