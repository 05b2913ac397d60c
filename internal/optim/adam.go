package optim

import (
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m = beta1 * m + (1-beta1) * gradient
//	v = beta2 * v + (1-beta2) * gradient²
//	step = lr * sqrt(1 - beta2^t) / (1 - beta1^t)
//	param = param - step * m / (sqrt(v) + eps)
//
// t counts distinct iterations: the running powers beta1^t and beta2^t advance
// the first time Optimize sees a new iteration value, however many parameters
// are updated in that iteration.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	scheduled
	beta1, beta2 float32
	eps          float32
	m, v         slots

	beta1Pow, beta2Pow float64
	lastIter           int
	started            bool
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR        float32    // Base learning rate (default: 0.001)
	Betas     [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps       float32    // Term for numerical stability (default: 1e-8)
	DecayLocs []float32  // Fractions of training where the rate drops 10x
}

// NewAdam creates a new Adam optimizer.
//
// Default hyperparameters:
//   - LR: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
func NewAdam(config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam{
		scheduled: scheduled{sched: NewSchedule(config.LR, config.DecayLocs)},
		beta1:     config.Betas[0],
		beta2:     config.Betas[1],
		eps:       config.Eps,
		m:         make(slots),
		v:         make(slots),
		beta1Pow:  1,
		beta2Pow:  1,
	}
}

// Optimize implements Optimizer.
func (o *Adam) Optimize(param *tensor.Tensor, iter int) {
	if !o.started || iter != o.lastIter {
		o.beta1Pow *= float64(o.beta1)
		o.beta2Pow *= float64(o.beta2)
		o.lastIter, o.started = iter, true
	}
	lr := o.LearningRate(iter)
	step := lr * sqrt32(float32(1-o.beta2Pow)) / float32(1-o.beta1Pow)

	data, grad := param.Data(), param.Grad()
	m, v := o.m.get(param), o.v.get(param)
	for i := range data {
		m[i] = o.beta1*m[i] + (1-o.beta1)*grad[i]
		v[i] = o.beta2*v[i] + (1-o.beta2)*grad[i]*grad[i]
		data[i] -= step * m[i] / (sqrt32(v[i]) + o.eps)
	}
}

// Type implements Optimizer.
func (o *Adam) Type() string { return TypeAdam }

// HyperParams implements Optimizer.
func (o *Adam) HyperParams() map[string]float32 {
	return map[string]float32{"beta1": o.beta1, "beta2": o.beta2, "eps": o.eps}
}
