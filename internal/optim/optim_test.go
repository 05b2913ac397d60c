package optim_test

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VectorFist/MicroNet/internal/autodiff"
	"github.com/VectorFist/MicroNet/internal/optim"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

var (
	_ autodiff.Optimizer = (*optim.SGD)(nil)
	_ autodiff.Optimizer = (*optim.AdaGrad)(nil)
	_ autodiff.Optimizer = (*optim.RMSProp)(nil)
	_ autodiff.Optimizer = (*optim.Adam)(nil)
)

// param returns a (1, len(data), 1, 1) tensor with grad set to grad.
func param(data, grad []float32) *tensor.Tensor {
	p := must.M1(tensor.FromSlice(data, tensor.NewShape(1, len(data), 1, 1)))
	copy(p.Grad(), grad)
	return p
}

func TestSchedule_StepDecay(t *testing.T) {
	s := optim.NewSchedule(0.1, []float32{0.75, 0.5})
	assert.Equal(t, []float32{0.5, 0.75}, s.DecayLocs)
	assert.InDelta(t, 0.1, s.Rate(40), 1e-7, "no total: no decay")

	s.TotalIters = 100
	tests := []struct {
		iter int
		want float64
	}{
		{0, 0.1},
		{40, 0.1},
		{49, 0.1},
		{50, 0.01},
		{60, 0.01},
		{75, 0.001},
		{99, 0.001},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, s.Rate(tt.iter), 1e-7, "iter %d", tt.iter)
	}
}

func TestAdam_DecayScenario(t *testing.T) {
	opt := optim.NewAdam(optim.AdamConfig{LR: 0.1, DecayLocs: []float32{0.5}})
	opt.SetTotalIterations(100)
	assert.InDelta(t, 0.1, opt.LearningRate(40), 1e-7)
	assert.InDelta(t, 0.01, opt.LearningRate(60), 1e-7)
}

func TestSGD_Momentum(t *testing.T) {
	opt := optim.NewSGD(optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	p := param([]float32{2}, []float32{1})

	opt.Optimize(p, 0)
	// v = -0.1, x = 1.9
	assert.InDelta(t, 1.9, p.Data()[0], 1e-6)
	opt.Optimize(p, 1)
	// v = 0.9*-0.1 - 0.1 = -0.19, x = 1.71
	assert.InDelta(t, 1.71, p.Data()[0], 1e-6)
}

func TestSGD_UpdatesEveryElement(t *testing.T) {
	opt := optim.NewSGD(optim.SGDConfig{LR: 0.5, Momentum: 0.5})
	p := param([]float32{1, -1, 0}, []float32{2, -2, 4})
	opt.Optimize(p, 0)
	assert.InDeltaSlice(t, []float32{0, 0, -2}, p.Data(), 1e-6)
	copy(p.Grad(), []float32{0, 0, 0})
	opt.Optimize(p, 1)
	// v = 0.5 * v
	assert.InDeltaSlice(t, []float32{-0.5, 0.5, -3}, p.Data(), 1e-6)
}

func TestSGD_StatePerTensor(t *testing.T) {
	opt := optim.NewSGD(optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	a := param([]float32{0}, []float32{1})
	b := param([]float32{0}, []float32{1})
	opt.Optimize(a, 0)
	opt.Optimize(a, 1)
	opt.Optimize(b, 1)
	assert.InDelta(t, -0.29, a.Data()[0], 1e-6)
	assert.InDelta(t, -0.1, b.Data()[0], 1e-6, "fresh velocity for a new tensor")
}

func TestAdaGrad(t *testing.T) {
	opt := optim.NewAdaGrad(optim.AdaGradConfig{LR: 0.5})
	p := param([]float32{1, 1}, []float32{2, -4})
	opt.Optimize(p, 0)
	// Step is lr * g / |g| on the first iteration.
	assert.InDeltaSlice(t, []float32{0.5, 1.5}, p.Data(), 1e-5)
	opt.Optimize(p, 1)
	// acc = 2 g², step = lr / sqrt(2).
	assert.InDeltaSlice(t, []float32{0.5 - 0.35355, 1.5 + 0.35355}, p.Data(), 1e-4)
}

func TestRMSProp(t *testing.T) {
	opt := optim.NewRMSProp(optim.RMSPropConfig{LR: 0.01, DecayRate: 0.9})
	p := param([]float32{0}, []float32{3})
	opt.Optimize(p, 0)
	// acc = 0.1 * 9 = 0.9, step = 0.01 * 3 / sqrt(0.9).
	assert.InDelta(t, -0.0316228, p.Data()[0], 1e-5)
}

func TestAdam_FirstStepIsLR(t *testing.T) {
	opt := optim.NewAdam(optim.AdamConfig{LR: 0.01})
	a := param([]float32{1, 1}, []float32{0.5, -20})
	b := param([]float32{0}, []float32{3})
	opt.Optimize(a, 0)
	opt.Optimize(b, 0)
	// Bias correction makes the first step lr * sign(g) for both
	// parameters: powers advance once for iteration 0.
	assert.InDeltaSlice(t, []float32{0.99, 1.01}, a.Data(), 1e-5)
	assert.InDelta(t, -0.01, b.Data()[0], 1e-5)
}

func TestAdam_Minimizes(t *testing.T) {
	opt := optim.NewAdam(optim.AdamConfig{LR: 0.1})
	p := param([]float32{3, -2}, nil)
	for iter := range 500 {
		// f(x) = Σ (x - 1)², df/dx = 2(x - 1)
		for i, x := range p.Data() {
			p.Grad()[i] = 2 * (x - 1)
		}
		opt.Optimize(p, iter)
	}
	assert.InDeltaSlice(t, []float32{1, 1}, p.Data(), 5e-2)
}

func TestNew(t *testing.T) {
	for _, typ := range []string{optim.TypeSGD, optim.TypeAdaGrad, optim.TypeRMSProp, optim.TypeAdam} {
		opt, err := optim.New(typ, 0.05, []float32{0.5}, nil)
		require.NoError(t, err)
		assert.Equal(t, typ, opt.Type())
		assert.Equal(t, float32(0.05), opt.Schedule().BaseRate)

		rebuilt, err := optim.New(opt.Type(), opt.Schedule().BaseRate, opt.Schedule().DecayLocs, opt.HyperParams())
		require.NoError(t, err)
		assert.Equal(t, opt.HyperParams(), rebuilt.HyperParams())
	}

	sgd, err := optim.New(optim.TypeSGD, 0.1, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(0.9), sgd.HyperParams()["momentum"])

	_, err = optim.New("LBFGS", 0.1, nil, nil)
	assert.ErrorIs(t, err, optim.ErrUnknownType)
}
