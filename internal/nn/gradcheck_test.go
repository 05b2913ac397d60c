package nn

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/VectorFist/MicroNet/internal/tensor"
)

const (
	fdEpsilon   = 1e-3
	fdTolerance = 2e-2
)

// gradCase describes one layer under a finite-difference gradient check.
type gradCase struct {
	name   string
	layer  func(t *testing.T) Layer
	inputs func(rng *rand.Rand) []*tensor.Tensor
	// fixed marks inputs that receive no gradient (labels).
	fixed []bool
	// weighted marks outputs that contribute to the weighted objective. Nil
	// means every output.
	weighted []bool
}

func newTestRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

// spaced returns a tensor whose values are distinct multiples of 0.01 offset
// by 0.005, so no value sits within the finite-difference step of zero or of
// another value.
func spaced(rng *rand.Rand, shape tensor.Shape) *tensor.Tensor {
	n := shape.Count()
	data := make([]float32, n)
	for i, p := range rng.Perm(n) {
		data[i] = float32(p-n/2)*0.01 + 0.005
	}
	return must.M1(tensor.FromSlice(data, shape))
}

// classLabels returns (n, 1, h, w) class indices in [0, classes).
func classLabels(rng *rand.Rand, n, h, w, classes int) *tensor.Tensor {
	data := make([]float32, n*h*w)
	for i := range data {
		data[i] = float32(rng.IntN(classes))
	}
	return must.M1(tensor.FromSlice(data, tensor.NewShape(n, 1, h, w)))
}

// build infers output shapes, runs Setup and allocates the outputs.
func build(t *testing.T, l Layer, in []*tensor.Tensor) []*tensor.Tensor {
	t.Helper()
	shapes, err := l.InferShape(shapesOf(in))
	require.NoError(t, err)
	require.NoError(t, l.Setup(shapesOf(in)))
	out := make([]*tensor.Tensor, len(shapes))
	for i, s := range shapes {
		out[i] = tensor.New(s)
	}
	return out
}

func toFloat64(xs []float32) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}

// checkGradients compares analytic gradients of Σ_k <w_k, out_k> with
// central finite differences, for every non-fixed input element and every
// trainable parameter element.
func checkGradients(t *testing.T, c gradCase) {
	t.Helper()
	rng := newTestRand(7)
	l := c.layer(t)
	in := c.inputs(rng)
	out := build(t, l, in)

	weights := make([][]float64, len(out))
	objective := func() float64 {
		require.NoError(t, l.Forward(in, out, true))
		var s float64
		for k, o := range out {
			if weights[k] != nil {
				s += floats.Dot(weights[k], toFloat64(o.Data()))
			}
		}
		return s
	}

	require.NoError(t, l.Forward(in, out, true))
	for k, o := range out {
		if c.weighted != nil && !c.weighted[k] {
			continue
		}
		weights[k] = make([]float64, o.Count())
		for i := range weights[k] {
			weights[k][i] = rng.Float64()*2 - 1
		}
	}

	// Analytic pass.
	targets := make([]*tensor.Tensor, 0, len(in)+len(l.Params()))
	for i, x := range in {
		x.ZeroGrad()
		if c.fixed == nil || !c.fixed[i] {
			targets = append(targets, x)
		}
	}
	for _, p := range l.Params() {
		p.ZeroGrad()
		if p.Trainable() {
			targets = append(targets, p)
		}
	}
	require.NoError(t, l.Forward(in, out, true))
	for k, o := range out {
		o.ZeroGrad()
		for i := range weights[k] {
			o.Grad()[i] = float32(weights[k][i])
		}
	}
	require.NoError(t, l.Backward(in, out))
	analytic := make([][]float32, len(targets))
	for i, x := range targets {
		analytic[i] = append([]float32(nil), x.Grad()...)
	}

	// Numeric pass.
	for ti, x := range targets {
		data := x.Data()
		for i := range data {
			orig := data[i]
			data[i] = orig + fdEpsilon
			plus := objective()
			data[i] = orig - fdEpsilon
			minus := objective()
			data[i] = orig
			numeric := (plus - minus) / (2 * fdEpsilon)
			got := float64(analytic[ti][i])
			scale := math.Max(1, math.Max(math.Abs(got), math.Abs(numeric)))
			require.InDeltaf(t, numeric, got, fdTolerance*scale,
				"target %d (shape %v) element %d", ti, x.Shape(), i)
		}
	}
}
