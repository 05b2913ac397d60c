package autodiff

import (
	"math/rand/v2"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VectorFist/MicroNet/internal/nn"
	"github.com/VectorFist/MicroNet/internal/optim"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

func relu(name string) nn.Layer {
	return must.M1(nn.NewActivation(name, nn.ActivationConfig{Func: nn.ReLU}))
}

func dense(name string, units int) nn.Layer {
	return must.M1(nn.NewDense(name, nn.DenseConfig{Units: units}))
}

func call(t *testing.T, g *Graph, l nn.Layer, ins ...Value) Value {
	t.Helper()
	v, err := g.Call1(l, ins...)
	require.NoError(t, err)
	return v
}

func names(layers []nn.Layer) []string {
	out := make([]string, len(layers))
	for i, l := range layers {
		out[i] = l.Name()
	}
	return out
}

func setData(v Value, data ...float32) {
	copy(v.Tensor().Data(), data)
}

func TestInitialize_DiamondOrder(t *testing.T) {
	g := NewGraph()
	x := g.Input(tensor.NewShape(1, 2, 1, 1))
	a := relu("a")
	ya := call(t, g, a, x)
	yb := call(t, g, relu("b"), ya)
	yc := call(t, g, relu("c"), ya)
	call(t, g, nn.NewAdd("d"), yb, yc)

	require.NoError(t, g.Initialize(x))
	assert.Equal(t, []string{"a", "b", "c", "d"}, names(g.Layers()))
	assert.Equal(t, []string{"b", "c"}, names(g.Successors(a)))
}

func TestInitialize_TieBreakFollowsDiscovery(t *testing.T) {
	g := NewGraph()
	x := g.Input(tensor.NewShape(1, 2, 1, 1))
	// Built out of order: the deep branch first.
	y1 := call(t, g, relu("p1"), x)
	y2 := call(t, g, relu("p2"), y1)
	z := call(t, g, relu("q1"), x)
	call(t, g, nn.NewAdd("sum"), y2, z)

	require.NoError(t, g.Initialize(x))
	assert.Equal(t, []string{"p1", "q1", "p2", "sum"}, names(g.Layers()))
}

func TestInitialize_Cycle(t *testing.T) {
	g := NewGraph()
	x := g.Input(tensor.NewShape(1, 2, 1, 1))
	feedback := g.Input(tensor.NewShape(1, 2, 1, 1))
	h := call(t, g, nn.NewAdd("mix"), x, feedback)
	y := call(t, g, relu("act"), h)
	require.NoError(t, g.Redirect(feedback, y))

	err := g.Initialize(x)
	require.ErrorIs(t, err, ErrCycle)
	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.ElementsMatch(t, []string{"mix", "act"}, cerr.Remaining)

	assert.ErrorIs(t, g.Forward(true), ErrNotInitialized)
}

func TestInitialize_Disconnected(t *testing.T) {
	g := NewGraph()
	x := g.Input(tensor.NewShape(1, 2, 1, 1))
	other := g.Input(tensor.NewShape(1, 2, 1, 1))
	side := call(t, g, relu("side"), other)
	call(t, g, nn.NewAdd("join"), x, side)

	assert.ErrorIs(t, g.Initialize(x), ErrDisconnected)
	require.NoError(t, g.Initialize(x, other))
	assert.Len(t, g.Layers(), 2)
	assert.Len(t, g.Inputs(), 2)
}

// TestOrder_Topological builds random DAGs and checks every layer runs after
// the producers of its inputs.
func TestOrder_Topological(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for trial := range 20 {
		g := NewGraph()
		x := g.Input(tensor.NewShape(1, 3, 1, 1))
		values := []Value{x}
		for range 15 {
			var out Value
			if rng.IntN(2) == 0 || len(values) < 2 {
				out = call(t, g, relu(""), values[rng.IntN(len(values))])
			} else {
				a, b := values[rng.IntN(len(values))], values[rng.IntN(len(values))]
				out = call(t, g, nn.NewAdd(""), a, b)
			}
			values = append(values, out)
		}
		require.NoError(t, g.Initialize(x), "trial %d", trial)

		position := map[nn.Layer]int{}
		for i, l := range g.Layers() {
			position[l] = i
		}
		require.Len(t, position, 15)
		for _, l := range g.Layers() {
			for _, in := range g.LayerInputs(l) {
				p := in.g.tensors[in.id].producer
				if p == noProducer {
					continue
				}
				assert.Less(t, position[g.layers[p].layer], position[l], "trial %d: %s", trial, l.Name())
			}
		}
	}
}

func TestCall_Errors(t *testing.T) {
	g := NewGraph()
	x := g.Input(tensor.NewShape(1, 2, 1, 1))
	l := relu("r")
	call(t, g, l, x)

	_, err := g.Call(l, x)
	assert.ErrorIs(t, err, ErrLayerReused)

	other := NewGraph().Input(tensor.NewShape(1, 2, 1, 1))
	_, err = g.Call(relu("r2"), other)
	assert.ErrorIs(t, err, ErrForeignValue)

	_, err = g.Call(nn.NewAdd("bad"), x, g.Input(tensor.NewShape(1, 3, 1, 1)))
	assert.ErrorIs(t, err, nn.ErrShapeMismatch)

	_, err = g.Call1(nn.NewBatchMiddleSplit("split"), g.Input(tensor.NewShape(2, 1, 1, 1)))
	assert.ErrorIs(t, err, nn.ErrShapeMismatch)

	assert.ErrorIs(t, g.Forward(false), ErrNotInitialized)
}

func TestCall_DefaultName(t *testing.T) {
	g := NewGraph()
	x := g.Input(tensor.NewShape(1, 2, 1, 1))
	l := relu("")
	call(t, g, l, x)
	assert.Equal(t, "activation_0", l.Name())
}

func TestForwardBackward_Add(t *testing.T) {
	g := NewGraph()
	shape := tensor.NewShape(1, 6, 1, 1)
	a, b := g.Input(shape), g.Input(shape)
	setData(a, 1, 2, 3, 4, 5, 6)
	setData(b, 10, 20, 30, 40, 50, 60)
	y := call(t, g, nn.NewAdd("add"), a, b)

	require.NoError(t, g.Initialize(a, b))
	require.NoError(t, g.Forward(true))
	assert.Equal(t, []float32{11, 22, 33, 44, 55, 66}, y.Tensor().Data())

	require.NoError(t, g.Backward(y))
	ones := []float32{1, 1, 1, 1, 1, 1}
	assert.Equal(t, ones, a.Tensor().Grad())
	assert.Equal(t, ones, b.Tensor().Grad())
}

func TestBackward_FanOutAccumulates(t *testing.T) {
	g := NewGraph()
	x := g.Input(tensor.NewShape(1, 3, 1, 1))
	setData(x, 1, 2, 3)
	p := call(t, g, relu("p"), x)
	q := call(t, g, relu("q"), x)
	y := call(t, g, nn.NewAdd("sum"), p, q)
	require.NoError(t, g.Initialize(x))

	for range 3 {
		require.NoError(t, g.Forward(true))
		require.NoError(t, g.Backward(y))
		// Reset once per forward: repeated iterations do not pile up.
		assert.Equal(t, []float32{2, 2, 2}, x.Tensor().Grad())
	}
}

type countingOptimizer struct {
	calls map[*tensor.Tensor]int
	iters []int
}

func (o *countingOptimizer) Optimize(p *tensor.Tensor, iter int) {
	if o.calls == nil {
		o.calls = map[*tensor.Tensor]int{}
	}
	o.calls[p]++
	o.iters = append(o.iters, iter)
}

func TestUpdate_TrainableOnly(t *testing.T) {
	g := NewGraph()
	x := g.Input(tensor.NewShape(2, 3, 1, 1))
	h := call(t, g, dense("fc", 4), x)
	call(t, g, nn.NewBatchNormalization("bn", 0), h)
	require.NoError(t, g.Initialize(x))

	opt := &countingOptimizer{}
	require.NoError(t, g.Update(opt, 7))
	// fc: weights, bias. bn: gamma, beta.
	assert.Len(t, opt.calls, 4)
	for p, n := range opt.calls {
		assert.True(t, p.Trainable())
		assert.Equal(t, 1, n)
	}
	assert.Equal(t, []int{7, 7, 7, 7}, opt.iters)
}

func TestScopedPasses(t *testing.T) {
	g := NewGraph()
	z := g.Input(tensor.NewShape(2, 3, 1, 1))
	setData(z, 1, -1, 2, -2, 3, -3)
	gen := dense("gen_fc", 3)
	fake := call(t, g, gen, z)
	disc := dense("dis_fc", 1)
	score := call(t, g, disc, fake)
	require.NoError(t, g.Initialize(z))

	require.NoError(t, g.ForwardScope("gen", true))
	assert.NotEqual(t, make([]float32, 6), fake.Tensor().Data())
	assert.Equal(t, make([]float32, 2), score.Tensor().Data(), "discriminator not run")

	require.NoError(t, g.Forward(true))
	require.NoError(t, g.BackwardScope("dis", score))
	assert.NotEqual(t, make([]float32, 6), fake.Tensor().Grad())
	assert.Equal(t, make([]float32, 9), gen.Params()[0].Grad(), "generator backward not run")

	opt := &countingOptimizer{}
	require.NoError(t, g.UpdateScope("dis", opt, 0))
	assert.Len(t, opt.calls, 2)
	for p := range opt.calls {
		assert.Contains(t, disc.Params(), p)
	}
}

func TestAddLayerPrefix(t *testing.T) {
	g := NewGraph()
	x := g.Input(tensor.NewShape(1, 2, 1, 1))
	h := call(t, g, relu("conv"), x)
	y := call(t, g, relu("out"), h)
	side := relu("side")
	call(t, g, side, h)
	after := relu("after")
	call(t, g, after, y)

	require.NoError(t, g.AddLayerPrefix("real", y, x))
	assert.Equal(t, []string{"real_conv", "real_out", "side", "after"}, names(g.Layers()))
	assert.Equal(t, "side", side.Name(), "layers off the path keep their name")

	err := g.AddLayerPrefix("p", x, y)
	assert.ErrorIs(t, err, ErrOutputUnreachable)
}

// discriminator builds x -> dense(units) -> relu -> dense(1).
func discriminator(t *testing.T, g *Graph, x Value, units int) (Value, []nn.Layer) {
	l1, l2, l3 := dense("fc1", units), relu("act"), dense("fc2", 1)
	h := call(t, g, l1, x)
	h = call(t, g, l2, h)
	return call(t, g, l3, h), []nn.Layer{l1, l2, l3}
}

func TestShareParameters(t *testing.T) {
	g := NewGraph()
	xr := g.Input(tensor.NewShape(2, 3, 1, 1))
	xf := g.Input(tensor.NewShape(2, 3, 1, 1))
	outReal, dReal := discriminator(t, g, xr, 4)
	outFake, dFake := discriminator(t, g, xf, 4)
	reg := NewRegistry()

	require.NoError(t, g.ShareParameters(reg, "dis", outReal, xr))
	assert.Len(t, reg.Layers("dis"), 3)
	require.NoError(t, g.ShareParameters(reg, "dis", outFake, xf))

	for i := range dReal {
		require.Len(t, dFake[i].Params(), len(dReal[i].Params()))
		for n, p := range dReal[i].Params() {
			assert.Same(t, p, dFake[i].Params()[n])
		}
	}

	// Aliasing: mutation through one layer is visible through the other.
	dReal[0].Params()[0].Data()[0] = 42
	assert.Equal(t, float32(42), dFake[0].Params()[0].Data()[0])

	// Same inputs give the same scores.
	setData(xr, 1, 2, 3, 4, 5, 6)
	setData(xf, 1, 2, 3, 4, 5, 6)
	require.NoError(t, g.Initialize(xr, xf))
	require.NoError(t, g.Forward(false))
	assert.Equal(t, outReal.Tensor().Data(), outFake.Tensor().Data())

	// Shared parameters are updated once per Update.
	opt := &countingOptimizer{}
	require.NoError(t, g.Update(opt, 0))
	assert.Len(t, opt.calls, 4)
}

func TestShareParameters_UpdateVisibleThroughSharedBranch(t *testing.T) {
	g := NewGraph()
	xr := g.Input(tensor.NewShape(2, 3, 1, 1))
	xf := g.Input(tensor.NewShape(2, 3, 1, 1))
	outReal, _ := discriminator(t, g, xr, 4)
	outFake, _ := discriminator(t, g, xf, 4)
	reg := NewRegistry()
	require.NoError(t, g.ShareParameters(reg, "dis", outReal, xr))
	require.NoError(t, g.ShareParameters(reg, "dis", outFake, xf))
	require.NoError(t, g.AddLayerPrefix("dr", outReal, xr))
	require.NoError(t, g.AddLayerPrefix("df", outFake, xf))
	require.NoError(t, g.Initialize(xr, xf))

	setData(xr, 1, 2, 3, 4, 5, 6)
	setData(xf, -1, 0.5, 2, 0, 1, -3)
	require.NoError(t, g.Forward(false))
	before := append([]float32(nil), outFake.Tensor().Data()...)

	// Train only the real branch.
	sgd := optim.NewSGD(optim.SGDConfig{LR: 0.1})
	require.NoError(t, g.ForwardScope("dr", true))
	require.NoError(t, g.BackwardScope("dr", outReal))
	require.NoError(t, g.UpdateScope("dr", sgd, 0))

	require.NoError(t, g.ForwardScope("df", false))
	after := outFake.Tensor().Data()
	for i := range before {
		assert.NotEqual(t, before[i], after[i], "fake score %d", i)
	}
}

func TestShareParameters_Mismatch(t *testing.T) {
	g := NewGraph()
	a := g.Input(tensor.NewShape(2, 3, 1, 1))
	b := g.Input(tensor.NewShape(2, 3, 1, 1))
	outA, _ := discriminator(t, g, a, 4)
	outB, dB := discriminator(t, g, b, 5)
	reg := NewRegistry()
	require.NoError(t, g.ShareParameters(reg, "dis", outA, a))

	before := dB[0].Params()[0]
	err := g.ShareParameters(reg, "dis", outB, b)
	assert.ErrorIs(t, err, ErrSharingMismatch)
	assert.Same(t, before, dB[0].Params()[0], "nothing replaced")

	c := g.Input(tensor.NewShape(2, 3, 1, 1))
	outC := call(t, g, dense("only", 1), c)
	assert.ErrorIs(t, g.ShareParameters(reg, "dis", outC, c), ErrSharingMismatch)
}

func TestShareParameters_KeepsFixedParams(t *testing.T) {
	g := NewGraph()
	a := g.Input(tensor.NewShape(2, 3, 1, 1))
	b := g.Input(tensor.NewShape(2, 3, 1, 1))
	bnA, bnB := nn.NewBatchNormalization("bn", 0), nn.NewBatchNormalization("bn", 0)
	outA := call(t, g, bnA, a)
	outB := call(t, g, bnB, b)
	reg := NewRegistry()
	require.NoError(t, g.ShareParameters(reg, "bn", outA, a))
	require.NoError(t, g.ShareParameters(reg, "bn", outB, b))

	for n, p := range bnA.Params() {
		if p.Trainable() {
			assert.Same(t, p, bnB.Params()[n])
		} else {
			assert.NotSame(t, p, bnB.Params()[n])
		}
	}
}
