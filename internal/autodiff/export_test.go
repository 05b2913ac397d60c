package autodiff

import (
	"bytes"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VectorFist/MicroNet/internal/nn"
	"github.com/VectorFist/MicroNet/internal/serialization"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

func classifier(t *testing.T) (*Graph, map[string]Value) {
	g := NewGraph()
	img := g.Input(tensor.NewShape(2, 1, 4, 4))
	label := g.Input(tensor.NewShape(2, 1, 1, 1))
	conv := must.M1(nn.NewConvolution("conv", nn.ConvConfig{Filters: 2, KernelH: 3, KernelW: 3, Padding: "same"}))
	h := call(t, g, conv, img)
	h = call(t, g, nn.NewBatchNormalization("bn", 0), h)
	h = call(t, g, must.M1(nn.NewActivation("act", nn.ActivationConfig{Func: nn.PReLU})), h)
	h = call(t, g, must.M1(nn.NewPooling("pool", nn.PoolConfig{Mode: nn.PoolMax, KernelH: 2, KernelW: 2})), h)
	logits := call(t, g, dense("fc", 3), h)
	outs, err := g.Call(nn.NewSoftmaxLoss("loss"), logits, label)
	require.NoError(t, err)
	require.NoError(t, g.Initialize(img, label))

	data := img.Tensor().Data()
	for i := range data {
		data[i] = float32(i%7) * 0.1
	}
	setData(label, 0, 2)
	return g, map[string]Value{"img": img, "label": label, "loss": outs[0], "prob": outs[1]}
}

func TestExportImport_RoundTrip(t *testing.T) {
	g, keys := classifier(t)
	require.NoError(t, g.Forward(true))
	require.NoError(t, g.Backward(keys["loss"]))
	require.NoError(t, g.Forward(false))
	wantProb := append([]float32(nil), keys["prob"].Tensor().Data()...)

	m, err := Export(g, keys)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, serialization.Write(&buf, m, serialization.WriteOptions{}))
	m2, err := serialization.Read(&buf)
	require.NoError(t, err)

	g2, keys2, err := Import(m2)
	require.NoError(t, err)
	assert.Equal(t, names(g.Layers()), names(g2.Layers()))
	for _, key := range []string{"img", "label", "loss", "prob"} {
		require.Contains(t, keys2, key)
		assert.Equal(t, keys[key].Shape(), keys2[key].Shape(), key)
	}

	keys2["img"].Tensor().CopyFrom(keys["img"].Tensor())
	keys2["label"].Tensor().CopyFrom(keys["label"].Tensor())
	require.NoError(t, g2.Forward(false))
	assert.InDeltaSlice(t, wantProb, keys2["prob"].Tensor().Data(), 1e-6)

	for i, l := range g.Layers() {
		l2 := g2.Layers()[i]
		assert.Equal(t, l.Kind(), l2.Kind())
		assert.Equal(t, l.HyperParams(), l2.HyperParams())
		require.Len(t, l2.Params(), len(l.Params()))
		for n, p := range l.Params() {
			assert.Equal(t, p.ID(), l2.Params()[n].ID())
			assert.Equal(t, p.Trainable(), l2.Params()[n].Trainable())
			assert.Equal(t, p.Data(), l2.Params()[n].Data())
		}
		assert.Equal(t, names(g.Successors(l)), names(g2.Successors(l2)))
	}
}

func TestExportImport_SharedParams(t *testing.T) {
	g := NewGraph()
	a := g.Input(tensor.NewShape(2, 3, 1, 1))
	b := g.Input(tensor.NewShape(2, 3, 1, 1))
	outA, _ := discriminator(t, g, a, 4)
	outB, _ := discriminator(t, g, b, 4)
	reg := NewRegistry()
	require.NoError(t, g.ShareParameters(reg, "dis", outA, a))
	require.NoError(t, g.ShareParameters(reg, "dis", outB, b))
	require.NoError(t, g.AddLayerPrefix("fake", outB, b))
	require.NoError(t, g.Initialize(a, b))

	m, err := Export(g, nil)
	require.NoError(t, err)
	stored := 0
	for _, l := range m.Layers {
		for _, p := range l.Params {
			if len(p.Data) > 0 {
				stored++
			}
		}
	}
	assert.Equal(t, 4, stored, "shared parameters stored once")

	g2, _, err := Import(m)
	require.NoError(t, err)
	layers := g2.Layers()
	byName := map[string]nn.Layer{}
	for _, l := range layers {
		byName[l.Name()] = l
	}
	assert.Same(t, byName["fc1"].Params()[0], byName["fake_fc1"].Params()[0])
	assert.Same(t, byName["fc2"].Params()[1], byName["fake_fc2"].Params()[1])
}

func TestExport_NotInitialized(t *testing.T) {
	g := NewGraph()
	x := g.Input(tensor.NewShape(1, 2, 1, 1))
	call(t, g, relu("r"), x)
	_, err := Export(g, nil)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestImport_UnknownKind(t *testing.T) {
	g, keys := classifier(t)
	m, err := Export(g, keys)
	require.NoError(t, err)
	m.Layers[0].Type = "Transformer"
	_, _, err = Import(m)
	assert.ErrorIs(t, err, nn.ErrUnknownKind)
}
