package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RebuildsEveryKind(t *testing.T) {
	layers := []Layer{
		mustLayer(NewDropout("drop", 0.8)),
		mustLayer(NewPooling("rnd", PoolConfig{Mode: PoolRandom, KernelH: 3, KernelW: 2, PadH: 1})),
		NewArgMax("argmax"),
		NewAccuracy("acc"),
		NewBatchNormalization("bn_trained", 17),
	}
	for _, c := range differentiableCases() {
		layers = append(layers, c.layer(t))
	}

	seen := map[Kind]bool{}
	for _, l := range layers {
		seen[l.Kind()] = true
		rebuilt, err := New(l.Kind(), l.Name(), l.HyperParams())
		require.NoError(t, err, "%s %q", l.Kind(), l.Name())
		assert.Equal(t, l.Kind(), rebuilt.Kind())
		assert.Equal(t, l.Name(), rebuilt.Name())
		assert.Equal(t, l.HyperParams(), rebuilt.HyperParams(), "%s %q", l.Kind(), l.Name())
	}
	for _, k := range Kinds() {
		assert.True(t, seen[k], "kind %s not covered", k)
	}
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(numKinds, "x", NewHyperParams())
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = New(KindDense, "fc", NewHyperParams())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("Transformer")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestHyperParams_Defaults(t *testing.T) {
	hp := NewHyperParams()
	hp.Ints["units"] = 3
	assert.Equal(t, 3, hp.Int("units", 1))
	assert.Equal(t, 1, hp.Int("missing", 1))
	assert.Equal(t, float32(0.5), hp.Float("missing", 0.5))
	assert.Equal(t, "relu", hp.String("missing", "relu"))
}
