package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"
)

func TestTruncatedNormal(t *testing.T) {
	SetSeed(1)
	data := make([]float32, 20000)
	TruncatedNormal(data, 0.5, 0.1)

	values := make([]float64, len(data))
	outside := 0
	for i, v := range data {
		values[i] = float64(v)
		if v < 0.3 || v > 0.7 {
			outside++
		}
	}
	assert.InDelta(t, 0.5, stat.Mean(values, nil), 0.01)
	// P(|z| > 2) is about 4.6%; five resamples leave essentially none.
	assert.Less(t, outside, 5)
}

func TestSetSeed_Reproducible(t *testing.T) {
	a, b := make([]float32, 16), make([]float32, 16)
	SetSeed(99)
	Uniform(a, -1, 1)
	SetSeed(99)
	Uniform(b, -1, 1)
	assert.Equal(t, a, b)

	c := make([]float32, 16)
	Uniform(c, -1, 1)
	assert.NotEqual(t, a, c, "consecutive calls draw distinct streams")
	for _, v := range a {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.Less(t, v, float32(1))
	}
}
