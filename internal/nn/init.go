package nn

import (
	"math/rand/v2"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// seedStep separates the random streams of initializers called in quick
// succession.
const seedStep = 1001

// truncatedNormalTrials is how many times a draw outside ±2σ is resampled
// before the last draw is accepted.
const truncatedNormalTrials = 5

var globalSeed atomic.Uint64

func init() {
	globalSeed.Store(uint64(time.Now().UnixNano()))
}

// SetSeed resets the global initializer seed. Every subsequent initializer
// call advances it by a fixed step, so two processes seeded identically build
// identical parameters.
func SetSeed(seed uint64) {
	globalSeed.Store(seed)
}

// nextSeed returns a fresh seed for one initializer call.
func nextSeed() uint64 {
	return globalSeed.Add(seedStep)
}

func newSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// NewRand returns a generator seeded from the global initializer seed.
// Layers with stochastic behavior (dropout, random pooling) draw from it.
func NewRand() *rand.Rand {
	//nolint:gosec // Training randomness, not security-critical.
	return rand.New(newSource(nextSeed()))
}

// TruncatedNormal fills data from N(mean, stddev²), resampling a draw that
// falls outside mean ± 2·stddev up to 5 times before keeping the last draw.
func TruncatedNormal(data []float32, mean, stddev float32) {
	dist := distuv.Normal{Mu: float64(mean), Sigma: float64(stddev), Src: newSource(nextSeed())}
	lo, hi := float64(mean-2*stddev), float64(mean+2*stddev)
	for i := range data {
		v := dist.Rand()
		for trial := 0; (v < lo || v > hi) && trial < truncatedNormalTrials; trial++ {
			v = dist.Rand()
		}
		data[i] = float32(v)
	}
}

// Uniform fills data from U(lo, hi).
func Uniform(data []float32, lo, hi float32) {
	dist := distuv.Uniform{Min: float64(lo), Max: float64(hi), Src: newSource(nextSeed())}
	for i := range data {
		data[i] = float32(dist.Rand())
	}
}

// Constant fills data with v.
func Constant(data []float32, v float32) {
	for i := range data {
		data[i] = v
	}
}
