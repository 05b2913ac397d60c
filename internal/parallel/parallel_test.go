package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestForBatch(t *testing.T) {
	cfg := BatchConfig()

	batch, channels := 4, 8
	results := make([][]bool, batch)
	for b := range results {
		results[b] = make([]bool, channels)
	}

	ForBatch(batch, channels, func(b, c int) {
		results[b][c] = true
	}, cfg)

	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			assert.True(t, results[b][c], "missing result at [%d][%d]", b, c)
		}
	}
}

func TestFor_Sequential(t *testing.T) {
	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, Serial())

	assert.Equal(t, int64(100), counter)
}

func TestRanges_CoverDisjoint(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}

	for _, n := range []int{1, 2, 3, 7, 8, 9, 100} {
		ranges := Ranges(n, cfg)
		require.NotEmpty(t, ranges)
		next := 0
		for _, r := range ranges {
			assert.Equal(t, next, r[0], "n=%d", n)
			assert.Less(t, r[0], r[1], "n=%d", n)
			next = r[1]
		}
		assert.Equal(t, n, next, "n=%d", n)
		assert.LessOrEqual(t, len(ranges), 4, "n=%d", n)
	}
}

func TestRanges_SmallInputIsSingleRange(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, [][2]int{{0, 10}}, Ranges(10, cfg))
	assert.Nil(t, Ranges(0, cfg))
}

func TestForRange_EachIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 1}
	hits := make([]int32, 50)

	ForRange(len(hits), func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
	}, cfg)

	for i, h := range hits {
		assert.Equal(t, int32(1), h, "index %d", i)
	}
}
