// Package parallel provides the worker loops used by MicroNet kernels and
// layers to spread independent work (batch elements, matrix rows) across
// goroutines.
//
// Every loop partitions [0, n) into contiguous, non-overlapping ranges, so
// callers writing to disjoint slices need no locking.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64, // Typical cache line aware chunk.
	}
}

// BatchConfig is DefaultConfig tuned for per-sample loops, where each item is
// already a large unit of work (an im2col + gemm, a pooled feature map).
func BatchConfig() Config {
	cfg := DefaultConfig()
	cfg.MinChunkSize = 1
	return cfg
}

// Serial returns a configuration that always runs on the calling goroutine.
func Serial() Config {
	return Config{Enabled: false, NumWorkers: 1, MinChunkSize: 1}
}

// Ranges splits [0, n) into the contiguous chunks ForRange would hand to its
// workers. A disabled config or a small n yields a single range.
func Ranges(n int, cfg Config) [][2]int {
	if n <= 0 {
		return nil
	}
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*max(cfg.MinChunkSize, 1) {
		return [][2]int{{0, n}}
	}
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)
	ranges := make([][2]int, 0, (n+chunkSize-1)/chunkSize)
	for start := 0; start < n; start += chunkSize {
		ranges = append(ranges, [2]int{start, min(start+chunkSize, n)})
	}
	return ranges
}

// ForRange calls f(start, end) once per chunk of [0, n).
// Falls back to a single sequential call if parallelism is disabled or n is too small.
func ForRange(n int, f func(start, end int), cfg Config) {
	ranges := Ranges(n, cfg)
	switch len(ranges) {
	case 0:
		return
	case 1:
		f(ranges[0][0], ranges[0][1])
		return
	}

	var wg sync.WaitGroup
	for _, r := range ranges {
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			f(s, e)
		}(r[0], r[1])
	}
	wg.Wait()
}

// For executes f(i) for i in [0, n) with optional parallelism.
func For(n int, f func(i int), cfg Config) {
	ForRange(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	}, cfg)
}

// ForBatch executes f(b, c) for every (batch element, channel) pair. Pairs
// are partitioned like For over the flat index b*channels + c.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	n := batch * channels
	For(n, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
