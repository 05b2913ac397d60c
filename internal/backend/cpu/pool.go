package cpu

import (
	"math"
	"math/rand/v2"

	"github.com/VectorFist/MicroNet/internal/parallel"
)

// MaxPoolForward computes max pooling over n images described by g.
//
// For every output cell, mask receives the flat index (into x, batch offset
// included) of the winning input cell, so MaskPoolBackward can route the
// gradient back to exactly that cell. A window that lies entirely in the
// padding yields 0 and mask -1.
func MaxPoolForward(x, y []float32, mask []int, n int, g Geometry, cfg parallel.Config) {
	inSize, outSize := g.ImageSize(), g.Channels*g.ColCols()
	parallel.For(n, func(i int) {
		for c := 0; c < g.Channels; c++ {
			base := i*inSize + c*g.Height*g.Width
			for oh := 0; oh < g.OutH; oh++ {
				for ow := 0; ow < g.OutW; ow++ {
					hs, he, ws, we := g.window(oh, ow)
					best, arg := float32(-math.MaxFloat32), -1
					for h := hs; h < he; h++ {
						for w := ws; w < we; w++ {
							idx := base + h*g.Width + w
							if arg < 0 || x[idx] > best {
								best, arg = x[idx], idx
							}
						}
					}
					o := i*outSize + (c*g.OutH+oh)*g.OutW + ow
					if arg < 0 {
						best = 0
					}
					y[o], mask[o] = best, arg
				}
			}
		}
	}, cfg)
}

// MaskPoolBackward routes dy to the input cells recorded in mask (dx += ...).
func MaskPoolBackward(dy, dx []float32, mask []int, n int, g Geometry, cfg parallel.Config) {
	outSize := g.Channels * g.ColCols()
	parallel.For(n, func(i int) {
		for o := i * outSize; o < (i+1)*outSize; o++ {
			if idx := mask[o]; idx >= 0 {
				dx[idx] += dy[o]
			}
		}
	}, cfg)
}

// AvgPoolForward computes average pooling. Each window is clipped to the
// image and divided by its clipped size, so border cells are not diluted by
// padding.
func AvgPoolForward(x, y []float32, n int, g Geometry, cfg parallel.Config) {
	inSize, outSize := g.ImageSize(), g.Channels*g.ColCols()
	parallel.For(n, func(i int) {
		for c := 0; c < g.Channels; c++ {
			base := i*inSize + c*g.Height*g.Width
			for oh := 0; oh < g.OutH; oh++ {
				for ow := 0; ow < g.OutW; ow++ {
					hs, he, ws, we := g.window(oh, ow)
					var sum float32
					for h := hs; h < he; h++ {
						for w := ws; w < we; w++ {
							sum += x[base+h*g.Width+w]
						}
					}
					y[i*outSize+(c*g.OutH+oh)*g.OutW+ow] = sum / float32(windowSize(hs, he, ws, we))
				}
			}
		}
	}, cfg)
}

// AvgPoolBackward spreads each output gradient evenly over its clipped window.
func AvgPoolBackward(dy, dx []float32, n int, g Geometry, cfg parallel.Config) {
	inSize, outSize := g.ImageSize(), g.Channels*g.ColCols()
	parallel.For(n, func(i int) {
		for c := 0; c < g.Channels; c++ {
			base := i*inSize + c*g.Height*g.Width
			for oh := 0; oh < g.OutH; oh++ {
				for ow := 0; ow < g.OutW; ow++ {
					hs, he, ws, we := g.window(oh, ow)
					d := dy[i*outSize+(c*g.OutH+oh)*g.OutW+ow] / float32(windowSize(hs, he, ws, we))
					for h := hs; h < he; h++ {
						for w := ws; w < we; w++ {
							dx[base+h*g.Width+w] += d
						}
					}
				}
			}
		}
	}, cfg)
}

// RandomPoolForward picks one cell uniformly at random from each clipped
// window and records it in mask. Batch element i draws from a PCG stream
// seeded with (seed, i), so results do not depend on the worker split.
// Backward is MaskPoolBackward.
func RandomPoolForward(x, y []float32, mask []int, n int, g Geometry, seed uint64, cfg parallel.Config) {
	inSize, outSize := g.ImageSize(), g.Channels*g.ColCols()
	parallel.For(n, func(i int) {
		//nolint:gosec // Sampling pooling cells, not security-critical.
		rng := rand.New(rand.NewPCG(seed, uint64(i)))
		for c := 0; c < g.Channels; c++ {
			base := i*inSize + c*g.Height*g.Width
			for oh := 0; oh < g.OutH; oh++ {
				for ow := 0; ow < g.OutW; ow++ {
					hs, he, ws, we := g.window(oh, ow)
					o := i*outSize + (c*g.OutH+oh)*g.OutW + ow
					if he <= hs || we <= ws {
						y[o], mask[o] = 0, -1
						continue
					}
					pick := rng.IntN((he - hs) * (we - ws))
					idx := base + (hs+pick/(we-ws))*g.Width + ws + pick%(we-ws)
					y[o], mask[o] = x[idx], idx
				}
			}
		}
	}, cfg)
}

func windowSize(hs, he, ws, we int) int {
	return max(1, max(0, he-hs)*max(0, we-ws))
}
