package cpu

import (
	"github.com/VectorFist/MicroNet/internal/parallel"
)

// ConvForward computes a 2D convolution over a batch of n images.
//
// Layouts (row-major):
//   - x: n × (C×H×W), described by g
//   - w: F × (C·KH·KW), i.e. weights stored as (F, C, KH, KW)
//   - b: F
//   - y: n × (F×OutH×OutW), overwritten
//
// Algorithm, per batch element:
//  1. Im2Col: x[i] -> col (C·KH·KW × OutH·OutW)
//  2. Gemm: y[i] = w · col
//  3. Gemm: y[i] += b · 1ᵀ (bias broadcast against an all-ones row)
//
// Batch elements are independent and are split across workers.
func ConvForward(x, w, b, y []float32, n, filters int, g Geometry, cfg parallel.Config) {
	inSize, outSize := g.ImageSize(), filters*g.ColCols()
	k, p := g.ColRows(), g.ColCols()
	ones := onesVector(p)

	parallel.ForRange(n, func(start, end int) {
		col := make([]float32, k*p)
		for i := start; i < end; i++ {
			yi := y[i*outSize : (i+1)*outSize]
			Im2Col(x[i*inSize:(i+1)*inSize], g, col)
			GemmWith(parallel.Serial(), false, false, filters, p, k, 1, w, col, 0, yi)
			if b != nil {
				GemmWith(parallel.Serial(), false, false, filters, p, 1, 1, b, ones, 1, yi)
			}
		}
	}, cfg)
}

// ConvBackward accumulates the gradients of a convolution.
//
// dx, dw and db are accumulated into (+=); any of them may be nil to skip it.
// dx is written per batch element, so workers never share a slice. Weight and
// bias gradients are summed over the batch: each worker accumulates into a
// private scratch buffer and the scratch buffers are reduced into dw and db on
// the calling goroutine once all workers finish.
//
//   - dw += dy[i] · colᵀ
//   - db += dy[i] · 1
//   - dx[i] += Col2Im(wᵀ · dy[i])
func ConvBackward(x, w, dy, dx, dw, db []float32, n, filters int, g Geometry, cfg parallel.Config) {
	inSize, outSize := g.ImageSize(), filters*g.ColCols()
	k, p := g.ColRows(), g.ColCols()
	ones := onesVector(p)

	ranges := parallel.Ranges(n, cfg)
	scratchW := make([][]float32, len(ranges))
	scratchB := make([][]float32, len(ranges))

	parallel.For(len(ranges), func(r int) {
		col := make([]float32, k*p)
		var dcol []float32
		if dx != nil {
			dcol = make([]float32, k*p)
		}
		if dw != nil {
			scratchW[r] = make([]float32, filters*k)
		}
		if db != nil {
			scratchB[r] = make([]float32, filters)
		}

		for i := ranges[r][0]; i < ranges[r][1]; i++ {
			dyi := dy[i*outSize : (i+1)*outSize]
			if dw != nil {
				Im2Col(x[i*inSize:(i+1)*inSize], g, col)
				GemmWith(parallel.Serial(), false, true, filters, k, p, 1, dyi, col, 1, scratchW[r])
			}
			if db != nil {
				GemmWith(parallel.Serial(), false, false, filters, 1, p, 1, dyi, ones, 1, scratchB[r])
			}
			if dx != nil {
				GemmWith(parallel.Serial(), true, false, k, p, filters, 1, w, dyi, 0, dcol)
				Col2Im(dcol, g, dx[i*inSize:(i+1)*inSize])
			}
		}
	}, parallel.BatchConfig())

	reduceScratch(dw, scratchW)
	reduceScratch(db, scratchB)
}

// DeconvForward computes a transposed convolution over a batch of n inputs.
//
// Here g describes the output image (F×OutImgH×OutImgW in Channels, Height,
// Width) and the input grid (H×W in OutH, OutW).
//
// Layouts:
//   - x: n × (C×H×W)
//   - w: C × (F·KH·KW), i.e. weights stored as (C, F, KH, KW)
//   - b: F
//   - y: n × (F×Height×Width), overwritten
//
// Per batch element: col = wᵀ · x[i], y[i] = Col2Im(col), y[i] += b · 1ᵀ.
func DeconvForward(x, w, b, y []float32, n, inChannels int, g Geometry, cfg parallel.Config) {
	inSize, outSize := inChannels*g.ColCols(), g.ImageSize()
	k, p := g.ColRows(), g.ColCols()
	outPlane := g.Height * g.Width
	ones := onesVector(outPlane)

	parallel.ForRange(n, func(start, end int) {
		col := make([]float32, k*p)
		for i := start; i < end; i++ {
			yi := y[i*outSize : (i+1)*outSize]
			GemmWith(parallel.Serial(), true, false, k, p, inChannels, 1, w, x[i*inSize:(i+1)*inSize], 0, col)
			clear(yi)
			Col2Im(col, g, yi)
			if b != nil {
				GemmWith(parallel.Serial(), false, false, g.Channels, outPlane, 1, 1, b, ones, 1, yi)
			}
		}
	}, cfg)
}

// DeconvBackward accumulates the gradients of a transposed convolution, with
// the same scratch-and-reduce discipline as ConvBackward.
//
//   - dcol = Im2Col(dy[i])
//   - dx[i] += w · dcol
//   - dw += x[i] · dcolᵀ
//   - db += dy[i] · 1
func DeconvBackward(x, w, dy, dx, dw, db []float32, n, inChannels int, g Geometry, cfg parallel.Config) {
	inSize, outSize := inChannels*g.ColCols(), g.ImageSize()
	k, p := g.ColRows(), g.ColCols()
	outPlane := g.Height * g.Width
	ones := onesVector(outPlane)

	ranges := parallel.Ranges(n, cfg)
	scratchW := make([][]float32, len(ranges))
	scratchB := make([][]float32, len(ranges))

	parallel.For(len(ranges), func(r int) {
		dcol := make([]float32, k*p)
		if dw != nil {
			scratchW[r] = make([]float32, inChannels*k)
		}
		if db != nil {
			scratchB[r] = make([]float32, g.Channels)
		}

		for i := ranges[r][0]; i < ranges[r][1]; i++ {
			dyi := dy[i*outSize : (i+1)*outSize]
			if db != nil {
				GemmWith(parallel.Serial(), false, false, g.Channels, 1, outPlane, 1, dyi, ones, 1, scratchB[r])
			}
			if dx == nil && dw == nil {
				continue
			}
			Im2Col(dyi, g, dcol)
			if dx != nil {
				GemmWith(parallel.Serial(), false, false, inChannels, p, k, 1, w, dcol, 1, dx[i*inSize:(i+1)*inSize])
			}
			if dw != nil {
				GemmWith(parallel.Serial(), false, true, inChannels, k, p, 1, x[i*inSize:(i+1)*inSize], dcol, 1, scratchW[r])
			}
		}
	}, parallel.BatchConfig())

	reduceScratch(dw, scratchW)
	reduceScratch(db, scratchB)
}

func reduceScratch(dst []float32, scratch [][]float32) {
	if dst == nil {
		return
	}
	for _, s := range scratch {
		if s != nil {
			AddTo(dst, s)
		}
	}
}

func onesVector(n int) []float32 {
	ones := make([]float32, n)
	for i := range ones {
		ones[i] = 1
	}
	return ones
}
