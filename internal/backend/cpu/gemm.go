package cpu

import (
	"fmt"

	"github.com/VectorFist/MicroNet/internal/parallel"
)

// gemmTile is the column block width of the dot-product kernel.
const gemmTile = 16

// Gemm computes C = alpha * op(A) * op(B) + beta * C on row-major matrices.
//
// op(A) is M×K and op(B) is K×N; C is M×N. When transA is set, A is stored as
// K×M, and when transB is set, B is stored as N×K.
//
// C is scaled by beta first (beta == 0 overwrites C, so stale NaNs never leak
// through). The product is then accumulated by one of four orientation
// kernels, each normalizing its operands so the inner loop is a contiguous dot
// product. Rows of C are distributed across workers.
//
// Example:
//
//	// y (OC×P) = W (OC×K) · col (K×P)
//	cpu.Gemm(false, false, oc, p, k, 1, w, col, 0, y)
func Gemm(transA, transB bool, m, n, k int, alpha float32, a, b []float32, beta float32, c []float32) {
	GemmWith(parallel.DefaultConfig(), transA, transB, m, n, k, alpha, a, b, beta, c)
}

// GemmWith is Gemm with an explicit worker configuration. Kernels already
// running inside a batch worker pass parallel.Serial().
func GemmWith(cfg parallel.Config, transA, transB bool, m, n, k int, alpha float32, a, b []float32, beta float32, c []float32) {
	if m < 0 || n < 0 || k < 0 {
		panic(fmt.Sprintf("gemm: negative dimensions m=%d n=%d k=%d", m, n, k))
	}
	if len(a) < m*k || len(b) < k*n || len(c) < m*n {
		panic(fmt.Sprintf("gemm: buffers too small for [%d,%d]x[%d,%d]: len(a)=%d len(b)=%d len(c)=%d",
			m, k, k, n, len(a), len(b), len(c)))
	}

	c = c[:m*n]
	switch beta {
	case 0:
		clear(c)
	case 1:
	default:
		for i := range c {
			c[i] *= beta
		}
	}
	if alpha == 0 || m == 0 || n == 0 || k == 0 {
		return
	}

	switch {
	case !transA && !transB:
		gemmNN(cfg, m, n, k, alpha, a, b, c)
	case !transA && transB:
		gemmNT(cfg, m, n, k, alpha, a, b, c)
	case transA && !transB:
		gemmTN(cfg, m, n, k, alpha, a, b, c)
	default:
		gemmTT(cfg, m, n, k, alpha, a, b, c)
	}
}

// gemmNN: A is M×K, B is K×N.
func gemmNN(cfg parallel.Config, m, n, k int, alpha float32, a, b, c []float32) {
	bt := transpose(b[:k*n], k, n)
	gemmRows(cfg, m, n, k, alpha, a, bt, c)
}

// gemmNT: A is M×K, B is N×K.
func gemmNT(cfg parallel.Config, m, n, k int, alpha float32, a, b, c []float32) {
	gemmRows(cfg, m, n, k, alpha, a, b, c)
}

// gemmTN: A is K×M, B is K×N.
func gemmTN(cfg parallel.Config, m, n, k int, alpha float32, a, b, c []float32) {
	at := transpose(a[:k*m], k, m)
	bt := transpose(b[:k*n], k, n)
	gemmRows(cfg, m, n, k, alpha, at, bt, c)
}

// gemmTT: A is K×M, B is N×K.
func gemmTT(cfg parallel.Config, m, n, k int, alpha float32, a, b, c []float32) {
	at := transpose(a[:k*m], k, m)
	gemmRows(cfg, m, n, k, alpha, at, b, c)
}

// gemmRows accumulates alpha * A · Btᵀ into C, where A is M×K and Bt is N×K.
func gemmRows(cfg parallel.Config, m, n, k int, alpha float32, a, bt, c []float32) {
	// At least ~16k multiply-adds per goroutine.
	cfg.MinChunkSize = max(1, (1<<14)/max(1, n*k))
	parallel.ForRange(m, func(start, end int) {
		for jb := 0; jb < n; jb += gemmTile {
			je := min(jb+gemmTile, n)
			for i := start; i < end; i++ {
				row := a[i*k : (i+1)*k]
				out := c[i*n : (i+1)*n]
				for j := jb; j < je; j++ {
					out[j] += alpha * dot(row, bt[j*k:(j+1)*k])
				}
			}
		}
	}, cfg)
}

// dot returns the inner product of two equal-length vectors, unrolled by 8.
func dot(x, y []float32) float32 {
	n := len(x)
	y = y[:n]
	var s0, s1, s2, s3, s4, s5, s6, s7 float32
	i := 0
	for ; i+8 <= n; i += 8 {
		s0 += x[i] * y[i]
		s1 += x[i+1] * y[i+1]
		s2 += x[i+2] * y[i+2]
		s3 += x[i+3] * y[i+3]
		s4 += x[i+4] * y[i+4]
		s5 += x[i+5] * y[i+5]
		s6 += x[i+6] * y[i+6]
		s7 += x[i+7] * y[i+7]
	}
	sum := (s0 + s1) + (s2 + s3) + (s4 + s5) + (s6 + s7)
	for ; i < n; i++ {
		sum += x[i] * y[i]
	}
	return sum
}

// transpose returns the cols×rows transpose of a rows×cols matrix.
func transpose(src []float32, rows, cols int) []float32 {
	dst := make([]float32, rows*cols)
	for ib := 0; ib < rows; ib += gemmTile {
		ie := min(ib+gemmTile, rows)
		for jb := 0; jb < cols; jb += gemmTile {
			je := min(jb+gemmTile, cols)
			for i := ib; i < ie; i++ {
				for j := jb; j < je; j++ {
					dst[j*rows+i] = src[i*cols+j]
				}
			}
		}
	}
	return dst
}

// Axpby computes y = alpha*x + beta*y element-wise.
func Axpby(alpha float32, x []float32, beta float32, y []float32) {
	if len(x) < len(y) {
		panic(fmt.Sprintf("axpby: len(x)=%d < len(y)=%d", len(x), len(y)))
	}
	for i := range y {
		y[i] = alpha*x[i] + beta*y[i]
	}
}

// AddTo accumulates x into y.
func AddTo(y, x []float32) {
	x = x[:len(y)]
	for i := range y {
		y[i] += x[i]
	}
}
