package cpu

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VectorFist/MicroNet/internal/parallel"
)

func TestIm2Col_Layout(t *testing.T) {
	// 3×3 image, 2×2 kernel, stride 1, no padding -> 4 rows × 4 columns.
	img := []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	g := Geometry{Channels: 1, Height: 3, Width: 3, KernelH: 2, KernelW: 2, StrideH: 1, StrideW: 1, OutH: 2, OutW: 2}
	col := make([]float32, g.ColRows()*g.ColCols())

	Im2Col(img, g, col)

	assert.Equal(t, []float32{
		1, 2, 4, 5, // kernel (0,0)
		2, 3, 5, 6, // kernel (0,1)
		4, 5, 7, 8, // kernel (1,0)
		5, 6, 8, 9, // kernel (1,1)
	}, col)
}

func TestCol2Im_RoundTripIsOverlapWeighted(t *testing.T) {
	img := []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	g := Geometry{Channels: 1, Height: 3, Width: 3, KernelH: 2, KernelW: 2, StrideH: 1, StrideW: 1, OutH: 2, OutW: 2}
	col := make([]float32, g.ColRows()*g.ColCols())
	Im2Col(img, g, col)

	back := make([]float32, len(img))
	Col2Im(col, g, back)

	// Each pixel is scaled by the number of 2×2 windows covering it.
	overlap := []float32{
		1, 2, 1,
		2, 4, 2,
		1, 2, 1,
	}
	want := make([]float32, len(img))
	for i := range img {
		want[i] = img[i] * overlap[i]
	}
	assert.Equal(t, want, back)
	assert.NotEqual(t, img, back)
}

func TestIm2Col_Padding(t *testing.T) {
	img := []float32{1, 2, 3, 4} // 2×2
	g := Geometry{Channels: 1, Height: 2, Width: 2, KernelH: 3, KernelW: 3, StrideH: 1, StrideW: 1, PadH: 1, PadW: 1, OutH: 2, OutW: 2}
	col := make([]float32, g.ColRows()*g.ColCols())

	Im2Col(img, g, col)

	// Center kernel tap reads the image itself.
	center := col[4*4 : 5*4]
	assert.Equal(t, []float32{1, 2, 3, 4}, center)
	// Top-left tap only sees the image at output (1,1).
	assert.Equal(t, []float32{0, 0, 0, 1}, col[0:4])
}

func TestIm2Col_AdjointIdentity(t *testing.T) {
	// <Im2Col(x), c> == <x, Col2Im(c)> for any geometry.
	rng := rand.New(rand.NewPCG(5, 6))
	g := Geometry{
		Channels: 2, Height: 5, Width: 4,
		KernelH: 3, KernelW: 2, StrideH: 2, StrideW: 1, PadH: 1, PadW: 0,
		OutH: 3, OutW: 3,
	}

	x := randomSlice(rng, g.ImageSize())
	c := randomSlice(rng, g.ColRows()*g.ColCols())

	col := make([]float32, len(c))
	Im2Col(x, g, col)
	img := make([]float32, len(x))
	Col2Im(c, g, img)

	assert.InDelta(t, float64(dot(col, c)), float64(dot(x, img)), 1e-4)
}

func TestConvOutputSize(t *testing.T) {
	tests := []struct {
		in, k, s int
		pad      Padding
		out, p   int
	}{
		{28, 3, 1, PaddingSame, 28, 1},
		{28, 3, 2, PaddingSame, 14, 0},
		{5, 2, 1, PaddingSame, 5, 0},
		{7, 5, 2, PaddingSame, 4, 2},
		{28, 3, 1, PaddingValid, 26, 0},
		{28, 5, 2, PaddingValid, 12, 0},
	}
	for _, tt := range tests {
		out, p, err := ConvOutputSize(tt.in, tt.k, tt.s, tt.pad)
		require.NoError(t, err)
		assert.Equal(t, tt.out, out, "%+v", tt)
		assert.Equal(t, tt.p, p, "%+v", tt)
	}

	_, _, err := ConvOutputSize(2, 3, 1, PaddingValid)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
	_, _, err = ConvOutputSize(2, 3, 1, "full")
	assert.Error(t, err)
}

func TestDeconvOutputSize(t *testing.T) {
	out, p, err := DeconvOutputSize(7, 4, 2, PaddingSame)
	require.NoError(t, err)
	assert.Equal(t, 14, out)
	assert.Equal(t, 1, p)

	out, p, err = DeconvOutputSize(7, 3, 2, PaddingValid)
	require.NoError(t, err)
	assert.Equal(t, 15, out)
	assert.Equal(t, 0, p)
}

func TestPoolOutputSize(t *testing.T) {
	out, err := PoolOutputSize(5, 2, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, out) // ceil((5-2)/2)+1

	out, err = PoolOutputSize(4, 2, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, out)

	_, err = PoolOutputSize(1, 3, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

// naiveConv is a direct six-loop convolution used as reference.
func naiveConv(x, w, b []float32, n, filters int, g Geometry) []float32 {
	y := make([]float32, n*filters*g.OutH*g.OutW)
	for i := 0; i < n; i++ {
		for f := 0; f < filters; f++ {
			for oh := 0; oh < g.OutH; oh++ {
				for ow := 0; ow < g.OutW; ow++ {
					sum := b[f]
					for c := 0; c < g.Channels; c++ {
						for kh := 0; kh < g.KernelH; kh++ {
							for kw := 0; kw < g.KernelW; kw++ {
								h := oh*g.StrideH - g.PadH + kh
								ww := ow*g.StrideW - g.PadW + kw
								if h < 0 || h >= g.Height || ww < 0 || ww >= g.Width {
									continue
								}
								sum += x[((i*g.Channels+c)*g.Height+h)*g.Width+ww] *
									w[((f*g.Channels+c)*g.KernelH+kh)*g.KernelW+kw]
							}
						}
					}
					y[((i*filters+f)*g.OutH+oh)*g.OutW+ow] = sum
				}
			}
		}
	}
	return y
}

func convGeometry(t *testing.T, c, h, w, k, s int, pad Padding) Geometry {
	t.Helper()
	oh, ph, err := ConvOutputSize(h, k, s, pad)
	require.NoError(t, err)
	ow, pw, err := ConvOutputSize(w, k, s, pad)
	require.NoError(t, err)
	return Geometry{Channels: c, Height: h, Width: w, KernelH: k, KernelW: k, StrideH: s, StrideW: s, PadH: ph, PadW: pw, OutH: oh, OutW: ow}
}

func TestConvForward_MatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	for _, pad := range []Padding{PaddingSame, PaddingValid} {
		n, filters := 5, 4
		g := convGeometry(t, 3, 7, 6, 3, 2, pad)
		x := randomSlice(rng, n*g.ImageSize())
		w := randomSlice(rng, filters*g.ColRows())
		b := randomSlice(rng, filters)
		y := make([]float32, n*filters*g.ColCols())

		ConvForward(x, w, b, y, n, filters, g, parallel.BatchConfig())

		assert.InDeltaSlice(t, naiveConv(x, w, b, n, filters, g), y, 1e-4, "padding %s", pad)
	}
}

func TestConvBackward_AdjointOfForward(t *testing.T) {
	// With zero bias, conv is linear in x and in w:
	// <dy, conv(x, w)> == <dx, x> == <dw, w>.
	rng := rand.New(rand.NewPCG(9, 10))
	n, filters := 4, 3
	g := convGeometry(t, 2, 6, 5, 3, 1, PaddingSame)
	x := randomSlice(rng, n*g.ImageSize())
	w := randomSlice(rng, filters*g.ColRows())
	dy := randomSlice(rng, n*filters*g.ColCols())

	y := make([]float32, len(dy))
	ConvForward(x, w, nil, y, n, filters, g, parallel.BatchConfig())

	dx := make([]float32, len(x))
	dw := make([]float32, len(w))
	db := make([]float32, filters)
	ConvBackward(x, w, dy, dx, dw, db, n, filters, g, parallel.BatchConfig())

	lhs := float64(dot(dy, y))
	assert.InDelta(t, lhs, float64(dot(dx, x)), 1e-3)
	assert.InDelta(t, lhs, float64(dot(dw, w)), 1e-3)

	for f := 0; f < filters; f++ {
		var want float32
		for i := 0; i < n; i++ {
			for j := 0; j < g.ColCols(); j++ {
				want += dy[(i*filters+f)*g.ColCols()+j]
			}
		}
		assert.InDelta(t, float64(want), float64(db[f]), 1e-4)
	}
}

func TestConvBackward_Accumulates(t *testing.T) {
	g := convGeometry(t, 1, 3, 3, 2, 1, PaddingValid)
	x := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	w := []float32{1, 0, 0, 1}
	dy := []float32{1, 1, 1, 1}

	dx := make([]float32, 9)
	dw := make([]float32, 4)
	db := []float32{10}
	ConvBackward(x, w, dy, dx, dw, db, 1, 1, g, parallel.Serial())
	first := append([]float32(nil), dx...)
	ConvBackward(x, w, dy, dx, dw, db, 1, 1, g, parallel.Serial())

	for i := range dx {
		assert.Equal(t, 2*first[i], dx[i])
	}
	assert.Equal(t, float32(18), db[0])
}

func TestDeconv_IsTransposeOfConv(t *testing.T) {
	// A conv from A to B channels and a deconv from B to A channels sharing
	// the same weight buffer are adjoint: <conv(x), y> == <x, deconv(y)>.
	rng := rand.New(rand.NewPCG(11, 12))
	n, a, b := 3, 2, 4
	g := convGeometry(t, a, 7, 7, 3, 2, PaddingValid)

	x := randomSlice(rng, n*g.ImageSize())
	y := randomSlice(rng, n*b*g.ColCols())
	w := randomSlice(rng, b*g.ColRows())

	convOut := make([]float32, len(y))
	ConvForward(x, w, nil, convOut, n, b, g, parallel.BatchConfig())
	deconvOut := make([]float32, len(x))
	DeconvForward(y, w, nil, deconvOut, n, b, g, parallel.BatchConfig())

	assert.InDelta(t, float64(dot(convOut, y)), float64(dot(x, deconvOut)), 1e-3)
}

func TestDeconvBackward_AdjointOfForward(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 14))
	n, in, filters := 2, 3, 2
	oh, ph, err := DeconvOutputSize(4, 3, 2, PaddingSame)
	require.NoError(t, err)
	g := Geometry{Channels: filters, Height: oh, Width: oh, KernelH: 3, KernelW: 3, StrideH: 2, StrideW: 2, PadH: ph, PadW: ph, OutH: 4, OutW: 4}

	x := randomSlice(rng, n*in*g.ColCols())
	w := randomSlice(rng, in*g.ColRows())
	dy := randomSlice(rng, n*g.ImageSize())

	y := make([]float32, len(dy))
	DeconvForward(x, w, nil, y, n, in, g, parallel.BatchConfig())
	dx := make([]float32, len(x))
	dw := make([]float32, len(w))
	DeconvBackward(x, w, dy, dx, dw, nil, n, in, g, parallel.BatchConfig())

	lhs := float64(dot(dy, y))
	assert.InDelta(t, lhs, float64(dot(dx, x)), 1e-3)
	assert.InDelta(t, lhs, float64(dot(dw, w)), 1e-3)
}
