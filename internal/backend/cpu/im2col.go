package cpu

import "fmt"

// Im2Col expands one C×H×W image into a (C*KH*KW) × (OutH*OutW) column
// matrix.
//
// Row (c*KH+kh)*KW+kw, column oh*OutW+ow holds
// img[c, oh*StrideH-PadH+kh, ow*StrideW-PadW+kw], or 0 outside the image.
func Im2Col(img []float32, g Geometry, col []float32) {
	checkIm2Col("im2col", img, g, col)

	cols := g.ColCols()
	for c := 0; c < g.Channels; c++ {
		plane := img[c*g.Height*g.Width : (c+1)*g.Height*g.Width]
		for kh := 0; kh < g.KernelH; kh++ {
			for kw := 0; kw < g.KernelW; kw++ {
				row := col[((c*g.KernelH+kh)*g.KernelW+kw)*cols:][:cols]
				for oh := 0; oh < g.OutH; oh++ {
					h := oh*g.StrideH - g.PadH + kh
					dst := row[oh*g.OutW : (oh+1)*g.OutW]
					if h < 0 || h >= g.Height {
						clear(dst)
						continue
					}
					src := plane[h*g.Width : (h+1)*g.Width]
					for ow := range dst {
						w := ow*g.StrideW - g.PadW + kw
						if w >= 0 && w < g.Width {
							dst[ow] = src[w]
						} else {
							dst[ow] = 0
						}
					}
				}
			}
		}
	}
}

// Col2Im is the adjoint of Im2Col: every column entry is added back into the
// image cell it was read from. Cells covered by several windows receive the
// sum of all their entries, so Col2Im(Im2Col(x)) is x scaled by the per-cell
// window count, not x.
//
// img is accumulated into, not overwritten.
func Col2Im(col []float32, g Geometry, img []float32) {
	checkIm2Col("col2im", img, g, col)

	cols := g.ColCols()
	for c := 0; c < g.Channels; c++ {
		plane := img[c*g.Height*g.Width : (c+1)*g.Height*g.Width]
		for kh := 0; kh < g.KernelH; kh++ {
			for kw := 0; kw < g.KernelW; kw++ {
				row := col[((c*g.KernelH+kh)*g.KernelW+kw)*cols:][:cols]
				for oh := 0; oh < g.OutH; oh++ {
					h := oh*g.StrideH - g.PadH + kh
					if h < 0 || h >= g.Height {
						continue
					}
					src := row[oh*g.OutW : (oh+1)*g.OutW]
					dst := plane[h*g.Width : (h+1)*g.Width]
					for ow, v := range src {
						w := ow*g.StrideW - g.PadW + kw
						if w >= 0 && w < g.Width {
							dst[w] += v
						}
					}
				}
			}
		}
	}
}

func checkIm2Col(op string, img []float32, g Geometry, col []float32) {
	if len(img) < g.ImageSize() {
		panic(fmt.Sprintf("%s: image buffer has %d elements, geometry needs %d", op, len(img), g.ImageSize()))
	}
	if len(col) < g.ColRows()*g.ColCols() {
		panic(fmt.Sprintf("%s: column buffer has %d elements, geometry needs %d", op, len(col), g.ColRows()*g.ColCols()))
	}
}
