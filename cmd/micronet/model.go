package main

import (
	"fmt"

	"github.com/VectorFist/MicroNet/autodiff"
	"github.com/VectorFist/MicroNet/nn"
	"github.com/VectorFist/MicroNet/net"
)

// convBody returns a two-block conv classifier body:
//
//	[conv 3x3 -> batch norm -> relu -> max pool 2x2] x2 -> dropout -> dense
func convBody(filters, classes int, keepProb float32) net.BodyFunc {
	return func(g *autodiff.Graph, img autodiff.Value) (autodiff.Value, error) {
		h := img
		for i, f := range []int{filters, 2 * filters} {
			block := []func() (nn.Layer, error){
				func() (nn.Layer, error) {
					return nn.NewConvolution(fmt.Sprintf("conv%d", i+1), nn.ConvConfig{
						Filters: f, KernelH: 3, KernelW: 3, Padding: nn.PaddingSame,
					})
				},
				func() (nn.Layer, error) { return nn.NewBatchNormalization(fmt.Sprintf("bn%d", i+1), 0), nil },
				func() (nn.Layer, error) {
					return nn.NewActivation(fmt.Sprintf("relu%d", i+1), nn.ActivationConfig{Func: nn.ReLU})
				},
				func() (nn.Layer, error) {
					return nn.NewPooling(fmt.Sprintf("pool%d", i+1), nn.PoolConfig{Mode: nn.PoolMax, KernelH: 2, KernelW: 2})
				},
			}
			for _, build := range block {
				l, err := build()
				if err != nil {
					return autodiff.Value{}, err
				}
				if h, err = g.Call1(l, h); err != nil {
					return autodiff.Value{}, err
				}
			}
		}
		drop, err := nn.NewDropout("dropout", keepProb)
		if err != nil {
			return autodiff.Value{}, err
		}
		if h, err = g.Call1(drop, h); err != nil {
			return autodiff.Value{}, err
		}
		fc, err := nn.NewDense("fc", nn.DenseConfig{Units: classes})
		if err != nil {
			return autodiff.Value{}, err
		}
		return g.Call1(fc, h)
	}
}
