package autodiff

import (
	"slices"

	"github.com/pkg/errors"
)

// subgraph returns the layers on a path from inputs to output, in
// breadth-first discovery order from inputs.
func (g *Graph) subgraph(output Value, inputs []Value) ([]int, error) {
	if output.g != g {
		return nil, ErrForeignValue
	}
	from := make([]int, len(inputs))
	isInput := make(map[int]bool, len(inputs))
	for i, v := range inputs {
		if v.g != g {
			return nil, ErrForeignValue
		}
		from[i] = v.id
		isInput[v.id] = true
	}

	ancestors := make(map[int]bool)
	stack := []int{output.id}
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		p := g.tensors[t].producer
		if isInput[t] || p == noProducer || ancestors[p] {
			continue
		}
		ancestors[p] = true
		stack = append(stack, g.layers[p].inputs...)
	}

	var ids []int
	for _, l := range g.discover(from, output.id) {
		if ancestors[l] {
			ids = append(ids, l)
		}
	}
	if p := g.tensors[output.id].producer; p == noProducer || !slices.Contains(ids, p) {
		return nil, errors.Wrapf(ErrOutputUnreachable, "tensor %d", output.id)
	}
	return ids, nil
}

// AddLayerPrefix renames every layer between inputs and output to
// prefix_name. It is used to tell apart copies of the same subgraph, for
// example a discriminator applied to real and to generated images.
func (g *Graph) AddLayerPrefix(prefix string, output Value, inputs ...Value) error {
	ids, err := g.subgraph(output, inputs)
	if err != nil {
		return err
	}
	for _, id := range ids {
		l := g.layers[id].layer
		l.SetName(prefix + "_" + l.Name())
	}
	return nil
}
