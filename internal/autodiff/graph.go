// Package autodiff builds and schedules MicroNet computation graphs.
//
// A Graph is an arena of tensors and layers addressed by integer indices:
// each tensor records its producing layer and its consumers, each layer the
// tensors it reads and writes. Nothing points back from a tensor to a layer,
// so the graph holds no reference cycles and maps directly onto the
// persisted model record.
//
// Architecture:
//   - Construction: Input/Variable add source tensors, Call invokes a layer on
//     values and appends its outputs. Call is the only way to add edges.
//   - Scheduling: Initialize discovers the layers reachable from the declared
//     inputs and orders them with Kahn's algorithm (a guard node feeds every
//     source layer). A stalled pass reports a *CycleError.
//   - Execution: Forward zero-fills every touched gradient once, then runs
//     the order; Backward seeds loss gradients with 1 and runs it reversed;
//     Update hands each trainable parameter to an optimizer.
//   - Scoping: AddLayerPrefix renames a subgraph; ShareParameters aliases a
//     subgraph's parameters to a named registry entry. The *Scope passes
//     restrict execution to layers with a name prefix.
//
// Usage:
//
//	g := autodiff.NewGraph()
//	x := g.Input(tensor.NewShape(32, 1, 28, 28))
//	h, _ := g.Call1(must.M1(nn.NewDense("fc", nn.DenseConfig{Units: 10})), x)
//	_ = g.Initialize(x)
//	_ = g.Forward(true)
package autodiff

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/VectorFist/MicroNet/internal/nn"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// noProducer marks tensors that no layer writes.
const noProducer = -1

type tensorNode struct {
	t         *tensor.Tensor
	producer  int
	consumers []int // One entry per use, in invocation order.
}

type layerNode struct {
	layer   nn.Layer
	inputs  []int
	outputs []int
}

// Graph is a layer graph over 4-D tensors.
//
// A Graph is not safe for concurrent use.
type Graph struct {
	tensors  []tensorNode
	layers   []layerNode
	layerID  map[nn.Layer]int
	tensorID map[*tensor.Tensor]int

	inputs      []int
	order       []int   // Layer indices in forward order.
	successors  [][]int // Per layer index, distinct successors.
	initialized bool
}

// Value is a handle to a tensor of a Graph.
type Value struct {
	g  *Graph
	id int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		layerID:  make(map[nn.Layer]int),
		tensorID: make(map[*tensor.Tensor]int),
	}
}

// Tensor returns the tensor behind v.
func (v Value) Tensor() *tensor.Tensor { return v.g.tensors[v.id].t }

// Shape returns the current shape of v.
func (v Value) Shape() tensor.Shape { return v.Tensor().Shape() }

// Graph returns the graph v belongs to.
func (v Value) Graph() *Graph { return v.g }

// Valid reports whether v refers to a tensor.
func (v Value) Valid() bool { return v.g != nil }

// Input adds a non-trainable source tensor of the given shape.
func (g *Graph) Input(shape tensor.Shape) Value {
	t := tensor.New(shape)
	t.SetTrainable(false)
	return g.addTensor(t, noProducer)
}

// Variable adds an existing tensor as a source. Adding the same tensor twice
// returns the same value.
func (g *Graph) Variable(t *tensor.Tensor) Value {
	if id, ok := g.tensorID[t]; ok {
		return Value{g: g, id: id}
	}
	return g.addTensor(t, noProducer)
}

// ValueOf returns the value of a tensor already in the graph.
func (g *Graph) ValueOf(t *tensor.Tensor) (Value, bool) {
	id, ok := g.tensorID[t]
	if !ok {
		return Value{}, false
	}
	return Value{g: g, id: id}, true
}

func (g *Graph) addTensor(t *tensor.Tensor, producer int) Value {
	id := len(g.tensors)
	g.tensors = append(g.tensors, tensorNode{t: t, producer: producer})
	g.tensorID[t] = id
	return Value{g: g, id: id}
}

// Call invokes layer on ins: it checks the input shapes, sets up the layer
// parameters, allocates the outputs and records the edges. Values are not
// computed until Forward.
//
// A layer without a name is named after its kind and arena index.
func (g *Graph) Call(layer nn.Layer, ins ...Value) ([]Value, error) {
	if _, ok := g.layerID[layer]; ok {
		return nil, errors.Wrapf(ErrLayerReused, "%s %q", layer.Kind(), layer.Name())
	}
	shapes := make([]tensor.Shape, len(ins))
	for i, v := range ins {
		if v.g != g {
			return nil, errors.Wrapf(ErrForeignValue, "input %d of %s %q", i, layer.Kind(), layer.Name())
		}
		shapes[i] = v.Shape()
	}
	id := len(g.layers)
	if layer.Name() == "" {
		layer.SetName(fmt.Sprintf("%s_%d", strings.ToLower(layer.Kind().String()), id))
	}

	outShapes, err := layer.InferShape(shapes)
	if err != nil {
		return nil, err
	}
	if err := layer.Setup(shapes); err != nil {
		return nil, err
	}

	node := layerNode{layer: layer, inputs: make([]int, len(ins))}
	for i, v := range ins {
		node.inputs[i] = v.id
		g.tensors[v.id].consumers = append(g.tensors[v.id].consumers, id)
	}
	outs := make([]Value, len(outShapes))
	for i, s := range outShapes {
		outs[i] = g.addTensor(tensor.New(s), id)
		node.outputs = append(node.outputs, outs[i].id)
	}
	g.layers = append(g.layers, node)
	g.layerID[layer] = id
	g.initialized = false
	klog.V(1).Infof("layer %q (%s): %v -> %v, %d params", layer.Name(), layer.Kind(), shapes, outShapes, len(layer.Params()))
	return outs, nil
}

// Call1 is Call for single-output layers.
func (g *Graph) Call1(layer nn.Layer, ins ...Value) (Value, error) {
	outs, err := g.Call(layer, ins...)
	if err != nil {
		return Value{}, err
	}
	if len(outs) != 1 {
		return Value{}, errors.Wrapf(nn.ErrShapeMismatch, "%s %q has %d outputs", layer.Kind(), layer.Name(), len(outs))
	}
	return outs[0], nil
}

// Redirect makes every layer consuming from read to instead. from must be a
// source tensor and both values must have the same shape.
//
// Redirect is how a graph feeds a computed tensor into a subgraph built on a
// placeholder input. Redirecting a placeholder to a tensor computed from its
// own consumers creates a cycle, which Initialize reports.
func (g *Graph) Redirect(from, to Value) error {
	if from.g != g || to.g != g {
		return ErrForeignValue
	}
	src := &g.tensors[from.id]
	if src.producer != noProducer {
		return errors.Errorf("redirect: tensor %d is produced by %q", from.id, g.layers[src.producer].layer.Name())
	}
	if from.Shape() != to.Shape() {
		return errors.Wrapf(nn.ErrShapeMismatch, "redirect %v to %v", from.Shape(), to.Shape())
	}
	for _, c := range src.consumers {
		for i, in := range g.layers[c].inputs {
			if in == from.id {
				g.layers[c].inputs[i] = to.id
			}
		}
	}
	dst := &g.tensors[to.id]
	dst.consumers = append(dst.consumers, src.consumers...)
	src.consumers = nil
	g.initialized = false
	return nil
}

// Layers returns the layers in forward order once initialized, and in
// construction order before.
func (g *Graph) Layers() []nn.Layer {
	ids := g.order
	if !g.initialized {
		ids = make([]int, len(g.layers))
		for i := range ids {
			ids[i] = i
		}
	}
	out := make([]nn.Layer, len(ids))
	for i, id := range ids {
		out[i] = g.layers[id].layer
	}
	return out
}

// Successors returns the distinct layers consuming an output of layer, in
// the order edges were built. It is nil before Initialize.
func (g *Graph) Successors(layer nn.Layer) []nn.Layer {
	id, ok := g.layerID[layer]
	if !ok || !g.initialized {
		return nil
	}
	var out []nn.Layer
	for _, s := range g.successors[id] {
		out = append(out, g.layers[s].layer)
	}
	return out
}

// Inputs returns the values declared by the last Initialize.
func (g *Graph) Inputs() []Value {
	out := make([]Value, len(g.inputs))
	for i, id := range g.inputs {
		out[i] = Value{g: g, id: id}
	}
	return out
}

// LayerInputs returns the values layer reads.
func (g *Graph) LayerInputs(layer nn.Layer) []Value {
	return g.values(layer, func(n layerNode) []int { return n.inputs })
}

// LayerOutputs returns the values layer writes.
func (g *Graph) LayerOutputs(layer nn.Layer) []Value {
	return g.values(layer, func(n layerNode) []int { return n.outputs })
}

func (g *Graph) values(layer nn.Layer, pick func(layerNode) []int) []Value {
	id, ok := g.layerID[layer]
	if !ok {
		return nil
	}
	ids := pick(g.layers[id])
	out := make([]Value, len(ids))
	for i, t := range ids {
		out[i] = Value{g: g, id: t}
	}
	return out
}
