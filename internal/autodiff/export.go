package autodiff

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/VectorFist/MicroNet/internal/nn"
	"github.com/VectorFist/MicroNet/internal/serialization"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// Export converts an initialized graph to a model record. keys names
// tensors the caller needs to find again after Import.
//
// A parameter shared by several layers is stored with data once and
// referenced by id afterwards.
func Export(g *Graph, keys map[string]Value) (*serialization.Model, error) {
	if !g.initialized {
		return nil, ErrNotInitialized
	}
	m := &serialization.Model{
		FormatVersion: serialization.FormatVersion,
		Layers:        make([]serialization.Layer, len(g.layers)),
		Tensors:       make([]serialization.Tensor, len(g.tensors)),
		Order:         append([]int(nil), g.order...),
		Inputs:        append([]int(nil), g.inputs...),
		KeyChunks:     make(map[string]int, len(keys)),
	}
	for i, n := range g.tensors {
		m.Tensors[i].Shape = n.t.Shape()
	}
	for key, v := range keys {
		if v.g != g {
			return nil, errors.Wrapf(ErrForeignValue, "key %q", key)
		}
		m.KeyChunks[key] = v.id
	}

	stored := make(map[*tensor.Tensor]bool)
	for i, n := range g.layers {
		hp := n.layer.HyperParams()
		rec := serialization.Layer{
			Name:     n.layer.Name(),
			Type:     n.layer.Kind().String(),
			StrHps:   hp.Strings,
			FltHps:   hp.Floats,
			IntHps:   hp.Ints,
			Inputs:   append([]int(nil), n.inputs...),
			Outputs:  append([]int(nil), n.outputs...),
			ToLayers: append([]int(nil), g.successors[i]...),
		}
		for _, p := range n.layer.Params() {
			param := serialization.Param{
				ID:        p.ID().String(),
				Shape:     p.Shape(),
				Trainable: p.Trainable(),
			}
			if !stored[p] {
				stored[p] = true
				param.Data = append([]float32(nil), p.Data()...)
			}
			rec.Params = append(rec.Params, param)
		}
		m.Layers[i] = rec
	}
	return m, nil
}

// Import rebuilds a graph from a model record. Layers are rebuilt through
// nn.New with their stored parameters, the stored forward order is restored
// as is, and parameters with the same id become one shared tensor. The
// returned map resolves the record's key chunks.
func Import(m *serialization.Model) (*Graph, map[string]Value, error) {
	if err := serialization.ValidateModel(m); err != nil {
		return nil, nil, err
	}
	g := NewGraph()
	for _, rec := range m.Tensors {
		t := tensor.New(rec.Shape)
		t.SetTrainable(false)
		g.addTensor(t, noProducer)
	}

	params := make(map[string]*tensor.Tensor)
	for i, rec := range m.Layers {
		kind, err := nn.ParseKind(rec.Type)
		if err != nil {
			return nil, nil, err
		}
		layer, err := nn.New(kind, rec.Name, nn.HyperParams{Strings: rec.StrHps, Floats: rec.FltHps, Ints: rec.IntHps})
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "layer %q", rec.Name)
		}
		if len(rec.Params) > 0 {
			ps, err := importParams(rec.Params, params)
			if err != nil {
				return nil, nil, errors.WithMessagef(err, "layer %q", rec.Name)
			}
			if err := layer.SetParams(ps); err != nil {
				return nil, nil, err
			}
		}

		shapes := make([]tensor.Shape, len(rec.Inputs))
		for j, t := range rec.Inputs {
			shapes[j] = g.tensors[t].t.Shape()
		}
		outShapes, err := layer.InferShape(shapes)
		if err != nil {
			return nil, nil, err
		}
		if len(outShapes) != len(rec.Outputs) {
			return nil, nil, errors.Wrapf(nn.ErrShapeMismatch, "layer %q: %d outputs stored, %d inferred", rec.Name, len(rec.Outputs), len(outShapes))
		}
		if err := layer.Setup(shapes); err != nil {
			return nil, nil, err
		}

		node := layerNode{layer: layer, inputs: append([]int(nil), rec.Inputs...), outputs: append([]int(nil), rec.Outputs...)}
		for _, t := range rec.Inputs {
			g.tensors[t].consumers = append(g.tensors[t].consumers, i)
		}
		for j, t := range rec.Outputs {
			if g.tensors[t].t.Shape() != outShapes[j] {
				return nil, nil, errors.Wrapf(nn.ErrShapeMismatch, "layer %q output %d: stored %v, inferred %v",
					rec.Name, j, g.tensors[t].t.Shape(), outShapes[j])
			}
			g.tensors[t].producer = i
			g.tensors[t].t.SetTrainable(true)
		}
		g.layers = append(g.layers, node)
		g.layerID[layer] = i
	}

	g.order = append([]int(nil), m.Order...)
	g.inputs = append([]int(nil), m.Inputs...)
	g.successors = make([][]int, len(g.layers))
	for i, rec := range m.Layers {
		g.successors[i] = append([]int(nil), rec.ToLayers...)
	}
	g.initialized = true

	keys := make(map[string]Value, len(m.KeyChunks))
	for key, id := range m.KeyChunks {
		keys[key] = Value{g: g, id: id}
	}
	return g, keys, nil
}

func importParams(recs []serialization.Param, byID map[string]*tensor.Tensor) ([]*tensor.Tensor, error) {
	out := make([]*tensor.Tensor, len(recs))
	for i, rec := range recs {
		if t, ok := byID[rec.ID]; ok {
			out[i] = t
			continue
		}
		id, err := uuid.Parse(rec.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "param %d", i)
		}
		t, err := tensor.FromSlice(rec.Data, rec.Shape)
		if err != nil {
			return nil, errors.WithMessagef(err, "param %s", rec.ID)
		}
		t.SetTrainable(rec.Trainable)
		t.SetID(id)
		byID[rec.ID] = t
		out[i] = t
	}
	return out, nil
}
