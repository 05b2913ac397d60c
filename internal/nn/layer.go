// Package nn implements the MicroNet layer contract and every layer kind.
//
// This package provides:
//   - Layer interface: forward, backward, shape inference, parameters
//   - Kind: the fixed enumeration of layer kinds, with a factory (New) that
//     rebuilds any layer from its persisted hyper-parameters
//   - Typed configuration structs per kind (DenseConfig, ConvConfig, ...)
//   - Parameter initializers (truncated normal, uniform, constant)
//
// Layers are plain operations over tensors: they do not know about the graph
// they are part of. The graph (internal/autodiff) owns the wiring, calls
// InferShape/Setup when a layer is invoked on tensors, and drives Forward and
// Backward in topological order.
//
// Gradient protocol: before every forward pass the scheduler zero-fills the
// gradient buffer of every tensor the pass touches, exactly once. Backward
// therefore only ever accumulates (+=) into input and parameter gradients and
// never overwrites them. A tensor consumed by several layers receives the sum
// of every consumer's contribution.
package nn

import (
	"github.com/pkg/errors"

	"github.com/VectorFist/MicroNet/internal/tensor"
)

// Layer is the operation contract implemented by every layer kind.
type Layer interface {
	// Kind returns the layer kind.
	Kind() Kind

	// Name returns the layer name. Graph scoping (prefixes, sharing
	// registries) is done through names.
	Name() string

	// SetName renames the layer.
	SetName(name string)

	// InferShape returns the output shapes for the given input shapes.
	//
	// It is pure and callable before any buffer is populated. It validates
	// every shape precondition (input count, matching shapes, channel counts
	// against allocated parameters) and returns a *ShapeError on violation.
	InferShape(in []tensor.Shape) ([]tensor.Shape, error)

	// Setup allocates and initializes parameters for the given input shapes.
	// Layers whose parameters are already present leave them untouched.
	Setup(in []tensor.Shape) error

	// Params returns the parameter tensors, trainable or fixed, in a stable
	// order. The slice is owned by the layer.
	Params() []*tensor.Tensor

	// SetParams replaces the parameter tensors. The count and shapes must
	// match the current parameters (when present).
	SetParams(params []*tensor.Tensor) error

	// Forward reshapes out via InferShape and writes output values.
	Forward(in, out []*tensor.Tensor, train bool) error

	// Backward accumulates into the gradients of in and of the parameters,
	// reading the gradients of out.
	Backward(in, out []*tensor.Tensor) error

	// HyperParams returns the generic map view of the layer configuration,
	// used only for persistence.
	HyperParams() HyperParams
}

// base carries the name and parameter slice shared by all layers.
type base struct {
	name   string
	params []*tensor.Tensor
}

func (b *base) Name() string { return b.name }

func (b *base) SetName(name string) { b.name = name }

func (b *base) Params() []*tensor.Tensor { return b.params }

func (b *base) SetParams(params []*tensor.Tensor) error {
	if b.params != nil && len(params) != len(b.params) {
		return errors.Wrapf(ErrShapeMismatch, "layer %q: %d parameters, got %d", b.name, len(b.params), len(params))
	}
	for i, p := range params {
		if p == nil {
			return errors.Wrapf(ErrInvalidConfig, "layer %q: parameter %d is nil", b.name, i)
		}
		if b.params != nil && b.params[i].Shape() != p.Shape() {
			return errors.Wrapf(ErrShapeMismatch, "layer %q: parameter %d has shape %v, got %v",
				b.name, i, b.params[i].Shape(), p.Shape())
		}
	}
	b.params = append([]*tensor.Tensor(nil), params...)
	return nil
}

// reshapeOutputs applies shapes to out, checking the output count.
func reshapeOutputs(l Layer, in, out []*tensor.Tensor) error {
	shapes, err := l.InferShape(shapesOf(in))
	if err != nil {
		return err
	}
	if len(out) != len(shapes) {
		return shapeErrorf(l, "expected %d outputs, got %d", len(shapes), len(out))
	}
	for i, s := range shapes {
		out[i].Reshape(s)
	}
	return nil
}

func shapesOf(ts []*tensor.Tensor) []tensor.Shape {
	shapes := make([]tensor.Shape, len(ts))
	for i, t := range ts {
		shapes[i] = t.Shape()
	}
	return shapes
}

// expectInputs checks the number of inputs.
func expectInputs(l Layer, in []tensor.Shape, n int) error {
	if len(in) != n {
		return shapeErrorf(l, "expected %d inputs, got %d", n, len(in))
	}
	return nil
}

// perSample returns c*h*w of s.
func perSample(s tensor.Shape) int {
	return s[1] * s[2] * s[3]
}
