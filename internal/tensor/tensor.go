// Package tensor implements the 4-D value/gradient buffer pair that flows
// through every layer of a MicroNet graph.
//
// A Tensor owns two flat float32 buffers of identical length: the value
// buffer (Data) and the gradient buffer (Grad). The shape is always NCHW and
// Count() == n*c*h*w holds at all times.
//
// Example:
//
//	t := tensor.New(tensor.NewShape(2, 3, 1, 1))
//	t.Fill(1, 0)
//	t.Reshape(tensor.NewShape(1, 6, 1, 1)) // same count: values kept
package tensor

import (
	"fmt"

	"github.com/google/uuid"
)

// Tensor is a paired value/gradient buffer with an NCHW shape.
//
// Tensors are shared by reference: the code that declares them, the layer
// producing them and every layer consuming them may all hold the same
// *Tensor. Mutations are visible to all holders.
type Tensor struct {
	shape     Shape
	data      []float32
	grad      []float32
	trainable bool
	id        uuid.UUID
}

// New creates a zero-filled, trainable tensor with the given shape.
func New(shape Shape) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	return &Tensor{
		shape:     shape,
		data:      make([]float32, shape.Count()),
		grad:      make([]float32, shape.Count()),
		trainable: true,
	}
}

// FromSlice creates a tensor holding a copy of data.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.Count() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.Count(), len(data))
	}
	t := New(shape)
	copy(t.data, data)
	return t, nil
}

// Clone returns a deep copy of both buffers. The copy gets a fresh identity.
func (t *Tensor) Clone() *Tensor {
	c := &Tensor{
		shape:     t.shape,
		data:      make([]float32, len(t.data)),
		grad:      make([]float32, len(t.grad)),
		trainable: t.trainable,
	}
	copy(c.data, t.data)
	copy(c.grad, t.grad)
	return c
}

// MoveFrom transfers the buffers of src into t. src is left empty with a
// zero shape.
func (t *Tensor) MoveFrom(src *Tensor) {
	if t == src {
		return
	}
	t.shape, t.data, t.grad, t.trainable = src.shape, src.data, src.grad, src.trainable
	src.shape = Shape{}
	src.data = nil
	src.grad = nil
}

// Reshape changes the shape of t.
//
// When the element count is unchanged, both buffers keep their contents.
// Otherwise both buffers are reallocated and zero-filled.
func (t *Tensor) Reshape(shape Shape) {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor: reshape: %v", err))
	}
	if shape.Count() != t.shape.Count() || len(t.data) != shape.Count() {
		t.data = make([]float32, shape.Count())
		t.grad = make([]float32, shape.Count())
	}
	t.shape = shape
}

// CopyFrom resizes t to match other and deep-copies both buffers.
func (t *Tensor) CopyFrom(other *Tensor) {
	if t == other {
		return
	}
	t.Reshape(other.shape)
	copy(t.data, other.data)
	copy(t.grad, other.grad)
}

// Fill sets every value to v and every gradient to g.
func (t *Tensor) Fill(v, g float32) {
	for i := range t.data {
		t.data[i] = v
	}
	for i := range t.grad {
		t.grad[i] = g
	}
}

// ZeroGrad zero-fills the gradient buffer.
func (t *Tensor) ZeroGrad() {
	clear(t.grad)
}

// Data returns the value buffer. Writes are visible to every holder of t.
func (t *Tensor) Data() []float32 { return t.data }

// Grad returns the gradient buffer.
func (t *Tensor) Grad() []float32 { return t.grad }

// Shape returns the current shape.
func (t *Tensor) Shape() Shape { return t.shape }

// Num returns the batch dimension.
func (t *Tensor) Num() int { return t.shape[0] }

// Channels returns the channel dimension.
func (t *Tensor) Channels() int { return t.shape[1] }

// Height returns the height dimension.
func (t *Tensor) Height() int { return t.shape[2] }

// Width returns the width dimension.
func (t *Tensor) Width() int { return t.shape[3] }

// Count returns the number of elements.
func (t *Tensor) Count() int { return t.shape.Count() }

// Offset returns the flat index of (n, c, h, w).
func (t *Tensor) Offset(n, c, h, w int) int {
	return t.shape.Offset(n, c, h, w)
}

// Trainable reports whether optimizers should update t.
func (t *Tensor) Trainable() bool { return t.trainable }

// SetTrainable marks t as trainable or fixed (e.g. batch statistics).
func (t *Tensor) SetTrainable(trainable bool) { t.trainable = trainable }

// ID returns the persistent identity of t, assigning one on first use.
func (t *Tensor) ID() uuid.UUID {
	if t.id == uuid.Nil {
		t.id = uuid.New()
	}
	return t.id
}

// SetID overrides the persistent identity, used when loading a model.
func (t *Tensor) SetID(id uuid.UUID) { t.id = id }

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.shape)
}
