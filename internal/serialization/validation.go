package serialization

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Validation limits for resource protection.
const (
	MaxLayerCount  = 100_000   // Maximum number of layers in a model
	MaxTensorCount = 1_000_000 // Maximum number of graph tensors in a model
	MaxNameLen     = 4096      // Maximum layer name length
)

// ValidateModel checks that every index of m is in range, that every
// parameter has data of the right size exactly once, and that no tensor has
// two producers.
func ValidateModel(m *Model) error {
	if len(m.Layers) > MaxLayerCount {
		return &ValidationError{Type: "too_many_layers", Details: fmt.Sprintf("got %d, max %d", len(m.Layers), MaxLayerCount)}
	}
	if len(m.Tensors) > MaxTensorCount {
		return &ValidationError{Type: "too_many_tensors", Details: fmt.Sprintf("got %d, max %d", len(m.Tensors), MaxTensorCount)}
	}
	for i, t := range m.Tensors {
		if err := validateShape(t.Shape); err != nil {
			return &ValidationError{Type: "tensor_shape", Details: fmt.Sprintf("tensor %d: %v", i, err)}
		}
	}

	tensorIndex := func(kind, layer string, idx int) error {
		if idx < 0 || idx >= len(m.Tensors) {
			return &ValidationError{Type: kind, Layer: layer, Details: fmt.Sprintf("tensor index %d out of range [0, %d)", idx, len(m.Tensors))}
		}
		return nil
	}
	layerIndex := func(kind, layer string, idx int) error {
		if idx < 0 || idx >= len(m.Layers) {
			return &ValidationError{Type: kind, Layer: layer, Details: fmt.Sprintf("layer index %d out of range [0, %d)", idx, len(m.Layers))}
		}
		return nil
	}

	producer := make(map[int]string)
	params := make(map[string][4]int)
	for _, l := range m.Layers {
		if l.Name == "" || len(l.Name) > MaxNameLen {
			return &ValidationError{Type: "layer_name", Layer: l.Name, Details: fmt.Sprintf("name length %d not in [1, %d]", len(l.Name), MaxNameLen)}
		}
		if l.Type == "" {
			return &ValidationError{Type: "layer_type", Layer: l.Name, Details: "missing type"}
		}
		for _, t := range l.Inputs {
			if err := tensorIndex("layer_input", l.Name, t); err != nil {
				return err
			}
		}
		for _, t := range l.Outputs {
			if err := tensorIndex("layer_output", l.Name, t); err != nil {
				return err
			}
			if other, ok := producer[t]; ok {
				return &ValidationError{Type: "layer_output", Layer: l.Name, Details: fmt.Sprintf("tensor %d also produced by %q", t, other)}
			}
			producer[t] = l.Name
		}
		for _, c := range l.ToLayers {
			if err := layerIndex("to_layers", l.Name, c); err != nil {
				return err
			}
		}
		for _, p := range l.Params {
			if err := validateParam(l.Name, p, params); err != nil {
				return err
			}
		}
	}

	seen := make(map[int]bool, len(m.Order))
	for _, id := range m.Order {
		if err := layerIndex("order", "", id); err != nil {
			return err
		}
		if seen[id] {
			return &ValidationError{Type: "order", Details: fmt.Sprintf("layer %d scheduled twice", id)}
		}
		seen[id] = true
	}
	for _, t := range m.Inputs {
		if err := tensorIndex("inputs", "", t); err != nil {
			return err
		}
	}
	for key, t := range m.KeyChunks {
		if err := tensorIndex("key_chunks", key, t); err != nil {
			return err
		}
	}
	return nil
}

// validateParam checks p against the parameters seen so far, recording it.
func validateParam(layer string, p Param, seen map[string][4]int) error {
	if _, err := uuid.Parse(p.ID); err != nil {
		return &ValidationError{Type: "param_id", Layer: layer, Details: fmt.Sprintf("id %q: %v", p.ID, err)}
	}
	if err := validateShape(p.Shape); err != nil {
		return &ValidationError{Type: "param_shape", Layer: layer, Details: fmt.Sprintf("param %s: %v", p.ID, err)}
	}
	shape, repeated := seen[p.ID]
	switch {
	case repeated && shape != p.Shape:
		return &ValidationError{Type: "param_shape", Layer: layer, Details: fmt.Sprintf("param %s has shape %v and %v", p.ID, shape, p.Shape)}
	case repeated && len(p.Data) > 0:
		return &ValidationError{Type: "param_data", Layer: layer, Details: fmt.Sprintf("param %s stored twice", p.ID)}
	case !repeated && len(p.Data) == 0:
		return errors.Wrapf(ErrUnknownParam, "layer %q: param %s", layer, p.ID)
	case !repeated && len(p.Data) != count(p.Shape):
		return &ValidationError{Type: "param_size", Layer: layer, Details: fmt.Sprintf("param %s has %d values, shape %v needs %d", p.ID, len(p.Data), p.Shape, count(p.Shape))}
	}
	seen[p.ID] = p.Shape
	return nil
}

func validateShape(s [4]int) error {
	for _, d := range s {
		if d <= 0 {
			return errors.Errorf("non-positive dimension in %v", s)
		}
	}
	return nil
}
