package nn

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors.
var (
	// ErrShapeMismatch is returned when tensors passed to a layer violate its
	// shape preconditions.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidConfig is returned for hyper-parameters a layer cannot use.
	ErrInvalidConfig = errors.New("invalid layer configuration")

	// ErrUnknownKind is returned when a persisted layer type is not a known kind.
	ErrUnknownKind = errors.New("unknown layer kind")
)

// ShapeError describes a shape precondition violation of a layer.
type ShapeError struct {
	Layer   string // Layer name.
	Kind    Kind   // Layer kind.
	Details string // Human-readable description.
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s %q: %s: %s", e.Kind, e.Layer, ErrShapeMismatch, e.Details)
}

// Unwrap returns ErrShapeMismatch so errors.Is matches.
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

func shapeErrorf(l Layer, format string, args ...any) error {
	return &ShapeError{Layer: l.Name(), Kind: l.Kind(), Details: fmt.Sprintf(format, args...)}
}

func configErrorf(kind Kind, format string, args ...any) error {
	return errors.Wrapf(ErrInvalidConfig, "%s: "+format, append([]any{kind}, args...)...)
}
