package serialization

import (
	"fmt"

	"github.com/pkg/errors"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrInvalidFormat      = errors.New("invalid model record")
	ErrUnknownParam       = errors.New("parameter referenced before its data")
)

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Type    string // Type of error (e.g., "tensor_index", "param_size")
	Layer   string // Layer name involved, if any
	Details string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Layer != "" {
		return fmt.Sprintf("%s: layer %q: %s", e.Type, e.Layer, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

// Unwrap returns ErrInvalidFormat so errors.Is matches.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidFormat
}
