package net

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors.
var (
	// ErrMissingKey is returned when a required named dataset or tensor key
	// is absent.
	ErrMissingKey = errors.New("missing key")

	// ErrNoOptimizer is returned by Fit before SetOptimizer.
	ErrNoOptimizer = errors.New("optimizer not set")

	// ErrEmptyData is returned when a dataset has no samples or columns of
	// different lengths.
	ErrEmptyData = errors.New("empty or ragged dataset")
)

// MissingKeyError names the key an operation required.
type MissingKeyError struct {
	Op  string // Operation that needed the key, e.g. "fit".
	Key string // The missing key.
}

// Error implements the error interface.
func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%s: %s %q", e.Op, ErrMissingKey, e.Key)
}

// Unwrap returns ErrMissingKey so errors.Is matches.
func (e *MissingKeyError) Unwrap() error {
	return ErrMissingKey
}
