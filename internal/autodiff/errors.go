package autodiff

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Sentinel errors.
var (
	// ErrCycle is returned by Initialize when the layers reachable from the
	// declared inputs cannot be ordered.
	ErrCycle = errors.New("graph has a cycle")

	// ErrNotInitialized is returned by passes run before Initialize.
	ErrNotInitialized = errors.New("graph not initialized")

	// ErrLayerReused is returned when a layer is invoked a second time.
	ErrLayerReused = errors.New("layer already part of the graph")

	// ErrForeignValue is returned when a value belongs to another graph.
	ErrForeignValue = errors.New("value belongs to another graph")

	// ErrDisconnected is returned when a reachable layer consumes the output
	// of a layer the declared inputs do not reach.
	ErrDisconnected = errors.New("layer input not reachable from declared inputs")

	// ErrOutputUnreachable is returned when a scoped traversal never reaches
	// its output.
	ErrOutputUnreachable = errors.New("output not reachable from inputs")

	// ErrSharingMismatch is returned when a subgraph does not line up with
	// the registry entry it should share parameters with.
	ErrSharingMismatch = errors.New("subgraph does not match shared parameters")
)

// CycleError lists the layers left unordered when Kahn's algorithm stalled.
type CycleError struct {
	Remaining []string // Names of the layers on or behind the cycle.
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %d layers unordered: %s", ErrCycle, len(e.Remaining), strings.Join(e.Remaining, ", "))
}

// Unwrap returns ErrCycle so errors.Is matches.
func (e *CycleError) Unwrap() error {
	return ErrCycle
}
