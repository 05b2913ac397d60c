// Copyright 2025 MicroNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff builds MicroNet layer graphs and schedules their forward,
// backward and update passes.
//
// Example:
//
//	g := autodiff.NewGraph()
//	x := g.Input(tensor.NewShape(1, 784, 1, 1))
//	fc, _ := nn.NewDense("fc", nn.DenseConfig{Units: 10})
//	logits, err := g.Call1(fc, x)
//	...
//	if err := g.Initialize(x, label); err != nil {
//	    return err
//	}
//	g.Forward(true)
//	g.Backward(loss)
//	g.Update(opt, iter)
package autodiff

import (
	"github.com/VectorFist/MicroNet/internal/autodiff"
	"github.com/VectorFist/MicroNet/internal/serialization"
)

// Graph is an arena of tensors and the layers connecting them.
type Graph = autodiff.Graph

// Value is a handle to a tensor of a Graph.
type Value = autodiff.Value

// Optimizer is what Update needs from an optimizer.
type Optimizer = autodiff.Optimizer

// Registry records the layers of each parameter-sharing space.
type Registry = autodiff.Registry

// Model is the persisted form of a graph.
type Model = serialization.Model

// CycleError reports the layers left unscheduled by a cycle.
type CycleError = autodiff.CycleError

// Errors.
var (
	ErrCycle             = autodiff.ErrCycle
	ErrNotInitialized    = autodiff.ErrNotInitialized
	ErrLayerReused       = autodiff.ErrLayerReused
	ErrForeignValue      = autodiff.ErrForeignValue
	ErrDisconnected      = autodiff.ErrDisconnected
	ErrOutputUnreachable = autodiff.ErrOutputUnreachable
	ErrSharingMismatch   = autodiff.ErrSharingMismatch
)

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return autodiff.NewGraph()
}

// NewRegistry returns an empty sharing registry.
func NewRegistry() *Registry {
	return autodiff.NewRegistry()
}

// Export converts an initialized graph to a model record.
func Export(g *Graph, keys map[string]Value) (*Model, error) {
	return autodiff.Export(g, keys)
}

// Import rebuilds a graph from a model record.
func Import(m *Model) (*Graph, map[string]Value, error) {
	return autodiff.Import(m)
}
