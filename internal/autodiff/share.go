package autodiff

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/VectorFist/MicroNet/internal/nn"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// Registry maps space names to the layers whose parameters later subgraphs
// share. The first subgraph registered under a name owns the parameters.
type Registry struct {
	mu     sync.Mutex
	spaces map[string][]nn.Layer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{spaces: make(map[string][]nn.Layer)}
}

// Layers returns the owners registered under space.
func (r *Registry) Layers(space string) []nn.Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]nn.Layer(nil), r.spaces[space]...)
}

// ShareParameters aliases the trainable parameters of the subgraph between
// inputs and output to those registered under space.
//
// The first call for a space registers the subgraph's layers. Later calls
// pair layers by breadth-first visiting order and replace each trainable
// parameter with the registered one; fixed parameters (running statistics)
// stay per layer. The subgraph must have the same number of layers as the
// registered one, with matching kinds and parameter shapes, or
// ErrSharingMismatch is returned and nothing is replaced.
func (g *Graph) ShareParameters(reg *Registry, space string, output Value, inputs ...Value) error {
	ids, err := g.subgraph(output, inputs)
	if err != nil {
		return err
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()

	owners, ok := reg.spaces[space]
	if !ok {
		for _, id := range ids {
			owners = append(owners, g.layers[id].layer)
		}
		reg.spaces[space] = owners
		return nil
	}

	if len(owners) != len(ids) {
		return errors.Wrapf(ErrSharingMismatch, "space %q has %d layers, subgraph has %d", space, len(owners), len(ids))
	}
	for i, id := range ids {
		if err := matchLayer(owners[i], g.layers[id].layer); err != nil {
			return errors.Wrapf(ErrSharingMismatch, "space %q position %d: %v", space, i, err)
		}
	}
	for i, id := range ids {
		l := g.layers[id].layer
		params := append([]*tensor.Tensor(nil), l.Params()...)
		for n, p := range params {
			if p.Trainable() {
				params[n] = owners[i].Params()[n]
			}
		}
		if err := l.SetParams(params); err != nil {
			return err
		}
	}
	return nil
}

func matchLayer(owner, l nn.Layer) error {
	if owner.Kind() != l.Kind() {
		return errors.Errorf("%s %q against %s %q", l.Kind(), l.Name(), owner.Kind(), owner.Name())
	}
	want, got := owner.Params(), l.Params()
	if len(want) != len(got) {
		return errors.Errorf("%q has %d parameters, %q has %d", l.Name(), len(got), owner.Name(), len(want))
	}
	for n := range got {
		if want[n].Shape() != got[n].Shape() {
			return errors.Errorf("%q parameter %d has shape %v, %q has %v",
				l.Name(), n, got[n].Shape(), owner.Name(), want[n].Shape())
		}
	}
	return nil
}
