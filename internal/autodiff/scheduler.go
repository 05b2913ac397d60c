package autodiff

import (
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/VectorFist/MicroNet/internal/tensor"
)

// Optimizer updates one parameter tensor from its gradient.
type Optimizer interface {
	Optimize(param *tensor.Tensor, iter int)
}

// guard is the node index of the synthetic source in Initialize.
const guard = 0

// Initialize computes the forward order of every layer reachable from inputs.
//
// Layers are discovered breadth-first from the inputs. Every layer gets an
// edge to each consumer of its outputs and a guard node gets an edge to each
// consumer of an input. Kahn's algorithm then runs in rounds: every node with
// no pending predecessor joins the order in discovery order. A round that
// frees nothing while layers remain means a cycle.
func (g *Graph) Initialize(inputs ...Value) error {
	declared := make(map[int]bool, len(inputs))
	g.inputs = g.inputs[:0]
	for _, v := range inputs {
		if v.g != g {
			return ErrForeignValue
		}
		if !declared[v.id] {
			declared[v.id] = true
			g.inputs = append(g.inputs, v.id)
		}
	}
	g.initialized = false

	discovered := g.discover(g.inputs, -1)
	pos := make(map[int]int, len(discovered)) // layer index -> node index
	for i, l := range discovered {
		pos[l] = i + 1
	}
	for _, l := range discovered {
		for _, t := range g.layers[l].inputs {
			p := g.tensors[t].producer
			if p == noProducer || declared[t] {
				continue
			}
			if _, ok := pos[p]; !ok {
				return errors.Wrapf(ErrDisconnected, "layer %q reads the output of %q",
					g.layers[l].layer.Name(), g.layers[p].layer.Name())
			}
		}
	}

	nodes := len(discovered) + 1
	succ := make([][]int, nodes)
	indeg := make([]int, nodes)
	addEdge := func(from, to int) {
		succ[from] = append(succ[from], to)
		indeg[to]++
	}
	for _, t := range g.inputs {
		for _, c := range g.tensors[t].consumers {
			addEdge(guard, pos[c])
		}
	}
	for i, l := range discovered {
		for _, t := range g.layers[l].outputs {
			for _, c := range g.tensors[t].consumers {
				addEdge(i+1, pos[c])
			}
		}
	}

	order := make([]int, 0, len(discovered))
	done := make([]bool, nodes)
	for remaining := nodes; remaining > 0; {
		var ready []int
		for n := range nodes {
			if !done[n] && indeg[n] == 0 {
				ready = append(ready, n)
			}
		}
		if len(ready) == 0 {
			cerr := &CycleError{}
			for n := 1; n < nodes; n++ {
				if !done[n] {
					cerr.Remaining = append(cerr.Remaining, g.layers[discovered[n-1]].layer.Name())
				}
			}
			return cerr
		}
		for _, n := range ready {
			done[n] = true
			remaining--
			if n != guard {
				order = append(order, discovered[n-1])
			}
			for _, s := range succ[n] {
				indeg[s]--
			}
		}
	}

	g.order = order
	g.successors = make([][]int, len(g.layers))
	for i, l := range discovered {
		seen := make(map[int]bool)
		for _, s := range succ[i+1] {
			if c := discovered[s-1]; !seen[c] {
				seen[c] = true
				g.successors[l] = append(g.successors[l], c)
			}
		}
	}
	g.initialized = true
	klog.V(1).Infof("graph initialized: %d inputs, %d of %d layers scheduled", len(g.inputs), len(order), len(g.layers))
	return nil
}

// discover returns the layers reachable from the tensors in from, in
// breadth-first order. The traversal does not continue past the tensor stop.
func (g *Graph) discover(from []int, stop int) []int {
	seenTensor := make(map[int]bool, len(from))
	seenLayer := make(map[int]bool)
	queue := append([]int(nil), from...)
	for _, t := range from {
		seenTensor[t] = true
	}
	var found []int
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		if t == stop {
			continue
		}
		for _, c := range g.tensors[t].consumers {
			if seenLayer[c] {
				continue
			}
			seenLayer[c] = true
			found = append(found, c)
			for _, o := range g.layers[c].outputs {
				if !seenTensor[o] {
					seenTensor[o] = true
					queue = append(queue, o)
				}
			}
		}
	}
	return found
}

// Forward runs every scheduled layer in order.
func (g *Graph) Forward(train bool) error {
	return g.ForwardScope("", train)
}

// ForwardScope runs the scheduled layers whose name starts with prefix.
//
// Before the first layer runs, the gradient of every tensor the selected
// layers read, write or own is zeroed exactly once.
func (g *Graph) ForwardScope(prefix string, train bool) error {
	ids, err := g.scope(prefix)
	if err != nil {
		return err
	}
	g.zeroGrads(ids)
	for _, id := range ids {
		n := g.layers[id]
		if err := n.layer.Forward(g.tensorsOf(n.inputs), g.tensorsOf(n.outputs), train); err != nil {
			return errors.WithMessagef(err, "forward %q", n.layer.Name())
		}
	}
	return nil
}

// Backward sets the gradient of every seed to 1 and runs the scheduled
// layers in reverse order. Gradients accumulate until the next Forward.
func (g *Graph) Backward(seeds ...Value) error {
	return g.BackwardScope("", seeds...)
}

// BackwardScope is Backward restricted to the layers whose name starts with
// prefix.
func (g *Graph) BackwardScope(prefix string, seeds ...Value) error {
	ids, err := g.scope(prefix)
	if err != nil {
		return err
	}
	for _, v := range seeds {
		if v.g != g {
			return ErrForeignValue
		}
		grad := v.Tensor().Grad()
		for i := range grad {
			grad[i] = 1
		}
	}
	for i := len(ids) - 1; i >= 0; i-- {
		n := g.layers[ids[i]]
		if err := n.layer.Backward(g.tensorsOf(n.inputs), g.tensorsOf(n.outputs)); err != nil {
			return errors.WithMessagef(err, "backward %q", n.layer.Name())
		}
	}
	return nil
}

// Update passes every trainable parameter of the scheduled layers to opt. A
// parameter shared by several layers is updated once.
func (g *Graph) Update(opt Optimizer, iter int) error {
	return g.UpdateScope("", opt, iter)
}

// UpdateScope is Update restricted to the layers whose name starts with
// prefix.
func (g *Graph) UpdateScope(prefix string, opt Optimizer, iter int) error {
	ids, err := g.scope(prefix)
	if err != nil {
		return err
	}
	seen := make(map[*tensor.Tensor]bool)
	for _, id := range ids {
		for _, p := range g.layers[id].layer.Params() {
			if p.Trainable() && !seen[p] {
				seen[p] = true
				opt.Optimize(p, iter)
			}
		}
	}
	return nil
}

func (g *Graph) scope(prefix string) ([]int, error) {
	if !g.initialized {
		return nil, ErrNotInitialized
	}
	if prefix == "" {
		return g.order, nil
	}
	var ids []int
	for _, id := range g.order {
		if strings.HasPrefix(g.layers[id].layer.Name(), prefix) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		klog.Warningf("no scheduled layer matches prefix %q", prefix)
	}
	return ids, nil
}

func (g *Graph) zeroGrads(ids []int) {
	seen := make(map[*tensor.Tensor]bool)
	zero := func(t *tensor.Tensor) {
		if !seen[t] {
			seen[t] = true
			t.ZeroGrad()
		}
	}
	for _, id := range ids {
		n := g.layers[id]
		for _, t := range n.inputs {
			zero(g.tensors[t].t)
		}
		for _, t := range n.outputs {
			zero(g.tensors[t].t)
		}
		for _, p := range n.layer.Params() {
			zero(p)
		}
	}
}

func (g *Graph) tensorsOf(ids []int) []*tensor.Tensor {
	out := make([]*tensor.Tensor, len(ids))
	for i, id := range ids {
		out[i] = g.tensors[id].t
	}
	return out
}
