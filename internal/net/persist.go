package net

import (
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/VectorFist/MicroNet/internal/autodiff"
	"github.com/VectorFist/MicroNet/internal/optim"
	"github.com/VectorFist/MicroNet/internal/serialization"
)

// Save writes the classifier, its keys, optimizer and iteration count to
// path.
func (n *ClassifyNet) Save(path string, opts serialization.WriteOptions) error {
	m, err := autodiff.Export(n.graph, n.keys)
	if err != nil {
		return err
	}
	m.Name = n.name
	m.CreatedAt = time.Now().UTC()
	m.Iteration = n.iter
	if n.opt != nil {
		s := n.opt.Schedule()
		m.Optimizer = &serialization.Optimizer{
			Type:      n.opt.Type(),
			BaseRate:  s.BaseRate,
			DecayLocs: s.DecayLocs,
			Hps:       n.opt.HyperParams(),
		}
	}
	if err := serialization.WriteFile(path, m, opts); err != nil {
		return errors.WithMessagef(err, "save %s", path)
	}
	if info, err := os.Stat(path); err == nil {
		klog.V(1).Infof("saved %q to %s (%s)", n.name, path, humanize.Bytes(uint64(info.Size())))
	}
	return nil
}

// Load reads a classifier written by Save. The optimizer is rebuilt with
// fresh state.
func Load(path string) (*ClassifyNet, error) {
	m, err := serialization.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "load %s", path)
	}
	g, keys, err := autodiff.Import(m)
	if err != nil {
		return nil, errors.WithMessagef(err, "load %s", path)
	}
	for _, k := range []string{KeyImg, KeyLabel, KeyLoss, KeyProb, KeyAcc} {
		if _, ok := keys[k]; !ok {
			return nil, &MissingKeyError{Op: "load", Key: k}
		}
	}
	n := &ClassifyNet{name: m.Name, graph: g, keys: keys, iter: m.Iteration}
	if o := m.Optimizer; o != nil {
		if n.opt, err = optim.New(o.Type, o.BaseRate, o.DecayLocs, o.Hps); err != nil {
			return nil, err
		}
	}
	klog.V(1).Infof("loaded %q from %s: %d layers, iteration %d", n.name, path, len(g.Layers()), n.iter)
	return n, nil
}
