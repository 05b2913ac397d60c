// Package net drives MicroNet graphs through training, evaluation and
// inference.
//
// ClassifyNet wraps a classifier body with a softmax loss, an accuracy metric
// and an argmax, and exposes them under fixed key names:
//
//	img, label          inputs
//	loss, prob, acc     softmax loss outputs and batch accuracy
//	argmax              predicted class per sample
//
// Datasets are maps from key to rows, one flat row of c*h*w values per
// sample. Operations fail with a *MissingKeyError when a required key is
// absent.
package net

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/VectorFist/MicroNet/internal/autodiff"
	"github.com/VectorFist/MicroNet/internal/nn"
	"github.com/VectorFist/MicroNet/internal/optim"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

// Key names.
const (
	KeyImg    = "img"
	KeyLabel  = "label"
	KeyLoss   = "loss"
	KeyProb   = "prob"
	KeyAcc    = "acc"
	KeyArgMax = "argmax"
)

// BodyFunc builds the body of a classifier on img and returns its logits.
type BodyFunc func(g *autodiff.Graph, img autodiff.Value) (autodiff.Value, error)

// ClassifyNet is a classifier graph with its optimizer.
type ClassifyNet struct {
	name  string
	graph *autodiff.Graph
	keys  map[string]autodiff.Value
	opt   optim.Optimizer
	iter  int
}

// FitConfig holds configuration for Fit.
type FitConfig struct {
	BatchSize  int                    // Samples per update (default: 32)
	Epochs     int                    // Passes over the data (default: 1)
	Shuffle    bool                   // Reshuffle the training data every epoch
	Seed       uint64                 // Shuffle seed
	Validation map[string][][]float32 // Optional, evaluated after every epoch
	Progress   io.Writer              // Progress bar output; none when nil
}

// Metrics are mean loss and accuracy over a dataset.
type Metrics struct {
	Loss     float32
	Accuracy float32
}

// EpochStats reports one epoch of Fit.
type EpochStats struct {
	Epoch      int
	Train      Metrics
	Validation *Metrics
}

// NewClassifyNet builds a classifier for samples of shape (c, h, w): body
// produces logits from the image input, which feed a softmax loss against
// the label input, an accuracy and an argmax.
func NewClassifyNet(name string, c, h, w int, body BodyFunc) (*ClassifyNet, error) {
	g := autodiff.NewGraph()
	img := g.Input(tensor.NewShape(1, c, h, w))
	label := g.Input(tensor.NewShape(1, 1, 1, 1))
	logits, err := body(g, img)
	if err != nil {
		return nil, errors.WithMessage(err, "classifier body")
	}
	lossProb, err := g.Call(nn.NewSoftmaxLoss("softmax_loss"), logits, label)
	if err != nil {
		return nil, err
	}
	acc, err := g.Call1(nn.NewAccuracy("accuracy"), lossProb[1], label)
	if err != nil {
		return nil, err
	}
	argmax, err := g.Call1(nn.NewArgMax("argmax"), logits)
	if err != nil {
		return nil, err
	}

	n := &ClassifyNet{name: name, graph: g, keys: make(map[string]autodiff.Value)}
	n.SetKey(KeyImg, img)
	n.SetKey(KeyLabel, label)
	n.SetKey(KeyLoss, lossProb[0])
	n.SetKey(KeyProb, lossProb[1])
	n.SetKey(KeyAcc, acc)
	n.SetKey(KeyArgMax, argmax)
	if err := g.Initialize(img, label); err != nil {
		return nil, err
	}
	klog.V(1).Infof("classifier %q: %d layers", name, len(g.Layers()))
	return n, nil
}

// Name returns the network name.
func (n *ClassifyNet) Name() string { return n.name }

// Graph returns the underlying graph.
func (n *ClassifyNet) Graph() *autodiff.Graph { return n.graph }

// SetKey registers v under key.
func (n *ClassifyNet) SetKey(key string, v autodiff.Value) { n.keys[key] = v }

// Key returns the value registered under key.
func (n *ClassifyNet) Key(key string) (autodiff.Value, error) {
	v, ok := n.keys[key]
	if !ok {
		return autodiff.Value{}, &MissingKeyError{Op: "key", Key: key}
	}
	return v, nil
}

// SetOptimizer sets the optimizer used by Fit.
func (n *ClassifyNet) SetOptimizer(opt optim.Optimizer) { n.opt = opt }

// Optimizer returns the optimizer, nil if unset.
func (n *ClassifyNet) Optimizer() optim.Optimizer { return n.opt }

// Iteration returns the number of updates applied so far.
func (n *ClassifyNet) Iteration() int { return n.iter }

// Fit trains on data[img] and data[label] for cfg.Epochs epochs.
func (n *ClassifyNet) Fit(data map[string][][]float32, cfg FitConfig) ([]EpochStats, error) {
	if n.opt == nil {
		return nil, ErrNoOptimizer
	}
	if err := requireKeys("fit", data, KeyImg, KeyLabel); err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 1
	}
	provider, err := NewDataProvider([][][]float32{data[KeyImg], data[KeyLabel]}, cfg.Shuffle, cfg.Seed)
	if err != nil {
		return nil, err
	}
	steps := provider.NumSamples() / cfg.BatchSize
	if steps == 0 {
		return nil, errors.Errorf("fit: batch size %d exceeds %d samples", cfg.BatchSize, provider.NumSamples())
	}
	n.opt.SetTotalIterations(steps * cfg.Epochs)

	ins, loss, acc, err := n.trainKeys()
	if err != nil {
		return nil, err
	}
	progress := cfg.Progress
	if progress == nil {
		progress = io.Discard
	}

	history := make([]EpochStats, 0, cfg.Epochs)
	it := 0
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		bar := progressbar.NewOptions(steps,
			progressbar.OptionSetWriter(progress),
			progressbar.OptionSetDescription(fmt.Sprintf("epoch %d/%d", epoch, cfg.Epochs)),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("steps"),
		)
		var sum Metrics
		for range steps {
			if err := provider.LoadBatch(ins, cfg.BatchSize); err != nil {
				return history, err
			}
			if err := n.graph.Forward(true); err != nil {
				return history, err
			}
			if err := n.graph.Backward(loss); err != nil {
				return history, err
			}
			if err := n.graph.Update(n.opt, it); err != nil {
				return history, err
			}
			l, a := loss.Tensor().Data()[0], acc.Tensor().Data()[0]
			sum.Loss += l
			sum.Accuracy += a
			klog.V(2).Infof("iter %d: loss %.5f acc %.5f lr %g", it, l, a, n.opt.LearningRate(it))
			it++
			n.iter++
			_ = bar.Add(1)
		}
		_ = bar.Finish()
		_, _ = fmt.Fprintln(progress)

		stats := EpochStats{Epoch: epoch, Train: Metrics{Loss: sum.Loss / float32(steps), Accuracy: sum.Accuracy / float32(steps)}}
		if cfg.Validation != nil {
			m, err := n.Evaluate(cfg.Validation, cfg.BatchSize)
			if err != nil {
				return history, err
			}
			stats.Validation = &m
		}
		klog.V(1).Infof("epoch %d: train loss %.5f acc %.5f", epoch, stats.Train.Loss, stats.Train.Accuracy)
		history = append(history, stats)
	}
	return history, nil
}

// Evaluate returns the mean loss and accuracy over data[img] and
// data[label], weighting a final partial batch by its size.
func (n *ClassifyNet) Evaluate(data map[string][][]float32, batchSize int) (Metrics, error) {
	if err := requireKeys("evaluate", data, KeyImg, KeyLabel); err != nil {
		return Metrics{}, err
	}
	provider, err := NewDataProvider([][][]float32{data[KeyImg], data[KeyLabel]}, false, 0)
	if err != nil {
		return Metrics{}, err
	}
	ins, loss, acc, err := n.trainKeys()
	if err != nil {
		return Metrics{}, err
	}

	var sum Metrics
	err = forBatches(provider.NumSamples(), batchSize, func(size int) error {
		if err := provider.LoadBatch(ins, size); err != nil {
			return err
		}
		if err := n.graph.Forward(false); err != nil {
			return err
		}
		sum.Loss += loss.Tensor().Data()[0] * float32(size)
		sum.Accuracy += acc.Tensor().Data()[0] * float32(size)
		return nil
	})
	if err != nil {
		return Metrics{}, err
	}
	total := float32(provider.NumSamples())
	return Metrics{Loss: sum.Loss / total, Accuracy: sum.Accuracy / total}, nil
}

// Inference returns the class probabilities of every sample of data[img].
func (n *ClassifyNet) Inference(data map[string][][]float32, batchSize int) ([][]float32, error) {
	if err := requireKeys("inference", data, KeyImg); err != nil {
		return nil, err
	}
	img, err := n.Key(KeyImg)
	if err != nil {
		return nil, err
	}
	label, err := n.Key(KeyLabel)
	if err != nil {
		return nil, err
	}
	prob, err := n.Key(KeyProb)
	if err != nil {
		return nil, err
	}
	provider, err := NewDataProvider([][][]float32{data[KeyImg]}, false, 0)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, 0, provider.NumSamples())
	err = forBatches(provider.NumSamples(), batchSize, func(size int) error {
		if err := provider.LoadBatch([]*tensor.Tensor{img.Tensor()}, size); err != nil {
			return err
		}
		// Class 0 placeholders keep the loss layer's label check satisfied.
		label.Tensor().Reshape(tensor.NewShape(size, 1, 1, 1))
		label.Tensor().Fill(0, 0)
		if err := n.graph.Forward(false); err != nil {
			return err
		}
		p := prob.Tensor()
		dim := p.Count() / size
		for i := range size {
			out = append(out, append([]float32(nil), p.Data()[i*dim:(i+1)*dim]...))
		}
		return nil
	})
	return out, err
}

func (n *ClassifyNet) trainKeys() (ins []*tensor.Tensor, loss, acc autodiff.Value, err error) {
	var img, label autodiff.Value
	for key, dst := range map[string]*autodiff.Value{KeyImg: &img, KeyLabel: &label, KeyLoss: &loss, KeyAcc: &acc} {
		if *dst, err = n.Key(key); err != nil {
			return nil, loss, acc, err
		}
	}
	return []*tensor.Tensor{img.Tensor(), label.Tensor()}, loss, acc, nil
}

// forBatches calls f with full batches of batchSize, then once with the
// remainder, if any.
func forBatches(samples, batchSize int, f func(size int) error) error {
	if batchSize <= 0 {
		batchSize = samples
	}
	for done := 0; done < samples; {
		size := min(batchSize, samples-done)
		if err := f(size); err != nil {
			return err
		}
		done += size
	}
	return nil
}

func requireKeys(op string, data map[string][][]float32, keys ...string) error {
	for _, k := range keys {
		if _, ok := data[k]; !ok {
			return &MissingKeyError{Op: op, Key: k}
		}
	}
	return nil
}
