// Command micronet trains a small convolutional classifier, on MNIST IDX
// files when -data is set and on synthetic stroke images otherwise.
//
//	micronet -epochs 5 -optimizer adam -lr 0.001 -save model.json
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"

	"github.com/VectorFist/MicroNet/net"
	"github.com/VectorFist/MicroNet/nn"
	"github.com/VectorFist/MicroNet/optim"
)

var (
	flagData      = flag.String("data", "", "Directory with unpacked MNIST IDX files. Empty uses synthetic data.")
	flagSamples   = flag.Int("samples", 0, "Max MNIST samples to load (0 = all).")
	flagSynthetic = flag.Int("synthetic", 2000, "Number of synthetic samples.")
	flagEpochs    = flag.Int("epochs", 5, "Number of training epochs.")
	flagBatch     = flag.Int("batch", 32, "Batch size.")
	flagOptimizer = flag.String("optimizer", "adam", "Optimizer: sgd, adagrad, rmsprop or adam.")
	flagLR        = flag.Float64("lr", 0.001, "Base learning rate.")
	flagDecay     = flag.String("decay", "0.5,0.75", "Comma separated fractions of training where the rate drops 10x.")
	flagFilters   = flag.Int("filters", 8, "Filters of the first conv block.")
	flagSave      = flag.String("save", "", "Write the trained model to this path.")
	flagFloat16   = flag.Bool("float16", false, "Store parameters as half floats when saving.")
	flagSeed      = flag.Uint64("seed", 42, "Seed for initialization, data and shuffling.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if err := run(); err != nil {
		klog.Errorf("micronet: %+v", err)
		klog.Flush()
		os.Exit(1)
	}
}

func run() error {
	nn.SetSeed(*flagSeed)

	data, c, h, w, classes, err := loadData()
	if err != nil {
		return err
	}
	train, val := split(data, 0.2)
	fmt.Printf("train: %s samples, validation: %s samples, %d classes\n",
		humanize.Comma(int64(len(train[net.KeyImg]))), humanize.Comma(int64(len(val[net.KeyImg]))), classes)

	clf, err := net.NewClassifyNet("micronet", c, h, w, convBody(*flagFilters, classes, 0.75))
	if err != nil {
		return err
	}
	opt, err := optim.New(optimizerType(*flagOptimizer), float32(*flagLR), parseDecay(*flagDecay), nil)
	if err != nil {
		return err
	}
	clf.SetOptimizer(opt)
	fmt.Println(clf.Summary())

	history, err := clf.Fit(train, net.FitConfig{
		BatchSize:  *flagBatch,
		Epochs:     *flagEpochs,
		Shuffle:    true,
		Seed:       *flagSeed,
		Validation: val,
		Progress:   os.Stderr,
	})
	if err != nil {
		return err
	}
	for _, s := range history {
		fmt.Printf("epoch %2d: loss %.4f acc %5.2f%%", s.Epoch, s.Train.Loss, 100*s.Train.Accuracy)
		if s.Validation != nil {
			fmt.Printf("  val loss %.4f val acc %5.2f%%", s.Validation.Loss, 100*s.Validation.Accuracy)
		}
		fmt.Println()
	}

	if *flagSave != "" {
		opts := net.WriteOptions{Encoding: net.EncodingFloat32}
		if *flagFloat16 {
			opts.Encoding = net.EncodingFloat16
		}
		if err := clf.Save(*flagSave, opts); err != nil {
			return err
		}
		// Reload to check the file reproduces the validation metrics.
		loaded, err := net.Load(*flagSave)
		if err != nil {
			return err
		}
		m, err := loaded.Evaluate(val, *flagBatch)
		if err != nil {
			return err
		}
		fmt.Printf("saved %s: reloaded val acc %5.2f%%\n", *flagSave, 100*m.Accuracy)
	}
	return nil
}

func loadData() (data map[string][][]float32, c, h, w, classes int, err error) {
	if *flagData == "" {
		const size = 12
		rng := rand.New(rand.NewPCG(*flagSeed, *flagSeed+1))
		return synthetic(*flagSynthetic, size, rng), 1, size, size, syntheticClasses, nil
	}
	data, h, w, err = loadMNIST(*flagData, true, *flagSamples)
	if err != nil {
		return nil, 0, 0, 0, 0, err
	}
	return data, 1, h, w, 10, nil
}

func optimizerType(name string) string {
	for _, t := range []string{optim.TypeSGD, optim.TypeAdaGrad, optim.TypeRMSProp, optim.TypeAdam} {
		if strings.EqualFold(name, t) {
			return t
		}
	}
	return name
}

func parseDecay(s string) []float32 {
	var locs []float32
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f == "" {
			continue
		}
		var v float32
		if _, err := fmt.Sscan(f, &v); err != nil {
			klog.Warningf("ignoring decay location %q: %v", f, err)
			continue
		}
		locs = append(locs, v)
	}
	return locs
}
