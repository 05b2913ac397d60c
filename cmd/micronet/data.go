package main

import (
	"encoding/binary"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/VectorFist/MicroNet/net"
)

const (
	idxImagesMagic = 2051
	idxLabelsMagic = 2049
)

// loadMNIST reads the unpacked IDX files of the MNIST training or test set
// from dir. Pixels are scaled to [0, 1]. limit caps the samples read when
// positive.
func loadMNIST(dir string, train bool, limit int) (map[string][][]float32, int, int, error) {
	prefix := "t10k"
	if train {
		prefix = "train"
	}
	images, rows, cols, err := readIDXImages(filepath.Join(dir, prefix+"-images-idx3-ubyte"))
	if err != nil {
		return nil, 0, 0, err
	}
	labels, err := readIDXLabels(filepath.Join(dir, prefix+"-labels-idx1-ubyte"))
	if err != nil {
		return nil, 0, 0, err
	}
	if len(images) != len(labels) {
		return nil, 0, 0, errors.Errorf("mnist: %d images but %d labels", len(images), len(labels))
	}
	if limit > 0 && limit < len(images) {
		images, labels = images[:limit], labels[:limit]
	}

	data := map[string][][]float32{
		net.KeyImg:   make([][]float32, len(images)),
		net.KeyLabel: make([][]float32, len(labels)),
	}
	for i, img := range images {
		row := make([]float32, len(img))
		for j, px := range img {
			row[j] = float32(px) / 255
		}
		data[net.KeyImg][i] = row
		data[net.KeyLabel][i] = []float32{float32(labels[i])}
	}
	return data, rows, cols, nil
}

// readIDXImages reads an IDX image file: a big-endian header of magic 2051,
// image count, rows and columns, followed by one unsigned byte per pixel.
func readIDXImages(path string) (images [][]byte, rows, cols int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer func() { _ = f.Close() }()

	var header [4]uint32
	if err := binary.Read(f, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, errors.Wrapf(err, "%s: read header", path)
	}
	if header[0] != idxImagesMagic {
		return nil, 0, 0, errors.Errorf("%s: invalid magic number %d, want %d", path, header[0], idxImagesMagic)
	}
	rows, cols = int(header[2]), int(header[3])
	images = make([][]byte, header[1])
	for i := range images {
		images[i] = make([]byte, rows*cols)
		if _, err := io.ReadFull(f, images[i]); err != nil {
			return nil, 0, 0, errors.Wrapf(err, "%s: read image %d", path, i)
		}
	}
	return images, rows, cols, nil
}

// readIDXLabels reads an IDX label file: magic 2049, label count, then one
// byte per label.
func readIDXLabels(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var header [2]uint32
	if err := binary.Read(f, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrapf(err, "%s: read header", path)
	}
	if header[0] != idxLabelsMagic {
		return nil, errors.Errorf("%s: invalid magic number %d, want %d", path, header[0], idxLabelsMagic)
	}
	labels := make([]byte, header[1])
	if _, err := io.ReadFull(f, labels); err != nil {
		return nil, errors.Wrapf(err, "%s: read labels", path)
	}
	return labels, nil
}

// syntheticClasses is the number of stroke patterns drawn by synthetic.
const syntheticClasses = 4

// synthetic draws n single-channel size x size images of noisy strokes:
// a horizontal bar, a vertical bar, the diagonal or the anti-diagonal, at a
// random offset.
func synthetic(n, size int, rng *rand.Rand) map[string][][]float32 {
	data := map[string][][]float32{
		net.KeyImg:   make([][]float32, n),
		net.KeyLabel: make([][]float32, n),
	}
	for i := range n {
		class := rng.IntN(syntheticClasses)
		img := make([]float32, size*size)
		for j := range img {
			img[j] = 0.2 * rng.Float32()
		}
		at := rng.IntN(size)
		for k := range size {
			var y, x int
			switch class {
			case 0:
				y, x = at, k
			case 1:
				y, x = k, at
			case 2:
				y, x = k, k
			default:
				y, x = k, size-1-k
			}
			img[y*size+x] = 0.8 + 0.2*rng.Float32()
		}
		data[net.KeyImg][i] = img
		data[net.KeyLabel][i] = []float32{float32(class)}
	}
	return data
}

// split moves the last fraction of data into a second dataset.
func split(data map[string][][]float32, fraction float64) (train, val map[string][][]float32) {
	train, val = map[string][][]float32{}, map[string][][]float32{}
	for k, rows := range data {
		cut := len(rows) - int(float64(len(rows))*fraction)
		train[k], val[k] = rows[:cut], rows[cut:]
	}
	return train, val
}
