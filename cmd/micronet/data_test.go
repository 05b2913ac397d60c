package main

import (
	"bytes"
	"encoding/binary"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VectorFist/MicroNet/net"
)

func writeIDX(t *testing.T, path string, header []uint32, body []byte) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, header))
	buf.Write(body)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestLoadMNIST(t *testing.T) {
	dir := t.TempDir()
	writeIDX(t, filepath.Join(dir, "train-images-idx3-ubyte"), []uint32{idxImagesMagic, 3, 2, 2},
		[]byte{0, 255, 0, 0, 51, 0, 0, 0, 0, 0, 0, 255})
	writeIDX(t, filepath.Join(dir, "train-labels-idx1-ubyte"), []uint32{idxLabelsMagic, 3}, []byte{7, 1, 9})

	data, h, w, err := loadMNIST(dir, true, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, h)
	assert.Equal(t, 2, w)
	assert.Equal(t, [][]float32{{0, 1, 0, 0}, {0.2, 0, 0, 0}}, data[net.KeyImg])
	assert.Equal(t, [][]float32{{7}, {1}}, data[net.KeyLabel])

	_, _, _, err = loadMNIST(dir, false, 0)
	assert.Error(t, err)
}

func TestReadIDX_BadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels")
	writeIDX(t, path, []uint32{idxImagesMagic, 1}, []byte{1})
	_, err := readIDXLabels(path)
	assert.ErrorContains(t, err, "invalid magic number")
}

func TestSynthetic(t *testing.T) {
	data := synthetic(40, 6, rand.New(rand.NewPCG(1, 2)))
	require.Len(t, data[net.KeyImg], 40)
	for i, img := range data[net.KeyImg] {
		require.Len(t, img, 36)
		class := data[net.KeyLabel][i][0]
		assert.GreaterOrEqual(t, class, float32(0))
		assert.Less(t, class, float32(syntheticClasses))
		bright := 0
		for _, v := range img {
			if v >= 0.8 {
				bright++
			}
		}
		assert.Equal(t, 6, bright, "one stroke of six pixels")
	}

	train, val := split(data, 0.25)
	assert.Len(t, train[net.KeyImg], 30)
	assert.Len(t, val[net.KeyLabel], 10)
}
