package serialization

import (
	"time"
)

// FormatVersion is the version written by this package.
const FormatVersion = 1

// Encoding selects how parameter values are written.
type Encoding string

// Parameter encodings.
const (
	EncodingFloat32 Encoding = "float32" // JSON number arrays (default)
	EncodingFloat16 Encoding = "float16" // base64 half floats, lossy
)

// Model is the persisted form of a graph and its optimizer.
type Model struct {
	FormatVersion int            `json:"format_version"`
	Name          string         `json:"name,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	Layers        []Layer        `json:"layers"`
	Tensors       []Tensor       `json:"tensors"`
	Order         []int          `json:"order"`
	Inputs        []int          `json:"inputs"`
	KeyChunks     map[string]int `json:"key_chunks,omitempty"`
	Optimizer     *Optimizer     `json:"optimizer,omitempty"`
	Iteration     int            `json:"iteration"`
	Checksum      string         `json:"checksum,omitempty"`
}

// Layer is the persisted form of one layer.
type Layer struct {
	Name     string             `json:"name"`
	Type     string             `json:"type"`
	StrHps   map[string]string  `json:"str_hps"`
	FltHps   map[string]float32 `json:"flt_hps"`
	IntHps   map[string]int     `json:"int_hps"`
	Params   []Param            `json:"params"`
	Inputs   []int              `json:"inputs"`
	Outputs  []int              `json:"outputs"`
	ToLayers []int              `json:"to_layers"`
}

// Param is the persisted form of a parameter tensor. Data is empty for
// repeated references to a shared parameter.
type Param struct {
	ID        string    `json:"id"`
	Shape     [4]int    `json:"shape"`
	Trainable bool      `json:"trainable"`
	Data      []float32 `json:"data,omitempty"`
	DataF16   string    `json:"data_f16,omitempty"`
}

// Tensor is the persisted form of a graph tensor (values are not kept).
type Tensor struct {
	Shape [4]int `json:"shape"`
}

// Optimizer is the persisted optimizer configuration.
type Optimizer struct {
	Type      string             `json:"type"`
	BaseRate  float32            `json:"base_rate"`
	DecayLocs []float32          `json:"decay_locs"`
	Hps       map[string]float32 `json:"hps"`
}

func count(shape [4]int) int {
	return shape[0] * shape[1] * shape[2] * shape[3]
}
