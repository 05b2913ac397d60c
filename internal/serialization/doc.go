// Package serialization reads and writes MicroNet model records.
//
// A model file is a single JSON document:
//
//	{
//	  "format_version": 1,
//	  "layers":  [{"name", "type", "str_hps", "flt_hps", "int_hps",
//	               "params", "inputs", "outputs", "to_layers"}, ...],
//	  "tensors": [{"shape"}, ...],
//	  "order":   [layer indices in forward order],
//	  "inputs":  [tensor indices],
//	  "key_chunks": {"img": 0, "loss": 7, ...},
//	  "optimizer": {"type", "base_rate", "decay_locs", "hps"},
//	  "checksum": "sha256 of every parameter value"
//	}
//
// Layer inputs and outputs are indices into "tensors". Parameters carry a
// UUID; a parameter shared by several layers appears once with data and is
// referenced by id elsewhere.
//
// Parameter values are stored as float32 arrays ("data") or, with
// EncodingFloat16, as base64 little-endian half floats ("data_f16").
//
// Example usage:
//
//	// Save
//	if err := serialization.WriteFile("mnist.json", model, serialization.WriteOptions{}); err != nil {
//	    klog.Fatal(err)
//	}
//
//	// Load
//	model, err := serialization.ReadFile("mnist.json")
package serialization
