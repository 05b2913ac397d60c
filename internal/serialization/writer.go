package serialization

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
)

// WriteOptions controls how a model is written.
type WriteOptions struct {
	Encoding Encoding // Parameter encoding; EncodingFloat32 when empty.
	Indent   bool     // Pretty-print the JSON document.
}

// Write validates m and writes it to w. The stored checksum covers the values
// as they will read back, so float16 files hash the rounded values.
//
// m itself is not modified.
func Write(w io.Writer, m *Model, opts WriteOptions) error {
	if err := ValidateModel(m); err != nil {
		return err
	}
	out := *m
	out.FormatVersion = FormatVersion
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}

	out.Layers = make([]Layer, len(m.Layers))
	for i, l := range m.Layers {
		l.Params = append([]Param(nil), l.Params...)
		if opts.Encoding == EncodingFloat16 {
			for n := range l.Params {
				if len(l.Params[n].Data) > 0 {
					l.Params[n].Data = roundHalf(l.Params[n].Data)
				}
			}
		}
		out.Layers[i] = l
	}
	out.Checksum = ComputeChecksum(&out)

	switch opts.Encoding {
	case "", EncodingFloat32:
	case EncodingFloat16:
		for _, l := range out.Layers {
			for n, p := range l.Params {
				if len(p.Data) > 0 {
					l.Params[n].DataF16 = encodeHalf(p.Data)
					l.Params[n].Data = nil
				}
			}
		}
	default:
		return errors.Errorf("unknown encoding %q", opts.Encoding)
	}

	enc := json.NewEncoder(w)
	if opts.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(&out); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// WriteFile writes m to path, replacing any existing file.
func WriteFile(path string, m *Model, opts WriteOptions) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	if err := Write(f, m, opts); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "failed to close file")
}
