package serialization

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Read decodes a model from r, expanding half-precision parameters, and
// checks its version, checksum and indices.
func Read(r io.Reader) (*Model, error) {
	var m Model
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, errors.Wrap(err, "failed to decode model")
	}
	if m.FormatVersion != FormatVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", m.FormatVersion)
	}
	for _, l := range m.Layers {
		for n, p := range l.Params {
			if p.DataF16 == "" {
				continue
			}
			if len(p.Data) > 0 {
				return nil, &ValidationError{Type: "param_data", Layer: l.Name, Details: "both data and data_f16 set"}
			}
			data, err := decodeHalf(p.DataF16)
			if err != nil {
				return nil, errors.WithMessagef(err, "layer %q param %s", l.Name, p.ID)
			}
			l.Params[n].Data = data
			l.Params[n].DataF16 = ""
		}
	}
	if err := ValidateChecksum(&m); err != nil {
		return nil, err
	}
	if err := ValidateModel(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ReadFile reads a model from path.
func ReadFile(path string) (*Model, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}
