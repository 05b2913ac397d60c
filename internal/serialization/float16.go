package serialization

import (
	"encoding/base64"
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// encodeHalf packs values as little-endian IEEE 754 half floats in base64.
func encodeHalf(values []float32) string {
	buf := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(buf[2*i:], float16.Fromfloat32(v).Bits())
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// decodeHalf reverses encodeHalf.
func decodeHalf(s string) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode data_f16")
	}
	if len(buf)%2 != 0 {
		return nil, errors.Errorf("data_f16 has odd length %d", len(buf))
	}
	values := make([]float32, len(buf)/2)
	for i := range values {
		values[i] = float16.Frombits(binary.LittleEndian.Uint16(buf[2*i:])).Float32()
	}
	return values, nil
}

// roundHalf returns values rounded through half precision.
func roundHalf(values []float32) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float16.Fromfloat32(v).Float32()
	}
	return out
}
