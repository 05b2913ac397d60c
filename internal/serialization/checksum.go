package serialization

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// ComputeChecksum returns the hex SHA-256 of every parameter value of m, in
// layer and parameter order. Repeated references to a shared parameter are
// hashed once, at their first occurrence.
func ComputeChecksum(m *Model) string {
	h := sha256.New()
	var buf [4]byte
	for _, l := range m.Layers {
		for _, p := range l.Params {
			for _, v := range p.Data {
				binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
				h.Write(buf[:])
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateChecksum compares the checksum of m against the stored one.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(m *Model) error {
	if m.Checksum != "" && ComputeChecksum(m) != m.Checksum {
		return ErrChecksumMismatch
	}
	return nil
}
