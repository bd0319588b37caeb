package internal

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// SeededReader implements the io.Reader interface and generates deterministic random data
// based on a fixed seed. Tests use it to pin down setup, extraction and
// encapsulation coins.
type SeededReader struct {
	shake sha3.ShakeHash
}

// NewSeededReader creates a new SeededReader with a fixed seed.
func NewSeededReader(seed int64) *SeededReader {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(seed))
	shake := sha3.NewShake256()
	shake.Write(buf[:])
	return &SeededReader{shake: shake}
}

// Read fills p with the next bytes of the seed-derived stream.
func (sr *SeededReader) Read(p []byte) (int, error) {
	return sr.shake.Read(p)
}
