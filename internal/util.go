// Package internal holds algebra and hashing helpers shared by the scheme
// engines. Nothing in here is part of the public API.
package internal

import (
	"io"
	"math/big"

	bls "github.com/cloudflare/circl/ecc/bls12381"
	"golang.org/x/crypto/sha3"
)

// Compressed sizes of the serialized group elements and scalars.
const (
	G1Bytes     = 48
	G2Bytes     = 96
	GtBytes     = 576
	ScalarBytes = 32
)

// IDBytes is the size of the default identity buffer (a SHA3-512 digest).
const IDBytes = 64

var groupOrder = new(big.Int).SetBytes(bls.Order())

// ScalarFromWide reduces a 64-byte big-endian buffer modulo the group
// order. The double-width input keeps the modular bias negligible.
func ScalarFromWide(buf [64]byte) *bls.Scalar {
	v := new(big.Int).SetBytes(buf[:])
	v.Mod(v, groupOrder)

	var canonical [ScalarBytes]byte
	v.FillBytes(canonical[:])

	// canonical < order by construction
	s := new(bls.Scalar)
	s.SetBytes(canonical[:])
	return s
}

// RandScalar samples a uniformly random scalar.
func RandScalar(rng io.Reader) (*bls.Scalar, error) {
	s := new(bls.Scalar)
	if err := s.Random(rng); err != nil {
		return nil, err
	}
	return s, nil
}

// RandG1 samples a uniformly random G1 element.
func RandG1(rng io.Reader) (*bls.G1, error) {
	k, err := RandScalar(rng)
	if err != nil {
		return nil, err
	}
	p := new(bls.G1)
	p.ScalarMult(k, bls.G1Generator())
	return p, nil
}

// RandG2 samples a uniformly random G2 element.
func RandG2(rng io.Reader) (*bls.G2, error) {
	k, err := RandScalar(rng)
	if err != nil {
		return nil, err
	}
	p := new(bls.G2)
	p.ScalarMult(k, bls.G2Generator())
	return p, nil
}

// RandGt samples a uniformly random element of the pairing target subgroup,
// as e(g1, g2)^k for random k.
func RandGt(rng io.Reader) (*bls.Gt, error) {
	k, err := RandScalar(rng)
	if err != nil {
		return nil, err
	}
	e := bls.Pair(bls.G1Generator(), bls.G2Generator())
	e.Exp(e, k)
	return e, nil
}

// One returns the scalar 1. ProdPair wants explicit exponents even for
// plain multi-pairings.
func One() *bls.Scalar {
	s := new(bls.Scalar)
	s.SetOne()
	return s
}

// ScalarToBytes serializes a scalar in canonical big-endian form (32 bytes).
func ScalarToBytes(s *bls.Scalar) []byte {
	buf, err := s.MarshalBinary()
	if err != nil {
		panic("internal: scalar serialization: " + err.Error())
	}
	return buf
}

// GtToBytes serializes a target group element (576 bytes).
func GtToBytes(e *bls.Gt) []byte {
	buf, err := e.MarshalBinary()
	if err != nil {
		panic("internal: Gt serialization: " + err.Error())
	}
	return buf
}

// Sha3_256 hashes the concatenation of the given slices.
func Sha3_256(data ...[]byte) [32]byte {
	h := sha3.New256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// Sha3_512 hashes the concatenation of the given slices.
func Sha3_512(data ...[]byte) [64]byte {
	h := sha3.New512()
	for _, d := range data {
		h.Write(d)
	}
	var out [64]byte
	h.Sum(out[:0])
	return out
}

// RPCHash is the random-prefix collision resistant hash used by the
// authenticated-tag transform: SHA3-512 over a 32-byte random prefix and
// the uncompressed encodings of the given points, reduced to a scalar.
func RPCHash(prefix *[32]byte, points ...*bls.G1) *bls.Scalar {
	h := sha3.New512()
	h.Write(prefix[:])
	for _, p := range points {
		h.Write(p.Bytes())
	}

	var wide [64]byte
	h.Sum(wide[:0])
	return ScalarFromWide(wide)
}

// HashG2ToScalar maps a G2 element to a scalar via its uncompressed
// encoding, used for ciphertext-derived tags.
func HashG2ToScalar(p *bls.G2) *bls.Scalar {
	wide := Sha3_512(p.Bytes())
	return ScalarFromWide(wide)
}

// BitScalars expands a byte string into one {0,1}-valued scalar per bit,
// most significant bit of each byte first. Accumulating hash parameters by
// multiplying with these scalars keeps the instruction trace independent
// of the identity bits, where a branch per bit would not.
func BitScalars(buf []byte) []bls.Scalar {
	out := make([]bls.Scalar, 8*len(buf))
	for i, b := range buf {
		for j := 0; j < 8; j++ {
			out[8*i+j].SetUint64(uint64(b >> (7 - j) & 1))
		}
	}
	return out
}
