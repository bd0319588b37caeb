// Package kv1 implements the first IND-ID-CCA2 secure identity-based KEM
// of Kiltz and Vahlis, from "CCA2 Secure IBE: Standard Model Efficiency
// through Authenticated Symmetric Encryption" (CT-RSA 2008).
//
// Identities are hashed onto the curve bit by bit against a vector of 512
// public hash parameters, which makes the master public key large (about
// 25 KiB) while keeping ciphertexts and user secret keys small. CCA
// security comes from binding a hash of the first ciphertext component
// into the second, so rejection is implicit and decapsulation never
// fails. Extraction needs the master public key.
package kv1

import (
	"io"

	bls "github.com/cloudflare/circl/ecc/bls12381"

	"github.com/ibecrypt/ibe"
	"github.com/ibecrypt/ibe/internal"
	"github.com/ibecrypt/ibe/pkg/mkem"
)

// hashParams is the number of identity bits, one G1 parameter each.
const hashParams = 8 * ibe.IdentityBytes

// Serialized sizes of the scheme artifacts.
const (
	PkBytes  = internal.G2Bytes + (hashParams+2)*internal.G1Bytes + internal.GtBytes
	SkBytes  = internal.G1Bytes
	UskBytes = 2*internal.G1Bytes + internal.G2Bytes
	CtBytes  = internal.G2Bytes + internal.G1Bytes
)

// PublicKey is the master public key. Both encapsulation and extraction
// need it.
type PublicKey struct {
	g     bls.G2
	hzero bls.G1
	h     [hashParams]bls.G1
	u     bls.G1
	z     bls.Gt
}

// SecretKey is the master secret key, a single blinded G1 point.
type SecretKey struct {
	alpha bls.G1
}

// UserSecretKey decapsulates ciphertexts addressed to one identity.
type UserSecretKey struct {
	d1 bls.G1
	d2 bls.G2
	d3 bls.G1
}

// Ciphertext is an encapsulation of a shared secret.
type Ciphertext struct {
	c1 bls.G2
	c2 bls.G1
}

// hashToCurve folds the identity bits into the hash parameters. The
// accumulation multiplies each parameter by the bit value instead of
// branching on it, so the operation sequence is identity independent.
func hashToCurve(pk *PublicKey, id *ibe.Identity) *bls.G1 {
	acc := new(bls.G1)
	*acc = pk.hzero

	bits := internal.BitScalars(id[:])
	var t bls.G1
	for i := range bits {
		t.ScalarMult(&bits[i], &pk.h[i])
		acc.Add(acc, &t)
	}
	return acc
}

// Setup generates a master key pair for the private key generator.
func Setup(rng io.Reader) (*PublicKey, *SecretKey, error) {
	pk := new(PublicKey)
	sk := new(SecretKey)

	g, err := internal.RandG2(rng)
	if err != nil {
		return nil, nil, err
	}
	pk.g = *g

	alpha, err := internal.RandG1(rng)
	if err != nil {
		return nil, nil, err
	}
	sk.alpha = *alpha

	u, err := internal.RandG1(rng)
	if err != nil {
		return nil, nil, err
	}
	pk.u = *u

	pk.z = *bls.Pair(&sk.alpha, &pk.g)

	// The zeroth hash parameter is the identity element. It takes part in
	// the curve hash and the serialized key all the same.
	pk.hzero.SetIdentity()
	for i := range pk.h {
		h, err := internal.RandG1(rng)
		if err != nil {
			return nil, nil, err
		}
		pk.h[i] = *h
	}

	return pk, sk, nil
}

// ExtractUSK derives the user secret key for an identity. The master
// public key is required; passing nil panics.
func ExtractUSK(pk *PublicKey, sk *SecretKey, id *ibe.Identity, rng io.Reader) (*UserSecretKey, error) {
	if pk == nil {
		panic("kv1: ExtractUSK requires the master public key")
	}

	s, err := internal.RandScalar(rng)
	if err != nil {
		return nil, err
	}

	usk := new(UserSecretKey)

	usk.d1.ScalarMult(s, hashToCurve(pk, id))
	usk.d1.Add(&usk.d1, &sk.alpha)

	negS := *s
	negS.Neg()
	usk.d2.ScalarMult(&negS, &pk.g)

	usk.d3.ScalarMult(s, &pk.u)

	return usk, nil
}

// Encaps encapsulates a fresh shared secret for an identity.
func Encaps(pk *PublicKey, id *ibe.Identity, rng io.Reader) (*Ciphertext, ibe.SharedSecret, error) {
	r, err := internal.RandScalar(rng)
	if err != nil {
		return nil, ibe.SharedSecret{}, err
	}

	var k bls.Gt
	k.Exp(&pk.z, r)

	ct := new(Ciphertext)
	ct.c1.ScalarMult(r, &pk.g)

	t := internal.HashG2ToScalar(&ct.c1)
	var base bls.G1
	base.ScalarMult(t, &pk.u)
	base.Add(&base, hashToCurve(pk, id))
	ct.c2.ScalarMult(r, &base)

	return ct, ibe.SharedSecretFromGt(&k), nil
}

// Decaps derives the shared secret from a ciphertext. Rejection is
// implicit: a ciphertext that was not produced for this user secret key
// yields an unrelated secret rather than an error.
func Decaps(usk *UserSecretKey, ct *Ciphertext) ibe.SharedSecret {
	t := internal.HashG2ToScalar(&ct.c1)

	var x bls.G1
	x.ScalarMult(t, &usk.d3)
	x.Add(&x, &usk.d1)

	one := internal.One()
	k := bls.ProdPair(
		[]*bls.G1{&x, &ct.c2},
		[]*bls.G2{&ct.c1, &usk.d2},
		[]*bls.Scalar{one, one},
	)

	return ibe.SharedSecretFromGt(k)
}

// MultiEncaps encapsulates one session secret for many identities using
// sealed multi-recipient ciphertexts.
func MultiEncaps(pk *PublicKey, ids []ibe.Identity, rng io.Reader) (*mkem.Encapsulator[*Ciphertext], ibe.SharedSecret, error) {
	return mkem.NewEncapsulator(rng, ids, func(id *ibe.Identity, rng io.Reader) (*Ciphertext, ibe.SharedSecret, error) {
		return Encaps(pk, id, rng)
	})
}

// MultiDecaps recovers the session secret from a sealed multi-recipient
// ciphertext.
func MultiDecaps(usk *UserSecretKey, ct *mkem.Ciphertext[*Ciphertext]) (ibe.SharedSecret, error) {
	kek := Decaps(usk, ct.KEM)
	return mkem.Open(&kek, ct)
}

// MultiEncapsMasked is MultiEncaps with masked instead of sealed
// per-recipient ciphertexts.
func MultiEncapsMasked(pk *PublicKey, ids []ibe.Identity, rng io.Reader) (*mkem.MaskedEncapsulator[*Ciphertext], ibe.SharedSecret, error) {
	return mkem.NewMaskedEncapsulator(rng, ids, func(id *ibe.Identity, rng io.Reader) (*Ciphertext, ibe.SharedSecret, error) {
		return Encaps(pk, id, rng)
	})
}

// MultiDecapsMasked recovers the session secret from a masked
// multi-recipient ciphertext. There is no authentication; a ciphertext for
// another identity unmasks to an unrelated value.
func MultiDecapsMasked(usk *UserSecretKey, ct *mkem.MaskedCiphertext[*Ciphertext]) ibe.SharedSecret {
	ssi := Decaps(usk, ct.KEM)
	return mkem.OpenMasked(&ssi, ct)
}

// Bytes serializes the public key (PkBytes bytes).
func (pk *PublicKey) Bytes() []byte {
	out := make([]byte, 0, PkBytes)
	out = append(out, pk.g.BytesCompressed()...)
	out = append(out, pk.hzero.BytesCompressed()...)
	for i := range pk.h {
		out = append(out, pk.h[i].BytesCompressed()...)
	}
	out = append(out, pk.u.BytesCompressed()...)
	return append(out, internal.GtToBytes(&pk.z)...)
}

// UnmarshalBinary parses a public key from data.
func (pk *PublicKey) UnmarshalBinary(data []byte) error {
	if len(data) != PkBytes {
		return ibe.ErrDeserialization
	}

	ok := true
	off := internal.G2Bytes
	ok = pk.g.SetBytes(data[:off]) == nil && ok
	ok = pk.hzero.SetBytes(data[off:off+internal.G1Bytes]) == nil && ok
	off += internal.G1Bytes
	for i := range pk.h {
		ok = pk.h[i].SetBytes(data[off:off+internal.G1Bytes]) == nil && ok
		off += internal.G1Bytes
	}
	ok = pk.u.SetBytes(data[off:off+internal.G1Bytes]) == nil && ok
	off += internal.G1Bytes
	ok = pk.z.UnmarshalBinary(data[off:]) == nil && ok

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}

// Bytes serializes the secret key (SkBytes bytes).
func (sk *SecretKey) Bytes() []byte {
	return sk.alpha.BytesCompressed()
}

// UnmarshalBinary parses a secret key from data.
func (sk *SecretKey) UnmarshalBinary(data []byte) error {
	if len(data) != SkBytes {
		return ibe.ErrDeserialization
	}
	if err := sk.alpha.SetBytes(data); err != nil {
		return ibe.ErrDeserialization
	}
	return nil
}

// Bytes serializes the user secret key (UskBytes bytes).
func (usk *UserSecretKey) Bytes() []byte {
	out := make([]byte, 0, UskBytes)
	out = append(out, usk.d1.BytesCompressed()...)
	out = append(out, usk.d2.BytesCompressed()...)
	return append(out, usk.d3.BytesCompressed()...)
}

// UnmarshalBinary parses a user secret key from data. All three points
// are processed regardless of earlier failures.
func (usk *UserSecretKey) UnmarshalBinary(data []byte) error {
	if len(data) != UskBytes {
		return ibe.ErrDeserialization
	}

	ok := usk.d1.SetBytes(data[:internal.G1Bytes]) == nil
	off := internal.G1Bytes
	ok = usk.d2.SetBytes(data[off:off+internal.G2Bytes]) == nil && ok
	off += internal.G2Bytes
	ok = usk.d3.SetBytes(data[off:]) == nil && ok

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}

// Bytes serializes the ciphertext (CtBytes bytes).
func (ct *Ciphertext) Bytes() []byte {
	out := make([]byte, 0, CtBytes)
	out = append(out, ct.c1.BytesCompressed()...)
	return append(out, ct.c2.BytesCompressed()...)
}

// UnmarshalBinary parses a ciphertext from data.
func (ct *Ciphertext) UnmarshalBinary(data []byte) error {
	if len(data) != CtBytes {
		return ibe.ErrDeserialization
	}

	ok := ct.c1.SetBytes(data[:internal.G2Bytes]) == nil
	ok = ct.c2.SetBytes(data[internal.G2Bytes:]) == nil && ok

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}
