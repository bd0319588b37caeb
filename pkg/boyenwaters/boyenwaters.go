// Package boyenwaters implements the IND-sID-CPA secure anonymous
// identity-based encryption scheme of Boyen and Waters, from "Anonymous
// Hierarchical Identity-Based Encryption (Without Random Oracles)"
// (CRYPTO 2006).
//
// Its distinguishing property is anonymity: a ciphertext does not reveal
// the identity it was encrypted for. Security is selective-identity.
// Extraction needs the master public key.
package boyenwaters

import (
	"io"

	bls "github.com/cloudflare/circl/ecc/bls12381"

	"github.com/ibecrypt/ibe"
	"github.com/ibecrypt/ibe/internal"
)

// CoinBytes is the amount of encryption randomness: three wide scalars.
const CoinBytes = 192

// Serialized sizes of the scheme artifacts.
const (
	MsgBytes = internal.GtBytes
	PkBytes  = internal.GtBytes + 6*internal.G1Bytes + 2*internal.G2Bytes
	SkBytes  = 5 * internal.ScalarBytes
	UskBytes = 5 * internal.G2Bytes
	CtBytes  = 5*internal.G1Bytes + internal.GtBytes
)

// PublicKey is the master public key, needed for encryption and
// extraction.
type PublicKey struct {
	omega          bls.Gt
	g0, g1         bls.G1
	h0, h1         bls.G2
	v1, v2, v3, v4 bls.G1
}

// SecretKey is the master secret key.
type SecretKey struct {
	alpha          bls.Scalar
	t1, t2, t3, t4 bls.Scalar
}

// UserSecretKey decrypts ciphertexts addressed to one identity.
type UserSecretKey struct {
	d [5]bls.G2
}

// Ciphertext is an encrypted message. It does not reveal the identity it
// was produced for.
type Ciphertext struct {
	c      [5]bls.G1
	cprime bls.Gt
}

// Message is a plaintext, an element of the pairing target group.
type Message struct {
	m bls.Gt
}

// Setup generates a master key pair for the private key generator.
func Setup(rng io.Reader) (*PublicKey, *SecretKey, error) {
	pk := new(PublicKey)
	sk := new(SecretKey)

	var z0, z1 bls.Scalar
	for _, s := range []*bls.Scalar{&z0, &z1, &sk.alpha, &sk.t1, &sk.t2, &sk.t3, &sk.t4} {
		if err := s.Random(rng); err != nil {
			return nil, nil, err
		}
	}

	g := bls.G1Generator()
	h := bls.G2Generator()

	pk.g0.ScalarMult(&z0, g)
	pk.g1.ScalarMult(&z1, g)
	pk.h0.ScalarMult(&z0, h)
	pk.h1.ScalarMult(&z1, h)

	var t12a bls.Scalar
	t12a.Mul(&sk.t1, &sk.t2)
	t12a.Mul(&t12a, &sk.alpha)
	e := bls.Pair(g, h)
	pk.omega.Exp(e, &t12a)

	pk.v1.ScalarMult(&sk.t1, g)
	pk.v2.ScalarMult(&sk.t2, g)
	pk.v3.ScalarMult(&sk.t3, g)
	pk.v4.ScalarMult(&sk.t4, g)

	return pk, sk, nil
}

// ExtractUSK derives the user secret key for an identity. The master
// public key is required; passing nil panics.
func ExtractUSK(pk *PublicKey, sk *SecretKey, id *ibe.Identity, rng io.Reader) (*UserSecretKey, error) {
	if pk == nil {
		panic("boyenwaters: ExtractUSK requires the master public key")
	}

	r1, err := internal.RandScalar(rng)
	if err != nil {
		return nil, err
	}
	r2, err := internal.RandScalar(rng)
	if err != nil {
		return nil, err
	}

	// x = h0 + id * h1
	var x bls.G2
	x.ScalarMult(id.Scalar(), &pk.h1)
	x.Add(&x, &pk.h0)

	h := bls.G2Generator()
	usk := new(UserSecretKey)

	var u, v bls.Scalar
	var t bls.G2

	// d0 = h^(r1 t1 t2 + r2 t3 t4)
	u.Mul(r1, &sk.t1)
	u.Mul(&u, &sk.t2)
	v.Mul(r2, &sk.t3)
	v.Mul(&v, &sk.t4)
	u.Add(&u, &v)
	usk.d[0].ScalarMult(&u, h)

	// d1 = h^(-alpha t2) + x^(-r1 t2), d2 likewise with t1
	u.Mul(&sk.alpha, &sk.t2)
	u.Neg()
	usk.d[1].ScalarMult(&u, h)
	v.Mul(r1, &sk.t2)
	v.Neg()
	t.ScalarMult(&v, &x)
	usk.d[1].Add(&usk.d[1], &t)

	u.Mul(&sk.alpha, &sk.t1)
	u.Neg()
	usk.d[2].ScalarMult(&u, h)
	v.Mul(r1, &sk.t1)
	v.Neg()
	t.ScalarMult(&v, &x)
	usk.d[2].Add(&usk.d[2], &t)

	// d3 = x^(-r2 t4), d4 = x^(-r2 t3)
	u.Mul(r2, &sk.t4)
	u.Neg()
	usk.d[3].ScalarMult(&u, &x)

	u.Mul(r2, &sk.t3)
	u.Neg()
	usk.d[4].ScalarMult(&u, &x)

	return usk, nil
}

// Encrypt encrypts a message for an identity. The coins split into three
// wide scalars and fully determine the ciphertext; use EncryptRand unless
// determinism is required.
func Encrypt(pk *PublicKey, id *ibe.Identity, msg *Message, coins *[CoinBytes]byte) *Ciphertext {
	s := internal.ScalarFromWide([64]byte(coins[0:64]))
	s1 := internal.ScalarFromWide([64]byte(coins[64:128]))
	s2 := internal.ScalarFromWide([64]byte(coins[128:192]))

	ct := new(Ciphertext)

	ct.cprime.Exp(&pk.omega, s)
	ct.cprime.Mul(&ct.cprime, &msg.m)

	// c0 = (g0 + id * g1)^s
	var base bls.G1
	base.ScalarMult(id.Scalar(), &pk.g1)
	base.Add(&base, &pk.g0)
	ct.c[0].ScalarMult(s, &base)

	var d bls.Scalar
	d.Sub(s, s1)
	ct.c[1].ScalarMult(&d, &pk.v1)
	ct.c[2].ScalarMult(s1, &pk.v2)

	d.Sub(s, s2)
	ct.c[3].ScalarMult(&d, &pk.v3)
	ct.c[4].ScalarMult(s2, &pk.v4)

	return ct
}

// EncryptRand encrypts a message for an identity with coins drawn from rng.
func EncryptRand(pk *PublicKey, id *ibe.Identity, msg *Message, rng io.Reader) (*Ciphertext, error) {
	var coins [CoinBytes]byte
	if _, err := io.ReadFull(rng, coins[:]); err != nil {
		return nil, err
	}
	return Encrypt(pk, id, msg, &coins), nil
}

// Decrypt recovers the message from a ciphertext. Decryption cannot fail;
// a ciphertext for a different identity yields an unrelated message.
func Decrypt(usk *UserSecretKey, ct *Ciphertext) *Message {
	one := internal.One()
	blind := bls.ProdPair(
		[]*bls.G1{&ct.c[0], &ct.c[1], &ct.c[2], &ct.c[3], &ct.c[4]},
		[]*bls.G2{&usk.d[0], &usk.d[1], &usk.d[2], &usk.d[3], &usk.d[4]},
		[]*bls.Scalar{one, one, one, one, one},
	)

	msg := new(Message)
	msg.m.Mul(&ct.cprime, blind)
	return msg
}

// RandomMessage draws a uniformly random plaintext.
func RandomMessage(rng io.Reader) (*Message, error) {
	e, err := internal.RandGt(rng)
	if err != nil {
		return nil, err
	}
	return &Message{m: *e}, nil
}

// Equal reports whether two messages are the same group element.
func (msg *Message) Equal(other *Message) bool {
	return msg.m.IsEqual(&other.m)
}

// Bytes serializes the message (MsgBytes bytes).
func (msg *Message) Bytes() []byte {
	return internal.GtToBytes(&msg.m)
}

// UnmarshalBinary parses a message from data.
func (msg *Message) UnmarshalBinary(data []byte) error {
	if len(data) != MsgBytes {
		return ibe.ErrDeserialization
	}
	if err := msg.m.UnmarshalBinary(data); err != nil {
		return ibe.ErrDeserialization
	}
	return nil
}

// Bytes serializes the public key (PkBytes bytes).
func (pk *PublicKey) Bytes() []byte {
	out := make([]byte, 0, PkBytes)
	out = append(out, internal.GtToBytes(&pk.omega)...)
	out = append(out, pk.g0.BytesCompressed()...)
	out = append(out, pk.g1.BytesCompressed()...)
	out = append(out, pk.h0.BytesCompressed()...)
	out = append(out, pk.h1.BytesCompressed()...)
	out = append(out, pk.v1.BytesCompressed()...)
	out = append(out, pk.v2.BytesCompressed()...)
	out = append(out, pk.v3.BytesCompressed()...)
	return append(out, pk.v4.BytesCompressed()...)
}

// UnmarshalBinary parses a public key from data.
func (pk *PublicKey) UnmarshalBinary(data []byte) error {
	if len(data) != PkBytes {
		return ibe.ErrDeserialization
	}

	ok := pk.omega.UnmarshalBinary(data[:internal.GtBytes]) == nil
	off := internal.GtBytes
	ok = pk.g0.SetBytes(data[off:off+internal.G1Bytes]) == nil && ok
	off += internal.G1Bytes
	ok = pk.g1.SetBytes(data[off:off+internal.G1Bytes]) == nil && ok
	off += internal.G1Bytes
	ok = pk.h0.SetBytes(data[off:off+internal.G2Bytes]) == nil && ok
	off += internal.G2Bytes
	ok = pk.h1.SetBytes(data[off:off+internal.G2Bytes]) == nil && ok
	off += internal.G2Bytes
	for _, p := range []*bls.G1{&pk.v1, &pk.v2, &pk.v3, &pk.v4} {
		ok = p.SetBytes(data[off:off+internal.G1Bytes]) == nil && ok
		off += internal.G1Bytes
	}

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}

// Bytes serializes the secret key (SkBytes bytes).
func (sk *SecretKey) Bytes() []byte {
	out := make([]byte, 0, SkBytes)
	for _, s := range []*bls.Scalar{&sk.alpha, &sk.t1, &sk.t2, &sk.t3, &sk.t4} {
		out = append(out, internal.ScalarToBytes(s)...)
	}
	return out
}

// UnmarshalBinary parses a secret key from data. All five scalars are
// processed regardless of earlier failures.
func (sk *SecretKey) UnmarshalBinary(data []byte) error {
	if len(data) != SkBytes {
		return ibe.ErrDeserialization
	}

	ok := true
	off := 0
	for _, s := range []*bls.Scalar{&sk.alpha, &sk.t1, &sk.t2, &sk.t3, &sk.t4} {
		ok = s.UnmarshalBinary(data[off:off+internal.ScalarBytes]) == nil && ok
		off += internal.ScalarBytes
	}

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}

// Bytes serializes the user secret key (UskBytes bytes).
func (usk *UserSecretKey) Bytes() []byte {
	out := make([]byte, 0, UskBytes)
	for i := range usk.d {
		out = append(out, usk.d[i].BytesCompressed()...)
	}
	return out
}

// UnmarshalBinary parses a user secret key from data. All five points are
// processed regardless of earlier failures.
func (usk *UserSecretKey) UnmarshalBinary(data []byte) error {
	if len(data) != UskBytes {
		return ibe.ErrDeserialization
	}

	ok := true
	off := 0
	for i := range usk.d {
		ok = usk.d[i].SetBytes(data[off:off+internal.G2Bytes]) == nil && ok
		off += internal.G2Bytes
	}

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}

// Bytes serializes the ciphertext (CtBytes bytes).
func (ct *Ciphertext) Bytes() []byte {
	out := make([]byte, 0, CtBytes)
	for i := range ct.c {
		out = append(out, ct.c[i].BytesCompressed()...)
	}
	return append(out, internal.GtToBytes(&ct.cprime)...)
}

// UnmarshalBinary parses a ciphertext from data.
func (ct *Ciphertext) UnmarshalBinary(data []byte) error {
	if len(data) != CtBytes {
		return ibe.ErrDeserialization
	}

	ok := true
	off := 0
	for i := range ct.c {
		ok = ct.c[i].SetBytes(data[off:off+internal.G1Bytes]) == nil && ok
		off += internal.G1Bytes
	}
	ok = ct.cprime.UnmarshalBinary(data[off:]) == nil && ok

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}
