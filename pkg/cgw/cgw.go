// Package cgw implements the IND-ID-CPA secure identity-based encryption
// scheme by Chen, Gay and Wee, instantiated with their identity predicate
// encoding over BLS12-381.
//
// See "Improved Dual System ABE in Prime-Order Groups via Predicate
// Encodings" (EUROCRYPT 2015). The scheme encrypts messages that are
// elements of the pairing target group. It is passively secure only; for
// chosen-ciphertext security use the cgwkv or cgwfo packages, which build
// on this encoding.
package cgw

import (
	"io"

	bls "github.com/cloudflare/circl/ecc/bls12381"

	"github.com/ibecrypt/ibe"
	"github.com/ibecrypt/ibe/internal"
)

// Serialized sizes of the scheme artifacts.
const (
	MsgBytes = internal.GtBytes
	CtBytes  = 4*internal.G1Bytes + internal.GtBytes
	PkBytes  = 6*internal.G1Bytes + internal.GtBytes
	SkBytes  = 12 * internal.ScalarBytes
	UskBytes = 4 * internal.G2Bytes
)

// PublicKey is the master public key, used to encrypt messages.
type PublicKey struct {
	a1    [2]bls.G1
	w0ta1 [2]bls.G1
	w1ta1 [2]bls.G1
	ktat  bls.Gt
}

// SecretKey is the master secret key, used to extract user secret keys.
type SecretKey struct {
	b  [2]bls.Scalar
	k  [2]bls.Scalar
	w0 [2][2]bls.Scalar
	w1 [2][2]bls.Scalar
}

// UserSecretKey decrypts ciphertexts addressed to one identity.
type UserSecretKey struct {
	d0 [2]bls.G2
	d1 [2]bls.G2
}

// Ciphertext is an encrypted message.
type Ciphertext struct {
	c0     [2]bls.G1
	c1     [2]bls.G1
	cprime bls.Gt
}

// Message is a plaintext, an element of the pairing target group.
type Message struct {
	m bls.Gt
}

// Setup generates a master key pair for the private key generator.
func Setup(rng io.Reader) (*PublicKey, *SecretKey, error) {
	var a [2]bls.Scalar
	sk := new(SecretKey)

	for i := 0; i < 2; i++ {
		for _, s := range []*bls.Scalar{&a[i], &sk.b[i], &sk.k[i], &sk.w0[i][0], &sk.w0[i][1], &sk.w1[i][0], &sk.w1[i][1]} {
			if err := s.Random(rng); err != nil {
				return nil, nil, err
			}
		}
	}

	// W0^T a and W1^T a, the only form of the matrices the encryptor needs.
	var w0ta, w1ta [2]bls.Scalar
	var t bls.Scalar
	for j := 0; j < 2; j++ {
		w0ta[j].Mul(&sk.w0[0][j], &a[0])
		t.Mul(&sk.w0[1][j], &a[1])
		w0ta[j].Add(&w0ta[j], &t)

		w1ta[j].Mul(&sk.w1[0][j], &a[0])
		t.Mul(&sk.w1[1][j], &a[1])
		w1ta[j].Add(&w1ta[j], &t)
	}

	pk := new(PublicKey)
	g1 := bls.G1Generator()
	for i := 0; i < 2; i++ {
		pk.a1[i].ScalarMult(&a[i], g1)
		pk.w0ta1[i].ScalarMult(&w0ta[i], g1)
		pk.w1ta1[i].ScalarMult(&w1ta[i], g1)
	}

	// kta_t = e(g1, g2)^(k . a)
	var ka bls.Scalar
	ka.Mul(&sk.k[0], &a[0])
	t.Mul(&sk.k[1], &a[1])
	ka.Add(&ka, &t)
	e := bls.Pair(g1, bls.G2Generator())
	pk.ktat.Exp(e, &ka)

	return pk, sk, nil
}

// ExtractUSK derives the user secret key for an identity. Unlike some of
// the other schemes in this module, extraction needs only the master
// secret key.
func ExtractUSK(sk *SecretKey, id *ibe.Identity, rng io.Reader) (*UserSecretKey, error) {
	r, err := internal.RandScalar(rng)
	if err != nil {
		return nil, err
	}
	x := id.Scalar()

	var br [2]bls.Scalar
	br[0].Mul(&sk.b[0], r)
	br[1].Mul(&sk.b[1], r)

	usk := new(UserSecretKey)
	g2 := bls.G2Generator()
	usk.d0[0].ScalarMult(&br[0], g2)
	usk.d0[1].ScalarMult(&br[1], g2)

	// d1_j = -(k_j + br . w0_j + id * (br . w1_j))
	var acc, t bls.Scalar
	for j := 0; j < 2; j++ {
		acc.Mul(&br[0], &sk.w1[j][0])
		t.Mul(&br[1], &sk.w1[j][1])
		acc.Add(&acc, &t)
		acc.Mul(&acc, x)

		t.Mul(&br[0], &sk.w0[j][0])
		acc.Add(&acc, &t)
		t.Mul(&br[1], &sk.w0[j][1])
		acc.Add(&acc, &t)

		acc.Add(&acc, &sk.k[j])
		acc.Neg()
		usk.d1[j].ScalarMult(&acc, g2)
	}

	return usk, nil
}

// Encrypt encrypts a message for an identity. The 64-byte coins fully
// determine the ciphertext, which the Fujisaki-Okamoto transform depends
// on; use EncryptRand unless determinism is required.
func Encrypt(pk *PublicKey, id *ibe.Identity, msg *Message, coins *[64]byte) *Ciphertext {
	s := internal.ScalarFromWide(*coins)
	x := id.Scalar()

	var sx bls.Scalar
	sx.Mul(s, x)

	ct := new(Ciphertext)
	var t bls.G1
	for j := 0; j < 2; j++ {
		ct.c0[j].ScalarMult(s, &pk.a1[j])

		ct.c1[j].ScalarMult(s, &pk.w0ta1[j])
		t.ScalarMult(&sx, &pk.w1ta1[j])
		ct.c1[j].Add(&ct.c1[j], &t)
	}

	ct.cprime.Exp(&pk.ktat, s)
	ct.cprime.Mul(&ct.cprime, &msg.m)

	return ct
}

// EncryptRand encrypts a message for an identity with coins drawn from rng.
func EncryptRand(pk *PublicKey, id *ibe.Identity, msg *Message, rng io.Reader) (*Ciphertext, error) {
	var coins [64]byte
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
		[]*bls.G1{&ct.c0[0], &ct.c0[1], &ct.c1[0], &ct.c1[1]},
		[]*bls.G2{&usk.d1[0], &usk.d1[1], &usk.d0[0], &usk.d0[1]},
		[]*bls.Scalar{one, one, one, one},
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
	for i := 0; i < 2; i++ {
		out = append(out, pk.a1[i].BytesCompressed()...)
	}
	for i := 0; i < 2; i++ {
		out = append(out, pk.w0ta1[i].BytesCompressed()...)
	}
	for i := 0; i < 2; i++ {
		out = append(out, pk.w1ta1[i].BytesCompressed()...)
	}
	return append(out, internal.GtToBytes(&pk.ktat)...)
}

// UnmarshalBinary parses a public key from data. Even though a public key
// comes from the trusted authority, every point goes through the full
// subgroup-checked decoding; circl exposes no unchecked path.
func (pk *PublicKey) UnmarshalBinary(data []byte) error {
	if len(data) != PkBytes {
		return ibe.ErrDeserialization
	}

	ok := true
	off := 0
	next := func() []byte {
		chunk := data[off : off+internal.G1Bytes]
		off += internal.G1Bytes
		return chunk
	}
	for i := 0; i < 2; i++ {
		ok = pk.a1[i].SetBytes(next()) == nil && ok
	}
	for i := 0; i < 2; i++ {
		ok = pk.w0ta1[i].SetBytes(next()) == nil && ok
	}
	for i := 0; i < 2; i++ {
		ok = pk.w1ta1[i].SetBytes(next()) == nil && ok
	}
	ok = pk.ktat.UnmarshalBinary(data[off:]) == nil && ok

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}

// Bytes serializes the secret key (SkBytes bytes).
func (sk *SecretKey) Bytes() []byte {
	out := make([]byte, 0, SkBytes)
	for i := 0; i < 2; i++ {
		out = append(out, internal.ScalarToBytes(&sk.b[i])...)
	}
	for i := 0; i < 2; i++ {
		out = append(out, internal.ScalarToBytes(&sk.k[i])...)
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			out = append(out, internal.ScalarToBytes(&sk.w0[i][j])...)
		}
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			out = append(out, internal.ScalarToBytes(&sk.w1[i][j])...)
		}
	}
	return out
}

// UnmarshalBinary parses a secret key from data. All twelve scalars are
// processed regardless of earlier failures.
func (sk *SecretKey) UnmarshalBinary(data []byte) error {
	if len(data) != SkBytes {
		return ibe.ErrDeserialization
	}

	ok := true
	off := 0
	next := func() []byte {
		chunk := data[off : off+internal.ScalarBytes]
		off += internal.ScalarBytes
		return chunk
	}
	for i := 0; i < 2; i++ {
		ok = sk.b[i].UnmarshalBinary(next()) == nil && ok
	}
	for i := 0; i < 2; i++ {
		ok = sk.k[i].UnmarshalBinary(next()) == nil && ok
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			ok = sk.w0[i][j].UnmarshalBinary(next()) == nil && ok
		}
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			ok = sk.w1[i][j].UnmarshalBinary(next()) == nil && ok
		}
	}

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}

// Bytes serializes the user secret key (UskBytes bytes).
func (usk *UserSecretKey) Bytes() []byte {
	out := make([]byte, 0, UskBytes)
	out = append(out, usk.d0[0].BytesCompressed()...)
	out = append(out, usk.d0[1].BytesCompressed()...)
	out = append(out, usk.d1[0].BytesCompressed()...)
	return append(out, usk.d1[1].BytesCompressed()...)
}

// UnmarshalBinary parses a user secret key from data.
func (usk *UserSecretKey) UnmarshalBinary(data []byte) error {
	if len(data) != UskBytes {
		return ibe.ErrDeserialization
	}

	ok := true
	off := 0
	for _, p := range []*bls.G2{&usk.d0[0], &usk.d0[1], &usk.d1[0], &usk.d1[1]} {
		ok = p.SetBytes(data[off:off+internal.G2Bytes]) == nil && ok
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
	out = append(out, ct.c0[0].BytesCompressed()...)
	out = append(out, ct.c0[1].BytesCompressed()...)
	out = append(out, ct.c1[0].BytesCompressed()...)
	out = append(out, ct.c1[1].BytesCompressed()...)
	return append(out, internal.GtToBytes(&ct.cprime)...)
}

// UnmarshalBinary parses a ciphertext from data.
func (ct *Ciphertext) UnmarshalBinary(data []byte) error {
	if len(data) != CtBytes {
		return ibe.ErrDeserialization
	}

	ok := true
	off := 0
	for _, p := range []*bls.G1{&ct.c0[0], &ct.c0[1], &ct.c1[0], &ct.c1[1]} {
		ok = p.SetBytes(data[off:off+internal.G1Bytes]) == nil && ok
		off += internal.G1Bytes
	}
	ok = ct.cprime.UnmarshalBinary(data[off:]) == nil && ok

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}
