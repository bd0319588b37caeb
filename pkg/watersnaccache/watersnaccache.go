// Package watersnaccache implements the IND-ID-CPA secure identity-based
// encryption scheme of Waters with the Naccache size reduction, from
// "Secure and Practical Identity-Based Encryption" (IET Information
// Security 2007).
//
// Where the plain Waters scheme entangles one public parameter per
// identity bit, this variant processes the identity in 32-bit chunks and
// needs only 16 parameters, shrinking the master public key from 12 KiB to
// under 2 KiB. The groups are swapped relative to the waters package: the
// parameter vector lives in G2. Extraction needs the master public key.
package watersnaccache

import (
	"encoding/binary"
	"io"

	bls "github.com/cloudflare/circl/ecc/bls12381"

	"github.com/ibecrypt/ibe"
	"github.com/ibecrypt/ibe/internal"
)

const (
	chunkSize = 4
	chunks    = ibe.IdentityBytes / chunkSize
)

// Serialized sizes of the scheme artifacts.
const (
	MsgBytes = internal.GtBytes
	PkBytes  = 2*internal.G1Bytes + (chunks+2)*internal.G2Bytes
	SkBytes  = internal.G2Bytes
	UskBytes = internal.G1Bytes + internal.G2Bytes
	CtBytes  = internal.GtBytes + internal.G1Bytes + internal.G2Bytes
)

// Identity is the chunked form of an identity hash: sixteen scalars, each
// holding 32 bits of the digest.
type Identity [chunks]bls.Scalar

// IdentityFromShared converts a module-wide identity into chunk form. The
// chunks are read little endian from the digest.
func IdentityFromShared(id *ibe.Identity) Identity {
	var out Identity
	for i := 0; i < chunks; i++ {
		out[i].SetUint64(uint64(binary.LittleEndian.Uint32(id[i*chunkSize:])))
	}
	return out
}

// DeriveIdentity hashes an arbitrary byte string into an Identity.
func DeriveIdentity(b []byte) Identity {
	id := ibe.DeriveIdentity(b)
	return IdentityFromShared(&id)
}

// DeriveIdentityString hashes the UTF-8 bytes of s into an Identity.
func DeriveIdentityString(s string) Identity {
	return DeriveIdentity([]byte(s))
}

// PublicKey is the master public key, needed for encryption and
// extraction.
type PublicKey struct {
	g      bls.G1
	g1     bls.G1
	g2     bls.G2
	uprime bls.G2
	u      [chunks]bls.G2
}

// SecretKey is the master secret key, a single blinded G2 point.
type SecretKey struct {
	g2prime bls.G2
}

// UserSecretKey decrypts ciphertexts addressed to one identity.
type UserSecretKey struct {
	d1 bls.G2
	d2 bls.G1
}

// Ciphertext is an encrypted message.
type Ciphertext struct {
	c1 bls.Gt
	c2 bls.G1
	c3 bls.G2
}

// Message is a plaintext, an element of the pairing target group.
type Message struct {
	m bls.Gt
}

// entangle folds the identity chunks into the public parameters.
func entangle(pk *PublicKey, id *Identity) *bls.G2 {
	acc := new(bls.G2)
	*acc = pk.uprime

	var t bls.G2
	for i := range id {
		t.ScalarMult(&id[i], &pk.u[i])
		acc.Add(acc, &t)
	}
	return acc
}

// Setup generates a master key pair for the private key generator.
func Setup(rng io.Reader) (*PublicKey, *SecretKey, error) {
	pk := new(PublicKey)
	sk := new(SecretKey)

	g, err := internal.RandG1(rng)
	if err != nil {
		return nil, nil, err
	}
	pk.g = *g

	alpha, err := internal.RandScalar(rng)
	if err != nil {
		return nil, nil, err
	}
	pk.g1.ScalarMult(alpha, &pk.g)

	g2, err := internal.RandG2(rng)
	if err != nil {
		return nil, nil, err
	}
	pk.g2 = *g2

	uprime, err := internal.RandG2(rng)
	if err != nil {
		return nil, nil, err
	}
	pk.uprime = *uprime

	for i := range pk.u {
		ui, err := internal.RandG2(rng)
		if err != nil {
			return nil, nil, err
		}
		pk.u[i] = *ui
	}

	sk.g2prime.ScalarMult(alpha, &pk.g2)

	return pk, sk, nil
}

// ExtractUSK derives the user secret key for an identity. The master
// public key is required; passing nil panics.
func ExtractUSK(pk *PublicKey, sk *SecretKey, id *Identity, rng io.Reader) (*UserSecretKey, error) {
	if pk == nil {
		panic("watersnaccache: ExtractUSK requires the master public key")
	}

	r, err := internal.RandScalar(rng)
	if err != nil {
		return nil, err
	}

	usk := new(UserSecretKey)
	usk.d1.ScalarMult(r, entangle(pk, id))
	usk.d1.Add(&usk.d1, &sk.g2prime)
	usk.d2.ScalarMult(r, &pk.g)

	return usk, nil
}

// Encrypt encrypts a message for an identity. The 64-byte coins fully
// determine the ciphertext; use EncryptRand unless determinism is
// required.
func Encrypt(pk *PublicKey, id *Identity, msg *Message, coins *[64]byte) *Ciphertext {
	t := internal.ScalarFromWide(*coins)

	ct := new(Ciphertext)
	e := bls.Pair(&pk.g1, &pk.g2)
	ct.c1.Exp(e, t)
	ct.c1.Mul(&ct.c1, &msg.m)

	ct.c2.ScalarMult(t, &pk.g)
	ct.c3.ScalarMult(t, entangle(pk, id))

	return ct
}

// EncryptRand encrypts a message for an identity with coins drawn from rng.
func EncryptRand(pk *PublicKey, id *Identity, msg *Message, rng io.Reader) (*Ciphertext, error) {
	var coins [64]byte
	if _, err := io.ReadFull(rng, coins[:]); err != nil {
		return nil, err
	}
	return Encrypt(pk, id, msg, &coins), nil
}

// Decrypt recovers the message from a ciphertext. Decryption cannot fail;
// a ciphertext for a different identity yields an unrelated message.
func Decrypt(usk *UserSecretKey, ct *Ciphertext) *Message {
	negC2 := ct.c2
	negC2.Neg()

	one := internal.One()
	blind := bls.ProdPair(
		[]*bls.G1{&usk.d2, &negC2},
		[]*bls.G2{&ct.c3, &usk.d1},
		[]*bls.Scalar{one, one},
	)

	msg := new(Message)
	msg.m.Mul(&ct.c1, blind)
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
	out = append(out, pk.g.BytesCompressed()...)
	out = append(out, pk.g1.BytesCompressed()...)
	out = append(out, pk.g2.BytesCompressed()...)
	out = append(out, pk.uprime.BytesCompressed()...)
	for i := range pk.u {
		out = append(out, pk.u[i].BytesCompressed()...)
	}
	return out
}

// UnmarshalBinary parses a public key from data.
func (pk *PublicKey) UnmarshalBinary(data []byte) error {
	if len(data) != PkBytes {
		return ibe.ErrDeserialization
	}

	ok := true
	off := 0
	ok = pk.g.SetBytes(data[off:off+internal.G1Bytes]) == nil && ok
	off += internal.G1Bytes
	ok = pk.g1.SetBytes(data[off:off+internal.G1Bytes]) == nil && ok
	off += internal.G1Bytes
	ok = pk.g2.SetBytes(data[off:off+internal.G2Bytes]) == nil && ok
	off += internal.G2Bytes
	ok = pk.uprime.SetBytes(data[off:off+internal.G2Bytes]) == nil && ok
	off += internal.G2Bytes
	for i := range pk.u {
		ok = pk.u[i].SetBytes(data[off:off+internal.G2Bytes]) == nil && ok
		off += internal.G2Bytes
	}

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}

// Bytes serializes the secret key (SkBytes bytes).
func (sk *SecretKey) Bytes() []byte {
	return sk.g2prime.BytesCompressed()
}

// UnmarshalBinary parses a secret key from data.
func (sk *SecretKey) UnmarshalBinary(data []byte) error {
	if len(data) != SkBytes {
		return ibe.ErrDeserialization
	}
	if err := sk.g2prime.SetBytes(data); err != nil {
		return ibe.ErrDeserialization
	}
	return nil
}

// Bytes serializes the user secret key (UskBytes bytes).
func (usk *UserSecretKey) Bytes() []byte {
	out := make([]byte, 0, UskBytes)
	out = append(out, usk.d1.BytesCompressed()...)
	return append(out, usk.d2.BytesCompressed()...)
}

// UnmarshalBinary parses a user secret key from data.
func (usk *UserSecretKey) UnmarshalBinary(data []byte) error {
	if len(data) != UskBytes {
		return ibe.ErrDeserialization
	}

	ok := usk.d1.SetBytes(data[:internal.G2Bytes]) == nil
	ok = usk.d2.SetBytes(data[internal.G2Bytes:]) == nil && ok

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}

// Bytes serializes the ciphertext (CtBytes bytes).
func (ct *Ciphertext) Bytes() []byte {
	out := make([]byte, 0, CtBytes)
	out = append(out, internal.GtToBytes(&ct.c1)...)
	out = append(out, ct.c2.BytesCompressed()...)
	return append(out, ct.c3.BytesCompressed()...)
}

// UnmarshalBinary parses a ciphertext from data.
func (ct *Ciphertext) UnmarshalBinary(data []byte) error {
	if len(data) != CtBytes {
		return ibe.ErrDeserialization
	}

	ok := ct.c1.UnmarshalBinary(data[:internal.GtBytes]) == nil
	off := internal.GtBytes
	ok = ct.c2.SetBytes(data[off:off+internal.G1Bytes]) == nil && ok
	off += internal.G1Bytes
	ok = ct.c3.SetBytes(data[off:]) == nil && ok

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}
