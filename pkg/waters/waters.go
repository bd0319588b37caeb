// Package waters implements the IND-ID-CPA secure identity-based
// encryption scheme of Waters, from "Efficient Identity-Based Encryption
// Without Random Oracles" (EUROCRYPT 2005).
//
// The scheme is secure in the standard model. Identities are 256-bit
// hashes entangled bit by bit with a vector of public curve parameters,
// so this package carries its own Identity type instead of the module-wide
// one. Extraction needs the master public key.
package waters

import (
	"io"

	bls "github.com/cloudflare/circl/ecc/bls12381"
	"golang.org/x/crypto/sha3"

	"github.com/ibecrypt/ibe"
	"github.com/ibecrypt/ibe/internal"
)

// IdentityBytes is the size of a derived identity, a SHA3-256 digest.
const IdentityBytes = 32

const chunks = 8 * IdentityBytes

// Serialized sizes of the scheme artifacts.
const (
	MsgBytes = internal.GtBytes
	PkBytes  = 2*internal.G2Bytes + (chunks+2)*internal.G1Bytes
	SkBytes  = internal.G1Bytes
	UskBytes = internal.G1Bytes + internal.G2Bytes
	CtBytes  = internal.GtBytes + internal.G2Bytes + internal.G1Bytes
)

// Identity is the hashed form of an identity string, specific to this
// scheme.
type Identity [IdentityBytes]byte

// DeriveIdentity hashes an arbitrary byte string into an Identity using
// SHA3-256.
func DeriveIdentity(b []byte) Identity {
	return Identity(sha3.Sum256(b))
}

// DeriveIdentityString hashes the UTF-8 bytes of s into an Identity.
func DeriveIdentityString(s string) Identity {
	return DeriveIdentity([]byte(s))
}

// PublicKey is the master public key, needed for encryption and
// extraction.
type PublicKey struct {
	g      bls.G2
	g1     bls.G1
	g2     bls.G2
	uprime bls.G1
	u      [chunks]bls.G1
}

// SecretKey is the master secret key, a single blinded G1 point.
type SecretKey struct {
	g1prime bls.G1
}

// UserSecretKey decrypts ciphertexts addressed to one identity.
type UserSecretKey struct {
	d1 bls.G1
	d2 bls.G2
}

// Ciphertext is an encrypted message.
type Ciphertext struct {
	c1 bls.Gt
	c2 bls.G2
	c3 bls.G1
}

// Message is a plaintext, an element of the pairing target group.
type Message struct {
	m bls.Gt
}

// entangle folds the identity bits into the public parameters. Each
// parameter is multiplied by its bit value rather than conditionally
// added, keeping the operation sequence identity independent.
func entangle(pk *PublicKey, id *Identity) *bls.G1 {
	acc := new(bls.G1)
	*acc = pk.uprime

	bits := internal.BitScalars(id[:])
	var t bls.G1
	for i := range bits {
		t.ScalarMult(&bits[i], &pk.u[i])
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

	alpha, err := internal.RandScalar(rng)
	if err != nil {
		return nil, nil, err
	}
	pk.g2.ScalarMult(alpha, &pk.g)

	g1, err := internal.RandG1(rng)
	if err != nil {
		return nil, nil, err
	}
	pk.g1 = *g1

	uprime, err := internal.RandG1(rng)
	if err != nil {
		return nil, nil, err
	}
	pk.uprime = *uprime

	for i := range pk.u {
		ui, err := internal.RandG1(rng)
		if err != nil {
			return nil, nil, err
		}
		pk.u[i] = *ui
	}

	sk.g1prime.ScalarMult(alpha, &pk.g1)

	return pk, sk, nil
}

// ExtractUSK derives the user secret key for an identity. The master
// public key is required; passing nil panics.
func ExtractUSK(pk *PublicKey, sk *SecretKey, id *Identity, rng io.Reader) (*UserSecretKey, error) {
	if pk == nil {
		panic("waters: ExtractUSK requires the master public key")
	}

	r, err := internal.RandScalar(rng)
	if err != nil {
		return nil, err
	}

	usk := new(UserSecretKey)
	usk.d1.ScalarMult(r, entangle(pk, id))
	usk.d1.Add(&usk.d1, &sk.g1prime)
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
	negD1 := usk.d1
	negD1.Neg()

	one := internal.One()
	blind := bls.ProdPair(
		[]*bls.G1{&ct.c3, &negD1},
		[]*bls.G2{&usk.d2, &ct.c2},
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
	ok = pk.g.SetBytes(data[off:off+internal.G2Bytes]) == nil && ok
	off += internal.G2Bytes
	ok = pk.g1.SetBytes(data[off:off+internal.G1Bytes]) == nil && ok
	off += internal.G1Bytes
	ok = pk.g2.SetBytes(data[off:off+internal.G2Bytes]) == nil && ok
	off += internal.G2Bytes
	ok = pk.uprime.SetBytes(data[off:off+internal.G1Bytes]) == nil && ok
	off += internal.G1Bytes
	for i := range pk.u {
		ok = pk.u[i].SetBytes(data[off:off+internal.G1Bytes]) == nil && ok
		off += internal.G1Bytes
	}

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}

// Bytes serializes the secret key (SkBytes bytes).
func (sk *SecretKey) Bytes() []byte {
	return sk.g1prime.BytesCompressed()
}

// UnmarshalBinary parses a secret key from data.
func (sk *SecretKey) UnmarshalBinary(data []byte) error {
	if len(data) != SkBytes {
		return ibe.ErrDeserialization
	}
	if err := sk.g1prime.SetBytes(data); err != nil {
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

	ok := usk.d1.SetBytes(data[:internal.G1Bytes]) == nil
	ok = usk.d2.SetBytes(data[internal.G1Bytes:]) == nil && ok

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
	ok = ct.c2.SetBytes(data[off:off+internal.G2Bytes]) == nil && ok
	off += internal.G2Bytes
	ok = ct.c3.SetBytes(data[off:]) == nil && ok

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}
