// Package cgwfo implements an IND-ID-CCA2 secure identity-based KEM built
// from the passively secure cgw scheme with the Fujisaki-Okamoto
// transform.
//
// See "A Modular Analysis of the Fujisaki-Okamoto Transformation"
// (TCC 2017). Encapsulation encrypts a random message under coins derived
// deterministically from that message, and decapsulation re-encrypts to
// verify the ciphertext. The transform instantiates G with SHA3-512 and H
// with SHA3-256.
//
// Unlike cgwkv, decapsulation here needs the master public key and the
// user secret key stores the identity for re-encryption. Master key pairs
// and ciphertexts are those of the cgw package.
package cgwfo

import (
	"crypto/subtle"
	"io"

	"github.com/ibecrypt/ibe"
	"github.com/ibecrypt/ibe/internal"
	"github.com/ibecrypt/ibe/pkg/cgw"
	"github.com/ibecrypt/ibe/pkg/mkem"
)

// Serialized sizes of the scheme artifacts. Public keys, secret keys and
// ciphertexts are cgw artifacts.
const (
	PkBytes  = cgw.PkBytes
	SkBytes  = cgw.SkBytes
	CtBytes  = cgw.CtBytes
	UskBytes = cgw.UskBytes + cgw.MsgBytes + ibe.IdentityBytes
)

// PublicKey is the master public key. It is required for decapsulation as
// well, a consequence of the re-encryption check.
type PublicKey = cgw.PublicKey

// SecretKey is the master secret key.
type SecretKey = cgw.SecretKey

// Ciphertext is an encapsulation of a shared secret.
type Ciphertext = cgw.Ciphertext

// UserSecretKey decapsulates ciphertexts addressed to one identity. Next
// to the cgw decryption key it holds the identity, needed to re-derive
// encryption coins, and a random fallback message that implicit rejection
// substitutes for the decryption result.
type UserSecretKey struct {
	usk      cgw.UserSecretKey
	fallback cgw.Message
	id       ibe.Identity
}

// Setup generates a master key pair for the private key generator.
func Setup(rng io.Reader) (*PublicKey, *SecretKey, error) {
	return cgw.Setup(rng)
}

// ExtractUSK derives the user secret key for an identity.
func ExtractUSK(sk *SecretKey, id *ibe.Identity, rng io.Reader) (*UserSecretKey, error) {
	usk, err := cgw.ExtractUSK(sk, id, rng)
	if err != nil {
		return nil, err
	}
	fallback, err := cgw.RandomMessage(rng)
	if err != nil {
		return nil, err
	}
	return &UserSecretKey{usk: *usk, fallback: *fallback, id: *id}, nil
}

// Encaps encapsulates a fresh shared secret for an identity.
func Encaps(pk *PublicKey, id *ibe.Identity, rng io.Reader) (*Ciphertext, ibe.SharedSecret, error) {
	m, err := cgw.RandomMessage(rng)
	if err != nil {
		return nil, ibe.SharedSecret{}, err
	}

	coins := encryptionCoins(m, id)
	ct := cgw.Encrypt(pk, id, m, &coins)

	return ct, secretFor(m, ct), nil
}

// Decaps derives the shared secret from a ciphertext, rejecting
// explicitly: it returns ibe.ErrDecapsulation when the re-encryption
// check fails. The timing of a rejection is observable; where that
// matters, use DecapsImplicit.
func Decaps(pk *PublicKey, usk *UserSecretKey, ct *Ciphertext) (ibe.SharedSecret, error) {
	if pk == nil {
		panic("cgwfo: Decaps requires the master public key")
	}

	m := cgw.Decrypt(&usk.usk, ct)
	coins := encryptionCoins(m, &usk.id)
	ct2 := cgw.Encrypt(pk, &usk.id, m, &coins)

	if subtle.ConstantTimeCompare(ct.Bytes(), ct2.Bytes()) != 1 {
		return ibe.SharedSecret{}, ibe.ErrDecapsulation
	}
	return secretFor(m, ct), nil
}

// DecapsImplicit derives the shared secret from a ciphertext, rejecting
// implicitly: when the re-encryption check fails the fallback message
// stored in the user secret key is hashed instead, so an invalid
// ciphertext yields a stable but unrelated secret and no error.
func DecapsImplicit(pk *PublicKey, usk *UserSecretKey, ct *Ciphertext) ibe.SharedSecret {
	if pk == nil {
		panic("cgwfo: DecapsImplicit requires the master public key")
	}

	m := cgw.Decrypt(&usk.usk, ct)
	coins := encryptionCoins(m, &usk.id)
	ct2 := cgw.Encrypt(pk, &usk.id, m, &coins)

	ok := subtle.ConstantTimeCompare(ct.Bytes(), ct2.Bytes())

	// Substitute the fallback on failure without branching on ok.
	mBuf := m.Bytes()
	subtle.ConstantTimeCopy(1-ok, mBuf, usk.fallback.Bytes())

	var ss ibe.SharedSecret
	digest := internal.Sha3_256(mBuf, ct.Bytes())
	copy(ss[:], digest[:])
	return ss
}

// MultiEncaps encapsulates one session secret for many identities using
// sealed multi-recipient ciphertexts.
func MultiEncaps(pk *PublicKey, ids []ibe.Identity, rng io.Reader) (*mkem.Encapsulator[*Ciphertext], ibe.SharedSecret, error) {
	return mkem.NewEncapsulator(rng, ids, func(id *ibe.Identity, rng io.Reader) (*Ciphertext, ibe.SharedSecret, error) {
		return Encaps(pk, id, rng)
	})
}

// MultiDecaps recovers the session secret from a sealed multi-recipient
// ciphertext. The KEM part is decapsulated with implicit rejection; a bad
// ciphertext then fails the authenticated unwrap.
func MultiDecaps(pk *PublicKey, usk *UserSecretKey, ct *mkem.Ciphertext[*Ciphertext]) (ibe.SharedSecret, error) {
	kek := DecapsImplicit(pk, usk, ct.KEM)
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
func MultiDecapsMasked(pk *PublicKey, usk *UserSecretKey, ct *mkem.MaskedCiphertext[*Ciphertext]) ibe.SharedSecret {
	ssi := DecapsImplicit(pk, usk, ct.KEM)
	return mkem.OpenMasked(&ssi, ct)
}

func encryptionCoins(m *cgw.Message, id *ibe.Identity) [64]byte {
	return internal.Sha3_512(m.Bytes(), id[:])
}

func secretFor(m *cgw.Message, ct *Ciphertext) ibe.SharedSecret {
	var ss ibe.SharedSecret
	digest := internal.Sha3_256(m.Bytes(), ct.Bytes())
	copy(ss[:], digest[:])
	return ss
}

// Bytes serializes the user secret key (UskBytes bytes).
func (usk *UserSecretKey) Bytes() []byte {
	out := make([]byte, 0, UskBytes)
	out = append(out, usk.usk.Bytes()...)
	out = append(out, usk.fallback.Bytes()...)
	return append(out, usk.id[:]...)
}

// UnmarshalBinary parses a user secret key from data.
func (usk *UserSecretKey) UnmarshalBinary(data []byte) error {
	if len(data) != UskBytes {
		return ibe.ErrDeserialization
	}

	ok := usk.usk.UnmarshalBinary(data[:cgw.UskBytes]) == nil
	ok = usk.fallback.UnmarshalBinary(data[cgw.UskBytes:cgw.UskBytes+cgw.MsgBytes]) == nil && ok
	copy(usk.id[:], data[cgw.UskBytes+cgw.MsgBytes:])

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}
