package ibe

import (
	bls "github.com/cloudflare/circl/ecc/bls12381"
	"golang.org/x/crypto/sha3"

	"github.com/ibecrypt/ibe/internal"
)

// IdentityBytes is the size of a derived identity, a SHA3-512 digest.
const IdentityBytes = 64

// Identity is the hashed form of an arbitrary identity string. All schemes
// take identities in this form, so deriving once and reusing the result is
// safe across schemes under the same master key pair.
type Identity [IdentityBytes]byte

// DeriveIdentity hashes an arbitrary byte string into an Identity using
// SHA3-512. The caller chooses the format of b; a common convention is a
// prefixed attribute such as "email:alice@example.org".
func DeriveIdentity(b []byte) Identity {
	return Identity(sha3.Sum512(b))
}

// DeriveIdentityString hashes the UTF-8 bytes of s into an Identity.
func DeriveIdentityString(s string) Identity {
	return DeriveIdentity([]byte(s))
}

// Scalar interprets the identity digest as a scalar by reduction modulo the
// group order. Schemes that embed the identity algebraically use this form.
func (id *Identity) Scalar() *bls.Scalar {
	return internal.ScalarFromWide([64]byte(*id))
}

// IdentityFromBytes reconstructs an already-derived identity. It fails if
// data is not exactly IdentityBytes long.
func IdentityFromBytes(data []byte) (Identity, error) {
	if len(data) != IdentityBytes {
		return Identity{}, ErrDeserialization
	}
	var id Identity
	copy(id[:], data)
	return id, nil
}
