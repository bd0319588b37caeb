// Package ibe provides identity-based encryption (IBE) and identity-based
// key encapsulation (IBKEM) schemes over the BLS12-381 pairing-friendly
// elliptic curve.
//
// Identity-based encryption lets any party encrypt a message for an
// arbitrary byte string (an "identity", for example an email address)
// without that identity ever having registered a public key. The idea was
// proposed by Adi Shamir in "Identity-Based Cryptosystems And Signature
// Schemes" (1984); the first practical construction from bilinear pairings
// is due to Boneh and Franklin. Every scheme in this module follows the
// same four-operation shape:
//
//  1. Setup generates a master key pair for the private key generator
//     (PKG, the trusted authority).
//  2. ExtractUSK uses the master secret key to derive the secret key for
//     an arbitrary identity.
//  3. Encaps (or Encrypt) uses the master public key to encapsulate a
//     shared secret (or encrypt a message) for an identity.
//  4. Decaps (or Decrypt) recovers the secret with the identity's user
//     secret key.
//
// The concrete schemes live in the packages under pkg: cgw, waters,
// watersnaccache and boyenwaters are IND-ID-CPA encryption schemes, while
// cgwkv, cgwfo and kv1 are IND-ID-CCA2 key encapsulation mechanisms. The
// pkg/mkem package encapsulates a single shared secret for many identities
// at once. For new deployments cgwkv is the recommended KEM: it needs no
// master public key at decapsulation time and rejects implicitly.
//
// Every artifact (keys, ciphertexts) serializes to a fixed, scheme-specific
// number of bytes. The byte layout is documented per artifact and stable
// within a release, but is not guaranteed to remain constant between
// releases of this module.
package ibe

import (
	"crypto/subtle"
	"errors"
	"io"

	bls "github.com/cloudflare/circl/ecc/bls12381"
	"golang.org/x/crypto/sha3"
)

// SharedSecretBytes is the size of an encapsulated shared secret.
const SharedSecretBytes = 32

// Errors shared by all schemes in this module.
var (
	// ErrDeserialization signals malformed or out-of-range bytes for a
	// fixed-size artifact. It carries no information about which component
	// of the artifact failed to parse.
	ErrDeserialization = errors.New("ibe: deserialization failed")

	// ErrDecapsulation signals explicit rejection of a ciphertext by a
	// scheme that re-encrypts and compares (the Fujisaki-Okamoto check).
	// Schemes with implicit rejection never return it.
	ErrDecapsulation = errors.New("ibe: decapsulation failed")

	// ErrAuthentication signals a symmetric authentication failure while
	// unwrapping a multi-recipient ciphertext.
	ErrAuthentication = errors.New("ibe: authentication failed")
)

// SharedSecret is symmetric key material produced by a KEM. A caller
// typically feeds it to a key derivation function or uses it directly as a
// cipher key.
type SharedSecret [SharedSecretBytes]byte

// NewSharedSecret draws a uniformly random shared secret from rng.
func NewSharedSecret(rng io.Reader) (SharedSecret, error) {
	var ss SharedSecret
	if _, err := io.ReadFull(rng, ss[:]); err != nil {
		return SharedSecret{}, err
	}
	return ss, nil
}

// SharedSecretFromGt derives a shared secret from a target group element
// using SHAKE256. All KEMs in this module funnel their pairing output
// through this function so that secrets are uniform byte strings rather
// than group elements.
func SharedSecretFromGt(e *bls.Gt) SharedSecret {
	buf, err := e.MarshalBinary()
	if err != nil {
		// Gt serialization of an internally produced element cannot fail.
		panic("ibe: Gt serialization: " + err.Error())
	}

	var ss SharedSecret
	sha3.ShakeSum256(ss[:], buf)
	return ss
}

// SharedSecretFromBytes reconstructs a shared secret from its byte
// representation. It fails if data is not exactly SharedSecretBytes long.
func SharedSecretFromBytes(data []byte) (SharedSecret, error) {
	if len(data) != SharedSecretBytes {
		return SharedSecret{}, ErrDeserialization
	}
	var ss SharedSecret
	copy(ss[:], data)
	return ss, nil
}

// Xor folds other into ss in place. Multi-recipient masking relies on this
// being an involution.
func (ss *SharedSecret) Xor(other *SharedSecret) {
	subtle.XORBytes(ss[:], ss[:], other[:])
}

// Equal reports whether two shared secrets are identical, in constant time.
func (ss *SharedSecret) Equal(other *SharedSecret) bool {
	return subtle.ConstantTimeCompare(ss[:], other[:]) == 1
}

// IsZero reports whether the secret is all zero, in constant time. A
// correctly produced secret is never all zero except with negligible
// probability.
func (ss *SharedSecret) IsZero() bool {
	var zero SharedSecret
	return subtle.ConstantTimeCompare(ss[:], zero[:]) == 1
}

// Bytes returns the secret as a freshly allocated slice.
func (ss *SharedSecret) Bytes() []byte {
	out := make([]byte, SharedSecretBytes)
	copy(out, ss[:])
	return out
}
