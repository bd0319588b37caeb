// Package mkem turns any of the identity-based KEMs in this module into a
// multi-recipient KEM. A single session secret is drawn once and then
// wrapped for every recipient under the shared secret that the underlying
// scheme encapsulates for that recipient's identity.
//
// Two wrapping modes are provided. Sealed ciphertexts protect the session
// secret with AES-128-GCM, so unwrapping authenticates the wrapped secret.
// Masked ciphertexts XOR the session secret with the recipient secret,
// which is shorter on the wire but leaves authenticity to the caller.
package mkem

import (
	"crypto/aes"
	"crypto/cipher"
	"io"

	"github.com/ibecrypt/ibe"
)

// Sizes of the symmetric parts of a sealed ciphertext.
const (
	kekBytes   = 16
	NonceBytes = 12
	TagBytes   = 16
)

// SealedOverhead is the number of bytes a sealed multi-recipient
// ciphertext adds on top of the underlying KEM ciphertext.
const SealedOverhead = ibe.SharedSecretBytes + TagBytes + NonceBytes

// MaskedOverhead is the equivalent for masked ciphertexts.
const MaskedOverhead = ibe.SharedSecretBytes

// Wrapped constrains the single-recipient ciphertext types that can carry
// a multi-recipient wrap.
type Wrapped interface {
	Bytes() []byte
	UnmarshalBinary(data []byte) error
}

// EncapsFunc is a single-recipient encapsulation bound to a master public
// key. The KEM packages provide adapters with this shape.
type EncapsFunc[CT Wrapped] func(id *ibe.Identity, rng io.Reader) (CT, ibe.SharedSecret, error)

// Ciphertext is a sealed per-recipient ciphertext: the underlying KEM
// ciphertext plus the session secret encrypted under the recipient secret
// with AES-128-GCM.
type Ciphertext[CT Wrapped] struct {
	KEM    CT
	sealed [ibe.SharedSecretBytes]byte
	tag    [TagBytes]byte
	nonce  [NonceBytes]byte
}

// Encapsulator produces the per-recipient ciphertexts of one session. It
// works lazily so that encapsulating for a large recipient list does not
// buffer all ciphertexts in memory.
type Encapsulator[CT Wrapped] struct {
	ss     ibe.SharedSecret
	ids    []ibe.Identity
	next   int
	rng    io.Reader
	encaps EncapsFunc[CT]
}

// NewEncapsulator draws a fresh session secret and returns it together
// with an iterator over the per-recipient ciphertexts. The secret is
// returned up front so the caller can start symmetric encryption before
// all recipients are processed.
func NewEncapsulator[CT Wrapped](rng io.Reader, ids []ibe.Identity, encaps EncapsFunc[CT]) (*Encapsulator[CT], ibe.SharedSecret, error) {
	ss, err := ibe.NewSharedSecret(rng)
	if err != nil {
		return nil, ibe.SharedSecret{}, err
	}
	e := &Encapsulator[CT]{ss: ss, ids: ids, rng: rng, encaps: encaps}
	return e, ss, nil
}

// Next returns the ciphertext for the next recipient, or io.EOF once all
// recipients have been served. Recipients are served in the order their
// identities were passed to NewEncapsulator.
func (e *Encapsulator[CT]) Next() (*Ciphertext[CT], error) {
	if e.next >= len(e.ids) {
		return nil, io.EOF
	}
	id := &e.ids[e.next]
	e.next++

	kemCT, kek, err := e.encaps(id, e.rng)
	if err != nil {
		return nil, err
	}

	ct := &Ciphertext[CT]{KEM: kemCT}
	if _, err := io.ReadFull(e.rng, ct.nonce[:]); err != nil {
		return nil, err
	}

	aead := newAEAD(&kek)
	out := aead.Seal(nil, ct.nonce[:], e.ss[:], nil)
	copy(ct.sealed[:], out[:ibe.SharedSecretBytes])
	copy(ct.tag[:], out[ibe.SharedSecretBytes:])

	return ct, nil
}

// Open unwraps the session secret from a sealed ciphertext using the
// recipient secret produced by the underlying KEM. It returns
// ibe.ErrAuthentication if the wrap does not verify, which happens in
// particular when kek stems from an implicitly rejected KEM ciphertext.
func Open[CT Wrapped](kek *ibe.SharedSecret, ct *Ciphertext[CT]) (ibe.SharedSecret, error) {
	aead := newAEAD(kek)

	var in [ibe.SharedSecretBytes + TagBytes]byte
	copy(in[:], ct.sealed[:])
	copy(in[ibe.SharedSecretBytes:], ct.tag[:])

	out, err := aead.Open(nil, ct.nonce[:], in[:], nil)
	if err != nil {
		return ibe.SharedSecret{}, ibe.ErrAuthentication
	}

	var ss ibe.SharedSecret
	copy(ss[:], out)
	return ss, nil
}

// Bytes serializes the sealed ciphertext as the KEM ciphertext followed by
// the encrypted secret, the tag and the nonce.
func (ct *Ciphertext[CT]) Bytes() []byte {
	kem := ct.KEM.Bytes()
	out := make([]byte, 0, len(kem)+SealedOverhead)
	out = append(out, kem...)
	out = append(out, ct.sealed[:]...)
	out = append(out, ct.tag[:]...)
	return append(out, ct.nonce[:]...)
}

// UnmarshalCiphertext parses a sealed ciphertext. kem receives the parsed
// KEM part and must be a fresh value of the scheme's ciphertext type;
// kemLen is that scheme's serialized ciphertext size.
func UnmarshalCiphertext[CT Wrapped](kem CT, kemLen int, data []byte) (*Ciphertext[CT], error) {
	if len(data) != kemLen+SealedOverhead {
		return nil, ibe.ErrDeserialization
	}
	if err := kem.UnmarshalBinary(data[:kemLen]); err != nil {
		return nil, ibe.ErrDeserialization
	}

	ct := &Ciphertext[CT]{KEM: kem}
	off := kemLen
	off += copy(ct.sealed[:], data[off:off+ibe.SharedSecretBytes])
	off += copy(ct.tag[:], data[off:off+TagBytes])
	copy(ct.nonce[:], data[off:])
	return ct, nil
}

func newAEAD(kek *ibe.SharedSecret) cipher.AEAD {
	block, err := aes.NewCipher(kek[:kekBytes])
	if err != nil {
		panic("mkem: AES key setup: " + err.Error())
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		panic("mkem: GCM setup: " + err.Error())
	}
	return aead
}

// MaskedCiphertext is a masked per-recipient ciphertext: the underlying
// KEM ciphertext plus the session secret XORed with the recipient secret.
type MaskedCiphertext[CT Wrapped] struct {
	KEM  CT
	mask ibe.SharedSecret
}

// MaskedEncapsulator is the masking counterpart of Encapsulator: one
// per-recipient ciphertext per Next call, io.EOF once exhausted.
type MaskedEncapsulator[CT Wrapped] struct {
	ss     ibe.SharedSecret
	ids    []ibe.Identity
	next   int
	rng    io.Reader
	encaps EncapsFunc[CT]
}

// NewMaskedEncapsulator draws a fresh session secret and returns it with an
// iterator over the masked per-recipient ciphertexts.
func NewMaskedEncapsulator[CT Wrapped](rng io.Reader, ids []ibe.Identity, encaps EncapsFunc[CT]) (*MaskedEncapsulator[CT], ibe.SharedSecret, error) {
	ss, err := ibe.NewSharedSecret(rng)
	if err != nil {
		return nil, ibe.SharedSecret{}, err
	}
	e := &MaskedEncapsulator[CT]{ss: ss, ids: ids, rng: rng, encaps: encaps}
	return e, ss, nil
}

// Next returns the masked ciphertext for the next recipient, or io.EOF once
// all recipients have been served.
func (e *MaskedEncapsulator[CT]) Next() (*MaskedCiphertext[CT], error) {
	if e.next >= len(e.ids) {
		return nil, io.EOF
	}
	id := &e.ids[e.next]
	e.next++

	kemCT, ssi, err := e.encaps(id, e.rng)
	if err != nil {
		return nil, err
	}
	ssi.Xor(&e.ss)
	return &MaskedCiphertext[CT]{KEM: kemCT, mask: ssi}, nil
}

// MaskedEncapsulate wraps a fresh session secret for every identity by
// masking and buffers all per-recipient ciphertexts. For recipient lists
// too large to buffer, drive a NewMaskedEncapsulator directly.
func MaskedEncapsulate[CT Wrapped](rng io.Reader, ids []ibe.Identity, encaps EncapsFunc[CT]) ([]*MaskedCiphertext[CT], ibe.SharedSecret, error) {
	e, ss, err := NewMaskedEncapsulator(rng, ids, encaps)
	if err != nil {
		return nil, ibe.SharedSecret{}, err
	}

	cts := make([]*MaskedCiphertext[CT], 0, len(ids))
	for {
		ct, err := e.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ibe.SharedSecret{}, err
		}
		cts = append(cts, ct)
	}

	return cts, ss, nil
}

// OpenMasked recovers the session secret by unmasking. There is no
// authentication; a wrong recipient secret yields an unrelated value.
func OpenMasked[CT Wrapped](ssi *ibe.SharedSecret, ct *MaskedCiphertext[CT]) ibe.SharedSecret {
	ss := *ssi
	ss.Xor(&ct.mask)
	return ss
}

// Bytes serializes the masked ciphertext as the KEM ciphertext followed by
// the masked secret.
func (ct *MaskedCiphertext[CT]) Bytes() []byte {
	kem := ct.KEM.Bytes()
	out := make([]byte, 0, len(kem)+MaskedOverhead)
	out = append(out, kem...)
	return append(out, ct.mask[:]...)
}

// UnmarshalMaskedCiphertext parses a masked ciphertext, with the same
// calling convention as UnmarshalCiphertext.
func UnmarshalMaskedCiphertext[CT Wrapped](kem CT, kemLen int, data []byte) (*MaskedCiphertext[CT], error) {
	if len(data) != kemLen+MaskedOverhead {
		return nil, ibe.ErrDeserialization
	}
	if err := kem.UnmarshalBinary(data[:kemLen]); err != nil {
		return nil, ibe.ErrDeserialization
	}

	ct := &MaskedCiphertext[CT]{KEM: kem}
	copy(ct.mask[:], data[kemLen:])
	return ct, nil
}
