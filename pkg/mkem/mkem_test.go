package mkem

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"golang.org/x/crypto/sha3"

	"github.com/ibecrypt/ibe"
)

// The tests below run the wrapping layer over a toy KEM whose ciphertext
// is plain randomness and whose shared secret is a hash of identity and
// ciphertext. The pairing-based KEM packages test the combination with
// their real schemes.

const fakeCTBytes = 24

type fakeCT struct {
	buf [fakeCTBytes]byte
}

func (ct *fakeCT) Bytes() []byte {
	out := make([]byte, fakeCTBytes)
	copy(out, ct.buf[:])
	return out
}

func (ct *fakeCT) UnmarshalBinary(data []byte) error {
	if len(data) != fakeCTBytes {
		return ibe.ErrDeserialization
	}
	copy(ct.buf[:], data)
	return nil
}

func fakeDecaps(id *ibe.Identity, ct *fakeCT) ibe.SharedSecret {
	var buf [ibe.IdentityBytes + fakeCTBytes]byte
	copy(buf[:], id[:])
	copy(buf[ibe.IdentityBytes:], ct.buf[:])

	var ss ibe.SharedSecret
	sha3.ShakeSum256(ss[:], buf[:])
	return ss
}

func fakeEncaps(id *ibe.Identity, rng io.Reader) (*fakeCT, ibe.SharedSecret, error) {
	ct := new(fakeCT)
	if _, err := io.ReadFull(rng, ct.buf[:]); err != nil {
		return nil, ibe.SharedSecret{}, err
	}
	return ct, fakeDecaps(id, ct), nil
}

func testIdentities() []ibe.Identity {
	return []ibe.Identity{
		ibe.DeriveIdentityString("email:alice@example.org"),
		ibe.DeriveIdentityString("email:bob@example.org"),
		ibe.DeriveIdentityString("email:carol@example.org"),
	}
}

func TestSealedRoundTrip(t *testing.T) {
	ids := testIdentities()
	enc, ss, err := NewEncapsulator(rand.Reader, ids, EncapsFunc[*fakeCT](fakeEncaps))
	if err != nil {
		t.Fatalf("encapsulator setup failed: %v", err)
	}

	for i := range ids {
		ct, err := enc.Next()
		if err != nil {
			t.Fatalf("next failed for recipient %d: %v", i, err)
		}
		kek := fakeDecaps(&ids[i], ct.KEM)
		got, err := Open(&kek, ct)
		if err != nil {
			t.Fatalf("open failed for recipient %d: %v", i, err)
		}
		if !got.Equal(&ss) {
			t.Fatalf("recipient %d recovered a different session secret", i)
		}
	}

	if _, err := enc.Next(); err != io.EOF {
		t.Fatalf("exhausted encapsulator returned %v, want io.EOF", err)
	}
}

func TestSealedWrongRecipient(t *testing.T) {
	ids := testIdentities()
	enc, _, err := NewEncapsulator(rand.Reader, ids, EncapsFunc[*fakeCT](fakeEncaps))
	if err != nil {
		t.Fatalf("encapsulator setup failed: %v", err)
	}

	ct, err := enc.Next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	kek := fakeDecaps(&ids[1], ct.KEM)
	if _, err := Open(&kek, ct); err != ibe.ErrAuthentication {
		t.Fatalf("foreign recipient secret opened the wrap: %v", err)
	}
}

func TestSealedSerializeRoundTrip(t *testing.T) {
	ids := testIdentities()[:1]
	enc, ss, err := NewEncapsulator(rand.Reader, ids, EncapsFunc[*fakeCT](fakeEncaps))
	if err != nil {
		t.Fatalf("encapsulator setup failed: %v", err)
	}
	ct, err := enc.Next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}

	buf := ct.Bytes()
	if len(buf) != fakeCTBytes+SealedOverhead {
		t.Fatalf("ciphertext size %d, want %d", len(buf), fakeCTBytes+SealedOverhead)
	}

	ct2, err := UnmarshalCiphertext(new(fakeCT), fakeCTBytes, buf)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !bytes.Equal(ct2.Bytes(), buf) {
		t.Fatalf("round trip changed bytes")
	}

	kek := fakeDecaps(&ids[0], ct2.KEM)
	got, err := Open(&kek, ct2)
	if err != nil {
		t.Fatalf("open failed after round trip: %v", err)
	}
	if !got.Equal(&ss) {
		t.Fatalf("round trip changed the wrapped secret")
	}
}

func TestMaskedRoundTrip(t *testing.T) {
	ids := testIdentities()
	cts, ss, err := MaskedEncapsulate(rand.Reader, ids, EncapsFunc[*fakeCT](fakeEncaps))
	if err != nil {
		t.Fatalf("masked encapsulation failed: %v", err)
	}
	if len(cts) != len(ids) {
		t.Fatalf("got %d ciphertexts for %d recipients", len(cts), len(ids))
	}

	for i := range ids {
		ssi := fakeDecaps(&ids[i], cts[i].KEM)
		got := OpenMasked(&ssi, cts[i])
		if !got.Equal(&ss) {
			t.Fatalf("recipient %d recovered a different session secret", i)
		}
	}

	// No authentication: a foreign secret unmasks to an unrelated value.
	ssi := fakeDecaps(&ids[1], cts[0].KEM)
	got := OpenMasked(&ssi, cts[0])
	if got.Equal(&ss) {
		t.Fatalf("foreign recipient secret unmasked the session secret")
	}
}

func TestMaskedIterator(t *testing.T) {
	ids := testIdentities()
	enc, ss, err := NewMaskedEncapsulator(rand.Reader, ids, EncapsFunc[*fakeCT](fakeEncaps))
	if err != nil {
		t.Fatalf("encapsulator setup failed: %v", err)
	}

	for i := range ids {
		ct, err := enc.Next()
		if err != nil {
			t.Fatalf("next failed for recipient %d: %v", i, err)
		}
		ssi := fakeDecaps(&ids[i], ct.KEM)
		got := OpenMasked(&ssi, ct)
		if !got.Equal(&ss) {
			t.Fatalf("recipient %d recovered a different session secret", i)
		}
	}

	if _, err := enc.Next(); err != io.EOF {
		t.Fatalf("exhausted encapsulator returned %v, want io.EOF", err)
	}
}

func TestMaskedSerializeRoundTrip(t *testing.T) {
	ids := testIdentities()[:1]
	cts, ss, err := MaskedEncapsulate(rand.Reader, ids, EncapsFunc[*fakeCT](fakeEncaps))
	if err != nil {
		t.Fatalf("masked encapsulation failed: %v", err)
	}

	buf := cts[0].Bytes()
	if len(buf) != fakeCTBytes+MaskedOverhead {
		t.Fatalf("ciphertext size %d, want %d", len(buf), fakeCTBytes+MaskedOverhead)
	}

	ct2, err := UnmarshalMaskedCiphertext(new(fakeCT), fakeCTBytes, buf)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	ssi := fakeDecaps(&ids[0], ct2.KEM)
	got := OpenMasked(&ssi, ct2)
	if !got.Equal(&ss) {
		t.Fatalf("round trip changed the masked secret")
	}
}

func TestUnmarshalRejectsBadInput(t *testing.T) {
	short := make([]byte, fakeCTBytes+SealedOverhead-1)
	if _, err := UnmarshalCiphertext(new(fakeCT), fakeCTBytes, short); err != ibe.ErrDeserialization {
		t.Fatalf("short sealed ciphertext accepted: %v", err)
	}

	long := make([]byte, fakeCTBytes+MaskedOverhead+1)
	if _, err := UnmarshalMaskedCiphertext(new(fakeCT), fakeCTBytes, long); err != ibe.ErrDeserialization {
		t.Fatalf("oversized masked ciphertext accepted: %v", err)
	}
}
