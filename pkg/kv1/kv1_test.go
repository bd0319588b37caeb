package kv1

import (
	"crypto/rand"
	"io"
	"testing"

	"github.com/ibecrypt/ibe"
)

const testID = "email:alice@example.org"

type testState struct {
	pk  *PublicKey
	sk  *SecretKey
	usk *UserSecretKey
	ct  *Ciphertext
	ss  ibe.SharedSecret
}

func newTestState(t testing.TB) *testState {
	id := ibe.DeriveIdentityString(testID)

	pk, sk, err := Setup(rand.Reader)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	usk, err := ExtractUSK(pk, sk, &id, rand.Reader)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	ct, ss, err := Encaps(pk, &id, rand.Reader)
	if err != nil {
		t.Fatalf("encaps failed: %v", err)
	}

	return &testState{pk: pk, sk: sk, usk: usk, ct: ct, ss: ss}
}

func TestEncapsDecaps(t *testing.T) {
	st := newTestState(t)
	ss := Decaps(st.usk, st.ct)
	if !ss.Equal(&st.ss) {
		t.Fatalf("decapsulated secret differs from encapsulated one")
	}
}

func TestDecapsWrongIdentity(t *testing.T) {
	st := newTestState(t)
	other := ibe.DeriveIdentityString("email:bob@example.org")
	usk, err := ExtractUSK(st.pk, st.sk, &other, rand.Reader)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if ss := Decaps(usk, st.ct); ss.Equal(&st.ss) {
		t.Fatalf("key for another identity recovered the secret")
	}
}

func TestExtractNilPublicKeyPanics(t *testing.T) {
	st := newTestState(t)
	id := ibe.DeriveIdentityString(testID)
	defer func() {
		if recover() == nil {
			t.Fatalf("nil public key did not panic")
		}
	}()
	_, _ = ExtractUSK(nil, st.sk, &id, rand.Reader)
}

// Swapping in the c1 of another encapsulation changes the tag, so the
// mixed ciphertext must decapsulate to garbage rather than either secret.
func TestImplicitRejection(t *testing.T) {
	st := newTestState(t)
	id := ibe.DeriveIdentityString(testID)

	ct2, ss2, err := Encaps(st.pk, &id, rand.Reader)
	if err != nil {
		t.Fatalf("encaps failed: %v", err)
	}

	mixed := &Ciphertext{c1: ct2.c1, c2: st.ct.c2}
	ss := Decaps(st.usk, mixed)
	if ss.Equal(&st.ss) || ss.Equal(&ss2) {
		t.Fatalf("mixed ciphertext decapsulated to a valid secret")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	st := newTestState(t)

	pkBuf := st.pk.Bytes()
	if len(pkBuf) != PkBytes {
		t.Fatalf("pk size %d, want %d", len(pkBuf), PkBytes)
	}
	var pk2 PublicKey
	if err := pk2.UnmarshalBinary(pkBuf); err != nil {
		t.Fatalf("pk parse failed: %v", err)
	}

	skBuf := st.sk.Bytes()
	if len(skBuf) != SkBytes {
		t.Fatalf("sk size %d, want %d", len(skBuf), SkBytes)
	}
	var sk2 SecretKey
	if err := sk2.UnmarshalBinary(skBuf); err != nil {
		t.Fatalf("sk parse failed: %v", err)
	}

	// Keys extracted from the round-tripped pair must still decapsulate.
	id := ibe.DeriveIdentityString(testID)
	usk, err := ExtractUSK(&pk2, &sk2, &id, rand.Reader)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	var ct2 Ciphertext
	if err := ct2.UnmarshalBinary(st.ct.Bytes()); err != nil {
		t.Fatalf("ct parse failed: %v", err)
	}
	if ss := Decaps(usk, &ct2); !ss.Equal(&st.ss) {
		t.Fatalf("decapsulation failed after round trip")
	}

	var usk2 UserSecretKey
	if err := usk2.UnmarshalBinary(st.usk.Bytes()); err != nil {
		t.Fatalf("usk parse failed: %v", err)
	}
	if ss := Decaps(&usk2, st.ct); !ss.Equal(&st.ss) {
		t.Fatalf("round-tripped usk recovered a different secret")
	}
}

func TestUnmarshalRejectsBadInput(t *testing.T) {
	var ct Ciphertext
	if err := ct.UnmarshalBinary(make([]byte, CtBytes-1)); err != ibe.ErrDeserialization {
		t.Fatalf("short ct accepted: %v", err)
	}

	bad := make([]byte, UskBytes)
	for i := range bad {
		bad[i] = 0xff
	}
	var usk UserSecretKey
	if err := usk.UnmarshalBinary(bad); err != ibe.ErrDeserialization {
		t.Fatalf("garbage usk accepted: %v", err)
	}
}

func TestMultiRecipient(t *testing.T) {
	pk, sk, err := Setup(rand.Reader)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	ids := []ibe.Identity{
		ibe.DeriveIdentityString("email:alice@example.org"),
		ibe.DeriveIdentityString("email:bob@example.org"),
	}

	enc, ss, err := MultiEncaps(pk, ids, rand.Reader)
	if err != nil {
		t.Fatalf("multi encaps failed: %v", err)
	}
	for i := range ids {
		ct, err := enc.Next()
		if err != nil {
			t.Fatalf("next failed: %v", err)
		}
		usk, err := ExtractUSK(pk, sk, &ids[i], rand.Reader)
		if err != nil {
			t.Fatalf("extract failed: %v", err)
		}
		got, err := MultiDecaps(usk, ct)
		if err != nil {
			t.Fatalf("multi decaps failed for recipient %d: %v", i, err)
		}
		if !got.Equal(&ss) {
			t.Fatalf("recipient %d recovered a different session secret", i)
		}
	}
	if _, err := enc.Next(); err != io.EOF {
		t.Fatalf("exhausted encapsulator: %v, want io.EOF", err)
	}
}

func BenchmarkSetup(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, _, err := Setup(rand.Reader); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkExtractUSK(b *testing.B) {
	st := newTestState(b)
	id := ibe.DeriveIdentityString(testID)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ExtractUSK(st.pk, st.sk, &id, rand.Reader); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncaps(b *testing.B) {
	st := newTestState(b)
	id := ibe.DeriveIdentityString(testID)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Encaps(st.pk, &id, rand.Reader); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecaps(b *testing.B) {
	st := newTestState(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Decaps(st.usk, st.ct)
	}
}
