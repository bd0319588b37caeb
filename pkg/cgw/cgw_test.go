package cgw

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/ibecrypt/ibe"
	"github.com/ibecrypt/ibe/internal"
)

const testID = "email:alice@example.org"

type testState struct {
	pk  *PublicKey
	sk  *SecretKey
	usk *UserSecretKey
	ct  *Ciphertext
	msg *Message
}

func newTestState(t testing.TB) *testState {
	id := ibe.DeriveIdentityString(testID)

	pk, sk, err := Setup(rand.Reader)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	usk, err := ExtractUSK(sk, &id, rand.Reader)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	msg, err := RandomMessage(rand.Reader)
	if err != nil {
		t.Fatalf("message sampling failed: %v", err)
	}
	ct, err := EncryptRand(pk, &id, msg, rand.Reader)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	return &testState{pk: pk, sk: sk, usk: usk, ct: ct, msg: msg}
}

func TestEncryptDecrypt(t *testing.T) {
	st := newTestState(t)
	got := Decrypt(st.usk, st.ct)
	if !got.Equal(st.msg) {
		t.Fatalf("decrypted message differs from plaintext")
	}
}

func TestDecryptWrongIdentity(t *testing.T) {
	st := newTestState(t)
	other := ibe.DeriveIdentityString("email:bob@example.org")
	usk, err := ExtractUSK(st.sk, &other, rand.Reader)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if Decrypt(usk, st.ct).Equal(st.msg) {
		t.Fatalf("key for another identity decrypted the message")
	}
}

func TestEncryptDeterministic(t *testing.T) {
	st := newTestState(t)
	id := ibe.DeriveIdentityString(testID)

	var coins [64]byte
	rng := internal.NewSeededReader(7)
	if _, err := rng.Read(coins[:]); err != nil {
		t.Fatalf("coin sampling failed: %v", err)
	}

	a := Encrypt(st.pk, &id, st.msg, &coins)
	b := Encrypt(st.pk, &id, st.msg, &coins)
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatalf("same coins produced different ciphertexts")
	}
	if !Decrypt(st.usk, a).Equal(st.msg) {
		t.Fatalf("deterministic ciphertext did not decrypt")
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
	if !bytes.Equal(pk2.Bytes(), pkBuf) {
		t.Fatalf("pk round trip changed bytes")
	}

	skBuf := st.sk.Bytes()
	if len(skBuf) != SkBytes {
		t.Fatalf("sk size %d, want %d", len(skBuf), SkBytes)
	}
	var sk2 SecretKey
	if err := sk2.UnmarshalBinary(skBuf); err != nil {
		t.Fatalf("sk parse failed: %v", err)
	}
	if !bytes.Equal(sk2.Bytes(), skBuf) {
		t.Fatalf("sk round trip changed bytes")
	}

	uskBuf := st.usk.Bytes()
	if len(uskBuf) != UskBytes {
		t.Fatalf("usk size %d, want %d", len(uskBuf), UskBytes)
	}
	var usk2 UserSecretKey
	if err := usk2.UnmarshalBinary(uskBuf); err != nil {
		t.Fatalf("usk parse failed: %v", err)
	}

	ctBuf := st.ct.Bytes()
	if len(ctBuf) != CtBytes {
		t.Fatalf("ct size %d, want %d", len(ctBuf), CtBytes)
	}
	var ct2 Ciphertext
	if err := ct2.UnmarshalBinary(ctBuf); err != nil {
		t.Fatalf("ct parse failed: %v", err)
	}

	if !Decrypt(&usk2, &ct2).Equal(st.msg) {
		t.Fatalf("decryption failed after round trip")
	}

	msgBuf := st.msg.Bytes()
	var msg2 Message
	if err := msg2.UnmarshalBinary(msgBuf); err != nil {
		t.Fatalf("message parse failed: %v", err)
	}
	if !msg2.Equal(st.msg) {
		t.Fatalf("message round trip changed value")
	}
}

func TestUnmarshalRejectsBadInput(t *testing.T) {
	st := newTestState(t)

	var pk PublicKey
	if err := pk.UnmarshalBinary(make([]byte, PkBytes-1)); err != ibe.ErrDeserialization {
		t.Fatalf("short pk accepted: %v", err)
	}

	// An invalid compressed point encoding.
	bad := st.usk.Bytes()
	for i := range bad {
		bad[i] = 0xff
	}
	var usk UserSecretKey
	if err := usk.UnmarshalBinary(bad); err != ibe.ErrDeserialization {
		t.Fatalf("garbage usk accepted: %v", err)
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
		if _, err := ExtractUSK(st.sk, &id, rand.Reader); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncrypt(b *testing.B) {
	st := newTestState(b)
	id := ibe.DeriveIdentityString(testID)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := EncryptRand(st.pk, &id, st.msg, rand.Reader); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecrypt(b *testing.B) {
	st := newTestState(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Decrypt(st.usk, st.ct)
	}
}
