package waters

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/ibecrypt/ibe"
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
	id := DeriveIdentityString(testID)

	pk, sk, err := Setup(rand.Reader)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	usk, err := ExtractUSK(pk, sk, &id, rand.Reader)
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
	if !Decrypt(st.usk, st.ct).Equal(st.msg) {
		t.Fatalf("decrypted message differs from plaintext")
	}
}

func TestDecryptWrongIdentity(t *testing.T) {
	st := newTestState(t)
	other := DeriveIdentityString("email:bob@example.org")
	usk, err := ExtractUSK(st.pk, st.sk, &other, rand.Reader)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if Decrypt(usk, st.ct).Equal(st.msg) {
		t.Fatalf("key for another identity decrypted the message")
	}
}

func TestExtractRerandomizes(t *testing.T) {
	st := newTestState(t)
	id := DeriveIdentityString(testID)

	u1, err := ExtractUSK(st.pk, st.sk, &id, rand.Reader)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	u2, err := ExtractUSK(st.pk, st.sk, &id, rand.Reader)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if bytes.Equal(u1.Bytes(), u2.Bytes()) {
		t.Fatalf("two extractions produced identical keys")
	}

	if !Decrypt(u1, st.ct).Equal(st.msg) || !Decrypt(u2, st.ct).Equal(st.msg) {
		t.Fatalf("rerandomized keys disagree on the plaintext")
	}
}

func TestExtractNilPublicKeyPanics(t *testing.T) {
	st := newTestState(t)
	id := DeriveIdentityString(testID)
	defer func() {
		if recover() == nil {
			t.Fatalf("nil public key did not panic")
		}
	}()
	_, _ = ExtractUSK(nil, st.sk, &id, rand.Reader)
}

func TestIdentityDerivation(t *testing.T) {
	a := DeriveIdentityString(testID)
	b := DeriveIdentity([]byte(testID))
	if a != b {
		t.Fatalf("string and byte derivation disagree")
	}
	if a == DeriveIdentityString("email:bob@example.org") {
		t.Fatalf("different identities derived the same hash")
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

	var sk2 SecretKey
	if err := sk2.UnmarshalBinary(st.sk.Bytes()); err != nil {
		t.Fatalf("sk parse failed: %v", err)
	}
	var usk2 UserSecretKey
	if err := usk2.UnmarshalBinary(st.usk.Bytes()); err != nil {
		t.Fatalf("usk parse failed: %v", err)
	}
	var ct2 Ciphertext
	if err := ct2.UnmarshalBinary(st.ct.Bytes()); err != nil {
		t.Fatalf("ct parse failed: %v", err)
	}

	if !Decrypt(&usk2, &ct2).Equal(st.msg) {
		t.Fatalf("decryption failed after round trip")
	}
}

func TestUnmarshalRejectsBadInput(t *testing.T) {
	var usk UserSecretKey
	if err := usk.UnmarshalBinary(make([]byte, UskBytes+1)); err != ibe.ErrDeserialization {
		t.Fatalf("oversized usk accepted: %v", err)
	}

	bad := make([]byte, UskBytes)
	for i := range bad {
		bad[i] = 0xff
	}
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
	id := DeriveIdentityString(testID)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ExtractUSK(st.pk, st.sk, &id, rand.Reader); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncrypt(b *testing.B) {
	st := newTestState(b)
	id := DeriveIdentityString(testID)
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
