// Package cgwkv implements an IND-ID-CCA2 secure identity-based KEM from
// the Chen-Gay-Wee identity encoding, made actively secure with the
// authenticated-encryption approach of Kiltz and Vahlis.
//
// See "Improved Dual System ABE in Prime-Order Groups via Predicate
// Encodings" (EUROCRYPT 2015) and "CCA2 Secure IBE: Standard Model
// Efficiency through Authenticated Symmetric Encryption" (CT-RSA 2008).
//
// The ciphertext binds a random 32-byte prefix into the key material via a
// collision resistant hash, so a mauled ciphertext decapsulates to an
// unrelated secret instead of an error. Decapsulation therefore rejects
// implicitly, never fails, and needs neither the master public key nor the
// identity. This makes cgwkv the scheme of choice for new deployments.
package cgwkv

import (
	"io"

	bls "github.com/cloudflare/circl/ecc/bls12381"

	"github.com/ibecrypt/ibe"
	"github.com/ibecrypt/ibe/internal"
	"github.com/ibecrypt/ibe/pkg/mkem"
)

// Serialized sizes of the scheme artifacts.
const (
	PkBytes  = 8*internal.G1Bytes + internal.GtBytes
	SkBytes  = 16 * internal.ScalarBytes
	UskBytes = 6 * internal.G2Bytes
	CtBytes  = 4*internal.G1Bytes + prefixBytes
)

const prefixBytes = 32

// PublicKey is the master public key, used to encapsulate secrets.
type PublicKey struct {
	a1      [2]bls.G1
	w0ta1   [2]bls.G1
	w1ta1   [2]bls.G1
	wprime1 [2]bls.G1
	ktat    bls.Gt
}

// SecretKey is the master secret key, used to extract user secret keys.
type SecretKey struct {
	b      [2]bls.Scalar
	k      [2]bls.Scalar
	w0     [2][2]bls.Scalar
	w1     [2][2]bls.Scalar
	wprime [2][2]bls.Scalar
}

// UserSecretKey decapsulates ciphertexts addressed to one identity.
type UserSecretKey struct {
	d0 [2]bls.G2
	d1 [2]bls.G2
	d2 [2]bls.G2
}

// Ciphertext is an encapsulation of a shared secret.
type Ciphertext struct {
	c0     [2]bls.G1
	c1     [2]bls.G1
	prefix [prefixBytes]byte
}

// Setup generates a master key pair for the private key generator.
func Setup(rng io.Reader) (*PublicKey, *SecretKey, error) {
	var a [2]bls.Scalar
	sk := new(SecretKey)

	for i := 0; i < 2; i++ {
		scalars := []*bls.Scalar{
			&a[i], &sk.b[i], &sk.k[i],
			&sk.w0[i][0], &sk.w0[i][1],
			&sk.w1[i][0], &sk.w1[i][1],
			&sk.wprime[i][0], &sk.wprime[i][1],
		}
		for _, s := range scalars {
			if err := s.Random(rng); err != nil {
				return nil, nil, err
			}
		}
	}

	var w0a, w1a, wprimea [2]bls.Scalar
	var t bls.Scalar
	for j := 0; j < 2; j++ {
		w0a[j].Mul(&sk.w0[0][j], &a[0])
		t.Mul(&sk.w0[1][j], &a[1])
		w0a[j].Add(&w0a[j], &t)

		w1a[j].Mul(&sk.w1[0][j], &a[0])
		t.Mul(&sk.w1[1][j], &a[1])
		w1a[j].Add(&w1a[j], &t)

		wprimea[j].Mul(&sk.wprime[0][j], &a[0])
		t.Mul(&sk.wprime[1][j], &a[1])
		wprimea[j].Add(&wprimea[j], &t)
	}

	pk := new(PublicKey)
	g1 := bls.G1Generator()
	for i := 0; i < 2; i++ {
		pk.a1[i].ScalarMult(&a[i], g1)
		pk.w0ta1[i].ScalarMult(&w0a[i], g1)
		pk.w1ta1[i].ScalarMult(&w1a[i], g1)
		pk.wprime1[i].ScalarMult(&wprimea[i], g1)
	}

	var ka bls.Scalar
	ka.Mul(&sk.k[0], &a[0])
	t.Mul(&sk.k[1], &a[1])
	ka.Add(&ka, &t)
	e := bls.Pair(g1, bls.G2Generator())
	pk.ktat.Exp(e, &ka)

	return pk, sk, nil
}

// ExtractUSK derives the user secret key for an identity.
func ExtractUSK(sk *SecretKey, id *ibe.Identity, rng io.Reader) (*UserSecretKey, error) {
	r, err := internal.RandScalar(rng)
	if err != nil {
		return nil, err
	}
	x := id.Scalar()

	var br [2]bls.Scalar
	br[0].Mul(&sk.b[0], r)
	br[1].Mul(&sk.b[1], r)

	usk := new(UserSecretKey)
	g2 := bls.G2Generator()
	usk.d0[0].ScalarMult(&br[0], g2)
	usk.d0[1].ScalarMult(&br[1], g2)

	var acc, t bls.Scalar
	for j := 0; j < 2; j++ {
		// d1_j = k_j - br . w0_j - id * (br . w1_j)
		acc.Mul(&br[0], &sk.w1[j][0])
		t.Mul(&br[1], &sk.w1[j][1])
		acc.Add(&acc, &t)
		acc.Mul(&acc, x)

		t.Mul(&br[0], &sk.w0[j][0])
		acc.Add(&acc, &t)
		t.Mul(&br[1], &sk.w0[j][1])
		acc.Add(&acc, &t)

		acc.Sub(&sk.k[j], &acc)
		usk.d1[j].ScalarMult(&acc, g2)

		// d2_j = -(br . wprime_j)
		acc.Mul(&br[0], &sk.wprime[j][0])
		t.Mul(&br[1], &sk.wprime[j][1])
		acc.Add(&acc, &t)
		acc.Neg()
		usk.d2[j].ScalarMult(&acc, g2)
	}

	return usk, nil
}

// Encaps encapsulates a fresh shared secret for an identity.
func Encaps(pk *PublicKey, id *ibe.Identity, rng io.Reader) (*Ciphertext, ibe.SharedSecret, error) {
	s, err := internal.RandScalar(rng)
	if err != nil {
		return nil, ibe.SharedSecret{}, err
	}
	x := id.Scalar()

	ct := new(Ciphertext)
	ct.c0[0].ScalarMult(s, &pk.a1[0])
	ct.c0[1].ScalarMult(s, &pk.a1[1])

	if _, err := io.ReadFull(rng, ct.prefix[:]); err != nil {
		return nil, ibe.SharedSecret{}, err
	}
	xprime := internal.RPCHash(&ct.prefix, &ct.c0[0], &ct.c0[1])

	var sx, sxprime bls.Scalar
	sx.Mul(s, x)
	sxprime.Mul(s, xprime)

	var t bls.G1
	for j := 0; j < 2; j++ {
		ct.c1[j].ScalarMult(s, &pk.w0ta1[j])
		t.ScalarMult(&sx, &pk.w1ta1[j])
		ct.c1[j].Add(&ct.c1[j], &t)
		t.ScalarMult(&sxprime, &pk.wprime1[j])
		ct.c1[j].Add(&ct.c1[j], &t)
	}

	var k bls.Gt
	k.Exp(&pk.ktat, s)

	return ct, ibe.SharedSecretFromGt(&k), nil
}

// Decaps derives the shared secret from a ciphertext. Rejection is
// implicit: a ciphertext that was not produced for this user secret key
// yields an unrelated secret rather than an error.
func Decaps(usk *UserSecretKey, ct *Ciphertext) ibe.SharedSecret {
	yprime := internal.RPCHash(&ct.prefix, &ct.c0[0], &ct.c0[1])

	var tmp [2]bls.G2
	var t bls.G2
	for j := 0; j < 2; j++ {
		t.ScalarMult(yprime, &usk.d2[j])
		tmp[j].Add(&usk.d1[j], &t)
	}

	one := internal.One()
	k := bls.ProdPair(
		[]*bls.G1{&ct.c0[0], &ct.c0[1], &ct.c1[0], &ct.c1[1]},
		[]*bls.G2{&tmp[0], &tmp[1], &usk.d0[0], &usk.d0[1]},
		[]*bls.Scalar{one, one, one, one},
	)

	return ibe.SharedSecretFromGt(k)
}

// MultiEncaps encapsulates one session secret for many identities using
// sealed multi-recipient ciphertexts.
func MultiEncaps(pk *PublicKey, ids []ibe.Identity, rng io.Reader) (*mkem.Encapsulator[*Ciphertext], ibe.SharedSecret, error) {
	return mkem.NewEncapsulator(rng, ids, func(id *ibe.Identity, rng io.Reader) (*Ciphertext, ibe.SharedSecret, error) {
		return Encaps(pk, id, rng)
	})
}

// MultiDecaps recovers the session secret from a sealed multi-recipient
// ciphertext.
func MultiDecaps(usk *UserSecretKey, ct *mkem.Ciphertext[*Ciphertext]) (ibe.SharedSecret, error) {
	kek := Decaps(usk, ct.KEM)
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
func MultiDecapsMasked(usk *UserSecretKey, ct *mkem.MaskedCiphertext[*Ciphertext]) ibe.SharedSecret {
	ssi := Decaps(usk, ct.KEM)
	return mkem.OpenMasked(&ssi, ct)
}

// Bytes serializes the public key (PkBytes bytes).
func (pk *PublicKey) Bytes() []byte {
	out := make([]byte, 0, PkBytes)
	for _, pair := range [][2]bls.G1{pk.a1, pk.w0ta1, pk.w1ta1, pk.wprime1} {
		out = append(out, pair[0].BytesCompressed()...)
		out = append(out, pair[1].BytesCompressed()...)
	}
	return append(out, internal.GtToBytes(&pk.ktat)...)
}

// UnmarshalBinary parses a public key from data.
func (pk *PublicKey) UnmarshalBinary(data []byte) error {
	if len(data) != PkBytes {
		return ibe.ErrDeserialization
	}

	ok := true
	off := 0
	points := []*bls.G1{
		&pk.a1[0], &pk.a1[1],
		&pk.w0ta1[0], &pk.w0ta1[1],
		&pk.w1ta1[0], &pk.w1ta1[1],
		&pk.wprime1[0], &pk.wprime1[1],
	}
	for _, p := range points {
		ok = p.SetBytes(data[off:off+internal.G1Bytes]) == nil && ok
		off += internal.G1Bytes
	}
	ok = pk.ktat.UnmarshalBinary(data[off:]) == nil && ok

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}

// Bytes serializes the secret key (SkBytes bytes).
func (sk *SecretKey) Bytes() []byte {
	out := make([]byte, 0, SkBytes)
	for i := 0; i < 2; i++ {
		out = append(out, internal.ScalarToBytes(&sk.b[i])...)
	}
	for i := 0; i < 2; i++ {
		out = append(out, internal.ScalarToBytes(&sk.k[i])...)
	}
	for _, m := range []*[2][2]bls.Scalar{&sk.w0, &sk.w1, &sk.wprime} {
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				out = append(out, internal.ScalarToBytes(&m[i][j])...)
			}
		}
	}
	return out
}

// UnmarshalBinary parses a secret key from data.
func (sk *SecretKey) UnmarshalBinary(data []byte) error {
	if len(data) != SkBytes {
		return ibe.ErrDeserialization
	}

	ok := true
	off := 0
	next := func() []byte {
		chunk := data[off : off+internal.ScalarBytes]
		off += internal.ScalarBytes
		return chunk
	}
	for i := 0; i < 2; i++ {
		ok = sk.b[i].UnmarshalBinary(next()) == nil && ok
	}
	for i := 0; i < 2; i++ {
		ok = sk.k[i].UnmarshalBinary(next()) == nil && ok
	}
	for _, m := range []*[2][2]bls.Scalar{&sk.w0, &sk.w1, &sk.wprime} {
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				ok = m[i][j].UnmarshalBinary(next()) == nil && ok
			}
		}
	}

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}

// Bytes serializes the user secret key (UskBytes bytes).
func (usk *UserSecretKey) Bytes() []byte {
	out := make([]byte, 0, UskBytes)
	for _, pair := range [][2]bls.G2{usk.d0, usk.d1, usk.d2} {
		out = append(out, pair[0].BytesCompressed()...)
		out = append(out, pair[1].BytesCompressed()...)
	}
	return out
}

// UnmarshalBinary parses a user secret key from data. All six points are
// processed regardless of earlier failures.
func (usk *UserSecretKey) UnmarshalBinary(data []byte) error {
	if len(data) != UskBytes {
		return ibe.ErrDeserialization
	}

	ok := true
	off := 0
	points := []*bls.G2{
		&usk.d0[0], &usk.d0[1],
		&usk.d1[0], &usk.d1[1],
		&usk.d2[0], &usk.d2[1],
	}
	for _, p := range points {
		ok = p.SetBytes(data[off:off+internal.G2Bytes]) == nil && ok
		off += internal.G2Bytes
	}

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}

// Bytes serializes the ciphertext (CtBytes bytes).
func (ct *Ciphertext) Bytes() []byte {
	out := make([]byte, 0, CtBytes)
	out = append(out, ct.c0[0].BytesCompressed()...)
	out = append(out, ct.c0[1].BytesCompressed()...)
	out = append(out, ct.c1[0].BytesCompressed()...)
	out = append(out, ct.c1[1].BytesCompressed()...)
	return append(out, ct.prefix[:]...)
}

// UnmarshalBinary parses a ciphertext from data.
func (ct *Ciphertext) UnmarshalBinary(data []byte) error {
	if len(data) != CtBytes {
		return ibe.ErrDeserialization
	}

	ok := true
	off := 0
	for _, p := range []*bls.G1{&ct.c0[0], &ct.c0[1], &ct.c1[0], &ct.c1[1]} {
		ok = p.SetBytes(data[off:off+internal.G1Bytes]) == nil && ok
		off += internal.G1Bytes
	}
	copy(ct.prefix[:], data[off:])

	if !ok {
		return ibe.ErrDeserialization
	}
	return nil
}
