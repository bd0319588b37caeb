package ibe

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveIdentity(t *testing.T) {
	a := DeriveIdentityString("email:alice@example.org")
	b := DeriveIdentity([]byte("email:alice@example.org"))
	require.Equal(t, a, b)
	require.NotEqual(t, a, DeriveIdentityString("email:bob@example.org"))

	round, err := IdentityFromBytes(a[:])
	require.NoError(t, err)
	require.Equal(t, a, round)

	_, err = IdentityFromBytes(a[:IdentityBytes-1])
	require.ErrorIs(t, err, ErrDeserialization)
}

func TestIdentityScalar(t *testing.T) {
	a := DeriveIdentityString("email:alice@example.org")
	require.Equal(t, 1, a.Scalar().IsEqual(a.Scalar()))

	b := DeriveIdentityString("email:bob@example.org")
	require.Equal(t, 0, a.Scalar().IsEqual(b.Scalar()))
}

func TestSharedSecret(t *testing.T) {
	ss, err := NewSharedSecret(rand.Reader)
	require.NoError(t, err)
	require.False(t, ss.IsZero())

	other, err := NewSharedSecret(rand.Reader)
	require.NoError(t, err)

	masked := ss
	masked.Xor(&other)
	require.False(t, masked.Equal(&ss))
	masked.Xor(&other)
	require.True(t, masked.Equal(&ss))

	round, err := SharedSecretFromBytes(ss.Bytes())
	require.NoError(t, err)
	require.True(t, round.Equal(&ss))

	_, err = SharedSecretFromBytes(ss[:16])
	require.ErrorIs(t, err, ErrDeserialization)
}
