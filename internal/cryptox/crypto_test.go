package cryptox

import (
	"encoding/hex"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomSecret(t *testing.T) {
	a, err := RandomSecret(20)
	require.NoError(t, err)
	b, err := RandomSecret(20)
	require.NoError(t, err)

	assert.Len(t, a, 40)
	_, err = hex.DecodeString(a)
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashToken_Deterministic(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashToken("abc"))
	assert.Equal(t, HashToken("token"), HashToken("token"))
	assert.NotEqual(t, HashToken("token"), HashToken("token2"))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("482913", "482913"))
	assert.False(t, Equal("482913", "482914"))
	assert.False(t, Equal("482913", "48291"))
	assert.True(t, Equal("", ""))
}

func TestRandomCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := RandomCode(6, Digits)
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			require.True(t, strings.ContainsRune(Digits, r), "unexpected symbol %q", r)
		}
	}

	code, err := RandomCode(8, AlphaNumeric)
	require.NoError(t, err)
	assert.Len(t, code, 8)

	_, err = RandomCode(6, "1")
	assert.ErrorIs(t, err, ErrInvalidAlphabet)

	// one two-byte symbol is still a single symbol
	_, err = RandomCode(6, "Ж")
	assert.ErrorIs(t, err, ErrInvalidAlphabet)
}

func TestRandomCode_MultiByteAlphabet(t *testing.T) {
	const alphabet = "АБВГДЕЖ"
	for i := 0; i < 50; i++ {
		code, err := RandomCode(6, alphabet)
		require.NoError(t, err)
		require.True(t, utf8.ValidString(code), "invalid utf-8 %q", code)
		require.Equal(t, 6, utf8.RuneCountInString(code))
		for _, r := range code {
			require.True(t, strings.ContainsRune(alphabet, r), "unexpected symbol %q", r)
		}
	}
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer("server-secret")
	require.NoError(t, err)

	ct, nonce, err := s.Seal([]byte("correct horse"))
	require.NoError(t, err)
	assert.NotContains(t, string(ct), "correct horse")

	pt, err := s.Open(ct, nonce)
	require.NoError(t, err)
	assert.Equal(t, "correct horse", string(pt))
}

func TestSealer_WrongKeyOrTampered(t *testing.T) {
	s1, err := NewSealer("key-1")
	require.NoError(t, err)
	s2, err := NewSealer("key-2")
	require.NoError(t, err)

	ct, nonce, err := s1.Seal([]byte("payload"))
	require.NoError(t, err)

	_, err = s2.Open(ct, nonce)
	assert.Error(t, err)

	ct[0] ^= 0xff
	_, err = s1.Open(ct, nonce)
	assert.Error(t, err)

	_, err = s1.Open(ct, []byte("short"))
	assert.Error(t, err)
}
