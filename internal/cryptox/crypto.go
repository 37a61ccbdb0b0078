// Package cryptox is the secret/token codec of the server: it produces random
// secrets and one-time codes, derives the digests that are stored instead of
// the secrets, compares digests in constant time, and seals short-lived
// sensitive material with AES-GCM.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/dmitrijs2005/credkeeper/internal/common"
)

// Digits is the numeric one-time code alphabet.
const Digits = "0123456789"

// AlphaNumeric is an unambiguous upper-case alphabet for one-time codes.
const AlphaNumeric = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var ErrInvalidAlphabet = errors.New("alphabet must contain at least two symbols")

// RandomSecret returns size random bytes as a hex string. The result is what
// gets mailed to the user; only HashToken of it is ever stored.
func RandomSecret(size int) (string, error) {
	return common.MakeRandHexString(size)
}

// HashToken returns the hex SHA-256 digest of a secret.
func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Equal compares two strings in time independent of where they differ.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RandomCode draws length symbols uniformly from alphabet using crypto/rand.
// Symbols are runes, so alphabets outside ASCII are fine.
func RandomCode(length int, alphabet string) (string, error) {
	symbols := []rune(alphabet)
	if len(symbols) < 2 {
		return "", ErrInvalidAlphabet
	}
	max := big.NewInt(int64(len(symbols)))
	out := make([]rune, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = symbols[n.Int64()]
	}
	return string(out), nil
}

// Sealer encrypts and decrypts small payloads with AES-256-GCM under a key
// derived from the server secret.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the AES key as SHA-256(secret).
func NewSealer(secret string) (*Sealer, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext with a fresh random nonce.
func (s *Sealer) Seal(plaintext []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return s.aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Open reverses Seal. Tampered input or a different key yields an error.
func (s *Sealer) Open(ciphertext, nonce []byte) ([]byte, error) {
	if len(nonce) != s.aead.NonceSize() {
		return nil, errors.New("invalid nonce size")
	}
	return s.aead.Open(nil, nonce, ciphertext, nil)
}
