package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var ErrDecrypt = errors.New("crypto: decryption failed")

// Box provides symmetric encryption for OAuth tokens and webhook URLs
// using NaCl secretbox (XSalsa20-Poly1305). The nonce is prepended to
// the ciphertext.
type Box struct {
	key [keySize]byte
}

// NewBox builds a Box from a base64-encoded 32-byte key. An empty key
// generates a random one, which makes previously stored ciphertexts
// unreadable after restart; only acceptable for development.
func NewBox(keyB64 string) (*Box, error) {
	b := &Box{}

	if keyB64 == "" {
		log.Printf("[WARN] No encryption key configured; using a random dev key. DO NOT use in production.")
		if _, err := io.ReadFull(rand.Reader, b.key[:]); err != nil {
			return nil, fmt.Errorf("failed to generate dev key: %w", err)
		}
		return b, nil
	}

	raw, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key encoding: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(raw))
	}
	copy(b.key[:], raw)
	return b, nil
}

// Encrypt seals a string and returns nonce||ciphertext
func (b *Box) Encrypt(plaintext string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key), nil
}

// Decrypt opens nonce||ciphertext produced by Encrypt
func (b *Box) Decrypt(ciphertext []byte) (string, error) {
	if len(ciphertext) < nonceSize {
		return "", ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
