// Package qcrypt provides the symmetric encryption used for chunk
// payloads: PBKDF2-HMAC-SHA256 key derivation and AES-256-CBC with PKCS#7
// padding. It knows nothing about chunking; the splitter and assembler
// call it per payload.
//
// The IV and salt are not secret and travel with each chunk in the clear.
// The derived key is re-derivable on the decode side from the same
// passphrase and the chunk's salt.
package qcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeyLen is the AES-256 key size in bytes.
	KeyLen = 32

	// SaltLen and IVLen are fixed at 128 bits.
	SaltLen = 16
	IVLen   = aes.BlockSize

	// Iterations is the PBKDF2 iteration count. High enough to resist
	// brute force against short passphrases.
	Iterations = 100_000
)

// ErrDecryptionFailed reports a wrong passphrase or corrupted ciphertext.
// It is distinct from an integrity mismatch so the caller knows to retry
// the passphrase rather than re-scan.
var ErrDecryptionFailed = errors.New("decryption failed")

// DeriveKey derives a KeyLen-byte key from a passphrase and salt. The
// same (passphrase, salt, iterations) always yields the same key. The
// caller owns the returned slice and should Zero it when done.
func DeriveKey(passphrase, salt []byte, iterations int) []byte {
	return pbkdf2.Key(passphrase, salt, iterations, KeyLen, sha256.New)
}

// NewSalt returns a fresh random salt.
func NewSalt() ([]byte, error) {
	return randomBytes(SaltLen)
}

// NewIV returns a fresh random initialization vector.
func NewIV() ([]byte, error) {
	return randomBytes(IVLen)
}

// Encrypt applies PKCS#7 padding and encrypts plaintext with AES-CBC.
func Encrypt(plaintext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", block.BlockSize(), len(iv))
	}

	padded := pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// Decrypt reverses Encrypt. It fails with ErrDecryptionFailed when the
// ciphertext length is not a block multiple or the padding is invalid
// after decryption, which is what a wrong passphrase looks like.
func Decrypt(ciphertext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("%w: iv must be %d bytes", ErrDecryptionFailed, block.BlockSize())
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a block multiple",
			ErrDecryptionFailed, len(ciphertext))
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plain, err := unpad(padded, block.BlockSize())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plain, nil
}

// Zero overwrites b. Passphrases and derived keys are zeroed as soon as
// the operation that needed them returns.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("entropy source: %w", err)
	}
	return b, nil
}

func pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(b[len(b)-1])
	if n < 1 || n > blockSize || n > len(b) {
		return nil, errors.New("invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
