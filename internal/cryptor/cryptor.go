// Package cryptor implements the symmetric codec used on the wire between
// managed endpoints and the upstream control server: AES-128-CBC with PKCS#7
// padding, base64-encoded. The IV is fixed for the process lifetime; this is
// a protocol compatibility constraint with the upstream, not a recommendation.
package cryptor

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrDecrypt is returned (wrapped) for any malformed ciphertext: bad base64,
// non-block-aligned input, or invalid padding.
var ErrDecrypt = errors.New("decrypt failed")

// Cryptor encrypts and decrypts message bodies. The zero value is not usable;
// construct with New. Safe for concurrent use: the key schedule and IV are
// immutable after construction.
type Cryptor struct {
	block cipher.Block
	iv    []byte
}

// New creates a Cryptor from a 16-byte key and 16-byte IV.
func New(key, iv []byte) (*Cryptor, error) {
	if len(key) != aes.BlockSize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", aes.BlockSize, len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	c := &Cryptor{block: block, iv: make([]byte, aes.BlockSize)}
	copy(c.iv, iv)
	return c, nil
}

// Encrypt PKCS#7-pads the plaintext, AES-CBC encrypts it, and returns the
// ciphertext base64-encoded. Deterministic for a fixed (key, IV).
func (c *Cryptor) Encrypt(plaintext string) string {
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out)
}

// Decrypt is the inverse of Encrypt. It returns ErrDecrypt (wrapped) on
// malformed base64, ciphertext that is empty or not a multiple of the block
// size, or invalid PKCS#7 padding.
func (c *Cryptor) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrDecrypt, err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext length %d is not block-aligned", ErrDecrypt, len(raw))
	}
	padded := make([]byte, len(raw))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(padded, raw)
	plain, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plain), nil
}

// pkcs7Pad appends 1..blockSize bytes, each equal to the pad length.
func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty input")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
