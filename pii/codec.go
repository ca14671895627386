// Package pii encrypts personal fields before they are written and reads them
// back during projection.
package pii

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Prefix marks a stored value as ciphertext produced by a Codec.
const Prefix = "enc:v1:"

var (
	// ErrNotCiphertext is returned by Decrypt for values without Prefix.
	ErrNotCiphertext = errors.New("pii: value is not ciphertext")
	// ErrEmptySecret is returned when a codec is built without key material.
	ErrEmptySecret = errors.New("pii: empty secret")
)

// Codec is the field-level encryption capability.
type Codec interface {
	Encrypt(plain string) (string, error)
	Decrypt(cipher string) (string, error)
}

// CodecError wraps a failure from the underlying codec.
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("pii: %s: %v", e.Op, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// IsCiphertext reports whether s carries the codec prefix.
func IsCiphertext(s string) bool {
	return strings.HasPrefix(s, Prefix)
}

// AEADCodec seals values with XChaCha20-Poly1305 under a key derived from a
// shared secret.
type AEADCodec struct {
	aead cipher.AEAD
}

// NewAEADCodec derives a 256-bit key from secret with HKDF-SHA256.
func NewAEADCodec(secret []byte) (*AEADCodec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, secret, nil, []byte("cleanflow pii field key v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("pii: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("pii: init aead: %w", err)
	}
	return &AEADCodec{aead: aead}, nil
}

func (c *AEADCodec) Encrypt(plain string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plain)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", &CodecError{Op: "encrypt", Err: err}
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return Prefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *AEADCodec) Decrypt(value string) (string, error) {
	if !IsCiphertext(value) {
		return "", ErrNotCiphertext
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", &CodecError{Op: "decode", Err: err}
	}
	if len(raw) < c.aead.NonceSize() {
		return "", &CodecError{Op: "decrypt", Err: errors.New("ciphertext too short")}
	}
	nonce, body := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", &CodecError{Op: "decrypt", Err: err}
	}
	return string(plain), nil
}

// Seal encrypts an optional value. Nil stays nil; any failure is reported as
// a *CodecError so callers can abort the write.
func Seal(c Codec, plain *string) (*string, error) {
	if plain == nil {
		return nil, nil
	}
	out, err := c.Encrypt(*plain)
	if err != nil {
		var ce *CodecError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &CodecError{Op: "encrypt", Err: err}
	}
	return &out, nil
}
