// Package piitest provides a deterministic codec for tests.
package piitest

import (
	"encoding/base64"
	"errors"
	"strings"
	"sync"

	"cleanflow/pii"
)

// ErrEncryptFailed is returned by Codec.Encrypt when FailEncrypt is set.
var ErrEncryptFailed = errors.New("piitest: encrypt failed")

// Codec base64-encodes values behind pii.Prefix and counts calls.
type Codec struct {
	FailEncrypt bool

	mu       sync.Mutex
	encrypts int
	decrypts int
}

func (c *Codec) Encrypt(plain string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailEncrypt {
		return "", ErrEncryptFailed
	}
	c.encrypts++
	return pii.Prefix + base64.StdEncoding.EncodeToString([]byte(plain)), nil
}

func (c *Codec) Decrypt(value string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decrypts++
	if !strings.HasPrefix(value, pii.Prefix) {
		return "", pii.ErrNotCiphertext
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, pii.Prefix))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Seal is the test helper form of Encrypt.
func (c *Codec) Seal(plain string) string {
	out, err := c.Encrypt(plain)
	if err != nil {
		panic(err)
	}
	return out
}

func (c *Codec) Decrypts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decrypts
}

func (c *Codec) Encrypts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encrypts
}
