// Package secrets decrypts app configuration that was encrypted at export
// time with a user supplied key.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// Key derivation parameters
const (
	saltSize = 16
	keySize  = 32
	scryptN  = 1 << 15
	scryptR  = 8
	scryptP  = 1
)

var (
	// ErrWrongKey is returned when the ciphertext does not authenticate under the key
	ErrWrongKey = errors.New("secrets: wrong encryption key")

	// ErrMalformed is returned for ciphertext that is not in the expected format
	ErrMalformed = errors.New("secrets: malformed ciphertext")
)

// Encrypt seals plaintext under a key derived from passphrase. The output
// is base64(salt | nonce | sealed).
func Encrypt(passphrase string, plaintext []byte) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a value produced by Encrypt
func Decrypt(passphrase, encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < saltSize {
		return nil, ErrMalformed
	}
	gcm, err := newGCM(passphrase, raw[:saltSize])
	if err != nil {
		return nil, err
	}
	rest := raw[saltSize:]
	if len(rest) < gcm.NonceSize()+gcm.Overhead() {
		return nil, ErrMalformed
	}

	plaintext, err := gcm.Open(nil, rest[:gcm.NonceSize()], rest[gcm.NonceSize():], nil)
	if err != nil {
		return nil, ErrWrongKey
	}
	return plaintext, nil
}

// DecryptJSON decrypts value into a JSON document. Values that are not
// strings were stored unencrypted and are returned as-is.
func DecryptJSON(passphrase string, value any) (any, error) {
	encoded, ok := value.(string)
	if !ok {
		return value, nil
	}
	plaintext, err := Decrypt(passphrase, encoded)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(plaintext, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
