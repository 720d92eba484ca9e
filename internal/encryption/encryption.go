// Package encryption provides the symmetric cipher used for message bodies.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"

	"beacon-network-backend/config"
)

const (
	keyLen   = 32 // AES-256
	nonceLen = 12 // AES-GCM standard nonce size

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// defaultSalt is used when a passphrase is configured without a salt.
var defaultSalt = []byte("beacon-network-v1")

// ErrDecryptionFailed is returned for any ciphertext that cannot be opened.
var ErrDecryptionFailed = errors.New("decryption failed")

// Service encrypts and decrypts message content.
type Service interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// AESService implements Service with AES-256-GCM. Ciphertexts are
// base64(nonce || sealed) so a fresh nonce is used on every call.
type AESService struct {
	aead cipher.AEAD
}

// NewAESService creates a cipher from a 32-byte key.
func NewAESService(key []byte) (*AESService, error) {
	if len(key) != keyLen {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keyLen, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &AESService{aead: gcm}, nil
}

// Encrypt seals plaintext and returns the base64 encoded envelope.
func (s *AESService) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an envelope produced by Encrypt.
func (s *AESService) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	if len(data) < nonceLen {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}
	plain, err := s.aead.Open(nil, data[:nonceLen], data[nonceLen:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plain), nil
}

// DeriveKey stretches a passphrase into an AES-256 key using argon2id.
func DeriveKey(passphrase string, salt []byte) []byte {
	if len(salt) == 0 {
		salt = defaultSalt
	}
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keyLen)
}

// GenerateKey returns a random AES-256 key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// KeyFromConfig resolves the configured key. Precedence is an explicit
// base64 key, then a passphrase, then a random key; ephemeral reports the
// last case, where ciphertexts do not survive a restart.
func KeyFromConfig(cfg config.EncryptionConfig) (key []byte, ephemeral bool, err error) {
	switch {
	case cfg.Key != "":
		key, err = base64.StdEncoding.DecodeString(cfg.Key)
		if err != nil {
			return nil, false, fmt.Errorf("decode encryption key: %w", err)
		}
		if len(key) != keyLen {
			return nil, false, fmt.Errorf("encryption key must be %d bytes, got %d", keyLen, len(key))
		}
		return key, false, nil
	case cfg.Passphrase != "":
		return DeriveKey(cfg.Passphrase, []byte(cfg.Salt)), false, nil
	default:
		key, err = GenerateKey()
		return key, true, err
	}
}
