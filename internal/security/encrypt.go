package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"github.com/fernet/fernet-go"
)

var ErrDecrypt = errors.New("failed to decrypt stored value")

// Encryptor seals persisted documents with AES-256-GCM. Values written by
// deployments that used Fernet keys are still readable when those keys are
// passed as legacy keys.
type Encryptor struct {
	aead       cipher.AEAD
	fernetKeys []*fernet.Key
}

// NewEncryptor derives the AES key as SHA-256 of key, so secrets of any
// length are accepted.
func NewEncryptor(key []byte, legacyKeys []string) (*Encryptor, error) {
	if len(key) == 0 {
		return nil, errors.New("encryption key must not be empty")
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	var fernetKeys []*fernet.Key
	for _, raw := range append([]string{string(key)}, legacyKeys...) {
		if fk := parseFernetKey(raw); fk != nil {
			fernetKeys = append(fernetKeys, fk)
		}
	}
	return &Encryptor{aead: aead, fernetKeys: fernetKeys}, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	sum := sha256.Sum256(key)
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func parseFernetKey(raw string) *fernet.Key {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	key, err := fernet.DecodeKey(trimmed)
	if err != nil {
		return nil
	}
	return key
}

// Encrypt returns base64(nonce || ciphertext).
func (e *Encryptor) Encrypt(plain string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *Encryptor) Decrypt(enc string) (string, error) {
	if raw, err := base64.StdEncoding.DecodeString(enc); err == nil && len(raw) >= e.aead.NonceSize() {
		n := e.aead.NonceSize()
		if plain, err := e.aead.Open(nil, raw[:n], raw[n:], nil); err == nil {
			return string(plain), nil
		}
	}

	// TTL 0 disables the Fernet expiry check.
	if len(e.fernetKeys) > 0 {
		if plain := fernet.VerifyAndDecrypt([]byte(enc), 0, e.fernetKeys); plain != nil {
			return string(plain), nil
		}
	}
	return "", ErrDecrypt
}
