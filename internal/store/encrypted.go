package store

import (
	"context"
	"fmt"

	"github.com/fridayce/rork-mapcask/internal/domain"
)

// Cipher encrypts values at rest. security.Encryptor satisfies it.
type Cipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(enc string) (string, error)
}

// EncryptedStore encrypts every value before handing it to the wrapped store.
// Keys are stored in the clear.
type EncryptedStore struct {
	next   domain.KeyValueStore
	cipher Cipher
}

func NewEncryptedStore(next domain.KeyValueStore, c Cipher) *EncryptedStore {
	return &EncryptedStore{next: next, cipher: c}
}

var _ domain.KeyValueStore = (*EncryptedStore)(nil)

func (s *EncryptedStore) Get(ctx context.Context, key string) (string, error) {
	enc, err := s.next.Get(ctx, key)
	if err != nil {
		return "", err
	}
	plain, err := s.cipher.Decrypt(enc)
	if err != nil {
		return "", fmt.Errorf("decrypt %s: %w", key, err)
	}
	return plain, nil
}

func (s *EncryptedStore) Set(ctx context.Context, key, value string) error {
	enc, err := s.cipher.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", key, err)
	}
	return s.next.Set(ctx, key, enc)
}

func (s *EncryptedStore) Delete(ctx context.Context, key string) error {
	return s.next.Delete(ctx, key)
}

func (s *EncryptedStore) Clear(ctx context.Context) error {
	return s.next.Clear(ctx)
}
