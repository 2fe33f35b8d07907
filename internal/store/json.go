// Package store holds the key-value backends and the JSON document helpers
// the services use on top of them.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fridayce/rork-mapcask/internal/domain"
)

// LoadJSON decodes the document stored at key into dst. It reports false,
// leaving dst untouched, when the key is absent or holds JSON null.
func LoadJSON(ctx context.Context, kv domain.KeyValueStore, key string, dst any) (bool, error) {
	raw, err := kv.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if raw == "" || raw == "null" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes v and writes it under key.
func SaveJSON(ctx context.Context, kv domain.KeyValueStore, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
