// Package kvstore is the durable string-keyed store behind the wallet preferences.
// Values are opaque bytes, JSON by convention.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get for keys that were never set or were deleted.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a durable key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// Watcher delivers change notifications. A nil value means the key was deleted.
type Watcher interface {
	Watch(fn func(key string, value []byte)) (stop func())
}

// GetJSON decodes the value at key into v. found is false when the key is unset.
func GetJSON(ctx context.Context, s Store, key string, v any) (found bool, err error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
