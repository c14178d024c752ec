// Package storage persists small JSON blobs under well-known keys. It is the
// client-side analogue of browser local storage: writes are best-effort and a
// corrupt or missing value always reads back as absent, never as an error the
// caller has to distinguish from "not set".
package storage

import (
	"context"
	"encoding/json"
)

// Keys used by the stores. There is no schema versioning; a structurally
// incompatible blob is discarded on read.
const (
	KeyUser       = "user"
	KeyUserToken  = "userToken"
	KeyCart       = "cart"
	KeyReturnPath = "returnPath"
)

type Store interface {
	// Get returns the raw value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Put stores the value for key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes the value for key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}

// ReadJSON unmarshals the value at key into out. A missing or unparseable
// value leaves out untouched and returns false.
func ReadJSON(ctx context.Context, s Store, key string, out any) bool {
	raw, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false
	}
	return true
}

// WriteJSON marshals v and stores it at key.
func WriteJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Put(ctx, key, raw)
}
