// Package identity manages the per-installation user identifier.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/eldtechnologies/carebot/internal/store"
)

const prefix = "user_"

// NewUserID generates a time-ordered installation id.
func NewUserID() string {
	return prefix + uuid.Must(uuid.NewV7()).String()
}

// LoadOrCreate returns the stored installation id, generating and persisting
// one the first time.
func LoadOrCreate(ctx context.Context, kv store.KV) (string, error) {
	raw, err := kv.Get(ctx, store.UserIDKey)
	switch {
	case err == nil:
		if id := strings.TrimSpace(string(raw)); id != "" {
			return id, nil
		}
	case !errors.Is(err, store.ErrNotFound):
		return "", err
	}

	id := NewUserID()
	if err := kv.Set(ctx, store.UserIDKey, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}
