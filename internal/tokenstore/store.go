// Package tokenstore persists the session token between runs of the client.
// A store holds a single token under a well-known key; the last write wins.
package tokenstore

import (
	"context"
	"fmt"

	"github.com/jon4hz/parley/internal/config"
)

// Store persists a single session token.
type Store interface {
	// Load returns the persisted token, or an empty string if none is stored.
	Load(ctx context.Context) (string, error)
	// Save persists the token, replacing any previous one.
	Save(ctx context.Context, token string) error
	// Remove deletes the persisted token. Removing an absent token is not an error.
	Remove(ctx context.Context) error
	// Close releases the underlying resources.
	Close() error
}

// New creates the token store configured by cfg.
func New(cfg *config.StorageConfig) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}

	switch cfg.Type {
	case config.StorageTypeSQLite, "":
		return NewDatabaseStore(cfg.Path, cfg.Key)
	case config.StorageTypeMemory:
		return NewMemoryStore(cfg.Key), nil
	case config.StorageTypeRedis:
		return NewRedisStore(cfg.RedisURL, cfg.Key), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
