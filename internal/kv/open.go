package kv

import (
	"context"
	"fmt"

	"formsync/internal/config"
)

// Open creates the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendSQLite:
		return OpenSQLite(cfg.Path, cfg.IntegritySecret)
	case config.BackendRedis:
		ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
		defer cancel()
		return OpenRedis(ctx, cfg.RedisURL, cfg.RedisPrefix)
	case config.BackendFile:
		return OpenFile(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
