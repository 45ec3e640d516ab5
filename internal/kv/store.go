// Package kv provides the durable key-value stores that back form drafts.
//
// Every backend maps string keys to string values. A missing key is not an
// error: Get reports it through its boolean result.
package kv

import (
	"context"
	"errors"
)

// Errors returned by stores.
var (
	ErrClosed    = errors.New("kv: store closed")
	ErrIntegrity = errors.New("kv: integrity check failed")
	ErrEmptyKey  = errors.New("kv: empty key")
)

// Store is a flat string key-value store.
type Store interface {
	// Get returns the value stored under key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the store's resources.
	Close() error
}

func checkKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}
