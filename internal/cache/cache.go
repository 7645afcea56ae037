package cache

import (
	"context"
	"errors"
)

// RegistryCache holds encoded registry payloads in front of the repository.
type RegistryCache interface {
	Get(ctx context.Context, sessionID string) ([]byte, error)
	Set(ctx context.Context, sessionID string, payload []byte) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = errors.New("cache miss")
