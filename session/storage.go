package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Storage.Get when the key holds no value.
var ErrNotFound = errors.New("session: key not found")

// Storage is the durable key-value space the session is persisted in.
// Implementations must be safe for concurrent use, and Delete of a missing
// key must succeed.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// MultiStorage is implemented by backends that can write or delete several
// keys in one operation. Store uses it to keep tokens and user in step.
type MultiStorage interface {
	Storage
	SetMany(ctx context.Context, entries map[string][]byte) error
	DeleteMany(ctx context.Context, keys ...string) error
}
