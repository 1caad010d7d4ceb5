// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("not found")

// KV stores opaque values under string keys.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Storage is the interface for all persistence operations.
type Storage interface {
	KV

	MarkSeen(ctx context.Context, groupID, postID string) error
	IsSeen(ctx context.Context, groupID, postID string) (bool, error)
	CountSeen(ctx context.Context, groupID string) (int, error)
	ForgetGroup(ctx context.Context, groupID string) error

	Close() error
}
