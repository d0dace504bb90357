// Package storage defines the narrow capability shared by the event log and
// the projection: a space-partitioned key/value store with a prefix scan.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is the sentinel for a missing key. Adapter.Get does not
// return it: Get reports an absent key as ok=false with a nil error.
var ErrNotFound = errors.New("storage: key not found")

// KV is a single key/value pair as returned by Scan and MultiGet.
type KV struct {
	Key   string
	Value []byte
}

// Adapter is the capability set both the Event Log and PState consume.
// Values are opaque []byte to the adapter; serialization of higher-level
// structures (maps, lists, Refs) happens above this boundary.
type Adapter interface {
	// Get returns the stored value, or (nil, false, nil) if absent.
	Get(ctx context.Context, spaceID int64, key string) ([]byte, bool, error)

	// Put overwrites the value at key.
	Put(ctx context.Context, spaceID int64, key string, value []byte) error

	// Delete removes key. Idempotent: deleting an absent key is not an error.
	Delete(ctx context.Context, spaceID int64, key string) error

	// Scan returns every (key, value) in the space whose key has the given
	// prefix. Result order is unspecified but deterministic per call.
	Scan(ctx context.Context, spaceID int64, prefix string) ([]KV, error)

	// MultiGet returns only the keys that are present.
	MultiGet(ctx context.Context, spaceID int64, keys []string) (map[string][]byte, error)

	// MultiPut writes every pair. Durable adapters execute this as a single
	// transaction; last-write-wins on duplicate keys within the batch.
	MultiPut(ctx context.Context, spaceID int64, pairs []KV) error

	// DeleteSpace removes every key belonging to spaceID, across all
	// prefixes. Used by space deletion to cascade-clean the adapter.
	DeleteSpace(ctx context.Context, spaceID int64) error

	// Close releases resources held by the adapter.
	Close() error
}
