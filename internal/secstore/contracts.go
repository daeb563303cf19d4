// Package secstore provides persisted key-value storage with per-entry
// expiry and optional encryption at rest. Every other aegis component keeps
// its durable state here: the token bundle, rate-limit counters, the
// singleton session, and the codec keyring.
package secstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist or its entry has expired.
var ErrNotFound = errors.New("entry not found")

// Options controls how a single entry is written.
type Options struct {
	// TTL expires the entry after the given duration. Zero means no expiry.
	TTL time.Duration
	// Encrypted seals the value at rest. Reads transparently unseal.
	Encrypted bool
}

// Store is the persisted key-value contract.
//
// Error contract:
//   - Get returns ErrNotFound when the key is absent or expired.
//   - Infrastructure failures are returned wrapped with context.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, opts Options) error
	Remove(ctx context.Context, key string) error
	// RemoveByPrefix deletes every entry whose key starts with prefix and
	// returns how many were removed.
	RemoveByPrefix(ctx context.Context, prefix string) (int, error)
}

// Sealer encrypts and decrypts values at rest.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}
