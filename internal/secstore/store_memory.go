package secstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"aegis/pkg/faults"
	"aegis/pkg/platform/clock"
)

// InMemoryStore keeps entries in memory. Used by tests and as the fallback
// when no persistent path is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	sealer  Sealer
	clock   clock.Clock
}

type memoryEntry struct {
	value     []byte
	encrypted bool
	expiresAt time.Time // zero means no expiry
}

// MemoryOption configures an InMemoryStore.
type MemoryOption func(*InMemoryStore)

// WithMemorySealer enables at-rest sealing for entries written with
// Options.Encrypted.
func WithMemorySealer(sealer Sealer) MemoryOption {
	return func(s *InMemoryStore) {
		s.sealer = sealer
	}
}

// WithMemoryClock overrides the clock used for expiry checks.
func WithMemoryClock(c clock.Clock) MemoryOption {
	return func(s *InMemoryStore) {
		s.clock = c
	}
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		entries: make(map[string]memoryEntry),
		clock:   clock.NewSystem(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !s.clock.Now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return nil, ErrNotFound
	}
	if entry.encrypted {
		if s.sealer == nil {
			return nil, faults.New(faults.CodeStorageError, "encrypted entry but no sealer configured")
		}
		return s.sealer.Open(entry.value)
	}
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

func (s *InMemoryStore) Set(_ context.Context, key string, value []byte, opts Options) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	if opts.Encrypted {
		if s.sealer == nil {
			return faults.New(faults.CodeStorageError, "encrypted write but no sealer configured")
		}
		sealed, err := s.sealer.Seal(stored)
		if err != nil {
			return err
		}
		stored = sealed
	}

	var expiresAt time.Time
	if opts.TTL > 0 {
		expiresAt = s.clock.Now().Add(opts.TTL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: stored, encrypted: opts.Encrypted, expiresAt: expiresAt}
	return nil
}

func (s *InMemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *InMemoryStore) RemoveByPrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}
