package conversation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by Store.Load when the session has no blob,
// whether it never existed or its TTL elapsed.
var ErrNotFound = errors.New("conversation: session not found")

// Store persists conversation blobs between turns, keyed by session
// identifier. Implementations treat blobs as opaque bytes; structure and
// integrity belong to the Codec.
type Store interface {
	// Save writes the blob under the session key. A positive ttl bounds the
	// blob's lifetime; zero means no expiry.
	Save(ctx context.Context, sessionID string, blob []byte, ttl time.Duration) error

	// Load returns the blob for the session, or ErrNotFound.
	Load(ctx context.Context, sessionID string) ([]byte, error)

	// Delete removes the session's blob. Deleting an absent session is not
	// an error.
	Delete(ctx context.Context, sessionID string) error
}

type (
	// MemoryStore is an in-process Store for tests and single-node use.
	MemoryStore struct {
		mu      sync.RWMutex
		entries map[string]memoryEntry
		now     func() time.Time
	}

	memoryEntry struct {
		blob      []byte
		expiresAt time.Time
	}
)

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, sessionID string, blob []byte, ttl time.Duration) error {
	entry := memoryEntry{blob: append([]byte(nil), blob...)}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[sessionID] = entry
	s.mu.Unlock()
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, sessionID string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, sessionID)
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.blob...), nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.entries, sessionID)
	s.mu.Unlock()
	return nil
}
