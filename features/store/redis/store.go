// Package redis provides a conversation.Store backed by Redis. Blobs are
// stored as opaque byte strings under a prefixed session key; TTL handling is
// delegated to Redis key expiry.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"goa.design/plankit/runtime/conversation"
)

const defaultKeyPrefix = "plankit:conversation:"

// Options configures the Redis store.
type Options struct {
	// Client is the Redis client. Required. A *redis.Client and a cluster
	// client both satisfy it.
	Client redis.UniversalClient

	// KeyPrefix namespaces the session keys. Empty uses
	// "plankit:conversation:".
	KeyPrefix string
}

// Store implements conversation.Store on top of Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// New returns a Redis-backed conversation store.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{client: opts.Client, prefix: prefix}, nil
}

// Save implements conversation.Store.
func (s *Store) Save(ctx context.Context, sessionID string, blob []byte, ttl time.Duration) error {
	if sessionID == "" {
		return errors.New("redis store: session id is required")
	}
	if err := s.client.Set(ctx, s.key(sessionID), blob, ttl).Err(); err != nil {
		return fmt.Errorf("redis store: save session %q: %w", sessionID, err)
	}
	return nil
}

// Load implements conversation.Store.
func (s *Store) Load(ctx context.Context, sessionID string) ([]byte, error) {
	blob, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis store: load session %q: %w", sessionID, err)
	}
	return blob, nil
}

// Delete implements conversation.Store.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis store: delete session %q: %w", sessionID, err)
	}
	return nil
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}
