// Package mongo provides a conversation.Store backed by MongoDB. Blobs are
// stored as binary documents keyed by session identifier; TTL handling uses a
// Mongo TTL index on the expiry field.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"goa.design/plankit/runtime/conversation"
)

const (
	defaultCollection = "conversations"
	defaultOpTimeout  = 5 * time.Second
)

// Options configures the Mongo store.
type Options struct {
	// Client is the connected Mongo client. Required.
	Client *mongodriver.Client

	// Database is the database name. Required.
	Database string

	// Collection names the blob collection. Empty uses "conversations".
	Collection string

	// Timeout bounds each store operation. Zero uses five seconds.
	Timeout time.Duration
}

// Store implements conversation.Store on top of MongoDB.
type Store struct {
	coll    *mongodriver.Collection
	timeout time.Duration
}

type blobDocument struct {
	SessionID string     `bson:"_id"`
	Blob      []byte     `bson:"blob"`
	UpdatedAt time.Time  `bson:"updatedAt"`
	ExpiresAt *time.Time `bson:"expiresAt,omitempty"`
}

// New returns a Mongo-backed conversation store. It ensures the TTL index on
// the expiry field so Mongo reaps expired sessions on its own.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collection := opts.Collection
	if collection == "" {
		collection = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collection)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := coll.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return nil, fmt.Errorf("mongo store: ensure ttl index: %w", err)
	}
	return &Store{coll: coll, timeout: timeout}, nil
}

// Save implements conversation.Store.
func (s *Store) Save(ctx context.Context, sessionID string, blob []byte, ttl time.Duration) error {
	if sessionID == "" {
		return errors.New("mongo store: session id is required")
	}
	doc := blobDocument{
		SessionID: sessionID,
		Blob:      blob,
		UpdatedAt: time.Now().UTC(),
	}
	if ttl > 0 {
		expires := doc.UpdatedAt.Add(ttl)
		doc.ExpiresAt = &expires
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: sessionID}}, doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo store: save session %q: %w", sessionID, err)
	}
	return nil
}

// Load implements conversation.Store. Documents whose expiry passed but that
// Mongo has not reaped yet are treated as absent.
func (s *Store) Load(ctx context.Context, sessionID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var doc blobDocument
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: sessionID}}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo store: load session %q: %w", sessionID, err)
	}
	if doc.ExpiresAt != nil && time.Now().After(*doc.ExpiresAt) {
		return nil, conversation.ErrNotFound
	}
	return doc.Blob, nil
}

// Delete implements conversation.Store.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: sessionID}}); err != nil {
		return fmt.Errorf("mongo store: delete session %q: %w", sessionID, err)
	}
	return nil
}
