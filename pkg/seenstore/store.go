package seenstore

import (
	"context"
	"fmt"
	"time"
)

// SeenStory is one forwarded story
type SeenStory struct {
	StoryID   string    `json:"story_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the durable ledger of forwarded story ids.
//
// An id is recorded only after its story was delivered. Records are never
// updated or deleted, and recording a present id is a no-op.
type Store interface {
	Has(ctx context.Context, storyID string) (bool, error)
	Record(ctx context.Context, storyID, userID string) error
	// List returns up to limit stories, newest first
	List(ctx context.Context, limit int) ([]SeenStory, error)
	Close() error
}

// Backend names accepted by Open
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and configures a backend
type Options struct {
	Backend       string
	DatabasePath  string
	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

// Open creates the store for the configured backend
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		return NewSQLiteStore(ctx, opts.DatabasePath)
	case BackendRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:      opts.RedisAddr,
			Username:  opts.RedisUsername,
			Password:  opts.RedisPassword,
			DB:        opts.RedisDB,
			KeyPrefix: opts.KeyPrefix,
		})
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown seen store backend %q", opts.Backend)
	}
}
