// Package store provides a unified interface to the storage backends
package store

import (
	"context"
	"errors"
	"time"

	"labelscan/internal/platform/logger"
	"labelscan/internal/platform/store/bolt"
	"labelscan/internal/platform/store/mem"
)

// Store is the facade for the configured backends
type Store struct {
	// Log is the logger used by subclients
	Log logger.Logger

	// Cache holds response cache generations, never nil after Open
	Cache Storage

	// Backend names the selected cache backend, "bolt" or "memory"
	Backend string

	kv  buckets
	now func() time.Time
}

// buckets is the raw bucket surface both bolt.DB and mem.DB provide
type buckets interface {
	CreateBucket(name string) error
	HasBucket(name string) (bool, error)
	Buckets() ([]string, error)
	DeleteBucket(name string) (bool, error)
	Put(bucket string, pairs map[string][]byte) error
	Get(bucket, key string) ([]byte, bool, error)
	DeleteKey(bucket, key string) error
	Keys(bucket string) ([]string, error)
	Close() error
}

var (
	_ buckets = (*bolt.DB)(nil)
	_ buckets = (*mem.DB)(nil)
)

// Open constructs a Store, picking bolt when a cache path is configured and memory otherwise
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &Store{Log: logger.Nop(), now: time.Now}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	if cfg.Cache.Path != "" {
		db, err := bolt.Open(bolt.Config{Path: cfg.Cache.Path, Timeout: cfg.Cache.OpenTimeout})
		if err != nil {
			return nil, err
		}
		s.kv, s.Backend = db, "bolt"
	} else {
		s.kv, s.Backend = mem.New(), "memory"
	}
	s.Cache = &cacheAdapter{kv: s.kv, now: s.now}
	s.Log.Info().Str("backend", s.Backend).Str("path", cfg.Cache.Path).Msg("cache storage ready")
	return s, nil
}

// Close closes all initialized backends
func (s *Store) Close(context.Context) error {
	if s == nil || s.kv == nil {
		return nil
	}
	return errors.Join(s.kv.Close())
}
