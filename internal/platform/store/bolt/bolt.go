// Package bolt is the on-disk bucket store backing the response cache
// one bolt bucket holds one cache generation
package bolt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"
)

// ErrNoBucket is returned when writing to a bucket that does not exist
var ErrNoBucket = errors.New("bucket not found")

// Config configures the bolt file
type Config struct {
	Path    string
	Timeout time.Duration // lock wait on open, default 1s
}

// DB wraps a bolt database
type DB struct{ db *bbolt.DB }

// Open creates parent directories and opens (or creates) the bolt file
func Open(cfg Config) (*DB, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the file lock
func (d *DB) Close() error { return d.db.Close() }

// Path returns the database file path
func (d *DB) Path() string { return d.db.Path() }

// CreateBucket creates the bucket if missing
func (d *DB) CreateBucket(name string) error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
}

// HasBucket reports whether the bucket exists
func (d *DB) HasBucket(name string) (bool, error) {
	var ok bool
	err := d.db.View(func(tx *bbolt.Tx) error {
		ok = tx.Bucket([]byte(name)) != nil
		return nil
	})
	return ok, err
}

// Buckets lists top level bucket names in key order
func (d *DB) Buckets() ([]string, error) {
	var out []string
	err := d.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			out = append(out, string(name))
			return nil
		})
	})
	return out, err
}

// DeleteBucket drops a bucket and everything in it; false when it did not exist
func (d *DB) DeleteBucket(name string) (bool, error) {
	deleted := false
	err := d.db.Update(func(tx *bbolt.Tx) error {
		err := tx.DeleteBucket([]byte(name))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		deleted = err == nil
		return err
	})
	return deleted, err
}

// Put writes all pairs in one update transaction so they land together or not at all
func (d *DB) Put(bucket string, pairs map[string][]byte) error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrNoBucket, bucket)
		}
		for k, v := range pairs {
			if err := b.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get returns a copy of the value; a missing bucket reads as a miss
func (d *DB) Get(bucket, key string) ([]byte, bool, error) {
	var out []byte
	err := d.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			// bolt memory is only valid inside the transaction
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, out != nil, err
}

// DeleteKey removes one key; missing bucket or key is not an error
func (d *DB) DeleteKey(bucket, key string) error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// Keys lists keys of a bucket in byte order
func (d *DB) Keys(bucket string) ([]string, error) {
	var out []string
	err := d.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	return out, err
}
