// Package mem is the memory-only bucket store used when no cache path is configured
package mem

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNoBucket is returned when writing to a bucket that does not exist
var ErrNoBucket = errors.New("bucket not found")

// DB keeps buckets of byte values behind a RWMutex
type DB struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

// New returns an empty store
func New() *DB { return &DB{buckets: make(map[string]map[string][]byte)} }

// Close is a no-op kept for parity with the bolt store
func (d *DB) Close() error { return nil }

// CreateBucket creates the bucket if missing
func (d *DB) CreateBucket(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buckets[name]; !ok {
		d.buckets[name] = make(map[string][]byte)
	}
	return nil
}

// HasBucket reports whether the bucket exists
func (d *DB) HasBucket(name string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.buckets[name]
	return ok, nil
}

// Buckets lists bucket names sorted
func (d *DB) Buckets() ([]string, error) {
	d.mu.RLock()
	out := make([]string, 0, len(d.buckets))
	for name := range d.buckets {
		out = append(out, name)
	}
	d.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

// DeleteBucket drops a bucket; false when it did not exist
func (d *DB) DeleteBucket(name string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.buckets[name]
	delete(d.buckets, name)
	return ok, nil
}

// Put writes all pairs under one lock
func (d *DB) Put(bucket string, pairs map[string][]byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buckets[bucket]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoBucket, bucket)
	}
	for k, v := range pairs {
		b[k] = append([]byte(nil), v...)
	}
	return nil
}

// Get returns a copy of the value; a missing bucket reads as a miss
func (d *DB) Get(bucket, key string) ([]byte, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.buckets[bucket][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// DeleteKey removes one key
func (d *DB) DeleteKey(bucket, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buckets[bucket], key)
	return nil
}

// Keys lists keys of a bucket sorted
func (d *DB) Keys(bucket string) ([]string, error) {
	d.mu.RLock()
	b := d.buckets[bucket]
	out := make([]string, 0, len(b))
	for k := range b {
		out = append(out, k)
	}
	d.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}
