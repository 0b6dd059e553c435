package store

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	perr "labelscan/internal/platform/errors"
)

// Entry is a captured HTTP response
type Entry struct {
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header,omitempty"`
	Body     []byte      `json:"body,omitempty"`
	StoredAt time.Time   `json:"stored_at"`
}

// Storage holds named cache generations
type Storage interface {
	// Open returns the generation, creating it when absent
	Open(ctx context.Context, gen string) (Generation, error)
	Has(ctx context.Context, gen string) (bool, error)
	// Keys lists generation names
	Keys(ctx context.Context) ([]string, error)
	// Delete drops a generation and its entries; false when it did not exist
	Delete(ctx context.Context, gen string) (bool, error)
}

// Generation is one named set of captured responses keyed by request URL
type Generation interface {
	Name() string
	Put(ctx context.Context, key string, e Entry) error
	// PutAll stores every entry or none of them
	PutAll(ctx context.Context, entries map[string]Entry) error
	Get(ctx context.Context, key string) (Entry, bool, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Len(ctx context.Context) (int, error)
}

type cacheAdapter struct {
	kv  buckets
	now func() time.Time
}

func storageErr(err error, op string) error {
	if err == nil {
		return nil
	}
	return perr.WithOp(perr.Wrap(err, perr.ErrorCodeStorage, "cache storage"), op)
}

func (c *cacheAdapter) Open(ctx context.Context, gen string) (Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if gen == "" {
		return nil, perr.InvalidArgf("empty generation name")
	}
	if err := c.kv.CreateBucket(gen); err != nil {
		return nil, storageErr(err, "open")
	}
	return &generation{name: gen, kv: c.kv, now: c.now}, nil
}

func (c *cacheAdapter) Has(_ context.Context, gen string) (bool, error) {
	ok, err := c.kv.HasBucket(gen)
	return ok, storageErr(err, "has")
}

func (c *cacheAdapter) Keys(context.Context) ([]string, error) {
	names, err := c.kv.Buckets()
	return names, storageErr(err, "keys")
}

func (c *cacheAdapter) Delete(_ context.Context, gen string) (bool, error) {
	ok, err := c.kv.DeleteBucket(gen)
	return ok, storageErr(err, "delete")
}

type generation struct {
	name string
	kv   buckets
	now  func() time.Time
}

func (g *generation) Name() string { return g.name }

func (g *generation) Put(ctx context.Context, key string, e Entry) error {
	return g.PutAll(ctx, map[string]Entry{key: e})
}

func (g *generation) PutAll(ctx context.Context, entries map[string]Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pairs := make(map[string][]byte, len(entries))
	for k, e := range entries {
		if e.StoredAt.IsZero() {
			e.StoredAt = g.now().UTC()
		}
		raw, err := json.Marshal(e)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeEncode, "encode entry %s", k)
		}
		pairs[k] = raw
	}
	return storageErr(g.kv.Put(g.name, pairs), "put")
}

func (g *generation) Get(ctx context.Context, key string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	raw, ok, err := g.kv.Get(g.name, key)
	if err != nil || !ok {
		return Entry{}, false, storageErr(err, "get")
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, perr.Wrapf(err, perr.ErrorCodeDecode, "decode entry %s", key)
	}
	return e, true, nil
}

func (g *generation) Delete(_ context.Context, key string) error {
	return storageErr(g.kv.DeleteKey(g.name, key), "delete_key")
}

func (g *generation) Keys(context.Context) ([]string, error) {
	keys, err := g.kv.Keys(g.name)
	return keys, storageErr(err, "keys")
}

func (g *generation) Len(ctx context.Context) (int, error) {
	keys, err := g.Keys(ctx)
	return len(keys), err
}
