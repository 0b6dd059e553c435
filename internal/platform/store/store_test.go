package store

import (
	"context"
	"net/http"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	perr "labelscan/internal/platform/errors"
)

func backends(t *testing.T) map[string]*Store {
	t.Helper()
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	memStore, err := Open(ctx, Config{}, WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatal(err)
	}
	boltStore, err := Open(ctx, Config{Cache: CacheConfig{Path: filepath.Join(t.TempDir(), "cache.db")}},
		WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = memStore.Close(ctx)
		_ = boltStore.Close(ctx)
	})
	return map[string]*Store{"memory": memStore, "bolt": boltStore}
}

func TestOpen_PicksBackend(t *testing.T) {
	for want, s := range backends(t) {
		if s.Backend != want || s.Cache == nil {
			t.Fatalf("backend = %q, want %q", s.Backend, want)
		}
	}
}

func TestStorage_GenerationLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			gen, err := s.Cache.Open(ctx, "labelscan-v7-abc")
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if gen.Name() != "labelscan-v7-abc" {
				t.Fatalf("name = %q", gen.Name())
			}

			entries := map[string]Entry{
				"http://o/":    {URL: "http://o/", Status: 200, Body: []byte("index")},
				"http://o/app": {URL: "http://o/app", Status: 200, Header: http.Header{"Content-Type": {"text/html"}}, Body: []byte("app")},
			}
			if err := gen.PutAll(ctx, entries); err != nil {
				t.Fatalf("put all: %v", err)
			}
			e, ok, err := gen.Get(ctx, "http://o/app")
			if err != nil || !ok {
				t.Fatalf("get: %v %v", ok, err)
			}
			if string(e.Body) != "app" || e.Header.Get("Content-Type") != "text/html" {
				t.Fatalf("entry = %+v", e)
			}
			if !e.StoredAt.Equal(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)) {
				t.Fatalf("stored_at = %v", e.StoredAt)
			}

			if err := gen.Put(ctx, "http://o/app", Entry{Status: 200, Body: []byte("app-v2")}); err != nil {
				t.Fatal(err)
			}
			if e, _, _ := gen.Get(ctx, "http://o/app"); string(e.Body) != "app-v2" {
				t.Fatalf("last write did not win: %q", e.Body)
			}
			if n, _ := gen.Len(ctx); n != 2 {
				t.Fatalf("len = %d", n)
			}
			if err := gen.Delete(ctx, "http://o/"); err != nil {
				t.Fatal(err)
			}
			if keys, _ := gen.Keys(ctx); !reflect.DeepEqual(keys, []string{"http://o/app"}) {
				t.Fatalf("keys = %v", keys)
			}

			if _, err := s.Cache.Open(ctx, "labelscan-v6-def"); err != nil {
				t.Fatal(err)
			}
			names, _ := s.Cache.Keys(ctx)
			if !reflect.DeepEqual(names, []string{"labelscan-v6-def", "labelscan-v7-abc"}) {
				t.Fatalf("generations = %v", names)
			}
			if ok, _ := s.Cache.Delete(ctx, "labelscan-v7-abc"); !ok {
				t.Fatalf("delete reported missing")
			}
			if ok, _ := s.Cache.Has(ctx, "labelscan-v7-abc"); ok {
				t.Fatalf("generation survived delete")
			}

			err = gen.Put(ctx, "http://o/late", Entry{Status: 200})
			if !perr.IsCode(err, perr.ErrorCodeStorage) {
				t.Fatalf("put into deleted generation should fail with storage code, got %v", err)
			}
			if _, ok, err := gen.Get(ctx, "http://o/app"); ok || err != nil {
				t.Fatalf("deleted generation should read as miss, got %v %v", ok, err)
			}
		})
	}
}

func TestStorage_OpenRejectsEmptyName(t *testing.T) {
	for _, s := range backends(t) {
		if _, err := s.Cache.Open(context.Background(), ""); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
			t.Fatalf("expected invalid argument, got %v", err)
		}
	}
}

func TestOpen_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Open(ctx, Config{}); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}
