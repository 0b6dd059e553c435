package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	perr "labelscan/internal/platform/errors"
	kit "labelscan/internal/platform/testkit"
	"labelscan/internal/services/scan/domain"
)

// tessdataServer serves any path with a fixed body and counts hits
func tessdataServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("traineddata"))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestLoader_SingleInitUnderConcurrency(t *testing.T) {
	srv, hits := tessdataServer(t, http.StatusOK)
	f := &gatedFactory{release: make(chan struct{})}
	dir := t.TempDir()
	l := NewLoader(LoaderOptions{
		DataDir:   dir,
		Resources: []string{srv.URL + "/tessdata/eng.traineddata"},
		HTTP:      srv.Client(),
		Factory:   f.build,
	})

	const n = 16
	engines := make([]domain.Engine, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			engines[i], errs[i] = l.Acquire(context.Background())
		}(i)
	}
	kit.WaitFor(t, 2*time.Second, func() bool { return f.calls.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	close(f.release)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if engines[i] != engines[0] {
			t.Fatalf("caller %d got a different engine", i)
		}
	}
	if f.calls.Load() != 1 || hits.Load() != 1 || l.Status().InitCalls != 1 {
		t.Fatalf("factory=%d fetches=%d inits=%d, want 1/1/1", f.calls.Load(), hits.Load(), l.Status().InitCalls)
	}
	if b, err := os.ReadFile(filepath.Join(dir, "eng.traineddata")); err != nil || string(b) != "traineddata" {
		t.Fatalf("fetched file: %q %v", b, err)
	}

	again, err := l.Acquire(context.Background())
	if err != nil || again != engines[0] || f.calls.Load() != 1 {
		t.Fatal("engine should be memoized after success")
	}
}

func TestLoader_FailureDoesNotPoison(t *testing.T) {
	f := &gatedFactory{err: errBoom}
	l := NewLoader(LoaderOptions{DataDir: t.TempDir(), Factory: f.build})

	_, err := l.Acquire(context.Background())
	if !perr.IsCode(err, perr.ErrorCodeEngineLoad) {
		t.Fatalf("err = %v, want engine load", err)
	}
	if l.Status().Ready {
		t.Fatal("failed init must not be cached")
	}

	f.err = nil
	e, err := l.Acquire(context.Background())
	if err != nil || e == nil {
		t.Fatalf("retry failed: %v", err)
	}
	if f.calls.Load() != 2 || !l.Status().Ready {
		t.Fatalf("factory calls = %d", f.calls.Load())
	}
}

func TestLoader_FetchFailures(t *testing.T) {
	srv, _ := tessdataServer(t, http.StatusNotFound)

	t.Run("missing and not on disk", func(t *testing.T) {
		f := &gatedFactory{}
		l := NewLoader(LoaderOptions{
			DataDir:   t.TempDir(),
			Resources: []string{srv.URL + "/eng.traineddata"},
			Factory:   f.build,
		})
		_, err := l.Acquire(context.Background())
		if !perr.IsCode(err, perr.ErrorCodeEngineLoad) {
			t.Fatalf("err = %v", err)
		}
		kit.MustContain(t, err.Error(), "status 404")
		if f.calls.Load() != 0 {
			t.Fatal("factory must not run without its resources")
		}
	})

	t.Run("falls back to file on disk", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "eng.traineddata"), []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
		f := &gatedFactory{}
		l := NewLoader(LoaderOptions{
			DataDir:   dir,
			Resources: []string{srv.URL + "/eng.traineddata"},
			Factory:   f.build,
		})
		if _, err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("expected on-disk fallback, got %v", err)
		}
	})

	t.Run("no factory", func(t *testing.T) {
		l := NewLoader(LoaderOptions{DataDir: t.TempDir()})
		if _, err := l.Acquire(context.Background()); !perr.IsCode(err, perr.ErrorCodeEngineLoad) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestLoader_CallerCancelDoesNotAbortInit(t *testing.T) {
	f := &gatedFactory{release: make(chan struct{})}
	l := NewLoader(LoaderOptions{DataDir: t.TempDir(), Factory: f.build})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := l.Acquire(ctx)
		done <- err
	}()
	kit.WaitFor(t, 2*time.Second, func() bool { return f.calls.Load() == 1 })
	cancel()

	if err := <-done; !perr.IsCode(err, perr.ErrorCodeEngineLoad) {
		t.Fatalf("canceled caller err = %v", err)
	}
	close(f.release)
	kit.WaitFor(t, 2*time.Second, func() bool { return l.Status().Ready })
	if f.calls.Load() != 1 {
		t.Fatalf("factory calls = %d", f.calls.Load())
	}
}

func TestLoader_StalledFetchTimesOut(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := &gatedFactory{}
	l := NewLoader(LoaderOptions{
		DataDir:     t.TempDir(),
		Resources:   []string{srv.URL + "/eng.traineddata"},
		HTTP:        srv.Client(),
		Factory:     f.build,
		InitTimeout: 50 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() {
		_, err := l.Acquire(context.Background())
		done <- err
	}()
	select {
	case err := <-done:
		if !perr.IsCode(err, perr.ErrorCodeEngineLoad) {
			t.Fatalf("err = %v, want engine load", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stalled download held the initialization open")
	}

	if _, err := l.Acquire(context.Background()); !perr.IsCode(err, perr.ErrorCodeEngineLoad) {
		t.Fatalf("second acquire err = %v", err)
	}
	if n := l.Status().InitCalls; n != 2 {
		t.Fatalf("init calls = %d, want a fresh initialization after the timeout", n)
	}
	if f.calls.Load() != 0 || hits.Load() != 2 {
		t.Fatalf("factory=%d fetches=%d", f.calls.Load(), hits.Load())
	}
}

func TestNewLoader_DefaultInitTimeout(t *testing.T) {
	if l := NewLoader(LoaderOptions{}); l.opts.InitTimeout != DefaultInitTimeout {
		t.Fatalf("init timeout = %v", l.opts.InitTimeout)
	}
}
