package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"labelscan/internal/platform/store"
	"labelscan/internal/services/shellcache/domain"
)

// origin is a scripted upstream that counts requests per method and path
type origin struct {
	mu     sync.Mutex
	status map[string]int
	counts map[string]int
	gates  map[string]*gate
	srv    *httptest.Server
}

// gate parks requests for one path until released
type gate struct {
	entered chan struct{}
	once    sync.Once
	release chan struct{}
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	o := &origin{status: map[string]int{}, counts: map[string]int{}, gates: map[string]*gate{}}
	o.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		o.counts[r.Method+" "+r.URL.Path]++
		st, ok := o.status[r.URL.Path]
		g := o.gates[r.URL.Path]
		o.mu.Unlock()
		if g != nil {
			g.once.Do(func() { close(g.entered) })
			select {
			case <-g.release:
			case <-r.Context().Done():
				return
			}
		}
		if !ok {
			st = http.StatusOK
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(st)
		_, _ = io.WriteString(w, "body of "+r.URL.Path)
	}))
	t.Cleanup(o.srv.Close)
	return o
}

func (o *origin) set(path string, status int) {
	o.mu.Lock()
	o.status[path] = status
	o.mu.Unlock()
}

// hold parks requests for path; the returned channel closes on the first hit.
// Release runs before the server closes.
func (o *origin) hold(t *testing.T, path string) (<-chan struct{}, func()) {
	t.Helper()
	g := &gate{entered: make(chan struct{}), release: make(chan struct{})}
	o.mu.Lock()
	o.gates[path] = g
	o.mu.Unlock()
	var once sync.Once
	release := func() { once.Do(func() { close(g.release) }) }
	t.Cleanup(release)
	return g.entered, release
}

func (o *origin) count(method, path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[method+" "+path]
}

func (o *origin) url(path string) string { return o.srv.URL + path }

func memStorage(t *testing.T) store.Storage {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s.Cache
}

func newController(t *testing.T, st store.Storage, o *origin, m domain.Manifest, wait bool) *Controller {
	t.Helper()
	u, _ := url.Parse(o.srv.URL)
	return New(st, Options{Manifest: m, Origin: u, WaitForClients: wait})
}

func get(t *testing.T, c *http.Client, u string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}
