package netstate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	kit "labelscan/internal/platform/testkit"
)

func TestSignal_TransitionsNotifyOnce(t *testing.T) {
	s := New(true)
	var events []bool
	cancel := s.Subscribe(func(online bool) { events = append(events, online) })

	if s.SetOnline(true) {
		t.Fatalf("no-op transition reported as change")
	}
	if !s.SetOnline(false) || s.Online() {
		t.Fatalf("offline transition not recorded")
	}
	s.SetOnline(false)
	s.SetOnline(true)

	if len(events) != 2 || events[0] || !events[1] {
		t.Fatalf("events = %v, want [false true]", events)
	}

	cancel()
	s.SetOnline(false)
	if len(events) != 2 {
		t.Fatalf("canceled subscriber still notified")
	}
}

func TestProber_ReflectsReachability(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("probe used %s", r.Method)
		}
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	s := New(false)
	p := &Prober{URL: srv.URL, Signal: s, Timeout: time.Second}
	if !p.Probe(context.Background()) || !s.Online() {
		t.Fatalf("any response should count as online")
	}

	srv.Close()
	if p.Probe(context.Background()) || s.Online() {
		t.Fatalf("closed server should count as offline")
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d", hits.Load())
	}
}

func TestProber_RunStopsOnCancel(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { hits.Add(1) }))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	p := &Prober{URL: srv.URL, Interval: 10 * time.Millisecond, Signal: New(false), Client: srv.Client()}
	go func() { done <- p.Run(ctx) }()

	kit.WaitFor(t, 2*time.Second, func() bool { return hits.Load() >= 2 })
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
}
