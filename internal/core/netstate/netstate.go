// Package netstate holds the process-wide online/offline signal
package netstate

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"labelscan/internal/platform/logger"
)

// Reader is the read side handed to consumers that only sample the flag
type Reader interface {
	Online() bool
}

// Signal is updated only by transition events and read by anyone
type Signal struct {
	online atomic.Bool

	mu   sync.Mutex
	subs map[uint64]func(online bool)
	next uint64
}

// New returns a Signal with the given initial state
func New(online bool) *Signal {
	s := &Signal{subs: make(map[uint64]func(bool))}
	s.online.Store(online)
	return s
}

// Online reports the last recorded state
func (s *Signal) Online() bool { return s.online.Load() }

// SetOnline records a transition event and notifies subscribers when the state changed
func (s *Signal) SetOnline(online bool) (changed bool) {
	if s.online.Swap(online) == online {
		return false
	}
	s.mu.Lock()
	fns := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(online)
	}
	return true
}

// Subscribe registers fn for future transitions; call the returned func to stop
func (s *Signal) Subscribe(fn func(online bool)) (cancel func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// LogTransitions subscribes a logger line per transition
func LogTransitions(s *Signal, log *logger.Logger) (cancel func()) {
	return s.Subscribe(func(online bool) {
		log.Info().Bool("online", online).Msg("network transition")
	})
}

// Prober periodically sends HEAD to URL and feeds the result into Signal
// any response counts as online, a transport error counts as offline
type Prober struct {
	URL      string
	Interval time.Duration // default 15s
	Timeout  time.Duration // per probe, default 5s
	Client   *http.Client  // must not route through the response cache
	Signal   *Signal
}

// Probe runs one check and records the transition
func (p *Prober) Probe(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	online := false
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err == nil {
		client := p.Client
		if client == nil {
			client = http.DefaultClient
		}
		if resp, err := client.Do(req); err == nil {
			_ = resp.Body.Close()
			online = true
		}
	}
	p.Signal.SetOnline(online)
	return online
}

// Run probes immediately and then every Interval until ctx is done
func (p *Prober) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		p.Probe(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
