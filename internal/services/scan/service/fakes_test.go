package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"labelscan/internal/core/enhance"
	"labelscan/internal/services/scan/domain"
)

type fakeEnhancer struct {
	err   error
	calls atomic.Int32
}

func (f *fakeEnhancer) Enhance(_ context.Context, raw []byte) (enhance.Image, error) {
	f.calls.Add(1)
	if f.err != nil {
		return enhance.Image{}, f.err
	}
	return enhance.Image{JPEG: raw, Width: 10, Height: 10}, nil
}

type fakeRemote struct {
	text  string
	err   error
	calls atomic.Int32
	got   []byte
}

func (f *fakeRemote) Recognize(_ context.Context, jpeg []byte) (string, error) {
	f.calls.Add(1)
	f.got = jpeg
	return f.text, f.err
}

type fakeEngine struct {
	text  string
	err   error
	calls atomic.Int32
}

func (f *fakeEngine) Recognize(_ context.Context, _ []byte, progress func(int)) (string, error) {
	f.calls.Add(1)
	progress(0)
	progress(100)
	return f.text, f.err
}

type fakeLoader struct {
	eng   domain.Engine
	err   error
	calls atomic.Int32
}

func (f *fakeLoader) Acquire(context.Context) (domain.Engine, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.eng, nil
}

// netFlag counts how often the dispatcher samples it
type netFlag struct {
	online bool
	reads  atomic.Int32
}

func (n *netFlag) Online() bool {
	n.reads.Add(1)
	return n.online
}

// statusLog collects progress lines
type statusLog struct {
	mu    sync.Mutex
	lines []string
}

func (s *statusLog) add(status string) {
	s.mu.Lock()
	s.lines = append(s.lines, status)
	s.mu.Unlock()
}

func (s *statusLog) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

var errBoom = errors.New("boom")

// gatedFactory blocks until release is closed, then returns eng or err
type gatedFactory struct {
	release chan struct{}
	calls   atomic.Int32
	err     error
	delay   time.Duration
}

func (g *gatedFactory) build(_ context.Context, _ string, _ []string) (domain.Engine, error) {
	g.calls.Add(1)
	if g.release != nil {
		<-g.release
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if g.err != nil {
		return nil, g.err
	}
	return &fakeEngine{text: "ENGINE"}, nil
}
