package domain

import (
	"context"

	"labelscan/internal/core/enhance"
)

// Enhancer normalizes a raw payload into a bounded JPEG
type Enhancer interface {
	Enhance(ctx context.Context, raw []byte) (enhance.Image, error)
}

// RemoteRecognizer talks to the network OCR service
type RemoteRecognizer interface {
	Recognize(ctx context.Context, jpeg []byte) (string, error)
}

// Engine is an initialized on-device recognizer
type Engine interface {
	Recognize(ctx context.Context, img []byte, progress func(pct int)) (string, error)
}

// EngineLoader hands out the process-wide engine, initializing it at most once at a time
type EngineLoader interface {
	Acquire(ctx context.Context) (Engine, error)
}

// Network is sampled once per dispatch
type Network interface {
	Online() bool
}

// ServicePort is what the transport layer needs
type ServicePort interface {
	Dispatch(ctx context.Context, req Request) Outcome
	Engine() EngineStatus
}
