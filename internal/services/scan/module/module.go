// Package module wires the scan pipeline into HTTP via modkit
package module

import (
	"context"
	"net/http"

	"labelscan/internal/adapters/ocr/remote"
	"labelscan/internal/adapters/ocr/tesseract"
	"labelscan/internal/core/enhance"
	"labelscan/internal/modkit"
	phttp "labelscan/internal/platform/net/http"
	pstrings "labelscan/internal/platform/strings"
	"labelscan/internal/services/scan/domain"
	scanhttp "labelscan/internal/services/scan/http"
	"labelscan/internal/services/scan/service"
)

// Needs are the cross module ports the scan module consumes, passed with modkit.WithPorts
type Needs struct {
	Network domain.Network
	// Factory overrides the tesseract engine, used by tests
	Factory service.EngineFactory
}

// Ports exposes the service for cross-module lookups
type Ports struct {
	Service *service.Service
	Loader  *service.Loader
}

// Module implements the scan module
type Module struct {
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler
	ports  Ports
	built  modkit.Built
}

// New constructs the scan module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	return NewWithOptions(deps, FromConfig(deps.Cfg), opts...)
}

// NewWithOptions constructs the scan module from explicit options
func NewWithOptions(deps modkit.Deps, o Options, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("scan"), modkit.WithPrefix("/scans")}, opts...)...)
	needs, _ := b.Ports.(Needs)

	factory := needs.Factory
	if factory == nil {
		factory = tesseractFactory(o.Languages)
	}
	loader := service.NewLoader(service.LoaderOptions{
		DataDir:     o.DataDir,
		Resources:   o.Tessdata,
		HTTP:        deps.Client(),
		Factory:     factory,
		Languages:   o.Languages,
		InitTimeout: o.InitTimeout,
	})

	var rec domain.RemoteRecognizer
	if o.RemoteEnabled {
		rec = remote.NewClient(remote.Options{
			Endpoint: o.Endpoint,
			APIKey:   o.APIKey,
			Language: o.Language,
			Engine:   o.OCREngine,
			Timeout:  o.Timeout,
			HTTP:     deps.Client(),
		})
	}

	svc := service.New(enhance.New(), rec, loader, needs.Network)

	m := &Module{
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		ports:  Ports{Service: svc, Loader: loader},
	}

	external := b.Register
	b.Register = func(r phttp.Router) {
		scanhttp.Register(r, svc, o.MaxUpload)
		external(r)
	}
	m.built = b
	return m
}

func tesseractFactory(langs []string) service.EngineFactory {
	return func(ctx context.Context, dataDir string, _ []string) (domain.Engine, error) {
		return tesseract.Open(ctx, dataDir, langs...)
	}
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r phttp.Router) { m.built.Mount(r) }

// Name is the module name
func (m *Module) Name() string { return pstrings.MustString(m.name, "scan") }

// Prefix is the module route prefix
func (m *Module) Prefix() string { return pstrings.MustPrefix(m.prefix) }

// Middlewares is the module middlewares
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }
