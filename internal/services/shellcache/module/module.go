// Package module wires the offline resource cache into HTTP via modkit
package module

import (
	"net/http"
	"net/url"

	"labelscan/internal/modkit"
	perr "labelscan/internal/platform/errors"
	phttp "labelscan/internal/platform/net/http"
	pstrings "labelscan/internal/platform/strings"
	cachehttp "labelscan/internal/services/shellcache/http"
	"labelscan/internal/services/shellcache/service"
)

// Needs are optional cross module inputs passed with modkit.WithPorts
type Needs struct {
	// Network replaces the transport behind the cache, used by tests
	Network http.RoundTripper
}

// Ports exposes the controller and a client whose requests go through the cache
type Ports struct {
	Controller *service.Controller
	Client     *http.Client
	Origin     *url.URL
}

// Module implements the cache module
type Module struct {
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler
	ports  Ports
	built  modkit.Built
	opts   Options
}

// New constructs the cache module from CORE_CACHE_* settings
func New(deps modkit.Deps, opts ...modkit.Option) (*Module, error) {
	return NewWithOptions(deps, FromConfig(deps.Cfg), opts...)
}

// NewWithOptions constructs the cache module from explicit options
func NewWithOptions(deps modkit.Deps, o Options, opts ...modkit.Option) (*Module, error) {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("shellcache"), modkit.WithPrefix("/cache")}, opts...)...)
	needs, _ := b.Ports.(Needs)

	if deps.Store == nil || deps.Store.Cache == nil {
		return nil, perr.New(perr.ErrorCodeStorage, "cache module needs a store")
	}
	origin, err := url.Parse(o.Origin)
	if err != nil || !origin.IsAbs() {
		return nil, perr.WithField(perr.InvalidArgf("invalid upstream origin %q", o.Origin), "origin")
	}
	m, err := LoadManifest(o)
	if err != nil {
		return nil, err
	}

	ctl := service.New(deps.Store.Cache, service.Options{
		Manifest:       m,
		Origin:         origin,
		Network:        needs.Network,
		WaitForClients: o.WaitForClients,
	})

	mod := &Module{
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		opts:   o,
		ports:  Ports{Controller: ctl, Client: ctl.Client(), Origin: origin},
	}
	external := b.Register
	b.Register = func(r phttp.Router) {
		cachehttp.Register(r, ctl)
		external(r)
	}
	mod.built = b
	return mod, nil
}

// Controller returns the cache controller
func (m *Module) Controller() *service.Controller { return m.ports.Controller }

// Options returns the settings the module was built with
func (m *Module) Options() Options { return m.opts }

// Proxy returns the cache-first reverse proxy to the upstream origin
func (m *Module) Proxy() http.Handler { return m.ports.Controller.Proxy(m.ports.Origin) }

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r phttp.Router) { m.built.Mount(r) }

// Name is the module name
func (m *Module) Name() string { return pstrings.MustString(m.name, "shellcache") }

// Prefix is the module route prefix
func (m *Module) Prefix() string { return pstrings.MustPrefix(m.prefix) }

// Middlewares is the module middlewares
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }
