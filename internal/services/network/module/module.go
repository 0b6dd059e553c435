// Package module wires the network signal into HTTP via modkit
package module

import (
	"net/http"

	"labelscan/internal/core/netstate"
	"labelscan/internal/modkit"
	phttp "labelscan/internal/platform/net/http"
	pstrings "labelscan/internal/platform/strings"
	nethttp "labelscan/internal/services/network/http"
)

// Ports exposes the signal so other modules can sample it
type Ports struct {
	Signal *netstate.Signal
}

// Module implements the network module
type Module struct {
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler
	ports  Ports
	built  modkit.Built
}

// New constructs the module around s; a nil s starts online
func New(deps modkit.Deps, s *netstate.Signal, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("network"), modkit.WithPrefix("/network")}, opts...)...)
	if s == nil {
		s = netstate.New(true)
	}
	log := deps.Log.With().Str("component", "network").Logger()
	netstate.LogTransitions(s, &log)

	external := b.Register
	b.Register = func(r phttp.Router) {
		nethttp.Register(r, s)
		external(r)
	}
	return &Module{name: b.Name, prefix: b.Prefix, mws: b.Mw, ports: Ports{Signal: s}, built: b}
}

// Signal returns the shared signal
func (m *Module) Signal() *netstate.Signal { return m.ports.Signal }

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r phttp.Router) { m.built.Mount(r) }

// Name is the module name
func (m *Module) Name() string { return pstrings.MustString(m.name, "network") }

// Prefix is the module route prefix
func (m *Module) Prefix() string { return pstrings.MustPrefix(m.prefix) }

// Middlewares is the module middlewares
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }
