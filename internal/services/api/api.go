// Package api composes the agent HTTP surface from modules
package api

import (
	"context"
	"net/http"
	"time"

	"labelscan/internal/core/netstate"
	"labelscan/internal/modkit"
	"labelscan/internal/modkit/module"
	"labelscan/internal/modkit/swaggerkit"
	"labelscan/internal/platform/config"
	perr "labelscan/internal/platform/errors"
	"labelscan/internal/platform/logger"
	phttp "labelscan/internal/platform/net/http"
	"labelscan/internal/platform/store"

	metahttp "labelscan/internal/services/api/meta/http"
	metamod "labelscan/internal/services/api/meta/module"
	netmod "labelscan/internal/services/network/module"
	scanmod "labelscan/internal/services/scan/module"
	scansvc "labelscan/internal/services/scan/service"
	cachemod "labelscan/internal/services/shellcache/module"
)

// Options are the agent options
type Options struct {
	Config  config.Conf
	Store   *store.Store
	Logger  *logger.Logger
	Signal  *netstate.Signal
	Service string

	EnableSwagger  bool
	EnableProfiler bool

	// Network replaces the transport behind the cache, used by tests
	Network http.RoundTripper
	// Factory replaces the tesseract engine, used by tests
	Factory scansvc.EngineFactory
}

// Agent holds the mounted modules the binary still needs after Mount
type Agent struct {
	Network *netmod.Module
	Cache   *cachemod.Module
	Scan    modkit.Module
	Mods    []module.Module
	log     *logger.Logger
}

// Mount builds every module, mounts them under /api/v1 and proxies the rest to the origin
func Mount(r phttp.Router, opt Options) (*Agent, error) {
	log := opt.Logger
	if log == nil {
		log = logger.Get()
	}
	deps := modkit.Deps{
		Log:   *log,
		Cfg:   opt.Config,
		Store: opt.Store,
	}

	network := netmod.New(deps, opt.Signal)

	cache, err := cachemod.New(deps, modkit.WithPorts(cachemod.Needs{Network: opt.Network}))
	if err != nil {
		return nil, err
	}
	ctl := cache.Controller()

	// engine data and remote OCR calls go through the cache like any other fetch
	scanDeps := deps
	scanDeps.HTTP = ctl.Client()
	scan := scanmod.New(scanDeps, modkit.WithPorts(scanmod.Needs{
		Network: network.Signal(),
		Factory: opt.Factory,
	}))

	meta := metamod.New(opt.Service, []metahttp.NamedCheck{
		{Name: "cache", Check: func(ctx context.Context) error {
			if ctl.Status(ctx).Current == "" {
				return perr.Unavailablef("no active cache generation")
			}
			return nil
		}},
		{Name: "network", Check: func(context.Context) error {
			if !network.Signal().Online() {
				return perr.Unavailablef("offline")
			}
			return nil
		}},
	})

	mods := []module.Module{meta, network, cache, scan}

	swaggerkit.Mount(r, opt.EnableSwagger)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

	modkit.MountAPIV1(r, nil, func(api phttp.Router) {
		for _, m := range mods {
			// register each module's ports under its own name for cross-module lookups
			module.Register(m.Name(), m.Ports())
			m.MountRoutes(api)
		}
	})

	// everything else is the app shell
	r.Handle("/*", cache.Proxy())

	return &Agent{Network: network, Cache: cache, Scan: scan, Mods: mods, log: log}, nil
}

// Start restores the generation from a previous run and installs the manifest when enabled
// install failures are logged; the restored generation keeps serving
func (a *Agent) Start(ctx context.Context, installTimeout time.Duration) {
	ctl := a.Cache.Controller()
	if err := ctl.Restore(ctx); err != nil {
		a.log.Warn().Err(err).Msg("cache restore failed")
	}
	if !a.Cache.Options().InstallOnStart {
		return
	}
	if installTimeout <= 0 {
		installTimeout = time.Minute
	}
	ictx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	rep, err := ctl.Install(ictx)
	ev := a.log.Info()
	if err != nil {
		ev = a.log.Warn().Err(err)
	}
	ev.Str("generation", rep.Generation).
		Bool("activated", rep.Activated).
		Bool("waiting", rep.Waiting).
		Int("optional_failed", len(rep.Failed)).
		Msg("cache install")
}
