package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"labelscan/internal/core/netstate"
	"labelscan/internal/platform/config"
	"labelscan/internal/platform/logger"
	phttp "labelscan/internal/platform/net/http"
	"labelscan/internal/platform/net/middleware"
	"labelscan/internal/platform/store"

	"labelscan/internal/services/api"

	"github.com/go-chi/chi/v5"
)

func main() {
	// CORE_AGENT_* for http, CORE_CACHE_* for storage; modules read their own scopes
	root := config.New()
	agentCfg := root.Prefix("CORE_AGENT_")
	cacheCfg := root.Prefix("CORE_CACHE_")

	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		Cache: store.CacheConfig{
			Path:        cacheCfg.MayString("PATH", "tmp/labelscan/cache.db"),
			OpenTimeout: cacheCfg.MayDuration("OPEN_TIMEOUT", time.Second),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// http server (reads CORE_AGENT_ADDR and timeouts)
	srv := phttp.NewServer(agentCfg, func(m *chi.Mux) {
		m.Use(middleware.Defaults()...)
		m.Use(middleware.Heartbeat("/api/v1/health"))
		m.Use(middleware.AccessLogZerolog(middleware.AccessLogOptions{
			Slow: agentCfg.MayDuration("SLOW", 2*time.Second),
			Skip: []string{"/api/v1/health"},
		}))
		m.Use(middleware.CORS(middleware.CORSOptions{
			AllowedOrigins: agentCfg.MayCSV("CORS_ORIGINS", []string{"http://localhost:*", "http://127.0.0.1:*"}),
		}))
	})

	sig := netstate.New(agentCfg.MayBool("START_ONLINE", true))
	agent, err := api.Mount(srv.Router(), api.Options{
		Config:  root,
		Store:   st,
		Logger:  l,
		Signal:  sig,
		Service: "labelscan-agent",

		EnableSwagger:  agentCfg.MayBool("SWAGGER", false),
		EnableProfiler: agentCfg.MayBool("PROFILER", false),
	})
	if err != nil {
		l.Panic().Err(err).Msg("agent mount failed")
	}

	go agent.Start(ctx, cacheCfg.MayDuration("INSTALL_TIMEOUT", 2*time.Minute))

	// the probe talks to the network directly, never through the cache
	if probe := agentCfg.MayURL("PROBE_URL", ""); probe != "" {
		p := &netstate.Prober{
			URL:      probe,
			Interval: agentCfg.MayDuration("PROBE_INTERVAL", 15*time.Second),
			Client:   &http.Client{},
			Signal:   sig,
		}
		go func() { _ = p.Run(ctx) }()
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Run(ctx) }()

	select {
	case err := <-errc:
		if err != nil {
			l.Panic().Err(err).Msg("http server stopped")
		}
	case <-ctx.Done():
		l.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			l.Error().Err(err).Msg("http shutdown")
		}
		<-errc
	}
}
