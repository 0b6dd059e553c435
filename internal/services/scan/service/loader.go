package service

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"
	"time"

	perr "labelscan/internal/platform/errors"
	"labelscan/internal/platform/logger"
	"labelscan/internal/services/scan/domain"

	"golang.org/x/sync/singleflight"
)

// EngineFactory builds an engine from a directory holding the fetched resources
type EngineFactory func(ctx context.Context, dataDir string, files []string) (domain.Engine, error)

// LoaderOptions configures the engine loader
type LoaderOptions struct {
	// DataDir receives the fetched engine resources
	DataDir string
	// Resources are absolute URLs fetched through HTTP before the factory runs
	Resources []string
	HTTP      *http.Client
	Factory   EngineFactory
	Languages []string
	// InitTimeout bounds one shared initialization; DefaultInitTimeout when <= 0
	InitTimeout time.Duration
}

// DefaultInitTimeout bounds engine initialization when none is configured
const DefaultInitTimeout = 2 * time.Minute

// Loader is a memoized engine factory; at most one initialization runs at a time
// and a successful engine is kept for the process lifetime
type Loader struct {
	opts  LoaderOptions
	log   *logger.Logger
	group singleflight.Group
	ready atomic.Pointer[engineBox]
	inits atomic.Int64
}

type engineBox struct{ e domain.Engine }

var _ domain.EngineLoader = (*Loader)(nil)

// NewLoader returns a Loader; nothing is fetched until the first Acquire
func NewLoader(o LoaderOptions) *Loader {
	if o.HTTP == nil {
		o.HTTP = http.DefaultClient
	}
	if o.InitTimeout <= 0 {
		o.InitTimeout = DefaultInitTimeout
	}
	return &Loader{opts: o, log: logger.Named("engine-loader")}
}

// Acquire returns the engine, initializing it on first use
// concurrent callers share one in-flight initialization; failures are not cached
func (l *Loader) Acquire(ctx context.Context) (domain.Engine, error) {
	if b := l.ready.Load(); b != nil {
		return b.e, nil
	}
	ch := l.group.DoChan("engine", func() (any, error) {
		if b := l.ready.Load(); b != nil {
			return b.e, nil
		}
		// a caller giving up must not abort the shared initialization
		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.opts.InitTimeout)
		defer cancel()
		e, err := l.init(ictx)
		if err != nil {
			return nil, err
		}
		l.ready.Store(&engineBox{e: e})
		return e, nil
	})
	select {
	case <-ctx.Done():
		return nil, perr.Wrap(ctx.Err(), perr.ErrorCodeEngineLoad, "await engine")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(domain.Engine), nil
	}
}

// Status reports readiness and how many initializations ran
func (l *Loader) Status() domain.EngineStatus {
	return domain.EngineStatus{
		Ready:     l.ready.Load() != nil,
		InitCalls: l.inits.Load(),
		DataDir:   l.opts.DataDir,
		Languages: append([]string(nil), l.opts.Languages...),
	}
}

func (l *Loader) init(ctx context.Context) (domain.Engine, error) {
	n := l.inits.Add(1)
	l.log.Info().Int64("attempt", n).Int("resources", len(l.opts.Resources)).Msg("initializing local engine")

	if l.opts.Factory == nil {
		return nil, perr.New(perr.ErrorCodeEngineLoad, "no engine factory configured")
	}
	if err := os.MkdirAll(l.opts.DataDir, 0o755); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeEngineLoad, "create data dir %s", l.opts.DataDir)
	}

	files := make([]string, 0, len(l.opts.Resources))
	for _, u := range l.opts.Resources {
		name, err := l.fetch(ctx, u)
		if err != nil {
			l.log.Warn().Err(err).Str("url", u).Msg("engine resource fetch failed")
			return nil, err
		}
		files = append(files, name)
	}

	e, err := l.opts.Factory(ctx, l.opts.DataDir, files)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeEngineLoad) {
			return nil, err
		}
		return nil, perr.Wrap(err, perr.ErrorCodeEngineLoad, "build engine")
	}
	l.log.Info().Int64("attempt", n).Strs("files", files).Msg("local engine ready")
	return e, nil
}

// fetch downloads u into DataDir; a file already on disk is used when the network fails
func (l *Loader) fetch(ctx context.Context, u string) (string, error) {
	name := path.Base(u)
	if name == "" || name == "/" || name == "." {
		return "", perr.Newf(perr.ErrorCodeEngineLoad, "resource url %q has no file name", u)
	}
	dst := filepath.Join(l.opts.DataDir, name)

	err := l.download(ctx, u, dst)
	if err == nil {
		return name, nil
	}
	if st, statErr := os.Stat(dst); statErr == nil && st.Size() > 0 {
		l.log.Warn().Err(err).Str("file", name).Msg("using engine resource already on disk")
		return name, nil
	}
	return "", err
}

func (l *Loader) download(ctx context.Context, u, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeEngineLoad, "build request %s", u)
	}
	resp, err := l.opts.HTTP.Do(req)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeEngineLoad, "fetch %s", u)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return perr.Newf(perr.ErrorCodeEngineLoad, "fetch %s: status %d", u, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".fetch-*")
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeEngineLoad, "create temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return perr.Wrapf(err, perr.ErrorCodeEngineLoad, "read %s", u)
	}
	if err := tmp.Close(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeEngineLoad, "close temp file")
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeEngineLoad, "install %s", dst)
	}
	return nil
}
