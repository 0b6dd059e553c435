// Package service runs the offline resource cache: install, activate and fetch interception
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	perr "labelscan/internal/platform/errors"
	"labelscan/internal/platform/logger"
	"labelscan/internal/platform/store"
	"labelscan/internal/services/shellcache/domain"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// metaGen is a reserved namespace remembering the active generation across restarts
const (
	metaGen     = "_labelscan_meta"
	metaCurrent = "current"
)

// Options configures a Controller
type Options struct {
	Manifest domain.Manifest
	// Origin resolves relative manifest entries
	Origin *url.URL
	// Network is the transport behind the cache; nil means a clone of http.DefaultTransport
	Network http.RoundTripper
	// WaitForClients defers activation while clients are attached to the current generation
	WaitForClients bool
	// OptionalLimit bounds concurrent optional fetches
	OptionalLimit int
	Now           func() time.Time
}

// Controller owns generation lifecycle and serves as an http.RoundTripper
type Controller struct {
	opts    Options
	storage store.Storage
	next    http.RoundTripper
	log     *logger.Logger

	installMu sync.Mutex

	mu      sync.RWMutex
	current *generation
	waiting *generation
	gens    map[string]*generation
	clients map[string]uint64
	last    *domain.InstallReport

	epoch       atomic.Uint64
	hits        atomic.Int64
	misses      atomic.Int64
	unavailable atomic.Int64
}

var _ domain.ServicePort = (*Controller)(nil)

// New returns a Controller over storage; call Restore to pick up a generation from a previous run
func New(storage store.Storage, o Options) *Controller {
	if o.Network == nil {
		o.Network = http.DefaultTransport.(*http.Transport).Clone()
	}
	if o.OptionalLimit <= 0 {
		o.OptionalLimit = 4
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &Controller{
		opts:    o,
		storage: storage,
		next:    o.Network,
		log:     logger.Named("shellcache"),
		gens:    make(map[string]*generation),
		clients: make(map[string]uint64),
	}
}

// SetManifest replaces the manifest used by the next Install
func (c *Controller) SetManifest(m domain.Manifest) {
	c.installMu.Lock()
	c.opts.Manifest = m
	c.installMu.Unlock()
}

// Manifest returns the manifest used by Install
func (c *Controller) Manifest() domain.Manifest {
	c.installMu.Lock()
	defer c.installMu.Unlock()
	return c.opts.Manifest
}

// Client returns an http.Client whose every request goes through the cache
func (c *Controller) Client() *http.Client { return &http.Client{Transport: c} }

// Resolve turns a manifest entry into an absolute URL
func (c *Controller) Resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() || c.opts.Origin == nil {
		return ref
	}
	return c.opts.Origin.ResolveReference(u).String()
}

// Key is the storage key for a request URL: fragment dropped, scheme and host lower cased
func Key(u *url.URL) string {
	k := *u
	k.Fragment, k.RawFragment = "", ""
	k.Scheme = strings.ToLower(k.Scheme)
	k.Host = strings.ToLower(k.Host)
	return k.String()
}

// Restore adopts the generation recorded as active by a previous run and drops leftovers
func (c *Controller) Restore(ctx context.Context) error {
	names, err := c.userGenerations(ctx)
	if err != nil {
		return err
	}
	want := ""
	if meta, err := c.storage.Open(ctx, metaGen); err == nil {
		if e, ok, _ := meta.Get(ctx, metaCurrent); ok {
			want = e.URL
		}
	}
	if want == "" && len(names) == 1 {
		want = names[0]
	}
	if !slices.Contains(names, want) {
		c.log.Info().Strs("generations", names).Msg("no generation to restore")
		return nil
	}

	h, err := c.storage.Open(ctx, want)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	g := &generation{name: want, phase: domain.PhaseActive, store: h}
	for n, old := range c.gens {
		if n != want && CanMove(old.phase, domain.PhaseRedundant) {
			old.move(domain.PhaseRedundant)
		}
		delete(c.gens, n)
	}
	c.waiting = nil
	c.gens[want] = g
	c.current = g
	c.epoch.Add(1)
	for _, n := range names {
		if n != want {
			_, _ = c.storage.Delete(ctx, n)
		}
	}
	c.log.Info().Str("generation", want).Msg("restored active generation")
	return nil
}

// userGenerations lists generation names, hiding reserved namespaces
func (c *Controller) userGenerations(ctx context.Context) ([]string, error) {
	all, err := c.storage.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, n := range all {
		if !strings.HasPrefix(n, "_") {
			out = append(out, n)
		}
	}
	return out, nil
}

// Install populates the manifest's generation and activates it unless activation has to wait
// required resources are stored all together or not at all; optional failures are only recorded
func (c *Controller) Install(ctx context.Context) (domain.InstallReport, error) {
	c.installMu.Lock()
	defer c.installMu.Unlock()

	m := c.opts.Manifest
	name := m.Generation()
	rep := domain.InstallReport{
		Generation: name,
		Required:   len(m.Required),
		Optional:   len(m.Optional),
		StartedAt:  c.opts.Now().UTC(),
	}
	log := logger.C(ctx).With().Str("generation", name).Logger()

	if err := m.Validate(); err != nil {
		return c.finish(rep, err), err
	}

	c.mu.Lock()
	switch {
	case c.current != nil && c.current.name == name:
		c.mu.Unlock()
		rep.Unchanged, rep.Activated = true, true
		log.Debug().Msg("generation already active")
		return c.finish(rep, nil), nil
	case c.waiting != nil && c.waiting.name == name:
		c.mu.Unlock()
		rep.Unchanged, rep.Waiting = true, true
		return c.finish(rep, nil), nil
	}
	g := &generation{name: name, phase: domain.PhasePending}
	g.move(domain.PhaseInstalling)
	c.gens[name] = g
	cur := c.current
	c.mu.Unlock()

	log.Info().Int("required", rep.Required).Int("optional", rep.Optional).Msg("installing")

	staged := make(map[string]store.Entry, len(m.Required))
	for _, ref := range m.Required {
		e, err := c.fetch(ctx, c.Resolve(ref))
		if err != nil {
			return c.abort(ctx, g, rep, perr.Wrapf(err, perr.ErrorCodeCacheInstall, "required resource %s", ref))
		}
		staged[e.URL] = e
	}

	h, err := c.storage.Open(ctx, name)
	if err != nil {
		return c.abort(ctx, g, rep, perr.Wrap(err, perr.ErrorCodeCacheInstall, "open generation"))
	}
	if err := h.PutAll(ctx, staged); err != nil {
		return c.abort(ctx, g, rep, perr.Wrap(err, perr.ErrorCodeCacheInstall, "store required resources"))
	}

	rep.Failed, rep.Carried = c.installOptional(ctx, h, cur, m.Optional)
	for u, msg := range rep.Failed {
		log.Warn().Str("url", u).Str("error", msg).Msg("optional resource not cached")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// a waiting generation activated meanwhile deleted this one
	if g.phase == domain.PhaseRedundant || c.gens[name] != g {
		if c.gens[name] == g {
			delete(c.gens, name)
		}
		active := ""
		if c.current != nil {
			active = c.current.name
		}
		if active != name {
			_, _ = c.storage.Delete(context.WithoutCancel(ctx), name)
		}
		err := perr.Newf(perr.ErrorCodeCacheInstall, "install of %s superseded by activation of %s", name, active)
		log.Warn().Err(err).Msg("install superseded")
		return c.finishLocked(rep, err), err
	}
	g.store = h
	g.move(domain.PhaseInstalled)

	if c.opts.WaitForClients && c.current != nil && len(c.clients) > 0 {
		if c.waiting != nil && c.waiting != g {
			c.discardLocked(ctx, c.waiting)
		}
		c.waiting = g
		rep.Waiting = true
		log.Info().Int("clients", len(c.clients)).Msg("installed; waiting for clients to detach")
		return c.finishLocked(rep, nil), nil
	}
	c.activateLocked(ctx, g)
	rep.Activated = true
	return c.finishLocked(rep, nil), nil
}

// installOptional fetches each optional resource independently
// a failed fetch keeps the copy from the current generation when there is one
func (c *Controller) installOptional(ctx context.Context, h store.Generation, cur *generation, refs []string) (map[string]string, []string) {
	var (
		mu      sync.Mutex
		failed  map[string]string
		carried []string
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.opts.OptionalLimit)
	for _, ref := range refs {
		u := c.Resolve(ref)
		eg.Go(func() error {
			e, err := c.fetch(gctx, u)
			if err == nil {
				err = h.Put(gctx, e.URL, e)
			}
			if err == nil {
				return nil
			}
			if cur != nil && cur.store != nil {
				if key, kerr := keyOf(u); kerr == nil {
					if old, ok, _ := cur.store.Get(gctx, key); ok && h.Put(gctx, key, old) == nil {
						mu.Lock()
						carried = append(carried, u)
						mu.Unlock()
						return nil
					}
				}
			}
			mu.Lock()
			if failed == nil {
				failed = make(map[string]string)
			}
			failed[u] = err.Error()
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	slices.Sort(carried)
	return failed, carried
}

func keyOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return Key(u), nil
}

// fetch GETs u straight from the network; anything but 2xx is an error
func (c *Controller) fetch(ctx context.Context, u string) (store.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return store.Entry{}, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "bad resource url %q", u)
	}
	resp, err := c.next.RoundTrip(req)
	if err != nil {
		return store.Entry{}, perr.Wrap(err, perr.ErrorCodeUnavailable, "fetch")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return store.Entry{}, perr.Newf(perr.ErrorCodeHTTPStatus, "status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return store.Entry{}, perr.Wrap(err, perr.ErrorCodeUnavailable, "read body")
	}
	return storeEntry(Key(req.URL), resp, body, c.opts.Now()), nil
}

func storeEntry(key string, resp *http.Response, body []byte, at time.Time) store.Entry {
	return store.Entry{
		URL:      key,
		Status:   resp.StatusCode,
		Header:   storable(resp.Header),
		Body:     body,
		StoredAt: at.UTC(),
	}
}

// abort discards a failed install; the current generation is untouched
func (c *Controller) abort(ctx context.Context, g *generation, rep domain.InstallReport, err error) (domain.InstallReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discardLocked(ctx, g)
	logger.C(ctx).Warn().Err(err).Str("generation", g.name).Msg("install failed")
	return c.finishLocked(rep, err), err
}

func (c *Controller) discardLocked(ctx context.Context, g *generation) {
	if _, err := c.storage.Delete(context.WithoutCancel(ctx), g.name); err != nil {
		c.log.Warn().Err(err).Str("generation", g.name).Msg("delete generation")
	}
	if g.phase != domain.PhaseRedundant {
		g.move(domain.PhaseRedundant)
	}
	delete(c.gens, g.name)
	if c.waiting == g {
		c.waiting = nil
	}
}

func (c *Controller) finish(rep domain.InstallReport, err error) domain.InstallReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finishLocked(rep, err)
}

func (c *Controller) finishLocked(rep domain.InstallReport, err error) domain.InstallReport {
	if err != nil {
		rep.Error = err.Error()
	}
	rep.FinishedAt = c.opts.Now().UTC()
	cp := rep
	c.last = &cp
	return rep
}

// activateLocked makes g current, deletes every other generation and claims attached clients
func (c *Controller) activateLocked(ctx context.Context, g *generation) {
	ctx = context.WithoutCancel(ctx)
	g.move(domain.PhaseActivating)

	names, err := c.userGenerations(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("list generations")
	}
	for _, n := range names {
		if n == g.name {
			continue
		}
		if _, err := c.storage.Delete(ctx, n); err != nil {
			c.log.Warn().Err(err).Str("generation", n).Msg("delete stale generation")
			continue
		}
		if old, ok := c.gens[n]; ok {
			old.move(domain.PhaseRedundant)
			delete(c.gens, n)
		}
	}

	g.move(domain.PhaseActive)
	c.current = g
	if c.waiting == g {
		c.waiting = nil
	}
	epoch := c.epoch.Add(1)
	for id := range c.clients {
		c.clients[id] = epoch
	}

	if meta, err := c.storage.Open(ctx, metaGen); err == nil {
		_ = meta.Put(ctx, metaCurrent, store.Entry{URL: g.name})
	}
	c.log.Info().Str("generation", g.name).Uint64("epoch", epoch).Int("deleted", len(names)-1).Msg("activated")
}

// Activate promotes the generation waiting for clients to detach
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waiting == nil {
		return perr.Conflictf("no installed generation is waiting")
	}
	c.activateLocked(ctx, c.waiting)
	return nil
}

// Message handles a control message; skip-waiting and activate-now activate the waiting generation
func (c *Controller) Message(ctx context.Context, typ string) (domain.MessageResp, error) {
	switch typ {
	case domain.MsgSkipWaiting, domain.MsgActivateNow:
	default:
		return domain.MessageResp{}, perr.WithField(perr.InvalidArgf("unknown message type %q", typ), "type")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	resp := domain.MessageResp{}
	if c.waiting != nil {
		c.activateLocked(ctx, c.waiting)
		resp.Activated = true
	}
	if c.current != nil {
		resp.Current = c.current.name
	}
	return resp, nil
}

// Attach registers a client context served by the current generation
func (c *Controller) Attach() string {
	id := uuid.NewString()
	c.mu.Lock()
	c.clients[id] = c.epoch.Load()
	c.mu.Unlock()
	return id
}

// Detach removes a client; the last one leaving lets a waiting generation activate
func (c *Controller) Detach(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.clients[id]; !ok {
		return perr.WithField(perr.NotFoundf("client %s not attached", id), "id")
	}
	delete(c.clients, id)
	if len(c.clients) == 0 && c.waiting != nil {
		c.activateLocked(ctx, c.waiting)
	}
	return nil
}

// Status snapshots the controller
func (c *Controller) Status(ctx context.Context) domain.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := domain.Status{
		Clients:     len(c.clients),
		ClaimEpoch:  c.epoch.Load(),
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Unavailable: c.unavailable.Load(),
		Generations: make([]domain.GenerationInfo, 0, len(c.gens)),
	}
	if c.current != nil {
		st.Current = c.current.name
	}
	if c.waiting != nil {
		st.Waiting = c.waiting.name
	}
	for _, g := range c.gens {
		info := domain.GenerationInfo{Name: g.name, Phase: g.phase}
		if g.store != nil {
			info.Entries, _ = g.store.Len(ctx)
		}
		st.Generations = append(st.Generations, info)
	}
	slices.SortFunc(st.Generations, func(a, b domain.GenerationInfo) int { return strings.Compare(a.Name, b.Name) })
	if c.last != nil {
		cp := *c.last
		st.LastInstall = &cp
	}
	return st
}

// active returns the store of the current generation, nil before the first activation
func (c *Controller) active() store.Generation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil
	}
	return c.current.store
}

// storable drops hop-by-hop and per-client headers before a response is kept
func storable(h http.Header) http.Header {
	out := h.Clone()
	for _, k := range []string{"Connection", "Keep-Alive", "Transfer-Encoding", "Set-Cookie", "Content-Length", domain.HeaderCache} {
		out.Del(k)
	}
	return out
}

func entryResponse(req *http.Request, e store.Entry) *http.Response {
	h := e.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(domain.HeaderCache, domain.CacheHit)
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}
