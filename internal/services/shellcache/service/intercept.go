package service

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"labelscan/internal/platform/logger"
	"labelscan/internal/services/shellcache/domain"
)

// RoundTrip serves GET requests cache first, then network, storing 2xx answers in the current generation
// other methods go straight to the network and are never stored
func (c *Controller) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		resp, err := c.next.RoundTrip(req)
		if resp != nil {
			resp.Header.Set(domain.HeaderCache, domain.CacheBypass)
		}
		return resp, err
	}

	ctx := req.Context()
	log := logger.C(ctx)
	key := Key(req.URL)
	gen := c.active()

	if gen != nil {
		e, ok, err := gen.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache lookup failed")
		}
		if ok {
			c.hits.Add(1)
			return entryResponse(req, e), nil
		}
	}

	// stored bodies are always identity encoded; the transport negotiates compression itself
	out := req.Clone(ctx)
	out.Header.Del("Accept-Encoding")
	resp, err := c.next.RoundTrip(out)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		c.unavailable.Add(1)
		log.Debug().Err(err).Str("key", key).Msg("network unavailable and no cached copy")
		return unavailable(req, err), nil
	}
	c.misses.Add(1)
	resp.Header.Set(domain.HeaderCache, domain.CacheMiss)

	if gen == nil || resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		c.unavailable.Add(1)
		return unavailable(req, err), nil
	}
	entry := storeEntry(key, resp, body, c.opts.Now())
	if err := gen.Put(ctx, key, entry); err != nil {
		// the generation may have been superseded while the request was in flight
		log.Debug().Err(err).Str("key", key).Msg("cache store skipped")
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Del("Content-Length")
	return resp, nil
}

func unavailable(req *http.Request, cause error) *http.Response {
	body := "resource unavailable offline: " + cause.Error() + "\n"
	h := http.Header{}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set(domain.HeaderCache, domain.CacheUnavailable)
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable)),
		StatusCode:    http.StatusServiceUnavailable,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// Proxy fronts origin with the controller as transport, so the app shell is served cache first
func (c *Controller) Proxy(origin *url.URL) http.Handler {
	rp := httputil.NewSingleHostReverseProxy(origin)
	rp.Transport = c
	base := rp.Director
	rp.Director = func(r *http.Request) {
		base(r)
		r.Host = origin.Host
	}
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		c.log.Debug().Err(err).Str("path", r.URL.Path).Msg("proxy error")
		w.Header().Set(domain.HeaderCache, domain.CacheUnavailable)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}
	return rp
}
