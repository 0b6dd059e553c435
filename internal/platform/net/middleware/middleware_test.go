package middleware_test

import (
	"compress/flate"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	perr "labelscan/internal/platform/errors"
	pnet "labelscan/internal/platform/net"
	phttp "labelscan/internal/platform/net/http"
	"labelscan/internal/platform/net/middleware"
)

func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TestWrappers_ReturnHandlers(t *testing.T) {
	if middleware.RequestID() == nil ||
		middleware.RealIP() == nil ||
		middleware.Timeout(time.Second) == nil ||
		middleware.NoCache() == nil ||
		middleware.Heartbeat("/healthz") == nil ||
		middleware.LogContext() == nil {
		t.Fatal("expected non nil handlers from wrappers")
	}
}

func TestDefaults_RequestIDReachesHandlerAndResponse(t *testing.T) {
	var seen string
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = pnet.RequestID(r.Context())
		_, _ = io.WriteString(w, "ok")
	}), middleware.Defaults()...)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "rid-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "rid-42" {
		t.Fatalf("handler saw request id %q", seen)
	}
	if rec.Header().Get("X-Request-ID") != "rid-42" {
		t.Fatalf("response header missing request id")
	}
}

func TestCompress_DeflateWhenAccepted(t *testing.T) {
	h := middleware.Compress(flate.BestSpeed)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, strings.Repeat("recognized text ", 200))
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "deflate")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Content-Encoding") != "deflate" {
		t.Fatalf("expected deflate, got %q", rec.Header().Get("Content-Encoding"))
	}
}

func TestCORS_DefaultsFillMissing(t *testing.T) {
	h := middleware.CORS(middleware.CORSOptions{AllowedOrigins: []string{"*"}})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/scans", nil)
	req.Header.Set("Origin", "http://10.0.0.2:5000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("expected Access-Control-Allow-Origin to be set")
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost) {
		t.Fatalf("unexpected allow methods %q", rec.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestRecoverJSON_WritesEnvelope(t *testing.T) {
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
		middleware.RequestID(), middleware.RecoverJSON)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var env phttp.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Code != perr.ErrorCodePanic || env.RequestID == "" {
		t.Fatalf("bad envelope %+v", env)
	}
	if rec.Header().Get("X-Request-ID") != env.RequestID {
		t.Fatalf("header and envelope ids differ")
	}
}

func TestAccessLogZerolog_PassThrough(t *testing.T) {
	cases := []middleware.AccessLogOptions{
		{},
		{Slow: time.Nanosecond},
		{Skip: []string{"/x"}},
	}
	for _, opt := range cases {
		h := middleware.AccessLogZerolog(opt)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("X-Labelscan-Cache", "hit")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("hi"))
			_, _ = w.Write([]byte("there"))
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		if rec.Code != http.StatusCreated || rec.Body.String() != "hithere" {
			t.Fatalf("opts %+v: got %d %q", opt, rec.Code, rec.Body.String())
		}
	}
}
