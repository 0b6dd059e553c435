package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"labelscan/internal/platform/config"
	phttp "labelscan/internal/platform/net/http"
)

func TestMountProfiler(t *testing.T) {
	cases := []struct {
		name    string
		enabled bool
		path    string
		want    int
	}{
		{"index", true, "/debug/pprof/", http.StatusOK},
		{"cmdline", true, "/debug/pprof/cmdline", http.StatusOK},
		{"disabled", false, "/debug/pprof/", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := phttp.NewServer(config.New()).Router()
			phttp.MountProfiler(r, "/debug", tc.enabled)

			rec := httptest.NewRecorder()
			r.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if rec.Code != tc.want {
				t.Fatalf("GET %s = %d, want %d", tc.path, rec.Code, tc.want)
			}
		})
	}
}

func TestMountSwagger_Disabled(t *testing.T) {
	r := phttp.NewServer(config.New()).Router()
	phttp.MountSwagger(r, "/api/docs", "/api/docs/doc.json", false)

	rec := httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs/index.html", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when disabled, got %d", rec.Code)
	}
}
