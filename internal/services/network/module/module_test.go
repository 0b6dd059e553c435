package module

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"labelscan/internal/core/netstate"
	"labelscan/internal/modkit"
	mod "labelscan/internal/modkit/module"
	phttp "labelscan/internal/platform/net/http"
	nethttp "labelscan/internal/services/network/http"

	"github.com/go-chi/chi/v5"
)

func serve(r phttp.Router, method, body string) (int, nethttp.State) {
	req := httptest.NewRequest(method, "/api/v1/network", strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, req)
	var env struct {
		Data nethttp.State `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec.Code, env.Data
}

func TestNetworkEndpoints(t *testing.T) {
	sig := netstate.New(true)
	m := New(modkit.Deps{}, sig)
	r := phttp.AdaptChi(chi.NewRouter())
	modkit.MountAPIV1(r, nil, m.MountRoutes)

	if code, st := serve(r, http.MethodGet, ""); code != http.StatusOK || !st.Online {
		t.Fatalf("get = %d %+v", code, st)
	}

	cases := []struct {
		name    string
		body    string
		code    int
		online  bool
		changed bool
	}{
		{"go offline", `{"online":false}`, http.StatusOK, false, true},
		{"repeat is not a transition", `{"online":false}`, http.StatusOK, false, false},
		{"back online", `{"online":true}`, http.StatusOK, true, true},
		{"missing field", `{}`, http.StatusBadRequest, true, false},
		{"wrong type", `{"online":"yes"}`, http.StatusBadRequest, true, false},
	}
	for _, tc := range cases {
		code, st := serve(r, http.MethodPut, tc.body)
		if code != tc.code {
			t.Fatalf("%s: status = %d, want %d", tc.name, code, tc.code)
		}
		if code == http.StatusOK && (st.Online != tc.online || st.Changed != tc.changed) {
			t.Fatalf("%s: state = %+v", tc.name, st)
		}
		if sig.Online() != tc.online {
			t.Fatalf("%s: signal = %v, want %v", tc.name, sig.Online(), tc.online)
		}
	}

	if mod.MustPortsOf[*netstate.Signal](m) != sig {
		t.Fatal("ports signal mismatch")
	}
}

func TestNew_NilSignalStartsOnline(t *testing.T) {
	if !New(modkit.Deps{}, nil).Signal().Online() {
		t.Fatal("default signal should be online")
	}
}
