package modkit

import (
	"net/http"
	"strings"

	phttp "labelscan/internal/platform/net/http"
)

// MountUnder mounts a subrouter at prefix and applies per-module middlewares
func MountUnder(r phttp.Router, prefix string, mw []func(http.Handler) http.Handler, mount func(phttp.Router)) {
	r.Route(prefix, func(sub phttp.Router) {
		if len(mw) > 0 {
			sub.Use(mw...)
		}
		mount(sub)
	})
}

// MountAPI mounts a subrouter under /api/{version}, applies any per-scope middleware,
// then invokes mount to register routes on that scoped router
//
// example:
//
//	modkit.MountAPI(r, "v1", nil, func(api phttp.Router) {
//	  scanMod.MountRoutes(api)
//	})
func MountAPI(r phttp.Router, version string, mw []func(http.Handler) http.Handler, mount func(phttp.Router)) {
	MountUnder(r, "/api/"+strings.TrimPrefix(version, "/"), mw, mount)
}

// MountAPIV1 is a convenience for MountAPI with version v1
func MountAPIV1(r phttp.Router, mw []func(http.Handler) http.Handler, mount func(phttp.Router)) {
	MountAPI(r, "v1", mw, mount)
}
