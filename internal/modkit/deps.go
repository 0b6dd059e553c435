// Package modkit provides module wiring and core deps
package modkit

import (
	"net/http"

	"labelscan/internal/platform/config"
	"labelscan/internal/platform/logger"
	"labelscan/internal/platform/store"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log   logger.Logger
	Cfg   config.Conf
	Store *store.Store

	// HTTP is the outbound client modules use; main swaps in the cache interceptor
	HTTP *http.Client
}

// Client returns d.HTTP or http.DefaultClient when unset
func (d Deps) Client() *http.Client {
	if d.HTTP != nil {
		return d.HTTP
	}
	return http.DefaultClient
}

// ZeroOK returns true when deps are safe to use with zero values in tests
// consumers should still nil check for optional stores
func (d Deps) ZeroOK() bool { return true }
