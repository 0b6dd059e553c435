// Package http exposes the online/offline signal
package http

import (
	stdhttp "net/http"

	"labelscan/internal/core/netstate"
	phttp "labelscan/internal/platform/net/http"
)

// State is the network payload
type State struct {
	Online  bool `json:"online"`
	Changed bool `json:"changed"`
}

// SetReq records a transition event; pointer so an explicit false passes required
type SetReq struct {
	Online *bool `json:"online" validate:"required"`
}

// Register mounts GET and PUT on the module root
func Register(r phttp.Router, s *netstate.Signal) {
	h := &handlers{sig: s}
	phttp.GetJSON(r, "/", h.get)
	phttp.PutJSON(r, "/", h.set)
}

type handlers struct{ sig *netstate.Signal }

// @Summary Current network state
// @Tags Network
// @Produce json
// @Success 200 {object} State "ok"
// @Router /network [get]
func (h *handlers) get(*stdhttp.Request) (any, error) {
	return State{Online: h.sig.Online()}, nil
}

// @Summary Record an online or offline transition
// @Tags Network
// @Accept json
// @Produce json
// @Param payload body SetReq true "Transition"
// @Success 200 {object} State "ok"
// @Router /network [put]
func (h *handlers) set(_ *stdhttp.Request, in SetReq) (any, error) {
	changed := h.sig.SetOnline(*in.Online)
	return State{Online: *in.Online, Changed: changed}, nil
}
