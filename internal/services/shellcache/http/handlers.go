// Package http provides HTTP transport for the cache controller
package http

import (
	stdhttp "net/http"

	phttp "labelscan/internal/platform/net/http"
	"labelscan/internal/services/shellcache/domain"
)

// Register mounts cache control endpoints on the given router
func Register(r phttp.Router, s domain.ServicePort) {
	h := &handlers{svc: s}

	phttp.GetJSON(r, "/", h.status)
	phttp.PostNoBody(r, "/install", h.install)
	phttp.PostNoBody(r, "/activate", h.activate)
	phttp.PostJSON[domain.Message](r, "/messages", h.message)
	phttp.PostNoBody(r, "/clients", h.attach)
	phttp.DeleteJSON(r, "/clients/{id}", h.detach)
}

type handlers struct{ svc domain.ServicePort }

// @Summary Cache controller status
// @Tags Cache
// @Produce json
// @Success 200 {object} domain.Status "ok"
// @Router /cache [get]
func (h *handlers) status(r *stdhttp.Request) (any, error) { return h.svc.Status(r.Context()), nil }

// install reports the run even when it failed; the error carries the status code
//
// @Summary Install the configured manifest as a new generation
// @Tags Cache
// @Produce json
// @Success 200 {object} domain.InstallReport "ok"
// @Router /cache/install [post]
func (h *handlers) install(r *stdhttp.Request) (any, error) {
	rep, err := h.svc.Install(r.Context())
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// @Summary Activate the waiting generation now
// @Tags Cache
// @Produce json
// @Success 200 {object} domain.Status "ok"
// @Router /cache/activate [post]
func (h *handlers) activate(r *stdhttp.Request) (any, error) {
	if err := h.svc.Activate(r.Context()); err != nil {
		return nil, err
	}
	return h.svc.Status(r.Context()), nil
}

// @Summary Send a control message to the controller
// @Tags Cache
// @Accept json
// @Produce json
// @Param payload body domain.Message true "Message"
// @Success 200 {object} domain.MessageResp "ok"
// @Router /cache/messages [post]
func (h *handlers) message(r *stdhttp.Request, in domain.Message) (any, error) {
	return h.svc.Message(r.Context(), in.Type)
}

// @Summary Attach a client to the active generation
// @Tags Cache
// @Produce json
// @Success 200 {object} domain.ClientResp "ok"
// @Router /cache/clients [post]
func (h *handlers) attach(*stdhttp.Request) (any, error) {
	return domain.ClientResp{ID: h.svc.Attach()}, nil
}

// @Summary Detach a client
// @Tags Cache
// @Produce json
// @Param id path string true "Client id"
// @Success 200 {object} domain.ClientResp "ok"
// @Router /cache/clients/{id} [delete]
func (h *handlers) detach(r *stdhttp.Request) (any, error) {
	id := phttp.URLParam(r, "id")
	if err := h.svc.Detach(r.Context(), id); err != nil {
		return nil, err
	}
	return domain.ClientResp{ID: id}, nil
}
