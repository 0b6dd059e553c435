// Package http provides HTTP transport for the scan pipeline
package http

import (
	"errors"
	"io"
	stdhttp "net/http"
	"sync"

	"labelscan/internal/core/labelfields"
	perr "labelscan/internal/platform/errors"
	phttp "labelscan/internal/platform/net/http"
	"labelscan/internal/services/scan/domain"
)

// DefaultMaxUpload bounds the multipart body when the caller passes zero
const DefaultMaxUpload = 20 << 20

// Register mounts scan endpoints on the given router
func Register(r phttp.Router, s domain.ServicePort, maxUpload int64) {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	h := &handlers{svc: s, max: maxUpload}

	r.Post("/", h.scan)
	phttp.GetJSON(r, "/engine", h.engine)
}

type handlers struct {
	svc domain.ServicePort
	max int64
}

// scan reads the multipart field "file", dispatches it and returns the text with its source
//
// @Summary Recognize text on a label image
// @Tags Scan
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Label image"
// @Success 200 {object} domain.ScanResp "ok"
// @Router /scans [post]
func (h *handlers) scan(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	r.Body = stdhttp.MaxBytesReader(w, r.Body, h.max)
	img, err := readFile(r, h.max)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}

	var (
		mu       sync.Mutex
		progress []string
	)
	out := h.svc.Dispatch(r.Context(), domain.Request{
		Image: img,
		Progress: func(status string) {
			mu.Lock()
			progress = append(progress, status)
			mu.Unlock()
		},
	})
	if out.Err != nil {
		phttp.RespondError(w, r, perr.WithOp(out.Err, "scan"))
		return
	}
	phttp.RespondOK(w, r, domain.ScanResp{
		ScanID:   out.ScanID,
		Text:     out.Text,
		Source:   out.Source,
		Fields:   labelfields.Parse(out.Text),
		Progress: progress,
	})
}

// @Summary Local engine status
// @Tags Scan
// @Produce json
// @Success 200 {object} domain.EngineStatus "ok"
// @Router /scans/engine [get]
func (h *handlers) engine(*stdhttp.Request) (any, error) { return h.svc.Engine(), nil }

func readFile(r *stdhttp.Request, max int64) ([]byte, error) {
	if err := r.ParseMultipartForm(max); err != nil {
		var mbe *stdhttp.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, perr.WithField(perr.InvalidArgf("image exceeds %d bytes", max), "file")
		}
		return nil, perr.WithField(perr.Wrap(err, perr.ErrorCodeInvalidArgument, "expected multipart/form-data"), "file")
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, perr.WithField(perr.InvalidArgf("missing file field"), "file")
	}
	defer f.Close()
	img, err := io.ReadAll(f)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "read upload")
	}
	if len(img) == 0 {
		return nil, perr.WithField(perr.InvalidArgf("empty file"), "file")
	}
	return img, nil
}
