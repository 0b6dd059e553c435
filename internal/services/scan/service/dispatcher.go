// Package service implements the scan pipeline: enhance, route, recognize, fall back
package service

import (
	"context"
	"fmt"

	"labelscan/internal/core/textclean"
	perr "labelscan/internal/platform/errors"
	"labelscan/internal/platform/logger"
	"labelscan/internal/services/scan/domain"

	"github.com/google/uuid"
)

// transitions is the dispatch state table; anything not listed is a programming error
var transitions = map[domain.State][]domain.State{
	domain.StateIdle:            {domain.StateEnhancing},
	domain.StateEnhancing:       {domain.StateRoutingDecision, domain.StateFailed},
	domain.StateRoutingDecision: {domain.StateRemoteAttempt, domain.StateLocalAttempt},
	domain.StateRemoteAttempt:   {domain.StateDone, domain.StateLocalAttempt},
	domain.StateLocalAttempt:    {domain.StateDone, domain.StateFailed},
}

// Allowed reports whether from -> to is in the transition table
func Allowed(from, to domain.State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Option configures a Service
type Option func(*Service)

// WithIDs replaces the scan id generator
func WithIDs(fn func() string) Option { return func(s *Service) { s.newID = fn } }

// Service runs dispatches; it keeps no per-scan state between calls
type Service struct {
	enhancer domain.Enhancer
	remote   domain.RemoteRecognizer
	loader   domain.EngineLoader
	net      domain.Network
	newID    func() string
}

var _ domain.ServicePort = (*Service)(nil)

// New wires the pipeline; remote may be nil, in which case every dispatch goes local
func New(enh domain.Enhancer, remote domain.RemoteRecognizer, loader domain.EngineLoader, net domain.Network, opts ...Option) *Service {
	s := &Service{
		enhancer: enh,
		remote:   remote,
		loader:   loader,
		net:      net,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Engine reports the local engine status when the loader exposes one
func (s *Service) Engine() domain.EngineStatus {
	if st, ok := s.loader.(interface{ Status() domain.EngineStatus }); ok {
		return st.Status()
	}
	return domain.EngineStatus{}
}

// run is the state of one dispatch
type run struct {
	id       string
	state    domain.State
	states   []domain.State
	progress domain.ProgressFunc
	log      *logger.Logger
}

func (r *run) to(next domain.State) {
	if !Allowed(r.state, next) {
		panic(fmt.Sprintf("scan: illegal transition %s -> %s", r.state, next))
	}
	r.state = next
	r.states = append(r.states, next)
}

// report invokes the progress callback; a panicking callback is logged and ignored
func (r *run) report(status string) {
	if r.progress == nil {
		return
	}
	defer func() {
		if v := recover(); v != nil {
			r.log.Warn().Interface("panic", v).Str("status", status).Msg("progress callback panicked")
		}
	}()
	r.progress(status)
}

func (r *run) done(text string, src domain.Source) domain.Outcome {
	r.to(domain.StateDone)
	r.report("Done")
	return domain.Outcome{ScanID: r.id, Text: textclean.Clean(text), Source: src, States: r.states}
}

func (r *run) fail(err error) domain.Outcome {
	r.to(domain.StateFailed)
	r.report("Failed: " + err.Error())
	return domain.Outcome{ScanID: r.id, Err: err, States: r.states}
}

// Dispatch turns one image into text; it always resolves to exactly one terminal outcome
func (s *Service) Dispatch(ctx context.Context, req domain.Request) domain.Outcome {
	id := s.newID()
	ctx = logger.WithScan(ctx, id)
	r := &run{
		id:       id,
		state:    domain.StateIdle,
		states:   []domain.State{domain.StateIdle},
		progress: req.Progress,
		log:      logger.C(ctx),
	}

	r.to(domain.StateEnhancing)
	r.report("Enhancing image")
	img, err := s.enhancer.Enhance(ctx, req.Image)
	if err != nil {
		r.log.Warn().Err(err).Str("code", perr.CodeOf(err).String()).Msg("enhancement failed")
		return r.fail(err)
	}
	r.log.Debug().Int("width", img.Width).Int("height", img.Height).Bool("brightened", img.Brightened).Msg("enhanced")

	r.to(domain.StateRoutingDecision)
	// sampled once; a drop mid-request surfaces as a remote failure
	online := s.net != nil && s.net.Online()

	if online && s.remote != nil {
		r.to(domain.StateRemoteAttempt)
		r.report("Sending to OCR service")
		text, err := s.remote.Recognize(ctx, img.JPEG)
		if err == nil {
			r.log.Info().Str("source", string(domain.SourceRemote)).Msg("scan done")
			return r.done(text, domain.SourceRemote)
		}
		r.log.Warn().Err(err).Str("code", perr.CodeOf(err).String()).Bool("remote_family", perr.IsRemote(err)).Msg("remote ocr failed; falling back")
		r.report("OCR service failed, using on-device engine")
	} else if online {
		r.report("No OCR service configured, using on-device engine")
	} else {
		r.report("Offline, using on-device engine")
	}

	r.to(domain.StateLocalAttempt)
	return s.local(ctx, r, img.JPEG)
}

func (s *Service) local(ctx context.Context, r *run, jpeg []byte) domain.Outcome {
	r.report("Loading on-device engine")
	eng, err := s.loader.Acquire(ctx)
	if err != nil {
		if !perr.IsCode(err, perr.ErrorCodeEngineLoad) {
			err = perr.Wrap(err, perr.ErrorCodeEngineLoad, "acquire engine")
		}
		r.log.Error().Err(err).Msg("engine load failed")
		return r.fail(err)
	}

	text, err := eng.Recognize(ctx, jpeg, func(pct int) {
		r.report(fmt.Sprintf("Recognizing on device %d%%", pct))
	})
	if err != nil {
		if _, ok := perr.As(err); !ok {
			err = perr.Wrap(err, perr.ErrorCodeRecognition, "local recognition")
		}
		r.log.Error().Err(err).Msg("local recognition failed")
		return r.fail(err)
	}
	r.log.Info().Str("source", string(domain.SourceLocal)).Msg("scan done")
	return r.done(text, domain.SourceLocal)
}
