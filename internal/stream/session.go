package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ppiankov/papertrail/internal/model"
)

// Opener issues the request that starts a claim stream and returns its
// body. A non-success response must be reported as an error.
type Opener interface {
	OpenStream(ctx context.Context, jobID, credential string) (io.ReadCloser, error)
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(ctx context.Context, jobID, credential string) (io.ReadCloser, error)

// OpenStream calls f
func (f OpenerFunc) OpenStream(ctx context.Context, jobID, credential string) (io.ReadCloser, error) {
	return f(ctx, jobID, credential)
}

// Handlers receive the output of one session. All callbacks run on the
// session's goroutine, one at a time, in arrival order. A handler may call
// Cancel on its own session.
type Handlers struct {
	// OnEvent is called once per decoded record. Required.
	OnEvent func(model.Event)

	// OnTransportError is called at most once, when the stream could not
	// be opened or failed mid-read. Cancellation is never reported.
	OnTransportError func(error)

	// OnDecodeError is called for each skipped line. Optional.
	OnDecodeError func(*DecodeError)

	// OnEnd is called when the body ends without a transport error. Optional.
	OnEnd func()
}

// TransportError reports a stream that failed to start or broke mid-read
type TransportError struct {
	JobID string
	Err   error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "stream failed"
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Session owns one subscription to the claim stream of one job
type Session struct {
	jobID      string
	credential string
	opener     Opener
	handlers   Handlers
	logger     *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}

	deliverMu  sync.Mutex  // Held from the stopped check through the callback
	delivering atomic.Bool // A callback is running
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open starts streaming events for jobID in the background and returns
// immediately. The returned session is cancelled by Cancel or by ctx.
func Open(ctx context.Context, opener Opener, jobID, credential string, h Handlers, opts ...Option) (*Session, error) {
	if jobID == "" {
		return nil, model.Missing("job id")
	}
	if credential == "" {
		return nil, model.Missing("credential")
	}
	if opener == nil || h.OnEvent == nil {
		return nil, errors.New("stream: opener and OnEvent are required")
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		jobID:      jobID,
		credential: credential,
		opener:     opener,
		handlers:   h,
		logger:     slog.Default(),
		ctx:        sctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("job_id", jobID)

	go s.run()
	return s, nil
}

// Cancel stops further reads and suppresses any further callbacks: no
// callback starts after Cancel returns. A callback already running is
// allowed to return. Safe to call repeatedly, from a handler, and after
// the session has finished. Callers must not hold a lock their handlers
// acquire.
func (s *Session) Cancel() {
	if s.cancelled.CompareAndSwap(false, true) {
		s.logger.Debug("stream cancelled")
	}
	s.cancel()

	// A delivery past its stopped check finishes before we return
	if !s.delivering.Load() {
		s.deliverMu.Lock()
		defer s.deliverMu.Unlock()
	}
}

// Done is closed once the session goroutine has exited and no callback
// will run again.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session has exited or ctx is done
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) stopped() bool {
	return s.cancelled.Load() || s.ctx.Err() != nil
}

// deliver runs fn unless the session has been stopped
func (s *Session) deliver(fn func()) bool {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.stopped() {
		return false
	}
	s.delivering.Store(true)
	defer s.delivering.Store(false)
	fn()
	return true
}

func (s *Session) run() {
	defer close(s.done)
	defer s.cancel()

	s.logger.Debug("opening stream")
	body, err := s.opener.OpenStream(s.ctx, s.jobID, s.credential)
	if err != nil {
		s.fail(err)
		return
	}
	defer body.Close()

	// Unblock a pending read as soon as the session is cancelled
	stop := context.AfterFunc(s.ctx, func() { _ = body.Close() })
	defer stop()

	dec := NewDecoder(body)
	for {
		ev, err := dec.Next()

		// A read that resolves after cancellation is discarded
		if s.stopped() {
			return
		}

		var derr *DecodeError
		switch {
		case err == nil:
			if !s.deliver(func() { s.handlers.OnEvent(ev) }) {
				return
			}

		case errors.As(err, &derr):
			s.logger.Warn("skipping undecodable line", "line", derr.Line, "error", derr.Err)
			if s.handlers.OnDecodeError != nil {
				s.deliver(func() { s.handlers.OnDecodeError(derr) })
			}

		case errors.Is(err, io.EOF):
			s.logger.Debug("stream ended")
			if s.handlers.OnEnd != nil {
				s.deliver(s.handlers.OnEnd)
			}
			return

		default:
			s.fail(err)
			return
		}
	}
}

func (s *Session) fail(err error) {
	if s.stopped() || errors.Is(err, context.Canceled) {
		return
	}
	s.logger.Warn("stream transport error", "error", err)
	if s.handlers.OnTransportError != nil {
		s.deliver(func() { s.handlers.OnTransportError(&TransportError{JobID: s.jobID, Err: err}) })
	}
}
