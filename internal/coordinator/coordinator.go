// Package coordinator tracks one job at a time: it owns the stream
// session, routes events into the reconciler and keeps the progress and
// terminal signals.
package coordinator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ppiankov/papertrail/internal/model"
	"github.com/ppiankov/papertrail/internal/reconcile"
	"github.com/ppiankov/papertrail/internal/stream"
	"github.com/ppiankov/papertrail/internal/telemetry"
)

// Coordinator is safe for concurrent use
type Coordinator struct {
	opener  stream.Opener
	claims  *reconcile.Reconciler
	logger  *slog.Logger
	metrics *telemetry.Metrics
	base    context.Context

	mu           sync.Mutex
	state        State
	jobID        string
	session      *stream.Session
	gen          uint64 // Bumped whenever the session is replaced or dropped
	progress     *model.Progress
	err          error
	decodeErrors int
	updates      int

	sigMu   sync.Mutex
	changed chan struct{}
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records stream and claim counters
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithContext sets the parent context of every session. Cancelling it
// ends the active session without a transport error.
func WithContext(ctx context.Context) Option {
	return func(c *Coordinator) {
		if ctx != nil {
			c.base = ctx
		}
	}
}

// New creates an idle coordinator streaming through opener into claims.
// A nil claims creates a fresh reconciler.
func New(opener stream.Opener, claims *reconcile.Reconciler, opts ...Option) *Coordinator {
	if claims == nil {
		claims = reconcile.New()
	}
	c := &Coordinator{
		opener:  opener,
		claims:  claims,
		logger:  slog.Default(),
		base:    context.Background(),
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	claims.OnApply(func(src reconcile.Source, cl model.Claim, inserted bool) {
		c.metrics.ClaimWrite(string(src), inserted)
		c.metrics.SetClaims(c.claims.Len())
		c.signal()
	})
	return c
}

// Claims returns the reconciler the coordinator writes into
func (c *Coordinator) Claims() *reconcile.Reconciler {
	return c.claims
}

// Snapshot returns the current claims in first-seen order
func (c *Coordinator) Snapshot() []model.Claim {
	return c.claims.Snapshot()
}

// Track starts streaming jobID. Re-tracking the job already tracked is a
// no-op; tracking a different job cancels the current session and drops
// every claim and signal before the new session starts.
func (c *Coordinator) Track(jobID, credential string) error {
	if jobID == "" {
		return model.Missing("job id")
	}
	if credential == "" {
		return model.Missing("credential")
	}

	c.mu.Lock()
	if c.state != Idle && c.jobID == jobID {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("job already tracked", "job_id", jobID, "state", state)
		return nil
	}

	var old *stream.Session
	if c.session != nil {
		c.logger.Info("switching job", "from", c.jobID, "to", jobID)
		old = c.dropSessionLocked()
	}
	// Its handlers take c.mu, so the old session is cancelled unlocked
	defer cancelSession(old)

	c.claims.Reset()
	c.metrics.SetClaims(0)
	c.progress = nil
	c.err = nil
	c.decodeErrors = 0
	c.updates = 0

	c.gen++
	gen := c.gen
	c.jobID = jobID
	c.state = Streaming

	sess, err := stream.Open(c.base, c.opener, jobID, credential, c.handlers(gen), stream.WithLogger(c.logger))
	if err != nil {
		c.state = Errored
		c.err = err
		c.mu.Unlock()
		c.signal()
		return err
	}
	c.session = sess
	c.metrics.SessionStarted()
	c.mu.Unlock()

	c.logger.Info("tracking job", "job_id", jobID)
	c.signal()
	return nil
}

// Stop cancels the active session and returns to Idle. Claims and the
// last signals are kept for display. Calling Stop while idle does nothing.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.state == Idle && c.session == nil {
		c.mu.Unlock()
		return
	}
	jobID := c.jobID
	old := c.dropSessionLocked()
	c.state = Idle
	c.jobID = ""
	c.mu.Unlock()
	cancelSession(old)

	c.logger.Info("stopped tracking", "job_id", jobID)
	c.signal()
}

// SeedFrom replaces the claim collection with a previously exported or
// edited list, keeping its order.
func (c *Coordinator) SeedFrom(claims []model.Claim) error {
	return c.claims.SeedFrom(claims)
}

// Status returns the current signals
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Progress returns the latest progress tick, if any
func (c *Coordinator) Progress() (model.Progress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.progress == nil {
		return model.Progress{}, false
	}
	return *c.progress, true
}

// Err returns the error that moved the job to Errored, or nil
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Changes returns a channel closed at the next change of claims,
// progress or state. Call it again after each wake-up.
func (c *Coordinator) Changes() <-chan struct{} {
	c.sigMu.Lock()
	defer c.sigMu.Unlock()
	return c.changed
}

// Wait blocks until the tracked job is Errored, Idle, or Done with its
// session finished, and returns the status at that point.
func (c *Coordinator) Wait(ctx context.Context) (Status, error) {
	for {
		ch := c.Changes()

		c.mu.Lock()
		st, sess := c.state, c.session
		c.mu.Unlock()

		var sessDone <-chan struct{}
		switch st {
		case Idle, Errored:
			return c.Status(), nil
		case Done:
			if sess == nil {
				return c.Status(), nil
			}
			sessDone = sess.Done()
		}

		select {
		case <-sessDone:
			return c.Status(), nil
		case <-ch:
		case <-ctx.Done():
			return c.Status(), ctx.Err()
		}
	}
}

func (c *Coordinator) statusLocked() Status {
	st := Status{
		State:        c.state,
		JobID:        c.jobID,
		Err:          c.err,
		Claims:       c.claims.Len(),
		DecodeErrors: c.decodeErrors,
		Updates:      c.updates,
	}
	if c.progress != nil {
		p := *c.progress
		st.Progress = &p
	}
	return st
}

// dropSessionLocked detaches the active session and returns it for the
// caller to cancel once c.mu is released. Bumping gen mutes its handlers.
func (c *Coordinator) dropSessionLocked() *stream.Session {
	sess := c.session
	if sess == nil {
		return nil
	}
	c.session = nil
	c.gen++
	if c.state == Streaming {
		c.metrics.SessionEnded("cancelled")
	}
	return sess
}

func cancelSession(s *stream.Session) {
	if s != nil {
		s.Cancel()
	}
}

func (c *Coordinator) signal() {
	c.sigMu.Lock()
	close(c.changed)
	c.changed = make(chan struct{})
	c.sigMu.Unlock()
}
