package coordinator

import (
	"errors"

	"github.com/ppiankov/papertrail/internal/model"
	"github.com/ppiankov/papertrail/internal/stream"
)

// handlers binds session callbacks to one generation. Callbacks from a
// replaced or dropped session are discarded.
func (c *Coordinator) handlers(gen uint64) stream.Handlers {
	return stream.Handlers{
		OnEvent:          func(ev model.Event) { c.onEvent(gen, ev) },
		OnTransportError: func(err error) { c.onTransportError(gen, err) },
		OnDecodeError:    func(derr *stream.DecodeError) { c.onDecodeError(gen, derr) },
		OnEnd:            func() { c.onEnd(gen) },
	}
}

func (c *Coordinator) onEvent(gen uint64, ev model.Event) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.metrics.Event(string(ev.Type))
	changed := false

	switch ev.Type {
	case model.EventClaim:
		// The reconciler hook signals observers
		if err := c.claims.ApplyClaim(*ev.Claim); err != nil {
			c.logger.Warn("dropping claim", "job_id", c.jobID, "error", err)
		}

	case model.EventProgress:
		p := *ev.Progress
		c.progress = &p
		if c.state == Done {
			// A progress tick after done means done was premature
			c.state = Streaming
		}
		changed = true

	case model.EventDone:
		if c.state != Done {
			c.state = Done
			c.metrics.SessionEnded("done")
			c.logger.Info("stream done", "job_id", c.jobID, "claims", c.claims.Len())
			changed = true
		}

	case model.EventError:
		msg := ev.Message
		if msg == "" {
			msg = defaultUpstreamMessage
		}
		c.failLocked(&UpstreamError{JobID: c.jobID, Message: msg})
		// A failed stream delivers nothing further
		if c.session != nil {
			c.session.Cancel()
		}
		changed = true

	case model.EventUpdate:
		c.updates++
		c.logger.Debug("ignoring update record", "job_id", c.jobID, "claim_id", ev.Update.ClaimID)
	}
	c.mu.Unlock()

	if changed {
		c.signal()
	}
}

func (c *Coordinator) onTransportError(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.metrics.TransportError()
	c.failLocked(err)
	c.mu.Unlock()
	c.signal()
}

func (c *Coordinator) onDecodeError(gen uint64, derr *stream.DecodeError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.decodeErrors++
	c.metrics.DecodeError()
}

func (c *Coordinator) onEnd(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != Streaming {
		c.mu.Unlock()
		return
	}
	c.failLocked(ErrStreamClosed)
	c.mu.Unlock()
	c.signal()
}

// failLocked moves the job to Errored. Claims already applied are kept.
func (c *Coordinator) failLocked(err error) {
	if c.state == Errored {
		return
	}
	c.state = Errored
	c.err = err
	c.metrics.SessionEnded("errored")

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		c.logger.Warn("upstream error", "job_id", c.jobID, "message", upstream.Message, "claims", c.claims.Len())
		return
	}
	c.logger.Warn("stream failed", "job_id", c.jobID, "error", err, "claims", c.claims.Len())
}
