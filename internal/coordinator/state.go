package coordinator

import (
	"errors"
	"fmt"

	"github.com/ppiankov/papertrail/internal/model"
)

// State is the lifecycle state of the tracked job
type State int

const (
	Idle State = iota
	Streaming
	Done
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Done:
		return "done"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further events are expected
func (s State) Terminal() bool {
	return s == Done || s == Errored
}

// UpstreamError is an explicit error record sent by the backend
type UpstreamError struct {
	JobID   string
	Message string
}

func (e *UpstreamError) Error() string {
	return e.Message
}

// ErrStreamClosed is recorded when the body ends before a done record
var ErrStreamClosed = errors.New("stream closed before completion")

// defaultUpstreamMessage is used when an error record carries no message
const defaultUpstreamMessage = "Stream failed."

// Status is a point-in-time view of the coordinator signals
type Status struct {
	State        State
	JobID        string
	Progress     *model.Progress // Latest tick, nil before the first one
	Err          error           // Set in Errored
	Claims       int             // Distinct claims held
	DecodeErrors int             // Lines skipped in the current session
	Updates      int             // Update records received and ignored
}

// Message returns the error text, or "" when there is no error
func (s Status) Message() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}
