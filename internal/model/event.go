package model

import "encoding/json"

// EventType classifies one record of the claim stream
type EventType string

const (
	EventClaim    EventType = "claim"    // Full claim snapshot
	EventUpdate   EventType = "update"   // Partial patch for an existing claim
	EventProgress EventType = "progress" // Progress tick
	EventDone     EventType = "done"     // Terminal success marker
	EventError    EventType = "error"    // Upstream failure message
)

// Event is one decoded stream record. Exactly one payload field is set,
// matching Type; EventDone carries none.
type Event struct {
	Type     EventType
	Claim    *Claim
	Update   *ClaimUpdate
	Progress *Progress
	Message  string
}

// ClaimUpdate is the payload of an update record. Patch is kept raw so
// that only the fields actually present on the wire are known.
type ClaimUpdate struct {
	ClaimID string          `json:"claimId"`
	Patch   json.RawMessage `json:"patch,omitempty"`
}

// ErrorPayload is the payload of an error record
type ErrorPayload struct {
	Message string `json:"message"`
}
