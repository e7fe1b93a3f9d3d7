package model

import (
	"encoding/json"
	"math"
)

// Phase tags a progress tick with the backend stage that produced it
type Phase string

const (
	PhaseParse   Phase = "parse"
	PhaseExtract Phase = "extract"
	PhaseIndex   Phase = "index"
	PhaseVerify  Phase = "verify"
)

// Valid reports whether p is a known phase. An empty phase is accepted
// because older backends omit it.
func (p Phase) Valid() bool {
	switch p {
	case "", PhaseParse, PhaseExtract, PhaseIndex, PhaseVerify:
		return true
	}
	return false
}

// Progress is the most recently observed progress tick. Any later tick,
// in any phase, replaces it outright.
type Progress struct {
	Phase     Phase   `json:"phase,omitempty"`
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	Timestamp float64 `json:"timestamp,omitempty"` // Unix seconds
}

// UnmarshalJSON also accepts the short "ts" key some backends send
func (p *Progress) UnmarshalJSON(data []byte) error {
	type plain Progress
	var aux struct {
		plain
		TS *float64 `json:"ts"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Progress(aux.plain)
	if p.Timestamp == 0 && aux.TS != nil {
		p.Timestamp = *aux.TS
	}
	return nil
}

// Percent returns completion in whole percent, capped at 100
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	pct := math.Round(float64(p.Processed) / float64(p.Total) * 100)
	return int(math.Min(100, pct))
}

// VerificationResult is what the backend returns for one verified claim
type VerificationResult struct {
	ClaimID     string     `json:"claimId"`
	Verdict     Verdict    `json:"verdict"`
	Confidence  float64    `json:"confidence"`
	ReasoningMD string     `json:"reasoningMd"`
	Evidence    []Evidence `json:"evidence,omitempty"`
}

// Document is an in-memory file handed to upload and verify calls
type Document struct {
	Name string
	Data []byte
}
