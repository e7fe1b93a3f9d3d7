package model

// Claim is a single factual statement extracted from an uploaded paper,
// together with its citation and verification state.
type Claim struct {
	ID             string       `json:"id"`
	Text           string       `json:"text"`                     // Markdown-renderable statement
	Status         ClaimStatus  `json:"status"`                   // Citation classification from extraction
	Verdict        Verdict      `json:"verdict,omitempty"`        // Empty until verified or skipped
	Confidence     *float64     `json:"confidence,omitempty"`     // [0,1], only alongside a verdict
	ReasoningMD    string       `json:"reasoningMd,omitempty"`    // Explanation of the verdict or skip
	Evidence       []Evidence   `json:"evidence,omitempty"`       // Located excerpts supporting the verdict
	Suggestions    []Suggestion `json:"suggestions,omitempty"`    // Citation candidates for uncited claims
	SourceUploaded bool         `json:"sourceUploaded,omitempty"` // A verification source was supplied
}

// ClaimStatus classifies how a claim is cited in the source paper
type ClaimStatus string

const (
	StatusCited       ClaimStatus = "cited"
	StatusWeaklyCited ClaimStatus = "weakly_cited"
	StatusUncited     ClaimStatus = "uncited"
)

// ClaimStatuses lists every ClaimStatus value.
func ClaimStatuses() []ClaimStatus {
	return []ClaimStatus{StatusCited, StatusWeaklyCited, StatusUncited}
}

// Valid reports whether s is a known status.
func (s ClaimStatus) Valid() bool {
	switch s {
	case StatusCited, StatusWeaklyCited, StatusUncited:
		return true
	}
	return false
}

// NeedsCitation reports whether suggestions are relevant for the status.
func (s ClaimStatus) NeedsCitation() bool {
	return s == StatusUncited || s == StatusWeaklyCited
}

// Verdict is the outcome of verifying a claim against a source document
type Verdict string

const (
	VerdictNone               Verdict = ""
	VerdictSupported          Verdict = "supported"
	VerdictPartiallySupported Verdict = "partially_supported"
	VerdictUnsupported        Verdict = "unsupported"
	VerdictSkipped            Verdict = "skipped"
)

// Verdicts lists every non-empty Verdict value.
func Verdicts() []Verdict {
	return []Verdict{VerdictSupported, VerdictPartiallySupported, VerdictUnsupported, VerdictSkipped}
}

// Valid reports whether v is a known verdict. The empty verdict is valid
// and means the claim has not been verified yet.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictNone, VerdictSupported, VerdictPartiallySupported, VerdictUnsupported, VerdictSkipped:
		return true
	}
	return false
}

// Clone returns a deep copy of the claim. Mutating the copy never affects c.
func (c Claim) Clone() Claim {
	out := c
	if c.Confidence != nil {
		v := *c.Confidence
		out.Confidence = &v
	}
	if c.Evidence != nil {
		out.Evidence = make([]Evidence, len(c.Evidence))
		for i, ev := range c.Evidence {
			out.Evidence[i] = ev.Clone()
		}
	}
	if c.Suggestions != nil {
		out.Suggestions = make([]Suggestion, len(c.Suggestions))
		for i, s := range c.Suggestions {
			out.Suggestions[i] = s.Clone()
		}
	}
	return out
}

// Float64 returns a pointer to v, for optional numeric fields.
func Float64(v float64) *float64 {
	return &v
}

// Int returns a pointer to v, for optional numeric fields.
func Int(v int) *int {
	return &v
}
