package model

// Presentation is the display data attached to a status or verdict tag
type Presentation struct {
	Label  string
	Symbol string
}

var statusPresentation = map[ClaimStatus]Presentation{
	StatusCited:       {Label: "Cited", Symbol: "🟩"},
	StatusWeaklyCited: {Label: "Weakly cited", Symbol: "🟨"},
	StatusUncited:     {Label: "Uncited", Symbol: "🟥"},
}

var verdictPresentation = map[Verdict]Presentation{
	VerdictNone:               {Label: "Not verified", Symbol: "·"},
	VerdictSupported:          {Label: "Supported", Symbol: "✓"},
	VerdictPartiallySupported: {Label: "Partially supported", Symbol: "◐"},
	VerdictUnsupported:        {Label: "Unsupported", Symbol: "✗"},
	VerdictSkipped:            {Label: "Skipped", Symbol: "↷"},
}

// Present returns display data for the status. Unknown values fall back
// to the raw tag.
func (s ClaimStatus) Present() Presentation {
	if p, ok := statusPresentation[s]; ok {
		return p
	}
	return Presentation{Label: string(s), Symbol: "?"}
}

// Present returns display data for the verdict
func (v Verdict) Present() Presentation {
	if p, ok := verdictPresentation[v]; ok {
		return p
	}
	return Presentation{Label: string(v), Symbol: "?"}
}
