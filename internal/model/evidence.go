package model

import (
	"strconv"
	"strings"
)

// Evidence points at a location in a source document backing a verdict.
// It has no identity of its own and is owned by its parent Claim.
type Evidence struct {
	PaperTitle string `json:"paperTitle,omitempty"`
	Page       *int   `json:"page,omitempty"`
	Section    string `json:"section,omitempty"`
	Paragraph  *int   `json:"paragraph,omitempty"`
	Excerpt    string `json:"excerpt,omitempty"`
}

// Clone returns a deep copy of the evidence item
func (e Evidence) Clone() Evidence {
	out := e
	if e.Page != nil {
		p := *e.Page
		out.Page = &p
	}
	if e.Paragraph != nil {
		p := *e.Paragraph
		out.Paragraph = &p
	}
	return out
}

// Suggestion is a candidate citation for an uncited or weakly cited claim
type Suggestion struct {
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Authors []string `json:"authors,omitempty"`
	Venue   string   `json:"venue,omitempty"`
	Year    *int     `json:"year,omitempty"`
}

// Clone returns a deep copy of the suggestion
func (s Suggestion) Clone() Suggestion {
	out := s
	if s.Authors != nil {
		out.Authors = append([]string(nil), s.Authors...)
	}
	if s.Year != nil {
		y := *s.Year
		out.Year = &y
	}
	return out
}

// Key returns the deduplication identity of the suggestion: the URL when
// present, otherwise the (title, authors, year) tuple.
func (s Suggestion) Key() string {
	if u := strings.TrimSpace(s.URL); u != "" {
		return "url:" + u
	}

	year := ""
	if s.Year != nil {
		year = strconv.Itoa(*s.Year)
	}
	return "tay:" + strings.TrimSpace(s.Title) + "\x1f" + strings.Join(s.Authors, "\x1e") + "\x1f" + year
}
