// Package stream turns the NDJSON claim stream into typed events and owns
// the subscription that produces them.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/ppiankov/papertrail/internal/model"
)

const (
	// maxQuoted bounds how much of a bad line is kept in a DecodeError
	maxQuoted = 120

	// MaxLineSize bounds one record. Longer lines are skipped up to the
	// next newline and reported as ErrLineTooLong.
	MaxLineSize = 8 << 20
)

// ErrLineTooLong marks a record longer than the decoder accepts
var ErrLineTooLong = errors.New("line too long")

// DecodeError reports one line that could not be decoded. It never ends
// the stream; decoding continues with the next line.
type DecodeError struct {
	Line int    // 1-based index among non-empty lines
	Raw  string // Offending line, truncated
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode line %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decoder reads newline-delimited event records from a byte stream
type Decoder struct {
	r       *bufio.Reader
	lines   int
	done    bool
	maxLine int
}

// NewDecoder creates a decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r), maxLine: MaxLineSize}
}

// Next returns the next event.
//
// A *DecodeError means one line was skipped and Next may be called again.
// io.EOF marks the end of input. Any other error comes from the underlying
// reader and is final.
func (d *Decoder) Next() (model.Event, error) {
	for {
		if d.done {
			return model.Event{}, io.EOF
		}

		raw, tooLong, err := d.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			d.done = true
			return model.Event{}, err
		}
		final := err != nil
		if final {
			d.done = true
		}

		if tooLong {
			d.lines++
			if final {
				return model.Event{}, io.EOF
			}
			return model.Event{}, &DecodeError{Line: d.lines, Raw: quote(raw), Err: ErrLineTooLong}
		}

		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}
		d.lines++

		ev, perr := ParseEvent(line)
		if perr == nil {
			return ev, nil
		}
		if final {
			// Unterminated trailing content is a best-effort record
			return model.Event{}, io.EOF
		}
		return model.Event{}, &DecodeError{Line: d.lines, Raw: quote(line), Err: perr}
	}
}

// readLine reads through the next newline. Past maxLine it keeps only the
// first maxQuoted bytes and reports tooLong.
func (d *Decoder) readLine() (line []byte, tooLong bool, err error) {
	for {
		frag, rerr := d.r.ReadSlice('\n')
		switch {
		case tooLong:
		case len(line)+len(frag) > d.maxLine:
			tooLong = true
			line = append(line, frag...)
			if len(line) > maxQuoted {
				line = line[:maxQuoted:maxQuoted]
			}
		default:
			line = append(line, frag...)
		}
		if errors.Is(rerr, bufio.ErrBufferFull) {
			continue
		}
		return line, tooLong, rerr
	}
}

// Events decodes r lazily. Each iteration yields either an event with a
// nil error, a *DecodeError (iteration continues), or a read error
// (iteration stops). End of input ends the sequence without an error.
func Events(r io.Reader) iter.Seq2[model.Event, error] {
	return func(yield func(model.Event, error) bool) {
		dec := NewDecoder(r)
		for {
			ev, err := dec.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			var derr *DecodeError
			if err != nil && !errors.As(err, &derr) {
				yield(model.Event{}, err)
				return
			}
			if !yield(ev, err) {
				return
			}
		}
	}
}

type record struct {
	Type    model.EventType `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ParseEvent decodes a single trimmed record
func ParseEvent(line []byte) (model.Event, error) {
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return model.Event{}, fmt.Errorf("invalid json: %w", err)
	}

	ev := model.Event{Type: rec.Type}

	switch rec.Type {
	case model.EventClaim:
		var c model.Claim
		if err := decodePayload(rec.Payload, &c); err != nil {
			return model.Event{}, err
		}
		if c.ID == "" {
			return model.Event{}, errors.New("claim without id")
		}
		ev.Claim = &c

	case model.EventUpdate:
		var u model.ClaimUpdate
		if err := decodePayload(rec.Payload, &u); err != nil {
			return model.Event{}, err
		}
		if u.ClaimID == "" {
			return model.Event{}, errors.New("update without claimId")
		}
		ev.Update = &u

	case model.EventProgress:
		var p model.Progress
		if err := decodePayload(rec.Payload, &p); err != nil {
			return model.Event{}, err
		}
		if p.Processed < 0 || p.Total < 0 {
			return model.Event{}, fmt.Errorf("negative progress %d/%d", p.Processed, p.Total)
		}
		if !p.Phase.Valid() {
			return model.Event{}, fmt.Errorf("unknown progress phase %q", p.Phase)
		}
		ev.Progress = &p

	case model.EventDone:

	case model.EventError:
		var e model.ErrorPayload
		if !isAbsent(rec.Payload) {
			if err := json.Unmarshal(rec.Payload, &e); err != nil {
				return model.Event{}, fmt.Errorf("invalid error payload: %w", err)
			}
		}
		ev.Message = e.Message

	case "":
		return model.Event{}, errors.New("record without type")

	default:
		return model.Event{}, fmt.Errorf("unknown record type %q", rec.Type)
	}

	return ev, nil
}

func decodePayload(raw json.RawMessage, v any) error {
	if isAbsent(raw) {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func quote(line []byte) string {
	if len(line) > maxQuoted {
		return string(line[:maxQuoted]) + "..."
	}
	return string(line)
}
