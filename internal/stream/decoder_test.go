package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/ppiankov/papertrail/internal/model"
)

func collect(t *testing.T, r io.Reader) ([]model.Event, []*DecodeError) {
	t.Helper()

	var events []model.Event
	var decodeErrs []*DecodeError
	for ev, err := range Events(r) {
		var derr *DecodeError
		switch {
		case err == nil:
			events = append(events, ev)
		case errors.As(err, &derr):
			decodeErrs = append(decodeErrs, derr)
		default:
			t.Fatalf("unexpected read error: %v", err)
		}
	}
	return events, decodeErrs
}

func TestDecoder_AllRecordTypes(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"claim","payload":{"id":"c1","text":"Transformers outperform RNNs.","status":"cited","verdict":null}}`,
		`{"type":"update","payload":{"claimId":"c1","patch":{"verdict":"supported"}}}`,
		`{"type":"progress","payload":{"phase":"extract","processed":1,"total":3,"timestamp":1700000000.5}}`,
		`{"type":"error","payload":{"message":"model overloaded"}}`,
		`{"type":"done"}`,
	}, "\n") + "\n"

	events, decodeErrs := collect(t, strings.NewReader(input))
	if len(decodeErrs) != 0 {
		t.Fatalf("unexpected decode errors: %v", decodeErrs)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}

	if events[0].Type != model.EventClaim || events[0].Claim.ID != "c1" || events[0].Claim.Verdict != model.VerdictNone {
		t.Errorf("unexpected claim event: %+v", events[0].Claim)
	}
	if events[1].Type != model.EventUpdate || events[1].Update.ClaimID != "c1" {
		t.Errorf("unexpected update event: %+v", events[1].Update)
	}
	if p := events[2].Progress; p == nil || p.Phase != model.PhaseExtract || p.Processed != 1 || p.Total != 3 || p.Timestamp != 1700000000.5 {
		t.Errorf("unexpected progress event: %+v", p)
	}
	if events[3].Type != model.EventError || events[3].Message != "model overloaded" {
		t.Errorf("unexpected error event: %+v", events[3])
	}
	if events[4].Type != model.EventDone {
		t.Errorf("expected done, got %s", events[4].Type)
	}
}

func TestDecoder_TrimsAndSkipsEmptyLines(t *testing.T) {
	input := "\n   \n\t{\"type\":\"done\"}   \r\n\n"

	events, decodeErrs := collect(t, strings.NewReader(input))
	if len(decodeErrs) != 0 || len(events) != 1 {
		t.Fatalf("expected 1 event and no errors, got %d events, %d errors", len(events), len(decodeErrs))
	}
}

func TestDecoder_MalformedLineDoesNotStopStream(t *testing.T) {
	input := `{"type":"claim","payload":{"id":"c1","text":"a","status":"cited"}}
{"type":"claim","payload":{"id":
{"type":"claim","payload":{"id":"c2","text":"b","status":"uncited"}}
`
	events, decodeErrs := collect(t, strings.NewReader(input))

	if len(decodeErrs) != 1 {
		t.Fatalf("expected 1 decode error, got %d", len(decodeErrs))
	}
	if decodeErrs[0].Line != 2 {
		t.Errorf("expected error on line 2, got %d", decodeErrs[0].Line)
	}
	if len(events) != 2 || events[1].Claim.ID != "c2" {
		t.Fatalf("second claim not decoded: %+v", events)
	}
}

func TestDecoder_TrailingRecordWithoutNewline(t *testing.T) {
	input := `{"type":"progress","payload":{"processed":1,"total":2}}
{"type":"done"}`

	events, decodeErrs := collect(t, strings.NewReader(input))
	if len(decodeErrs) != 0 {
		t.Fatalf("unexpected decode errors: %v", decodeErrs)
	}
	if len(events) != 2 || events[1].Type != model.EventDone {
		t.Fatalf("trailing record not decoded: %+v", events)
	}
}

func TestDecoder_TrailingPartialIsDroppedSilently(t *testing.T) {
	input := `{"type":"done"}
{"type":"claim","payl`

	events, decodeErrs := collect(t, strings.NewReader(input))
	if len(decodeErrs) != 0 {
		t.Errorf("trailing partial must not surface a decode error, got %v", decodeErrs)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}

func TestDecoder_ByteAtATime(t *testing.T) {
	input := `{"type":"claim","payload":{"id":"c1","text":"a","status":"cited"}}
{"type":"done"}
`
	events, decodeErrs := collect(t, iotest.OneByteReader(strings.NewReader(input)))
	if len(decodeErrs) != 0 || len(events) != 2 {
		t.Fatalf("expected 2 events, got %d events and %d errors", len(events), len(decodeErrs))
	}
}

func TestDecoder_ReadErrorIsFinal(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("{\"type\":\"done\"}\n"), iotest.ErrReader(boom))

	dec := NewDecoder(r)
	if _, err := dec.Next(); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if _, err := dec.Next(); !errors.Is(err, boom) {
		t.Fatalf("expected read error, got %v", err)
	}
	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after read error, got %v", err)
	}
}

func TestParseEvent_Rejects(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"not json", `hello`},
		{"no type", `{"payload":{}}`},
		{"unknown type", `{"type":"heartbeat"}`},
		{"claim without payload", `{"type":"claim"}`},
		{"claim without id", `{"type":"claim","payload":{"text":"x","status":"cited"}}`},
		{"update without claim id", `{"type":"update","payload":{"patch":{}}}`},
		{"negative progress", `{"type":"progress","payload":{"processed":-1,"total":3}}`},
		{"progress wrong shape", `{"type":"progress","payload":"half"}`},
		{"unknown phase", `{"type":"progress","payload":{"phase":"render","processed":1,"total":3}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEvent([]byte(tt.line)); err == nil {
				t.Errorf("expected error for %s", tt.line)
			}
		})
	}
}

func TestParseEvent_ErrorWithoutPayload(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"error"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type != model.EventError || ev.Message != "" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestDecodeError_Truncates(t *testing.T) {
	long := strings.Repeat("x", 500)
	dec := NewDecoder(strings.NewReader(long + "\n"))

	_, err := dec.Next()
	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if len(derr.Raw) > maxQuoted+3 {
		t.Errorf("raw line not truncated: %d bytes", len(derr.Raw))
	}
}

func TestParseEvent_ProgressTimestampKeys(t *testing.T) {
	tests := []struct {
		name string
		line string
		want float64
	}{
		{"timestamp", `{"type":"progress","payload":{"phase":"index","processed":2,"total":4,"timestamp":1700000000}}`, 1700000000},
		{"short ts", `{"type":"progress","payload":{"phase":"index","processed":2,"total":4,"ts":1700000001}}`, 1700000001},
		{"timestamp wins", `{"type":"progress","payload":{"processed":2,"total":4,"timestamp":5,"ts":6}}`, 5},
		{"absent", `{"type":"progress","payload":{"processed":2,"total":4}}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.line))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ev.Progress.Timestamp != tt.want {
				t.Errorf("got timestamp %v, want %v", ev.Progress.Timestamp, tt.want)
			}
			if ev.Progress.Processed != 2 || ev.Progress.Total != 4 {
				t.Errorf("counters lost: %+v", ev.Progress)
			}
		})
	}
}

func TestDecoder_LineTooLongIsSkipped(t *testing.T) {
	input := `{"type":"claim","payload":{"id":"c1","text":"` + strings.Repeat("x", 10000) + `","status":"cited"}}` + "\n" +
		`{"type":"done"}` + "\n"

	dec := NewDecoder(strings.NewReader(input))
	dec.maxLine = 1024

	_, err := dec.Next()
	var derr *DecodeError
	if !errors.As(err, &derr) || !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("expected ErrLineTooLong, got %v", err)
	}
	if derr.Line != 1 || len(derr.Raw) > maxQuoted+3 {
		t.Errorf("unexpected decode error: line %d, %d raw bytes", derr.Line, len(derr.Raw))
	}

	ev, err := dec.Next()
	if err != nil || ev.Type != model.EventDone {
		t.Fatalf("decoding did not resume after the long line: %+v, %v", ev, err)
	}
}

func TestDecoder_LongTrailingLineIsDropped(t *testing.T) {
	dec := NewDecoder(strings.NewReader(strings.Repeat("y", 5000)))
	dec.maxLine = 1024

	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}
