package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/ppiankov/papertrail/internal/model"
)

type mockVerifier struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func (m *mockVerifier) Verify(ctx context.Context, jobID, claimID string, doc model.Document, credential string) (model.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[claimID]++
	if m.fail[claimID] {
		return model.Claim{}, errors.New("verify failed")
	}
	return model.Claim{ID: claimID, Verdict: model.VerdictSupported, SourceUploaded: true}, nil
}

func TestBatchVerifier_VerifyClaims(t *testing.T) {
	v := &mockVerifier{fail: map[string]bool{"c2": true}}
	b := NewBatchVerifier(v, 2, nil)

	doc := model.Document{Name: "src.pdf", Data: []byte("pdf")}
	results := b.VerifyClaims(context.Background(), "job-1", []string{"c1", "c2", "c3", "c1", " "}, doc, "key")

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"c1", "c2", "c3"} {
		if results[i].ClaimID != want || results[i].Index != i {
			t.Errorf("result %d: got %s/%d, want %s", i, results[i].ClaimID, results[i].Index, want)
		}
	}
	if results[0].Error != nil || results[0].Claim == nil || results[0].Claim.Verdict != model.VerdictSupported {
		t.Errorf("unexpected result for c1: %+v", results[0])
	}
	if results[1].GetError() == nil || results[1].Claim != nil {
		t.Errorf("expected failure for c2: %+v", results[1])
	}
	if v.calls["c1"] != 1 {
		t.Errorf("duplicate ids must be verified once, got %d", v.calls["c1"])
	}
}

func TestBatchVerifier_Empty(t *testing.T) {
	b := NewBatchVerifier(&mockVerifier{}, 2, nil)
	if results := b.VerifyClaims(context.Background(), "job-1", nil, model.Document{}, "key"); len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestBatchVerifier_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBatchVerifier(&mockVerifier{}, 1, nil)
	results := b.VerifyClaims(ctx, "job-1", []string{"c1", "c2", "c3"}, model.Document{}, "key")

	if len(results) != 3 {
		t.Fatalf("expected one result per claim, got %d", len(results))
	}
	for _, r := range results {
		if r == nil {
			t.Fatal("nil result")
		}
	}
}

func TestReadClaimIDsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.txt")
	content := "# claims to verify\nc1\n\n  c2  \nc1\n#c3\nc4\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	ids, err := ReadClaimIDsFromFile(path)
	if err != nil {
		t.Fatalf("ReadClaimIDsFromFile: %v", err)
	}
	if want := []string{"c1", "c2", "c4"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("got %v, want %v", ids, want)
	}
}

func TestReadClaimIDsFromFile_NonExistent(t *testing.T) {
	if _, err := ReadClaimIDsFromFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
