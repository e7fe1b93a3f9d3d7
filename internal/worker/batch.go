package worker

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ppiankov/papertrail/internal/model"
)

// ClaimVerifier verifies one claim and applies the verdict to the claim
// collection
type ClaimVerifier interface {
	Verify(ctx context.Context, jobID, claimID string, doc model.Document, credential string) (model.Claim, error)
}

// VerifyJob verifies one claim
type VerifyJob struct {
	Index      int
	JobID      string
	ClaimID    string
	Doc        model.Document
	Credential string
	Verifier   ClaimVerifier
}

// Execute runs the verification
func (j *VerifyJob) Execute(ctx context.Context) Result {
	claim, err := j.Verifier.Verify(ctx, j.JobID, j.ClaimID, j.Doc, j.Credential)
	if err != nil {
		return &VerifyResult{Index: j.Index, ClaimID: j.ClaimID, Error: err}
	}
	return &VerifyResult{Index: j.Index, ClaimID: j.ClaimID, Claim: &claim}
}

// VerifyResult is the outcome of verifying one claim
type VerifyResult struct {
	Index   int
	ClaimID string
	Claim   *model.Claim
	Error   error
}

// GetError returns the verification error
func (r *VerifyResult) GetError() error {
	return r.Error
}

// BatchVerifier verifies many claims of one job against one document
type BatchVerifier struct {
	verifier    ClaimVerifier
	concurrency int
	logger      *slog.Logger
}

// NewBatchVerifier creates a batch verifier running concurrency requests
// at a time
func NewBatchVerifier(verifier ClaimVerifier, concurrency int, logger *slog.Logger) *BatchVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchVerifier{
		verifier:    verifier,
		concurrency: concurrency,
		logger:      logger,
	}
}

// VerifyClaims verifies each distinct claim id and returns the results in
// input order. Claims never attempted because ctx ended carry ctx's error.
func (b *BatchVerifier) VerifyClaims(ctx context.Context, jobID string, claimIDs []string, doc model.Document, credential string) []*VerifyResult {
	claimIDs = dedupe(claimIDs)
	if len(claimIDs) == 0 {
		return []*VerifyResult{}
	}

	jobs := make([]Job, len(claimIDs))
	for i, id := range claimIDs {
		jobs[i] = &VerifyJob{
			Index:      i,
			JobID:      jobID,
			ClaimID:    id,
			Doc:        doc,
			Credential: credential,
			Verifier:   b.verifier,
		}
	}

	out := make([]*VerifyResult, len(claimIDs))
	for _, r := range Run(ctx, b.concurrency, jobs) {
		res := r.(*VerifyResult)
		out[res.Index] = res
		if res.Error != nil {
			b.logger.Warn("claim verification failed", "job_id", jobID, "claim_id", res.ClaimID, "error", res.Error)
			continue
		}
		b.logger.Debug("claim verified", "job_id", jobID, "claim_id", res.ClaimID, "verdict", res.Claim.Verdict)
	}

	for i, res := range out {
		if res != nil {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = ErrPoolClosed
		}
		out[i] = &VerifyResult{Index: i, ClaimID: claimIDs[i], Error: err}
	}
	return out
}

// ReadClaimIDsFromFile reads claim ids from a file, one per line. Blank
// lines and lines starting with # are skipped; repeats are dropped.
func ReadClaimIDsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var ids []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return dedupe(ids), nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
