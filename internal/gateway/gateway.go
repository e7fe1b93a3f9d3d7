// Package gateway applies out-of-band claim mutations, verification
// results and citation suggestions, through the reconciler.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/papertrail/internal/model"
	"github.com/ppiankov/papertrail/internal/reconcile"
)

// Verifier checks one claim of a job against a source document
type Verifier interface {
	VerifyClaim(ctx context.Context, jobID, claimID string, doc model.Document, apiKey string) (*model.VerificationResult, error)
}

// Suggester returns candidate citations for a claim text
type Suggester interface {
	SuggestCitations(ctx context.Context, text string) ([]model.Suggestion, error)
}

// Gateway writes external results back into the claim collection.
//
// Every method reads the current claim, overlays its fields and writes the
// whole value back with ApplyExternalReplace. Two concurrent writes to the
// same claim resolve last-write-wins.
type Gateway struct {
	claims    *reconcile.Reconciler
	verifier  Verifier
	suggester Suggester
	logger    *slog.Logger
}

// Option configures a Gateway
type Option func(*Gateway)

// WithVerifier sets the backend used by Verify
func WithVerifier(v Verifier) Option {
	return func(g *Gateway) { g.verifier = v }
}

// WithSuggester sets the provider used by Suggest
func WithSuggester(s Suggester) Option {
	return func(g *Gateway) { g.suggester = s }
}

// WithLogger sets the gateway logger
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a gateway over claims
func New(claims *reconcile.Reconciler, opts ...Option) *Gateway {
	g := &Gateway{
		claims: claims,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ApplyVerification records a verdict on claimID. Evidence replaces the
// stored list only when non-nil. The claim is marked as having a source.
func (g *Gateway) ApplyVerification(claimID string, verdict model.Verdict, confidence float64, reasoningMD string, evidence []model.Evidence) (model.Claim, error) {
	if verdict == model.VerdictNone || !verdict.Valid() {
		return model.Claim{}, &model.ValidationError{Field: "verdict", Reason: fmt.Sprintf("unknown value %q", verdict)}
	}
	if confidence < 0 || confidence > 1 {
		return model.Claim{}, &model.ValidationError{Field: "confidence", Reason: "must be within [0,1]"}
	}

	claim, err := g.claims.Get(claimID)
	if err != nil {
		return model.Claim{}, err
	}

	claim.Verdict = verdict
	claim.Confidence = model.Float64(confidence)
	claim.ReasoningMD = reasoningMD
	if evidence != nil {
		claim.Evidence = make([]model.Evidence, len(evidence))
		for i, ev := range evidence {
			claim.Evidence[i] = ev.Clone()
		}
	}
	claim.SourceUploaded = true

	if err := g.claims.ApplyExternalReplace(claim); err != nil {
		return model.Claim{}, err
	}
	g.logger.Debug("verification applied", "claim_id", claimID, "verdict", verdict, "confidence", confidence)
	return claim, nil
}

// ApplySuggestions merges suggestions into those already on claimID,
// dropping repeats. Existing entries keep their position.
func (g *Gateway) ApplySuggestions(claimID string, suggestions []model.Suggestion) (model.Claim, error) {
	claim, err := g.claims.Get(claimID)
	if err != nil {
		return model.Claim{}, err
	}

	before := len(claim.Suggestions)
	claim.Suggestions = reconcile.MergeSuggestions(claim.Suggestions, suggestions)

	if err := g.claims.ApplyExternalReplace(claim); err != nil {
		return model.Claim{}, err
	}
	g.logger.Debug("suggestions applied", "claim_id", claimID, "offered", len(suggestions), "added", len(claim.Suggestions)-before)
	return claim, nil
}

// Skip marks claimID as deliberately not verified
func (g *Gateway) Skip(claimID, reasonMD string) (model.Claim, error) {
	claim, err := g.claims.Get(claimID)
	if err != nil {
		return model.Claim{}, err
	}

	claim.Verdict = model.VerdictSkipped
	claim.Confidence = nil
	claim.ReasoningMD = reasonMD

	if err := g.claims.ApplyExternalReplace(claim); err != nil {
		return model.Claim{}, err
	}
	return claim, nil
}

// Verify sends doc to the backend for claimID and applies the result.
// An unknown claim fails before any network call.
func (g *Gateway) Verify(ctx context.Context, jobID, claimID string, doc model.Document, credential string) (model.Claim, error) {
	if g.verifier == nil {
		return model.Claim{}, fmt.Errorf("no verifier configured")
	}
	if _, err := g.claims.Get(claimID); err != nil {
		return model.Claim{}, err
	}

	res, err := g.verifier.VerifyClaim(ctx, jobID, claimID, doc, credential)
	if err != nil {
		return model.Claim{}, fmt.Errorf("verify claim %s: %w", claimID, err)
	}
	if res.ClaimID != "" && res.ClaimID != claimID {
		return model.Claim{}, fmt.Errorf("verify claim %s: response for claim %s", claimID, res.ClaimID)
	}
	return g.ApplyVerification(claimID, res.Verdict, res.Confidence, res.ReasoningMD, res.Evidence)
}

// Suggest fetches citation candidates for the text of claimID and merges
// them into the claim.
func (g *Gateway) Suggest(ctx context.Context, claimID string) (model.Claim, error) {
	if g.suggester == nil {
		return model.Claim{}, fmt.Errorf("no suggester configured")
	}
	claim, err := g.claims.Get(claimID)
	if err != nil {
		return model.Claim{}, err
	}
	if strings.TrimSpace(claim.Text) == "" {
		return model.Claim{}, &model.ValidationError{Field: "claim text", Reason: "empty"}
	}

	suggestions, err := g.suggester.SuggestCitations(ctx, claim.Text)
	if err != nil {
		return model.Claim{}, fmt.Errorf("suggest citations for %s: %w", claimID, err)
	}
	return g.ApplySuggestions(claimID, suggestions)
}
