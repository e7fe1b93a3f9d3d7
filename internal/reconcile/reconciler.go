// Package reconcile holds the authoritative, identity-keyed claim
// collection of the tracked job.
package reconcile

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ppiankov/papertrail/internal/model"
)

// ErrUnknownClaim is matched by every UnknownClaimError
var ErrUnknownClaim = errors.New("unknown claim")

// UnknownClaimError reports a lookup or mutation against an id the
// reconciler has never seen.
type UnknownClaimError struct {
	ID string
}

func (e *UnknownClaimError) Error() string {
	return fmt.Sprintf("unknown claim %q", e.ID)
}

// Is makes errors.Is(err, ErrUnknownClaim) hold
func (e *UnknownClaimError) Is(target error) bool {
	return target == ErrUnknownClaim
}

// Source tags where a mutation came from, for logs and metrics
type Source string

const (
	SourceStream   Source = "stream"
	SourceExternal Source = "external"
	SourceSeed     Source = "seed"
)

// Reconciler maps claim id to claim, remembering first-seen order.
//
// Every write replaces the whole stored value; there is no field-level
// merge inside the reconciler. Reads hand out deep copies.
type Reconciler struct {
	mu     sync.RWMutex
	claims []model.Claim
	index  map[string]int

	onApply func(Source, model.Claim, bool)
}

// New creates an empty reconciler
func New() *Reconciler {
	return &Reconciler{
		index: make(map[string]int),
	}
}

// OnApply registers a hook called after every successful write with the
// source, the stored value and whether the id was new. It runs outside
// the reconciler lock.
func (r *Reconciler) OnApply(fn func(src Source, c model.Claim, inserted bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onApply = fn
}

// ApplyClaim inserts c or fully replaces the stored claim with the same id
func (r *Reconciler) ApplyClaim(c model.Claim) error {
	return r.apply(SourceStream, c)
}

// ApplyExternalReplace is ApplyClaim for out-of-band patches
func (r *Reconciler) ApplyExternalReplace(c model.Claim) error {
	return r.apply(SourceExternal, c)
}

func (r *Reconciler) apply(src Source, c model.Claim) error {
	if c.ID == "" {
		return model.Missing("claim id")
	}
	stored := c.Clone()

	r.mu.Lock()
	i, exists := r.index[c.ID]
	if exists {
		r.claims[i] = stored
	} else {
		r.index[c.ID] = len(r.claims)
		r.claims = append(r.claims, stored)
	}
	hook := r.onApply
	r.mu.Unlock()

	if hook != nil {
		hook(src, stored.Clone(), !exists)
	}
	return nil
}

// Get returns a copy of the claim with the given id
func (r *Reconciler) Get(id string) (model.Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return model.Claim{}, &UnknownClaimError{ID: id}
	}
	return r.claims[i].Clone(), nil
}

// Snapshot returns every claim in first-seen order. The result is
// detached from the reconciler.
func (r *Reconciler) Snapshot() []model.Claim {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Claim, len(r.claims))
	for i, c := range r.claims {
		out[i] = c.Clone()
	}
	return out
}

// Len returns the number of distinct claims
func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.claims)
}

// Reset drops every claim
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims = nil
	r.index = make(map[string]int)
}

// SeedFrom replaces the collection with existing, keeping its order as the
// new insertion order. A repeated id keeps its first position and its last
// value. Claims without an id are rejected and nothing is changed.
func (r *Reconciler) SeedFrom(existing []model.Claim) error {
	claims := make([]model.Claim, 0, len(existing))
	index := make(map[string]int, len(existing))
	for _, c := range existing {
		if c.ID == "" {
			return model.Missing("claim id")
		}
		if i, ok := index[c.ID]; ok {
			claims[i] = c.Clone()
			continue
		}
		index[c.ID] = len(claims)
		claims = append(claims, c.Clone())
	}

	r.mu.Lock()
	r.claims = claims
	r.index = index
	hook := r.onApply
	r.mu.Unlock()

	if hook != nil {
		for _, c := range claims {
			hook(SourceSeed, c.Clone(), true)
		}
	}
	return nil
}
