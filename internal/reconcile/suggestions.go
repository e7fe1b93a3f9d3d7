package reconcile

import "github.com/ppiankov/papertrail/internal/model"

// MergeSuggestions concatenates lists and drops repeats by Suggestion.Key.
// The first occurrence wins and first-appearance order is kept.
func MergeSuggestions(lists ...[]model.Suggestion) []model.Suggestion {
	var out []model.Suggestion
	seen := make(map[string]bool)

	for _, list := range lists {
		for _, s := range list {
			key := s.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s.Clone())
		}
	}
	return out
}
