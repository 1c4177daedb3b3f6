package feature

import "strings"

// VerdictRules classifies free-text review responses into pass or fail.
//
// Fail markers are checked before pass markers so that phrasings like
// "not approved" or "未通过", whose text contains a pass marker as a
// substring, resolve as failures. A response matching no marker fails.
type VerdictRules struct {
	// FailMarkers reject the review when any appears in the text.
	FailMarkers []string

	// PassMarkers approve the review when any appears and no fail
	// marker did.
	PassMarkers []string
}

// DefaultVerdictRules match both English and Chinese verdict phrasings.
func DefaultVerdictRules() VerdictRules {
	return VerdictRules{
		FailMarkers: []string{"不通过", "未通过", "rejected", "not approved"},
		PassMarkers: []string{"通过", "approved", "passed"},
	}
}

// Passed classifies a review response. Matching is case-insensitive and
// deterministic: the same text always yields the same verdict.
func (r VerdictRules) Passed(review string) bool {
	lower := strings.ToLower(review)

	for _, marker := range r.FailMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return false
		}
	}
	for _, marker := range r.PassMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
