package policy

import "github.com/dvloznov/billflow/internal/domain"

// DefaultThreshold is the auto-accept confidence score.
const DefaultThreshold = 80

// ConfidencePolicy maps an extraction confidence score to the record's
// initial workflow status.
type ConfidencePolicy struct {
	Threshold int
}

// Default returns the policy with DefaultThreshold.
func Default() ConfidencePolicy {
	return ConfidencePolicy{Threshold: DefaultThreshold}
}

// New returns a policy with the given threshold; values outside 1..100 fall
// back to DefaultThreshold.
func New(threshold int) ConfidencePolicy {
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultThreshold
	}
	return ConfidencePolicy{Threshold: threshold}
}

// InitialStatus returns REVIEW_NEEDED below the threshold, VERIFIED at or above it.
func (p ConfidencePolicy) InitialStatus(score int) domain.WorkflowStatus {
	if score < p.Threshold {
		return domain.StatusReviewNeeded
	}
	return domain.StatusVerified
}

// CanTransition reports whether the workflow state machine allows from -> to.
// Nothing re-enters PROCESSING, and VERIFIED never goes back to REVIEW_NEEDED.
func CanTransition(from, to domain.WorkflowStatus) bool {
	switch from {
	case domain.StatusProcessing:
		return to == domain.StatusReviewNeeded || to == domain.StatusVerified
	case domain.StatusReviewNeeded, domain.StatusVerified:
		return to == domain.StatusVerified
	}
	return false
}
