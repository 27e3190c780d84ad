package services

import (
	"fmt"

	"github.com/rentesla/mobile-backend/internal/match"
	"github.com/rentesla/mobile-backend/internal/types"
)

type PolicyOutcome string

const (
	PolicyAutoApprove PolicyOutcome = "AUTO_APPROVE"
	PolicyNeedsReview PolicyOutcome = "NEEDS_REVIEW"
)

type PolicyDecision struct {
	Outcome PolicyOutcome
	// Reason carries the first failed check when the outcome is
	// NEEDS_REVIEW.
	Reason string
}

// VerificationPolicy decides whether an extraction matches the user's
// registered data well enough to approve without a human. It never
// rejects outright; rejection is reserved for extraction failures and
// administrators.
type VerificationPolicy struct {
	cfg OCRConfig
}

func NewVerificationPolicy(cfg OCRConfig) *VerificationPolicy {
	return &VerificationPolicy{cfg: cfg}
}

// Evaluate runs the checks in a fixed order and stops at the first
// failure. The confidence threshold is inclusive.
func (p *VerificationPolicy) Evaluate(res *ExtractionResult, user *types.User) PolicyDecision {
	if res == nil || user == nil {
		return PolicyDecision{Outcome: PolicyNeedsReview, Reason: "ocr_confidence_below_threshold"}
	}
	if res.Confidence < p.cfg.ConfidenceThreshold {
		return PolicyDecision{Outcome: PolicyNeedsReview, Reason: "ocr_confidence_below_threshold"}
	}
	if res.IdentityNumber == "" || user.IdentityNumber == "" {
		return PolicyDecision{Outcome: PolicyNeedsReview, Reason: "missing_identity_number"}
	}
	if !match.IdentityEquals(res.IdentityNumber, user.IdentityNumber) {
		return PolicyDecision{
			Outcome: PolicyNeedsReview,
			Reason:  fmt.Sprintf("identity_number_mismatch (expected %s, found %s)", user.IdentityNumber, res.IdentityNumber),
		}
	}
	if res.FirstName == "" || user.FirstName == "" {
		return PolicyDecision{Outcome: PolicyNeedsReview, Reason: "missing_first_name"}
	}
	if !match.NamesMatch(res.FirstName, user.FirstName) {
		return PolicyDecision{Outcome: PolicyNeedsReview, Reason: "first_name_mismatch"}
	}
	if res.LastName == "" || user.LastName == "" {
		return PolicyDecision{Outcome: PolicyNeedsReview, Reason: "missing_last_name"}
	}
	if !match.NamesMatch(res.LastName, user.LastName) {
		return PolicyDecision{Outcome: PolicyNeedsReview, Reason: "last_name_mismatch"}
	}
	return PolicyDecision{Outcome: PolicyAutoApprove}
}
