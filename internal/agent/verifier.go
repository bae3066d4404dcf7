// Package agent provides AI-assisted verification of acceptance criteria.
package agent

import (
	"context"
	"errors"

	"github.com/ShayCichocki/gauntlet/pkg/models"
)

// ErrUnavailable is returned when no AI agent is configured or reachable.
// Callers treat it as "skip AI verification", never as a failure.
var ErrUnavailable = errors.New("AI agent unavailable")

// Request is the input to a criteria verification.
type Request struct {
	FeatureID   string
	Description string
	// Criteria are the acceptance criteria in their declared order.
	Criteria     []string
	ChangedFiles []string
	Diff         string
	// CheckSummary describes the automated checks that already ran.
	CheckSummary string
}

// Response is the agent's assessment of a feature.
type Response struct {
	Verdict         models.Verdict
	CriteriaResults []models.CriterionResult
	Reasoning       string
}

// CriteriaVerifier checks acceptance criteria against a change.
type CriteriaVerifier interface {
	VerifyCriteria(ctx context.Context, req Request) (*Response, error)
}

// Confidence thresholds used when deriving a verdict from criteria.
const (
	FailConfidence = 0.8
	PassConfidence = 0.5
)

// DeriveVerdict computes a verdict from per-criterion results: fail when any
// criterion is confidently unsatisfied, pass when every criterion is
// satisfied with at least PassConfidence, otherwise needs_review. No criteria
// yields needs_review.
func DeriveVerdict(results []models.CriterionResult) models.Verdict {
	if len(results) == 0 {
		return models.VerdictNeedsReview
	}
	allSatisfied := true
	for _, r := range results {
		if !r.Satisfied {
			if r.Confidence >= FailConfidence {
				return models.VerdictFail
			}
			allSatisfied = false
			continue
		}
		if r.Confidence < PassConfidence {
			allSatisfied = false
		}
	}
	if allSatisfied {
		return models.VerdictPass
	}
	return models.VerdictNeedsReview
}
