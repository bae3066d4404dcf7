package models

import "time"

// Verdict is the tri-state outcome of verifying a feature.
type Verdict string

const (
	VerdictPass        Verdict = "pass"
	VerdictFail        Verdict = "fail"
	VerdictNeedsReview Verdict = "needs_review"
)

// Valid returns true if the verdict is a known value.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictPass, VerdictFail, VerdictNeedsReview:
		return true
	default:
		return false
	}
}

// CheckType identifies an automated check.
type CheckType string

const (
	CheckTypecheck CheckType = "typecheck"
	CheckLint      CheckType = "lint"
	CheckTest      CheckType = "test"
	CheckBuild     CheckType = "build"
	CheckE2E       CheckType = "e2e"
)

// AutomatedCheckResult is the outcome of one automated check.
type AutomatedCheckResult struct {
	Type     CheckType     `json:"type"`
	Command  string        `json:"command,omitempty"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Output   string        `json:"output,omitempty"`
}

// CriterionResult is the AI assessment of a single acceptance criterion.
type CriterionResult struct {
	// CriterionIndex is the position in Feature.Acceptance.
	CriterionIndex int     `json:"criterionIndex"`
	Criterion      string  `json:"criterion,omitempty"`
	Satisfied      bool    `json:"satisfied"`
	Confidence     float64 `json:"confidence"`
	Evidence       string  `json:"evidence,omitempty"`
	Reasoning      string  `json:"reasoning,omitempty"`
}

// VerificationResult is an immutable record of one check run for one feature.
type VerificationResult struct {
	ID              string                 `json:"id"`
	FeatureID       string                 `json:"featureId"`
	RunNumber       int                    `json:"runNumber"`
	Timestamp       time.Time              `json:"timestamp"`
	CommitHash      string                 `json:"commitHash"`
	ChangedFiles    []string               `json:"changedFiles"`
	DiffSummary     string                 `json:"diffSummary,omitempty"`
	AutomatedChecks []AutomatedCheckResult `json:"automatedChecks"`
	CriteriaResults []CriterionResult      `json:"criteriaResults,omitempty"`
	Verdict         Verdict                `json:"verdict"`
	Reasoning       string                 `json:"reasoning,omitempty"`
}

// Confidence is the reliability tier of an impact match.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank orders confidence tiers; a lower rank sorts first.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 0
	case ConfidenceMedium:
		return 1
	case ConfidenceLow:
		return 2
	default:
		return 3
	}
}

// ImpactMatch records why a feature is considered affected by a change.
type ImpactMatch struct {
	FeatureID    string     `json:"featureId"`
	Confidence   Confidence `json:"confidence"`
	Reason       string     `json:"reason"`
	MatchedFiles []string   `json:"matchedFiles"`
}
