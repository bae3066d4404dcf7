package models

// FeatureStatus represents the lifecycle state of a feature.
type FeatureStatus string

const (
	// StatusFailing is the initial state: acceptance criteria not yet met.
	StatusFailing FeatureStatus = "failing"
	// StatusPassing indicates the feature has been verified and completed.
	StatusPassing FeatureStatus = "passing"
	// StatusNeedsReview indicates verification was inconclusive.
	StatusNeedsReview FeatureStatus = "needs_review"
	// StatusFailed indicates verification ran and the feature did not pass.
	StatusFailed FeatureStatus = "failed"
	// StatusBlocked indicates the feature cannot proceed.
	StatusBlocked FeatureStatus = "blocked"
	// StatusDeprecated indicates the feature is no longer tracked.
	StatusDeprecated FeatureStatus = "deprecated"
)

// Valid returns true if the status is a known value.
func (s FeatureStatus) Valid() bool {
	switch s {
	case StatusFailing, StatusPassing, StatusNeedsReview, StatusFailed, StatusBlocked, StatusDeprecated:
		return true
	default:
		return false
	}
}

// Terminal reports whether a feature in this status is excluded from impact analysis.
func (s FeatureStatus) Terminal() bool {
	return s == StatusPassing || s == StatusDeprecated
}

// UnitTestRequirement declares where a feature's unit tests live.
type UnitTestRequirement struct {
	// Pattern is a glob naming the test files (e.g. "tests/auth/**/*.test.ts").
	Pattern string `json:"pattern,omitempty"`
	// Required makes the pattern mandatory for the TDD gate.
	Required bool `json:"required,omitempty"`
}

// TestRequirements groups a feature's declared test expectations.
type TestRequirements struct {
	Unit *UnitTestRequirement `json:"unit,omitempty"`
}

// Feature is a trackable unit of work with acceptance criteria.
type Feature struct {
	// ID is the globally unique, stable identifier (e.g. "auth.login").
	ID string `json:"id"`
	// Module is the logical grouping used for low-confidence matching.
	Module string `json:"module"`
	// Description is a short human-readable summary.
	Description string `json:"description,omitempty"`
	// Status is the current lifecycle state.
	Status FeatureStatus `json:"status"`
	// Acceptance lists the natural-language criteria in their original order.
	Acceptance []string `json:"acceptance"`
	// DependsOn lists feature IDs that must be satisfied first.
	DependsOn []string `json:"dependsOn,omitempty"`
	// AffectedBy lists globs of files this feature explicitly owns.
	AffectedBy []string `json:"affectedBy,omitempty"`
	// TestRequirements declares test locations for discovery and the TDD gate.
	TestRequirements *TestRequirements `json:"testRequirements,omitempty"`
	// Priority orders otherwise equal features; lower is more urgent.
	Priority int    `json:"priority"`
	Version  int    `json:"version,omitempty"`
	Notes    string `json:"notes,omitempty"`
	Origin   string `json:"origin,omitempty"`
}

// UnitTestPattern returns the declared unit test pattern, or "" if none.
func (f *Feature) UnitTestPattern() string {
	if f.TestRequirements == nil || f.TestRequirements.Unit == nil {
		return ""
	}
	return f.TestRequirements.Unit.Pattern
}

// UnitTestsRequired reports whether the feature marks unit tests as mandatory.
func (f *Feature) UnitTestsRequired() bool {
	if f.TestRequirements == nil || f.TestRequirements.Unit == nil {
		return false
	}
	return f.TestRequirements.Unit.Required
}

// TDDMode controls how strictly the TDD gate is applied project-wide.
type TDDMode string

const (
	TDDStrict      TDDMode = "strict"
	TDDRecommended TDDMode = "recommended"
	TDDDisabled    TDDMode = "disabled"
)

// Valid returns true if the mode is a known value.
func (m TDDMode) Valid() bool {
	switch m {
	case TDDStrict, TDDRecommended, TDDDisabled:
		return true
	default:
		return false
	}
}
