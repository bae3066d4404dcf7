package models

// Tier selects how much of the check pipeline runs.
type Tier string

const (
	// TierFast runs diff-driven checks only: typecheck, lint and selected tests.
	TierFast Tier = "fast"
	// TierFull runs the complete suite against one target feature.
	TierFull Tier = "full"
)

// Valid returns true if the tier is a known value.
func (t Tier) Valid() bool {
	switch t {
	case TierFast, TierFull:
		return true
	default:
		return false
	}
}
