package features

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/gauntlet/pkg/models"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions lists the allowed targets for each status. Deprecation is
// allowed from anywhere and handled separately.
var transitions = map[models.FeatureStatus][]models.FeatureStatus{
	models.StatusFailing:     {models.StatusPassing, models.StatusFailed, models.StatusBlocked, models.StatusNeedsReview},
	models.StatusNeedsReview: {models.StatusPassing, models.StatusFailing, models.StatusFailed},
	models.StatusFailed:      {models.StatusFailing, models.StatusPassing, models.StatusNeedsReview},
	models.StatusBlocked:     {models.StatusFailing},
	models.StatusPassing:     {models.StatusFailing, models.StatusNeedsReview},
	models.StatusDeprecated:  {},
}

// CanTransition reports whether a feature may move from one status to another.
func CanTransition(from, to models.FeatureStatus) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	if to == models.StatusDeprecated {
		return true
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves f to the target status.
func Transition(f *models.Feature, to models.FeatureStatus) error {
	if !CanTransition(f.Status, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, f.ID, f.Status, to)
	}
	f.Status = to
	return nil
}
