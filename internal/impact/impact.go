// Package impact maps changed files to the features they plausibly affect.
//
// Matching is heuristic. Each feature is tried against an ordered list of
// strategies, strongest first; the first strategy that matches at least one
// changed file decides that feature's confidence.
package impact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/gauntlet/internal/pathmatch"
	"github.com/ShayCichocki/gauntlet/pkg/models"
)

// Strategy tests one feature against the changed files. It returns ok=false
// when it has no opinion.
type Strategy struct {
	Name       string
	Confidence models.Confidence
	Match      func(f *models.Feature, changed []string) (matched []string, reason string, ok bool)
}

// DefaultStrategies returns the standard precedence:
// affectedBy globs, then the declared test pattern, then the module name.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "affected-by", Confidence: models.ConfidenceHigh, Match: matchAffectedBy},
		{Name: "test-pattern", Confidence: models.ConfidenceMedium, Match: matchTestPattern},
		{Name: "module", Confidence: models.ConfidenceLow, Match: matchModule},
	}
}

// Matcher computes task impact for a set of changed files.
type Matcher struct {
	strategies []Strategy
	debugLog   func(format string, args ...interface{})
}

// NewMatcher creates a matcher using DefaultStrategies.
func NewMatcher() *Matcher {
	return &Matcher{
		strategies: DefaultStrategies(),
		debugLog:   func(format string, args ...interface{}) {},
	}
}

// SetStrategies replaces the strategy list. Order is precedence.
func (m *Matcher) SetStrategies(strategies []Strategy) {
	m.strategies = strategies
}

// SetDebugLog sets the debug logging function.
func (m *Matcher) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		m.debugLog = fn
	}
}

// Match returns one entry per impacted, non-terminal feature, ordered by
// confidence (high first), then priority, then feature-list order.
func (m *Matcher) Match(changed []string, features []*models.Feature) []models.ImpactMatch {
	if len(changed) == 0 {
		return nil
	}

	normalized := make([]string, 0, len(changed))
	seenFile := make(map[string]bool, len(changed))
	for _, c := range changed {
		if n := pathmatch.Normalize(c); n != "" && !seenFile[n] {
			seenFile[n] = true
			normalized = append(normalized, n)
		}
	}

	type entry struct {
		match    models.ImpactMatch
		priority int
		order    int
	}
	best := make(map[string]*entry)
	var order []string

	for i, f := range features {
		if f.Status.Terminal() {
			continue
		}
		for _, s := range m.strategies {
			files, reason, ok := s.Match(f, normalized)
			if !ok || len(files) == 0 {
				continue
			}
			m.debugLog("[impact] %s matched by %s (%s): %v", f.ID, s.Name, s.Confidence, files)
			candidate := models.ImpactMatch{
				FeatureID:    f.ID,
				Confidence:   s.Confidence,
				Reason:       reason,
				MatchedFiles: files,
			}
			if existing, seen := best[f.ID]; seen {
				if candidate.Confidence.Rank() < existing.match.Confidence.Rank() {
					existing.match = candidate
				}
			} else {
				best[f.ID] = &entry{match: candidate, priority: f.Priority, order: i}
				order = append(order, f.ID)
			}
			break
		}
	}

	entries := make([]*entry, 0, len(order))
	for _, id := range order {
		entries = append(entries, best[id])
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if ra, rb := a.match.Confidence.Rank(), b.match.Confidence.Rank(); ra != rb {
			return ra < rb
		}
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		return a.order < b.order
	})

	result := make([]models.ImpactMatch, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.match)
	}
	return result
}

// FindImpactedFeatures runs the default matcher.
func FindImpactedFeatures(changed []string, features []*models.Feature) []models.ImpactMatch {
	return NewMatcher().Match(changed, features)
}

func matchAffectedBy(f *models.Feature, changed []string) ([]string, string, bool) {
	if len(f.AffectedBy) == 0 {
		return nil, "", false
	}
	files := pathmatch.MatchAny(f.AffectedBy, changed)
	if len(files) == 0 {
		return nil, "", false
	}
	return files, fmt.Sprintf("matches affectedBy %s", strings.Join(f.AffectedBy, ", ")), true
}

func matchTestPattern(f *models.Feature, changed []string) ([]string, string, bool) {
	pattern := f.UnitTestPattern()
	if pattern == "" {
		return nil, "", false
	}
	source := TestPatternToSourcePath(pattern)
	files := pathmatch.MatchAny([]string{source}, changed)
	if len(files) == 0 {
		return nil, "", false
	}
	return files, fmt.Sprintf("test pattern %s maps to source %s", pattern, source), true
}

func matchModule(f *models.Feature, changed []string) ([]string, string, bool) {
	module := strings.Trim(f.Module, "/")
	if module == "" {
		return nil, "", false
	}
	glob := "**/" + module + "/**/*"
	segment := "/" + module + "/"

	var files []string
	for _, c := range changed {
		if pathmatch.Match(glob, c) || strings.Contains(c, segment) {
			files = append(files, c)
		}
	}
	if len(files) == 0 {
		return nil, "", false
	}
	return files, fmt.Sprintf("path is inside module %s", module), true
}
