// Package tdd implements the gate that blocks a feature from completing
// until its required unit tests exist.
package tdd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ShayCichocki/gauntlet/internal/pathmatch"
	"github.com/ShayCichocki/gauntlet/pkg/models"
)

// GateFailure is the blocking result of an unmet gate.
type GateFailure struct {
	FeatureID string
	// MissingPatterns lists the patterns that matched no file.
	MissingPatterns []string
}

func (g *GateFailure) Error() string {
	return fmt.Sprintf("tdd gate: %s has no tests matching %s",
		g.FeatureID, strings.Join(g.MissingPatterns, ", "))
}

// Result is the gate outcome. The gate never changes the feature.
type Result struct {
	// Active is false when neither the project mode nor the feature
	// requires tests.
	Active bool
	Passed bool
	// Patterns are the patterns the gate checked.
	Patterns []string
	// Matched holds the first file found for each satisfied pattern.
	Matched map[string]string
	Failure *GateFailure
}

// Gate checks required test files against a project filesystem.
type Gate struct {
	fsys     fs.FS
	debugLog func(format string, args ...interface{})
}

// NewGate creates a gate over the project rooted at projectRoot.
func NewGate(projectRoot string) *Gate {
	return NewGateFS(os.DirFS(projectRoot))
}

// NewGateFS creates a gate over fsys.
func NewGateFS(fsys fs.FS) *Gate {
	return &Gate{
		fsys:     fsys,
		debugLog: func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (g *Gate) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Active reports whether the gate applies to feature under mode.
func Active(mode models.TDDMode, feature *models.Feature) bool {
	return mode == models.TDDStrict || feature.UnitTestsRequired()
}

// Patterns returns the patterns the gate checks for feature, relative to the
// project root. In strict mode a feature without a declared pattern gets
// module-derived candidates.
func Patterns(mode models.TDDMode, feature *models.Feature) []string {
	if p := pathmatch.Normalize(feature.UnitTestPattern()); p != "" {
		return []string{p}
	}
	if mode != models.TDDStrict || feature.Module == "" {
		return nil
	}
	return []string{
		"tests/" + feature.Module + "/**/*",
		"**/" + feature.Module + "/**/*.test.*",
	}
}

// Check evaluates the gate for feature. It passes when any pattern matches a
// file. An active gate with no pattern to check blocks.
func (g *Gate) Check(mode models.TDDMode, feature *models.Feature) (*Result, error) {
	if !Active(mode, feature) {
		return &Result{Passed: true}, nil
	}

	patterns := Patterns(mode, feature)
	result := &Result{
		Active:   true,
		Patterns: patterns,
		Matched:  make(map[string]string),
	}
	if len(patterns) == 0 {
		result.Failure = &GateFailure{FeatureID: feature.ID, MissingPatterns: []string{"(no unit test pattern declared)"}}
		return result, nil
	}

	var missing []string
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid test pattern %q for %s", pattern, feature.ID)
		}
		file, err := g.firstMatch(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		if file == "" {
			missing = append(missing, pattern)
			continue
		}
		result.Matched[pattern] = file
	}
	g.debugLog("[tdd] %s: %d/%d patterns matched", feature.ID, len(result.Matched), len(patterns))

	if len(result.Matched) > 0 {
		result.Passed = true
		return result, nil
	}
	result.Failure = &GateFailure{FeatureID: feature.ID, MissingPatterns: missing}
	return result, nil
}

var errFound = errors.New("found")

func (g *Gate) firstMatch(pattern string) (string, error) {
	var found string
	err := doublestar.GlobWalk(g.fsys, pattern, func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		found = path
		return errFound
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", err
	}
	return found, nil
}
