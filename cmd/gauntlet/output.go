package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ShayCichocki/gauntlet/internal/check"
	"github.com/ShayCichocki/gauntlet/internal/features"
	"github.com/ShayCichocki/gauntlet/pkg/models"
)

// errChecksFailed marks a run that completed with failing checks.
var errChecksFailed = errors.New("checks failed")

const (
	okColor   = color.FgGreen
	warnColor = color.FgYellow
	errColor  = color.FgRed
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	})
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	})
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	})
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	})
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	})
	outputStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("8")).
			PaddingLeft(1)
)

// printStatus prints a status line with a colored symbol.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v interface{}) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitCode maps an error to a process exit code: 1 for failing checks and
// other runtime errors, 2 for structural problems.
func exitCode(err error) int {
	switch {
	case errors.Is(err, features.ErrNotFound),
		errors.Is(err, features.ErrFeatureNotFound),
		errors.Is(err, features.ErrDuplicateID):
		return 2
	default:
		return 1
	}
}

func statusStyle(s models.FeatureStatus) lipgloss.Style {
	switch s {
	case models.StatusPassing:
		return passStyle
	case models.StatusFailed:
		return failStyle
	case models.StatusNeedsReview, models.StatusBlocked:
		return warnStyle
	case models.StatusDeprecated:
		return mutedStyle
	default:
		return lipgloss.NewStyle()
	}
}

func verdictStyle(v models.Verdict) lipgloss.Style {
	switch v {
	case models.VerdictPass:
		return passStyle
	case models.VerdictFail:
		return failStyle
	default:
		return warnStyle
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

// lastLines returns at most n trailing lines of s.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// renderCheckResult prints a human-readable report for a check run.
func renderCheckResult(r *check.Result) {
	switch r.Path {
	case check.PathNothing:
		printStatus("✓", "No changes, nothing to check", okColor)
		return
	case check.PathFull:
		fmt.Println(titleStyle.Render(fmt.Sprintf("Full check: %s", r.Feature.ID)))
	default:
		fmt.Println(titleStyle.Render(fmt.Sprintf("Fast check: %d changed file(s)", len(r.ChangedFiles))))
	}

	for _, w := range r.Warnings {
		printStatus("⚠", w, warnColor)
	}
	if r.HighRiskEscalation {
		var files []string
		for _, f := range r.RiskFindings {
			files = append(files, f.File)
		}
		printStatus("⚠", "High-risk change ("+strings.Join(files, ", ")+"); consider `gauntlet check --full`", warnColor)
	}

	for _, c := range r.Checks {
		if c.Success {
			printStatus("✓", fmt.Sprintf("%s %s", c.Type, mutedStyle.Render(formatDuration(c.Duration))), okColor)
			continue
		}
		printStatus("✗", fmt.Sprintf("%s failed: %s", c.Type, c.Command), errColor)
		if out := strings.TrimSpace(c.Output); out != "" {
			fmt.Println(outputStyle.Render(lastLines(out, 20)))
		}
	}
	for _, s := range r.Skipped {
		fmt.Println(mutedStyle.Render(fmt.Sprintf("- %s skipped (%s)", s.Type, s.Reason)))
	}

	if len(r.Impacted) > 0 {
		fmt.Println()
		fmt.Println(titleStyle.Render("Impacted features"))
		for _, m := range r.Impacted {
			fmt.Printf("  %-24s %-6s %s\n", m.FeatureID, m.Confidence, mutedStyle.Render(m.Reason))
		}
	}

	for _, v := range r.Verdicts {
		line := fmt.Sprintf("%s: %s", v.FeatureID, verdictStyle(v.Verdict).Render(string(v.Verdict)))
		if !v.AIRan {
			line += mutedStyle.Render(" (AI skipped: " + v.AISkipReason + ")")
		}
		if v.Record != nil && v.Record.RunNumber > 0 {
			line += mutedStyle.Render(fmt.Sprintf(" run #%d", v.Record.RunNumber))
		}
		fmt.Println(line)
	}

	fmt.Println()
	if r.Passed {
		fmt.Println(passStyle.Render("PASSED"))
	} else {
		fmt.Println(failStyle.Render("FAILED"))
	}
}
