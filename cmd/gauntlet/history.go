package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gauntlet/internal/verification"
	"github.com/ShayCichocki/gauntlet/pkg/models"
)

var (
	historyRebuild bool
	historyRun     int
)

var historyCmd = &cobra.Command{
	Use:   "history [feature-id]",
	Short: "Show the verification history of a feature",
	Long: `List every recorded verification run of a feature, oldest first.
Use --run to show one run in detail, or --rebuild to regenerate the
history index from the run files.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyRebuild, "rebuild", false, "Rebuild the history index from run files")
	historyCmd.Flags().IntVar(&historyRun, "run", 0, "Show a single run in detail")
}

func runHistory(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	history := p.openHistory()

	if historyRebuild {
		if err := history.Rebuild(); err != nil {
			return err
		}
		if !jsonOutput {
			printStatus("✓", "History index rebuilt", okColor)
		}
		if len(args) == 0 {
			return nil
		}
	}
	if len(args) == 0 {
		return fmt.Errorf("feature id required")
	}
	id := args[0]

	if historyRun > 0 {
		run, err := history.Storage().Load(id, historyRun)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(run)
		}
		renderRun(run)
		return nil
	}

	runs, err := history.Storage().List(id)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(runs)
	}
	if len(runs) == 0 {
		printStatus("-", fmt.Sprintf("No verification runs for %s", id), warnColor)
		return nil
	}

	summary, err := history.Summary(id)
	if err != nil && !errors.Is(err, verification.ErrNoRuns) {
		return err
	}
	if summary != nil {
		fmt.Printf("%s  %s\n\n", titleStyle.Render(id),
			mutedStyle.Render(fmt.Sprintf("%d run(s), %d passed", summary.TotalRuns, summary.PassRuns)))
	}

	for _, r := range runs {
		fmt.Printf("#%-4d %s  %s  %s\n", r.RunNumber,
			r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			verdictStyle(r.Verdict).Render(fmt.Sprintf("%-12s", r.Verdict)),
			mutedStyle.Render(shortCommit(r.CommitHash)))
	}
	return nil
}

// renderRun prints one verification run in detail.
func renderRun(r *models.VerificationResult) {
	fmt.Printf("%s run #%d  %s\n", titleStyle.Render(r.FeatureID), r.RunNumber, verdictStyle(r.Verdict).Render(string(r.Verdict)))
	fmt.Println(mutedStyle.Render(fmt.Sprintf("%s  commit %s", r.Timestamp.Local().Format("2006-01-02 15:04:05"), shortCommit(r.CommitHash))))

	if len(r.AutomatedChecks) > 0 {
		fmt.Println()
		for _, c := range r.AutomatedChecks {
			if c.Success {
				printStatus("✓", string(c.Type), okColor)
			} else {
				printStatus("✗", string(c.Type), errColor)
			}
		}
	}
	if len(r.CriteriaResults) > 0 {
		fmt.Println()
		for _, c := range r.CriteriaResults {
			symbol, attr := "✓", okColor
			if !c.Satisfied {
				symbol, attr = "✗", errColor
			}
			printStatus(symbol, fmt.Sprintf("%s %s", c.Criterion, mutedStyle.Render(fmt.Sprintf("(%.0f%%)", c.Confidence*100))), attr)
			if c.Evidence != "" {
				fmt.Println(mutedStyle.Render("    " + c.Evidence))
			}
		}
	}
	if r.Reasoning != "" {
		fmt.Println()
		fmt.Println(r.Reasoning)
	}
}

func shortCommit(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
