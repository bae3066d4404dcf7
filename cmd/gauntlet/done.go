package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gauntlet/internal/check"
	"github.com/ShayCichocki/gauntlet/internal/features"
	"github.com/ShayCichocki/gauntlet/internal/tdd"
	"github.com/ShayCichocki/gauntlet/pkg/models"
)

var doneE2E bool

var doneCmd = &cobra.Command{
	Use:   "done <feature-id>",
	Short: "Verify a feature and mark it passing",
	Long: `Run the TDD gate and the full check for a feature, then update its
status from the verdict: pass marks it passing, an inconclusive AI review
marks it needs_review, and a failure marks it failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runDone,
}

var failCmd = &cobra.Command{
	Use:   "fail <feature-id>",
	Short: "Mark a feature as failed",
	Args:  cobra.ExactArgs(1),
	RunE:  runFail,
}

func init() {
	doneCmd.Flags().BoolVar(&doneE2E, "e2e", false, "Include end-to-end tests")
}

func runDone(cmd *cobra.Command, args []string) error {
	id := args[0]

	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	list, _, err := p.store.Load()
	if err != nil {
		return err
	}
	feature, err := list.Get(id)
	if err != nil {
		return err
	}

	gate := tdd.NewGate(p.root)
	gate.SetDebugLog(p.logger.Log)
	gateResult, err := gate.Check(p.tddMode(list), feature)
	if err != nil {
		return err
	}
	if !gateResult.Passed {
		printStatus("✗", "TDD gate: missing unit tests", errColor)
		for _, pattern := range gateResult.Failure.MissingPatterns {
			fmt.Println(mutedStyle.Render("  " + pattern))
		}
		return gateResult.Failure
	}
	if gateResult.Active {
		printStatus("✓", "TDD gate: "+strings.Join(gateResult.Patterns, ", "), okColor)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	result, err := p.orchestrator(ctx).Run(ctx, check.Options{
		FeatureID: id,
		E2E:       doneE2E,
		Parallel:  p.cfg.Checks.Parallel,
		Timeout:   p.cfg.Checks.Timeout,
	})
	if err != nil {
		return err
	}
	if err := report(result); err != nil {
		return err
	}
	p.reportUsage()

	verdict := models.VerdictFail
	if len(result.Verdicts) > 0 {
		verdict = result.Verdicts[0].Verdict
	}
	target := statusForVerdict(verdict)
	if err := setStatus(p.store, id, target); err != nil {
		return err
	}

	if !jsonOutput {
		printStatus("→", fmt.Sprintf("%s is now %s", id, statusStyle(target).Render(string(target))), okColor)
	}
	if verdict == models.VerdictFail {
		return errChecksFailed
	}
	return nil
}

func runFail(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	if err := setStatus(p.store, args[0], models.StatusFailed); err != nil {
		return err
	}
	if !jsonOutput {
		printStatus("✓", fmt.Sprintf("%s marked failed", args[0]), okColor)
	}
	return nil
}

// statusForVerdict maps a verification verdict to the feature status it
// earns.
func statusForVerdict(v models.Verdict) models.FeatureStatus {
	switch v {
	case models.VerdictPass:
		return models.StatusPassing
	case models.VerdictNeedsReview:
		return models.StatusNeedsReview
	default:
		return models.StatusFailed
	}
}

// setStatus transitions one feature under the store lock.
func setStatus(store *features.Store, id string, to models.FeatureStatus) error {
	return store.Update(func(list *features.List) error {
		f, err := list.Get(id)
		if err != nil {
			return err
		}
		return features.Transition(f, to)
	})
}
