package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gauntlet/internal/check"
)

var (
	checkFull     bool
	checkFeature  string
	checkAI       bool
	checkE2E      bool
	checkWatch    bool
	checkParallel bool
	checkTimeout  time.Duration
)

var checkCmd = &cobra.Command{
	Use:   "check [files...]",
	Short: "Run the checks relevant to the current change",
	Long: `Run verification checks for the working tree.

By default the fast path runs: only the tests covering changed files, plus
typecheck and lint. Use --full (or --feature) to verify one feature end to
end. Files given as arguments replace the git change set.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkFull, "full", false, "Run the full path for the next ready feature")
	checkCmd.Flags().StringVarP(&checkFeature, "feature", "f", "", "Run the full path for this feature")
	checkCmd.Flags().BoolVar(&checkAI, "ai", false, "Verify acceptance criteria of impacted features with AI")
	checkCmd.Flags().BoolVar(&checkE2E, "e2e", false, "Include end-to-end tests on the full path")
	checkCmd.Flags().BoolVarP(&checkWatch, "watch", "w", false, "Re-run the fast path whenever files change")
	checkCmd.Flags().BoolVar(&checkParallel, "parallel", false, "Run automated checks concurrently")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 0, "Per-check timeout (default from config)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	opts := check.Options{
		Full:      checkFull,
		FeatureID: checkFeature,
		AI:        checkAI,
		E2E:       checkE2E,
		Parallel:  checkParallel || p.cfg.Checks.Parallel,
		Timeout:   p.cfg.Checks.Timeout,
	}
	if cmd.Flags().Changed("timeout") {
		opts.Timeout = checkTimeout
	}
	if len(args) > 0 {
		opts.ChangedFiles = args
	}

	orch := p.orchestrator(ctx)

	if checkWatch {
		if opts.Full || opts.FeatureID != "" {
			return fmt.Errorf("--watch runs the fast path only")
		}
		printStatus("→", "Watching for changes (Ctrl+C to stop)", okColor)
		err := orch.Watch(ctx, opts, p.cfg.Watch.Debounce, watchReporter(os.Stdout, p.reportUsage))
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}

	result, err := orch.Run(ctx, opts)
	if err != nil {
		return err
	}
	if err := report(result); err != nil {
		return err
	}
	p.reportUsage()
	if !result.Passed {
		return errChecksFailed
	}
	return nil
}

// report prints r as JSON or as a styled summary.
func report(r *check.Result) error {
	return reportTo(os.Stdout, r)
}

func reportTo(w io.Writer, r *check.Result) error {
	if jsonOutput {
		return writeJSON(w, r)
	}
	renderCheckResult(r)
	return nil
}

// watchReporter returns the per-run callback for watch mode. Run and report
// errors are printed and watching continues.
func watchReporter(w io.Writer, usage func()) func(*check.Result, error) {
	return func(r *check.Result, err error) {
		if err == nil {
			err = reportTo(w, r)
		}
		if err != nil {
			printStatus("✗", err.Error(), errColor)
			return
		}
		usage()
	}
}

// signalContext returns the command context cancelled on interrupt.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
