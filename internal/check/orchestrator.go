// Package check runs the layered verification pipeline: a fast path that
// re-checks only what a change touches, and a full path that verifies one
// feature end to end.
package check

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/gauntlet/internal/agent"
	"github.com/ShayCichocki/gauntlet/internal/capabilities"
	"github.com/ShayCichocki/gauntlet/internal/discovery"
	"github.com/ShayCichocki/gauntlet/internal/exec"
	"github.com/ShayCichocki/gauntlet/internal/features"
	"github.com/ShayCichocki/gauntlet/internal/git"
	"github.com/ShayCichocki/gauntlet/internal/graph"
	"github.com/ShayCichocki/gauntlet/internal/impact"
	"github.com/ShayCichocki/gauntlet/internal/risk"
	"github.com/ShayCichocki/gauntlet/internal/verification"
	"github.com/ShayCichocki/gauntlet/pkg/models"
)

// ErrNoReadyFeature is returned by the full path when no feature was named
// and none is ready to work on.
var ErrNoReadyFeature = errors.New("no ready feature to check")

const maxDiffBytes = 64 * 1024

var tracer = otel.Tracer("github.com/ShayCichocki/gauntlet/check")

// FeatureSource loads the feature list.
type FeatureSource interface {
	Load() (*features.List, []string, error)
}

// Path identifies which branch of the pipeline ran.
type Path string

const (
	PathNothing Path = "nothing"
	PathFast    Path = Path(models.TierFast)
	PathFull    Path = Path(models.TierFull)
)

// Options controls one invocation.
type Options struct {
	// Full selects the full path. Naming a FeatureID implies it.
	Full      bool
	FeatureID string
	// AI requests criteria verification on the fast path. The full path
	// always attempts it.
	AI bool
	// E2E adds end-to-end tests to the full path.
	E2E bool
	// Parallel runs automated checks concurrently.
	Parallel bool
	// Timeout bounds each check subprocess. Zero means no limit.
	Timeout time.Duration
	// ChangedFiles overrides the VCS query when non-nil.
	ChangedFiles []string
}

// SkippedCheck is a check that was deliberately not run.
type SkippedCheck struct {
	Type   models.CheckType `json:"type"`
	Reason string           `json:"reason"`
}

// FeatureVerdict is the outcome of verifying one feature.
type FeatureVerdict struct {
	FeatureID string         `json:"featureId"`
	Verdict   models.Verdict `json:"verdict"`
	// AIRan is false when AI verification was skipped; AISkipReason says why.
	AIRan        bool                       `json:"aiRan"`
	AISkipReason string                     `json:"aiSkipReason,omitempty"`
	Record       *models.VerificationResult `json:"record,omitempty"`
}

// Result is the aggregated outcome of one invocation.
type Result struct {
	Path         Path     `json:"path"`
	ChangedFiles []string `json:"changedFiles"`
	// Passed is the AND over every check that ran.
	Passed bool `json:"passed"`
	// HighRiskEscalation advises a full check. It never fails the result.
	HighRiskEscalation bool                          `json:"highRiskEscalation"`
	RiskFindings       []risk.Finding                `json:"riskFindings,omitempty"`
	Checks             []models.AutomatedCheckResult `json:"checks"`
	Skipped            []SkippedCheck                `json:"skipped,omitempty"`
	Discovery          *discovery.Result             `json:"discovery,omitempty"`
	Impacted           []models.ImpactMatch          `json:"impacted,omitempty"`
	// Feature is the full-path target.
	Feature  *models.Feature  `json:"feature,omitempty"`
	Verdicts []FeatureVerdict `json:"verdicts,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
}

// Config wires an Orchestrator. Only ProjectRoot, Features, Git and Runner
// are required.
type Config struct {
	ProjectRoot  string
	Features     FeatureSource
	Git          git.Runner
	Runner       exec.CheckRunner
	Capabilities *capabilities.Capabilities
	// Verifier may be nil; AI steps are then skipped.
	Verifier agent.CriteriaVerifier
	// History may be nil; verification records are then not persisted.
	History    *verification.History
	Risk       *risk.Detector
	Discoverer *discovery.Discoverer
	Matcher    *impact.Matcher
	Logger     *DebugLogger
}

// Orchestrator runs the check pipeline for one project.
type Orchestrator struct {
	root       string
	features   FeatureSource
	git        git.Runner
	runner     exec.CheckRunner
	caps       *capabilities.Capabilities
	verifier   agent.CriteriaVerifier
	history    *verification.History
	risk       *risk.Detector
	discoverer *discovery.Discoverer
	matcher    *impact.Matcher
	logger     *DebugLogger
}

// New creates an Orchestrator, filling unset optional collaborators with
// defaults.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		root:       cfg.ProjectRoot,
		features:   cfg.Features,
		git:        cfg.Git,
		runner:     cfg.Runner,
		caps:       cfg.Capabilities,
		verifier:   cfg.Verifier,
		history:    cfg.History,
		risk:       cfg.Risk,
		discoverer: cfg.Discoverer,
		matcher:    cfg.Matcher,
		logger:     cfg.Logger,
	}
	if o.caps == nil {
		o.caps = &capabilities.Capabilities{}
	}
	if o.risk == nil {
		o.risk = risk.New()
	}
	if o.discoverer == nil {
		o.discoverer = discovery.NewDiscoverer(cfg.ProjectRoot)
		o.discoverer.SetDebugLog(o.logger.Log)
	}
	if o.matcher == nil {
		o.matcher = impact.NewMatcher()
		o.matcher.SetDebugLog(o.logger.Log)
	}
	return o
}

// Run executes one invocation. It returns an error only for structural
// problems: a missing feature list, an unknown feature ID, or no ready
// feature on an untargeted full run. Check failures are data.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (result *Result, err error) {
	full := opts.Full || opts.FeatureID != ""
	ctx, span := tracer.Start(ctx, "check.run", trace.WithAttributes(
		attribute.Bool("gauntlet.check.full", full),
		attribute.String("gauntlet.feature", opts.FeatureID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.String("gauntlet.check.path", string(result.Path)),
				attribute.Bool("gauntlet.check.passed", result.Passed),
			)
		}
		span.End()
	}()

	list, warnings, err := o.features.Load()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		o.logger.Log("[check] feature list warning: %s", w)
	}

	changed := opts.ChangedFiles
	if changed == nil {
		changed = o.git.ChangedFiles(ctx)
	}
	span.SetAttributes(attribute.Int("gauntlet.check.changed_files", len(changed)))

	if full {
		result, err = o.runFull(ctx, list, changed, opts)
	} else if len(changed) == 0 {
		o.logger.Log("[check] no changed files, nothing to check")
		result = &Result{Path: PathNothing, ChangedFiles: []string{}, Passed: true}
	} else {
		result, err = o.runFast(ctx, list, changed, opts)
	}
	if err != nil {
		return nil, err
	}
	result.Warnings = append(warnings, result.Warnings...)
	return result, nil
}

func (o *Orchestrator) runFast(ctx context.Context, list *features.List, changed []string, opts Options) (*Result, error) {
	result := &Result{Path: PathFast, ChangedFiles: changed}

	result.RiskFindings = o.risk.Classify(changed)
	result.HighRiskEscalation = len(result.RiskFindings) > 0
	if result.HighRiskEscalation {
		o.logger.Log("[check] high-risk change: %v", result.RiskFindings)
	}

	var planned []plannedCheck
	planned = o.planConfigured(planned, &result.Skipped, models.CheckTypecheck, models.CheckLint)

	disc, err := o.discoverer.Discover(ctx, discovery.Request{ChangedFiles: changed})
	if err != nil {
		return nil, fmt.Errorf("discover tests: %w", err)
	}
	result.Discovery = disc
	if cmd, reason := o.selectiveTestCommand(disc); cmd != "" {
		planned = append(planned, plannedCheck{Type: models.CheckTest, Command: cmd})
	} else {
		result.Skipped = append(result.Skipped, SkippedCheck{Type: models.CheckTest, Reason: reason})
	}

	result.Skipped = append(result.Skipped,
		SkippedCheck{Type: models.CheckBuild, Reason: "fast path"},
		SkippedCheck{Type: models.CheckE2E, Reason: "fast path"},
	)

	result.Checks = o.runChecks(ctx, planned, opts)
	result.Passed = allPassed(result.Checks)

	result.Impacted = o.matcher.Match(changed, list.Features)

	if !opts.AI {
		return result, nil
	}
	for _, m := range result.Impacted {
		f, err := list.Get(m.FeatureID)
		if err != nil {
			continue
		}
		result.Verdicts = append(result.Verdicts, o.verify(ctx, f, changed, result.Checks, false))
	}
	return result, nil
}

func (o *Orchestrator) runFull(ctx context.Context, list *features.List, changed []string, opts Options) (*Result, error) {
	var target *models.Feature
	if opts.FeatureID != "" {
		f, err := list.Get(opts.FeatureID)
		if err != nil {
			return nil, err
		}
		target = f
	} else {
		target = graph.SelectNextFeature(list.Features)
		if target == nil {
			return nil, ErrNoReadyFeature
		}
		o.logger.Log("[check] auto-selected %s", target.ID)
	}

	result := &Result{Path: PathFull, ChangedFiles: changed, Feature: target}
	result.RiskFindings = o.risk.Classify(changed)
	result.HighRiskEscalation = len(result.RiskFindings) > 0

	var planned []plannedCheck
	planned = o.planConfigured(planned, &result.Skipped,
		models.CheckTypecheck, models.CheckLint, models.CheckTest, models.CheckBuild)
	if opts.E2E {
		planned = o.planConfigured(planned, &result.Skipped, models.CheckE2E)
	} else {
		result.Skipped = append(result.Skipped, SkippedCheck{Type: models.CheckE2E, Reason: "not requested"})
	}

	result.Checks = o.runChecks(ctx, planned, opts)
	result.Passed = allPassed(result.Checks)
	result.Verdicts = []FeatureVerdict{o.verify(ctx, target, changed, result.Checks, true)}
	return result, nil
}

type plannedCheck struct {
	Type    models.CheckType
	Command string
}

// planConfigured appends each configured check and records the rest as skipped.
func (o *Orchestrator) planConfigured(planned []plannedCheck, skipped *[]SkippedCheck, types ...models.CheckType) []plannedCheck {
	for _, t := range types {
		cmd := o.caps.Commands.For(t)
		if cmd == "" {
			*skipped = append(*skipped, SkippedCheck{Type: t, Reason: "not configured"})
			continue
		}
		planned = append(planned, plannedCheck{Type: t, Command: cmd})
	}
	return planned
}

// selectiveTestCommand turns a discovery result into a command. Glob
// patterns are expanded against the project tree first; an empty expansion
// means there are no relevant tests.
func (o *Orchestrator) selectiveTestCommand(disc *discovery.Result) (cmd string, reason string) {
	if !o.caps.HasTests() {
		return "", "not configured"
	}

	files := disc.TestFiles
	if len(files) == 0 && disc.Pattern != "" {
		matches, err := doublestar.Glob(os.DirFS(o.root), disc.Pattern, doublestar.WithFilesOnly())
		if err != nil {
			o.logger.Log("[check] expand %q: %v", disc.Pattern, err)
		}
		files = matches
	}
	if len(files) == 0 {
		return "", "no relevant tests found"
	}

	command, ok := o.synthesize(files)
	if !ok {
		return "", "not configured"
	}
	return command, ""
}

// runChecks executes planned checks and returns results in planned order.
func (o *Orchestrator) runChecks(ctx context.Context, planned []plannedCheck, opts Options) []models.AutomatedCheckResult {
	results := make([]models.AutomatedCheckResult, len(planned))
	run := func(i int) {
		results[i] = o.runCheck(ctx, planned[i], opts.Timeout)
	}

	if !opts.Parallel {
		for i := range planned {
			run(i)
		}
		return results
	}

	var g errgroup.Group
	for i := range planned {
		g.Go(func() error {
			run(i)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) runCheck(ctx context.Context, pc plannedCheck, timeout time.Duration) models.AutomatedCheckResult {
	ctx, span := tracer.Start(ctx, "check."+string(pc.Type), trace.WithAttributes(
		attribute.String("gauntlet.check.command", pc.Command),
	))
	defer span.End()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	o.logger.Log("[check] %s: %s", pc.Type, pc.Command)
	outcome := o.runner.RunCheck(ctx, pc.Command)
	o.logger.Log("[check] %s finished: success=%v duration=%s timedOut=%v",
		pc.Type, outcome.Success, outcome.Duration, outcome.TimedOut)

	span.SetAttributes(attribute.Bool("gauntlet.check.success", outcome.Success))
	if !outcome.Success {
		span.SetStatus(codes.Error, string(pc.Type)+" failed")
	}

	return models.AutomatedCheckResult{
		Type:     pc.Type,
		Command:  pc.Command,
		Success:  outcome.Success,
		Duration: outcome.Duration,
		Output:   outcome.Output,
	}
}

func allPassed(checks []models.AutomatedCheckResult) bool {
	for _, c := range checks {
		if !c.Success {
			return false
		}
	}
	return true
}
