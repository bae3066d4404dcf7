package check

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShayCichocki/gauntlet/internal/agent"
	"github.com/ShayCichocki/gauntlet/internal/testcmd"
	"github.com/ShayCichocki/gauntlet/pkg/models"
)

func (o *Orchestrator) synthesize(files []string) (string, bool) {
	cmd, ok := testcmd.Synthesize(testcmd.Request{
		Framework:   o.caps.Framework,
		TestFiles:   files,
		TestCommand: o.caps.Commands.Test,
		Learned:     o.caps.LearnedTemplates,
	})
	if ok {
		o.logger.Log("[check] test command (%s): %s", cmd.Resolution, cmd.Command)
	}
	return cmd.Command, ok
}

// verify runs AI criteria verification for f and records the outcome.
// record forces a history entry even when AI was skipped.
func (o *Orchestrator) verify(ctx context.Context, f *models.Feature, changed []string, checks []models.AutomatedCheckResult, record bool) FeatureVerdict {
	ctx, span := tracer.Start(ctx, "check.verify", trace.WithAttributes(
		attribute.String("gauntlet.feature", f.ID),
	))
	defer span.End()

	fv := FeatureVerdict{FeatureID: f.ID}
	checksPassed := allPassed(checks)

	var resp *agent.Response
	switch {
	case o.verifier == nil:
		fv.AISkipReason = "no AI agent configured"
	case len(f.Acceptance) == 0:
		fv.AISkipReason = "feature has no acceptance criteria"
	default:
		var err error
		resp, err = o.verifier.VerifyCriteria(ctx, agent.Request{
			FeatureID:    f.ID,
			Description:  f.Description,
			Criteria:     f.Acceptance,
			ChangedFiles: changed,
			Diff:         o.git.Diff(ctx, changed, maxDiffBytes),
			CheckSummary: summarizeChecks(checks),
		})
		if err != nil {
			resp = nil
			fv.AISkipReason = skipReason(err)
			o.logger.Log("[check] AI verification skipped for %s: %v", f.ID, err)
		}
	}
	fv.AIRan = resp != nil
	fv.Verdict = combineVerdict(checksPassed, resp)
	span.SetAttributes(
		attribute.Bool("gauntlet.ai.ran", fv.AIRan),
		attribute.String("gauntlet.verdict", string(fv.Verdict)),
	)

	if !record && !fv.AIRan {
		return fv
	}

	vr := &models.VerificationResult{
		FeatureID:       f.ID,
		CommitHash:      o.git.CommitHash(ctx),
		ChangedFiles:    changed,
		DiffSummary:     o.git.DiffSummary(ctx, changed),
		AutomatedChecks: checks,
		Verdict:         fv.Verdict,
	}
	if resp != nil {
		vr.CriteriaResults = resp.CriteriaResults
		vr.Reasoning = resp.Reasoning
	} else {
		vr.Reasoning = "AI verification skipped: " + fv.AISkipReason
	}
	if vr.ChangedFiles == nil {
		vr.ChangedFiles = []string{}
	}
	fv.Record = vr

	if o.history != nil {
		if err := o.history.Record(vr); err != nil {
			o.logger.Log("[check] record verification for %s: %v", f.ID, err)
		}
	}
	return fv
}

// combineVerdict folds automated checks and an optional AI response into one
// verdict. Failing checks always fail; without AI the checks decide.
func combineVerdict(checksPassed bool, resp *agent.Response) models.Verdict {
	if !checksPassed {
		return models.VerdictFail
	}
	if resp == nil {
		return models.VerdictPass
	}
	return resp.Verdict
}

func skipReason(err error) string {
	if errors.Is(err, agent.ErrUnavailable) {
		return err.Error()
	}
	return "AI response unusable: " + err.Error()
}

func summarizeChecks(checks []models.AutomatedCheckResult) string {
	if len(checks) == 0 {
		return "No automated checks ran."
	}
	var b strings.Builder
	for _, c := range checks {
		status := "pass"
		if !c.Success {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "- %s: %s (%s)\n", c.Type, status, c.Duration.Round(time.Millisecond))
	}
	return b.String()
}
