package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gauntlet/internal/discovery"
	"github.com/ShayCichocki/gauntlet/internal/exec"
	"github.com/ShayCichocki/gauntlet/internal/impact"
	"github.com/ShayCichocki/gauntlet/internal/risk"
	"github.com/ShayCichocki/gauntlet/internal/testcmd"
	"github.com/ShayCichocki/gauntlet/pkg/models"
)

var impactCmd = &cobra.Command{
	Use:   "impact [files...]",
	Short: "Show which features and tests a change touches",
	Long: `Map changed files to the features they affect and the tests that cover
them, without running anything. Files default to the git change set.`,
	RunE: runImpact,
}

// impactReport is the output of `gauntlet impact`.
type impactReport struct {
	ChangedFiles []string             `json:"changedFiles"`
	Impacted     []models.ImpactMatch `json:"impacted"`
	HighRisk     []risk.Finding       `json:"highRisk,omitempty"`
	Tests        *discovery.Result    `json:"tests"`
	TestCommand  string               `json:"testCommand,omitempty"`
}

func runImpact(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	list, _, err := p.store.Load()
	if err != nil {
		return err
	}

	changed := args
	if len(changed) == 0 {
		changed = p.gitRunner(exec.NewRunner(p.root)).ChangedFiles(ctx)
	}

	matcher := impact.NewMatcher()
	matcher.SetDebugLog(p.logger.Log)
	discoverer := discovery.NewDiscoverer(p.root)
	discoverer.SetDebugLog(p.logger.Log)

	tests, err := discoverer.Discover(ctx, discovery.Request{ChangedFiles: changed})
	if err != nil {
		return err
	}

	r := impactReport{
		ChangedFiles: changed,
		Impacted:     matcher.Match(changed, list.Features),
		HighRisk:     p.riskDetector().Classify(changed),
		Tests:        tests,
	}
	if r.ChangedFiles == nil {
		r.ChangedFiles = []string{}
	}
	if r.Impacted == nil {
		r.Impacted = []models.ImpactMatch{}
	}
	if tests.Source != discovery.SourceNone && len(tests.TestFiles) > 0 {
		if c, ok := testcmd.Synthesize(testcmd.Request{
			Framework:   p.caps.Framework,
			TestFiles:   tests.TestFiles,
			TestCommand: p.caps.Commands.Test,
			Learned:     p.caps.LearnedTemplates,
		}); ok {
			r.TestCommand = c.Command
		}
	}

	if jsonOutput {
		return printJSON(r)
	}

	if len(changed) == 0 {
		printStatus("✓", "No changes", okColor)
		return nil
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("%d changed file(s)", len(changed))))
	for _, f := range changed {
		fmt.Println(mutedStyle.Render("  " + f))
	}
	fmt.Println()

	if len(r.Impacted) == 0 {
		fmt.Println(mutedStyle.Render("No features impacted"))
	} else {
		fmt.Println(titleStyle.Render("Impacted features"))
		for _, m := range r.Impacted {
			fmt.Printf("  %-24s %-6s %s\n", m.FeatureID, m.Confidence, mutedStyle.Render(m.Reason))
		}
	}

	fmt.Println()
	if tests.Source == discovery.SourceNone {
		fmt.Println(mutedStyle.Render("No relevant tests found"))
	} else {
		fmt.Printf("%s %s\n", titleStyle.Render("Tests"), mutedStyle.Render("("+string(tests.Source)+")"))
		if len(tests.TestFiles) > 0 {
			fmt.Println("  " + strings.Join(tests.TestFiles, "\n  "))
		} else {
			fmt.Println("  " + tests.Pattern)
		}
		if r.TestCommand != "" {
			fmt.Println(mutedStyle.Render("  $ " + r.TestCommand))
		}
	}

	if len(r.HighRisk) > 0 {
		fmt.Println()
		for _, f := range r.HighRisk {
			printStatus("⚠", fmt.Sprintf("high-risk: %s (%s)", f.File, f.Pattern), warnColor)
		}
	}
	return nil
}
