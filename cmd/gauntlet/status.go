package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gauntlet/internal/graph"
	"github.com/ShayCichocki/gauntlet/internal/state"
	"github.com/ShayCichocki/gauntlet/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every feature with its status and latest verdict",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next ready feature",
	Args:  cobra.NoArgs,
	RunE:  runNext,
}

var depsCmd = &cobra.Command{
	Use:   "deps <feature-id>",
	Short: "Show a feature's blockers and dependents",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeps,
}

// featureStatusRow is one line of `gauntlet status --json`.
type featureStatusRow struct {
	ID          string               `json:"id"`
	Module      string               `json:"module"`
	Status      models.FeatureStatus `json:"status"`
	Priority    int                  `json:"priority"`
	LatestRun   int                  `json:"latestRun,omitempty"`
	LastVerdict string               `json:"lastVerdict,omitempty"`
	Ready       bool                 `json:"ready"`
}

// statusOrder groups features in the status report.
var statusOrder = []models.FeatureStatus{
	models.StatusFailing,
	models.StatusFailed,
	models.StatusNeedsReview,
	models.StatusBlocked,
	models.StatusPassing,
	models.StatusDeprecated,
}

func runStatus(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	list, warnings, err := p.store.Load()
	if err != nil {
		return err
	}

	summaries := make(map[string]state.IndexEntry)
	entries, err := p.openHistory().Summaries()
	if err != nil {
		p.logger.Log("[status] history summaries: %v", err)
	}
	for _, e := range entries {
		summaries[e.FeatureID] = e
	}

	ready := make(map[string]bool)
	for _, f := range graph.GetReadyFeatures(list.Features) {
		ready[f.ID] = true
	}

	rows := make([]featureStatusRow, 0, len(list.Features))
	for _, f := range list.Features {
		row := featureStatusRow{
			ID:       f.ID,
			Module:   f.Module,
			Status:   f.Status,
			Priority: f.Priority,
			Ready:    ready[f.ID],
		}
		if e, ok := summaries[f.ID]; ok {
			row.LatestRun = e.LatestRun
			row.LastVerdict = e.Verdict
		}
		rows = append(rows, row)
	}

	if jsonOutput {
		return printJSON(rows)
	}

	for _, w := range warnings {
		printStatus("⚠", w, warnColor)
	}

	counts := make(map[models.FeatureStatus]int)
	for _, r := range rows {
		counts[r.Status]++
	}
	var parts []string
	for _, s := range statusOrder {
		if counts[s] > 0 {
			parts = append(parts, statusStyle(s).Render(fmt.Sprintf("%d %s", counts[s], s)))
		}
	}
	fmt.Printf("%s  %s\n\n", titleStyle.Render(fmt.Sprintf("%d features", len(rows))), strings.Join(parts, " · "))

	sort.SliceStable(rows, func(i, j int) bool {
		return statusRank(rows[i].Status) < statusRank(rows[j].Status)
	})

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("", "FEATURE", "MODULE", "STATUS", "LAST RUN")
	for _, r := range rows {
		marker := ""
		if r.Ready {
			marker = accentStyle.Render("▶")
		}
		last := "-"
		if r.LatestRun > 0 {
			last = fmt.Sprintf("#%d %s", r.LatestRun, r.LastVerdict)
		}
		t.Row(marker, r.ID, mutedStyle.Render(r.Module),
			statusStyle(r.Status).Render(string(r.Status)), mutedStyle.Render(last))
	}
	fmt.Println(t)
	return nil
}

func statusRank(s models.FeatureStatus) int {
	for i, o := range statusOrder {
		if o == s {
			return i
		}
	}
	return len(statusOrder)
}

func runNext(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	list, _, err := p.store.Load()
	if err != nil {
		return err
	}

	next := graph.SelectNextFeature(list.Features)
	if jsonOutput {
		return printJSON(next)
	}
	if next == nil {
		printStatus("✓", "No ready features", okColor)
		return nil
	}

	fmt.Println(titleStyle.Render(next.ID) + mutedStyle.Render(fmt.Sprintf("  [%s] priority %d", next.Module, next.Priority)))
	if next.Description != "" {
		fmt.Println(next.Description)
	}
	if len(next.Acceptance) > 0 {
		fmt.Println()
		for i, c := range next.Acceptance {
			fmt.Printf("  %d. %s\n", i+1, c)
		}
	}
	return nil
}

// depsReport is the output of `gauntlet deps`.
type depsReport struct {
	FeatureID string   `json:"featureId"`
	Depth     int      `json:"depth"`
	DependsOn []string `json:"dependsOn"`
	Blocking  []string `json:"blocking"`
	Affected  []string `json:"affected"`
}

func runDeps(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	list, _, err := p.store.Load()
	if err != nil {
		return err
	}
	f, err := list.Get(args[0])
	if err != nil {
		return err
	}

	r := depsReport{
		FeatureID: f.ID,
		Depth:     graph.GetDependencyDepth(list.Features, f.ID),
		DependsOn: append([]string{}, f.DependsOn...),
		Blocking:  []string{},
		Affected:  graph.FindAffectedChain(graph.BuildDependencyGraph(list.Features), f.ID, nil),
	}
	for _, b := range graph.GetBlockingFeatures(list.Features, f.ID) {
		r.Blocking = append(r.Blocking, b.ID)
	}
	if r.Affected == nil {
		r.Affected = []string{}
	}

	if jsonOutput {
		return printJSON(r)
	}

	fmt.Println(titleStyle.Render(f.ID) + mutedStyle.Render(fmt.Sprintf("  depth %d", r.Depth)))
	printList("Depends on", r.DependsOn)
	if len(r.Blocking) > 0 {
		fmt.Println(warnStyle.Render("Blocked by: " + strings.Join(r.Blocking, ", ")))
	}
	printList("Affects", r.Affected)
	return nil
}

func printList(label string, ids []string) {
	if len(ids) == 0 {
		fmt.Println(mutedStyle.Render(label + ": none"))
		return
	}
	fmt.Println(label + ": " + strings.Join(ids, ", "))
}
