package graph

import (
	"reflect"
	"testing"

	"github.com/ShayCichocki/gauntlet/pkg/models"
)

func feature(id string, status models.FeatureStatus, deps ...string) *models.Feature {
	return &models.Feature{ID: id, Module: "core", Status: status, DependsOn: deps}
}

func ids(features []*models.Feature) []string {
	out := make([]string, 0, len(features))
	for _, f := range features {
		out = append(out, f.ID)
	}
	return out
}

func TestBuildDependencyGraph(t *testing.T) {
	features := []*models.Feature{
		feature("a", models.StatusFailing),
		feature("b", models.StatusFailing, "a"),
		feature("c", models.StatusFailing, "a", "b"),
		feature("d", models.StatusFailing, "ghost"),
	}

	g := BuildDependencyGraph(features)

	want := DependencyGraph{
		"a":     {"b", "c"},
		"b":     {"c"},
		"c":     {},
		"d":     {},
		"ghost": {"d"},
	}
	if !reflect.DeepEqual(g, want) {
		t.Errorf("BuildDependencyGraph() = %v, want %v", g, want)
	}
}

func TestFindAffectedChain(t *testing.T) {
	features := []*models.Feature{
		feature("a", models.StatusFailing),
		feature("b", models.StatusFailing, "a"),
		feature("c", models.StatusFailing, "b"),
		feature("d", models.StatusFailing, "a"),
		feature("e", models.StatusFailing),
	}
	g := BuildDependencyGraph(features)

	got := FindAffectedChain(g, "a", nil)
	want := []string{"b", "c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FindAffectedChain(a) = %v, want %v", got, want)
	}

	if got := FindAffectedChain(g, "e", nil); len(got) != 0 {
		t.Errorf("FindAffectedChain(e) = %v, want empty", got)
	}
	if got := FindAffectedChain(g, "missing", nil); len(got) != 0 {
		t.Errorf("FindAffectedChain(missing) = %v, want empty", got)
	}
}

func TestFindAffectedChain_Cycle(t *testing.T) {
	features := []*models.Feature{
		feature("a", models.StatusFailing, "c"),
		feature("b", models.StatusFailing, "a"),
		feature("c", models.StatusFailing, "b"),
	}
	g := BuildDependencyGraph(features)

	got := FindAffectedChain(g, "a", nil)
	want := []string{"b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FindAffectedChain(a) on cycle = %v, want %v", got, want)
	}
}

func TestFindAffectedChain_SharedVisited(t *testing.T) {
	features := []*models.Feature{
		feature("a", models.StatusFailing),
		feature("b", models.StatusFailing, "a"),
		feature("c", models.StatusFailing, "b"),
	}
	g := BuildDependencyGraph(features)

	visited := map[string]bool{"b": true}
	if got := FindAffectedChain(g, "a", visited); len(got) != 0 {
		t.Errorf("FindAffectedChain() with b visited = %v, want empty", got)
	}
	if !visited["a"] {
		t.Error("start ID should be recorded in the shared visited set")
	}
}

func TestWouldCreateCircularDependency(t *testing.T) {
	features := []*models.Feature{
		feature("a", models.StatusFailing),
		feature("b", models.StatusFailing, "a"),
		feature("c", models.StatusFailing, "b"),
		feature("x", models.StatusFailing),
	}

	tests := []struct {
		name       string
		featureID  string
		dependency string
		want       bool
	}{
		{"dependent on transitive dependent", "a", "c", true},
		{"dependent on direct dependent", "a", "b", true},
		{"forward edge is fine", "c", "a", false},
		{"unrelated feature", "a", "x", false},
		{"self dependency", "a", "a", true},
		{"unknown dependency", "a", "ghost", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WouldCreateCircularDependency(features, tt.featureID, tt.dependency); got != tt.want {
				t.Errorf("WouldCreateCircularDependency(%s, %s) = %v, want %v", tt.featureID, tt.dependency, got, tt.want)
			}
		})
	}
}

func TestSortByDependencyOrder(t *testing.T) {
	features := []*models.Feature{
		feature("c", models.StatusFailing, "b"),
		feature("b", models.StatusFailing, "a"),
		feature("a", models.StatusFailing),
		feature("d", models.StatusFailing, "ghost"),
	}

	got := ids(SortByDependencyOrder(features))
	want := []string{"a", "b", "c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortByDependencyOrder() = %v, want %v", got, want)
	}
}

func TestSortByDependencyOrder_CyclePreservesLength(t *testing.T) {
	tests := []struct {
		name     string
		features []*models.Feature
	}{
		{
			name: "self reference",
			features: []*models.Feature{
				feature("a", models.StatusFailing, "a"),
			},
		},
		{
			name: "mutual reference",
			features: []*models.Feature{
				feature("a", models.StatusFailing, "b"),
				feature("b", models.StatusFailing, "a"),
			},
		},
		{
			name: "three cycle with tail",
			features: []*models.Feature{
				feature("a", models.StatusFailing, "c"),
				feature("b", models.StatusFailing, "a"),
				feature("c", models.StatusFailing, "b"),
				feature("d", models.StatusFailing, "c"),
			},
		},
		{
			name: "duplicate ids",
			features: []*models.Feature{
				feature("a", models.StatusFailing),
				feature("a", models.StatusFailing),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sorted := SortByDependencyOrder(tt.features)
			if len(sorted) != len(tt.features) {
				t.Fatalf("len(SortByDependencyOrder()) = %d, want %d", len(sorted), len(tt.features))
			}
			seen := make(map[*models.Feature]bool)
			for _, f := range sorted {
				if seen[f] {
					t.Errorf("feature %s emitted twice", f.ID)
				}
				seen[f] = true
			}
		})
	}
}

func TestGetDependencyDepth(t *testing.T) {
	features := []*models.Feature{
		feature("a", models.StatusFailing),
		feature("b", models.StatusFailing, "a"),
		feature("c", models.StatusFailing, "b", "a"),
		feature("d", models.StatusFailing, "ghost"),
	}

	tests := []struct {
		id   string
		want int
	}{
		{"a", 0},
		{"b", 1},
		{"c", 2},
		{"d", 1},
		{"missing", 0},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := GetDependencyDepth(features, tt.id); got != tt.want {
				t.Errorf("GetDependencyDepth(%s) = %d, want %d", tt.id, got, tt.want)
			}
		})
	}
}

func TestGetDependencyDepth_Cycles(t *testing.T) {
	self := []*models.Feature{feature("a", models.StatusFailing, "a")}
	if got := GetDependencyDepth(self, "a"); got != 1 {
		t.Errorf("self-referential depth = %d, want 1", got)
	}

	mutual := []*models.Feature{
		feature("a", models.StatusFailing, "b"),
		feature("b", models.StatusFailing, "a"),
	}
	if got := GetDependencyDepth(mutual, "a"); got != 2 {
		t.Errorf("mutual depth(a) = %d, want 2", got)
	}
	if got := GetDependencyDepth(mutual, "b"); got != 2 {
		t.Errorf("mutual depth(b) = %d, want 2", got)
	}
}

func TestGetBlockingFeatures(t *testing.T) {
	features := []*models.Feature{
		feature("done", models.StatusPassing),
		feature("wip", models.StatusFailing),
		feature("review", models.StatusNeedsReview),
		feature("target", models.StatusFailing, "done", "wip", "review", "ghost"),
	}

	got := ids(GetBlockingFeatures(features, "target"))
	want := []string{"wip", "review"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetBlockingFeatures() = %v, want %v", got, want)
	}

	if got := GetBlockingFeatures(features, "missing"); got != nil {
		t.Errorf("GetBlockingFeatures(missing) = %v, want nil", got)
	}
}

func TestGetReadyFeatures(t *testing.T) {
	features := []*models.Feature{
		feature("root", models.StatusPassing),
		feature("ready", models.StatusFailing, "root"),
		feature("blocked", models.StatusFailing, "ready"),
		feature("orphan", models.StatusFailing, "ghost"),
		feature("review", models.StatusNeedsReview),
		feature("retired", models.StatusDeprecated),
	}

	got := ids(GetReadyFeatures(features))
	want := []string{"ready", "orphan"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetReadyFeatures() = %v, want %v", got, want)
	}
}

func TestSelectNextFeature(t *testing.T) {
	base := feature("base", models.StatusPassing)
	shallow := feature("shallow", models.StatusFailing)
	shallow.Priority = 2
	deep := feature("deep", models.StatusFailing, "base")
	deep.Priority = 2
	urgent := feature("urgent", models.StatusFailing, "base")
	urgent.Priority = 1

	got := SelectNextFeature([]*models.Feature{base, shallow, deep, urgent})
	if got == nil || got.ID != "urgent" {
		t.Fatalf("SelectNextFeature() = %v, want urgent", got)
	}

	got = SelectNextFeature([]*models.Feature{base, deep, shallow})
	if got == nil || got.ID != "shallow" {
		t.Errorf("SelectNextFeature() tie-break = %v, want shallow", got)
	}

	if got := SelectNextFeature([]*models.Feature{base}); got != nil {
		t.Errorf("SelectNextFeature() with nothing ready = %v, want nil", got)
	}
}
