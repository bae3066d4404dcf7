// Package graph provides dependency queries over a feature list.
//
// The graph is never stored: every query derives what it needs from the
// current feature slice. dependsOn edges may form cycles and may reference
// IDs that do not exist; every function here tolerates both. Unknown IDs are
// treated as satisfied.
package graph

import (
	"sort"

	"github.com/ShayCichocki/gauntlet/pkg/models"
)

// DependencyGraph maps a feature ID to the IDs of features that declare it
// in dependsOn (the reverse edge set).
type DependencyGraph map[string][]string

// BuildDependencyGraph derives the reverse dependency index from features.
// Every feature gets a node, even when nothing depends on it. Dependents are
// listed in feature-list order.
func BuildDependencyGraph(features []*models.Feature) DependencyGraph {
	g := make(DependencyGraph, len(features))
	for _, f := range features {
		if _, ok := g[f.ID]; !ok {
			g[f.ID] = []string{}
		}
		for _, dep := range f.DependsOn {
			g[dep] = append(g[dep], f.ID)
		}
	}
	return g
}

// FindAffectedChain returns every feature that transitively depends on
// startID, in depth-first order. startID itself is never included.
//
// visited may be nil. When supplied it is shared with the caller: IDs already
// present are skipped, and every ID reached is added to it.
func FindAffectedChain(g DependencyGraph, startID string, visited map[string]bool) []string {
	if visited == nil {
		visited = make(map[string]bool)
	}
	visited[startID] = true

	var chain []string
	stack := pushReversed(nil, g[startID])
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		chain = append(chain, id)
		stack = pushReversed(stack, g[id])
	}
	return chain
}

// pushReversed pushes ids so that ids[0] is popped first.
func pushReversed(stack, ids []string) []string {
	for i := len(ids) - 1; i >= 0; i-- {
		stack = append(stack, ids[i])
	}
	return stack
}

// WouldCreateCircularDependency reports whether adding newDependency to
// featureID's dependsOn would close a cycle, i.e. newDependency already
// depends (transitively) on featureID. A self-dependency is always circular.
func WouldCreateCircularDependency(features []*models.Feature, featureID, newDependency string) bool {
	if featureID == newDependency {
		return true
	}
	g := BuildDependencyGraph(features)
	for _, id := range FindAffectedChain(g, featureID, nil) {
		if id == newDependency {
			return true
		}
	}
	return false
}

// SortByDependencyOrder returns features ordered so that dependencies come
// before their dependents. Edges that would close a cycle are skipped rather
// than reported, so the output always has the same length as the input.
func SortByDependencyOrder(features []*models.Feature) []*models.Feature {
	index := indexByID(features)
	visited := make([]bool, len(features))
	visiting := make([]bool, len(features))
	sorted := make([]*models.Feature, 0, len(features))

	type frame struct {
		idx  int
		next int
	}

	for root := range features {
		if visited[root] {
			continue
		}
		visiting[root] = true
		stack := []frame{{idx: root}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			f := features[top.idx]
			if top.next < len(f.DependsOn) {
				dep := f.DependsOn[top.next]
				top.next++
				di, ok := index[dep]
				if !ok || visited[di] || visiting[di] {
					continue
				}
				visiting[di] = true
				stack = append(stack, frame{idx: di})
				continue
			}
			visiting[top.idx] = false
			visited[top.idx] = true
			sorted = append(sorted, f)
			stack = stack[:len(stack)-1]
		}
	}
	return sorted
}

// GetDependencyDepth returns how many dependency levels sit below featureID:
// 0 with no dependencies, otherwise 1 + the deepest dependency. Unknown IDs
// count as depth 0, and a branch that loops back into a feature still being
// evaluated also counts as 0, which keeps the walk finite on cycles.
func GetDependencyDepth(features []*models.Feature, featureID string) int {
	return newDepthCalculator(features).depth(featureID)
}

type depthCalculator struct {
	features []*models.Feature
	index    map[string]int
	memo     map[string]int
}

func newDepthCalculator(features []*models.Feature) *depthCalculator {
	return &depthCalculator{
		features: features,
		index:    indexByID(features),
		memo:     make(map[string]int),
	}
}

func (c *depthCalculator) lookup(id string) *models.Feature {
	if i, ok := c.index[id]; ok {
		return c.features[i]
	}
	return nil
}

func (c *depthCalculator) depth(featureID string) int {
	if d, ok := c.memo[featureID]; ok {
		return d
	}

	type frame struct {
		id   string
		next int
	}

	visiting := map[string]bool{featureID: true}
	stack := []frame{{id: featureID}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		f := c.lookup(top.id)
		if f != nil && top.next < len(f.DependsOn) {
			dep := f.DependsOn[top.next]
			top.next++
			if _, done := c.memo[dep]; done || visiting[dep] || c.lookup(dep) == nil {
				continue
			}
			visiting[dep] = true
			stack = append(stack, frame{id: dep})
			continue
		}

		d := 0
		if f != nil && len(f.DependsOn) > 0 {
			deepest := 0
			for _, dep := range f.DependsOn {
				// Still-visiting and unknown deps have no memo entry: 0.
				if m := c.memo[dep]; m > deepest {
					deepest = m
				}
			}
			d = deepest + 1
		}
		c.memo[top.id] = d
		delete(visiting, top.id)
		stack = stack[:len(stack)-1]
	}
	return c.memo[featureID]
}

// GetBlockingFeatures returns the dependencies of featureID that are not
// passing. Unknown dependency IDs are ignored.
func GetBlockingFeatures(features []*models.Feature, featureID string) []*models.Feature {
	index := indexByID(features)
	i, ok := index[featureID]
	if !ok {
		return nil
	}

	var blocking []*models.Feature
	for _, dep := range features[i].DependsOn {
		di, ok := index[dep]
		if !ok {
			continue
		}
		if features[di].Status != models.StatusPassing {
			blocking = append(blocking, features[di])
		}
	}
	return blocking
}

// GetReadyFeatures returns failing features whose dependencies all pass.
func GetReadyFeatures(features []*models.Feature) []*models.Feature {
	var ready []*models.Feature
	for _, f := range features {
		if f.Status != models.StatusFailing {
			continue
		}
		if len(GetBlockingFeatures(features, f.ID)) == 0 {
			ready = append(ready, f)
		}
	}
	return ready
}

// SelectNextFeature picks the ready feature to work on next: lowest
// priority value first, then shallowest dependency depth, then ID.
// Returns nil when nothing is ready.
func SelectNextFeature(features []*models.Feature) *models.Feature {
	ready := GetReadyFeatures(features)
	if len(ready) == 0 {
		return nil
	}

	calc := newDepthCalculator(features)
	sort.SliceStable(ready, func(i, j int) bool {
		a, b := ready[i], ready[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		da, db := calc.depth(a.ID), calc.depth(b.ID)
		if da != db {
			return da < db
		}
		return a.ID < b.ID
	})
	return ready[0]
}

// indexByID maps each ID to the position of its first occurrence.
func indexByID(features []*models.Feature) map[string]int {
	index := make(map[string]int, len(features))
	for i, f := range features {
		if _, dup := index[f.ID]; !dup {
			index[f.ID] = i
		}
	}
	return index
}
