// Package discovery finds the existing test files that cover a change.
//
// Sources are tried in a fixed precedence: a pattern the feature declares
// explicitly, test files found next to the changed sources on disk, a
// module-wide glob, and finally nothing.
package discovery

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/gauntlet/internal/pathmatch"
	"github.com/ShayCichocki/gauntlet/pkg/models"
)

// Source names how a discovery result was obtained.
type Source string

const (
	SourceExplicit     Source = "explicit"
	SourceAutoDetected Source = "auto-detected"
	SourceModuleBased  Source = "module-based"
	SourceNone         Source = "none"
)

// Confidence per source.
const (
	ConfidenceExplicit     = 1.0
	ConfidenceAutoDetected = 0.9
	ConfidenceModuleBased  = 0.6
	ConfidenceNone         = 0.0
)

// Result describes the tests selected for a change.
type Result struct {
	// Pattern is a glob or space-separated file list for the command synthesizer.
	Pattern    string   `json:"pattern"`
	Source     Source   `json:"source"`
	TestFiles  []string `json:"testFiles"`
	Confidence float64  `json:"confidence"`
}

// Request is the input to discovery.
type Request struct {
	// Feature is optional; it supplies an explicit pattern and a module name.
	Feature      *models.Feature
	ChangedFiles []string
}

// Resolver is one precedence level. It returns ok=false to defer to the next.
type Resolver struct {
	Name    string
	Resolve func(ctx context.Context, d *Discoverer, req Request) (*Result, bool, error)
}

// DefaultResolvers returns the standard precedence order.
func DefaultResolvers() []Resolver {
	return []Resolver{
		{Name: string(SourceExplicit), Resolve: resolveExplicit},
		{Name: string(SourceAutoDetected), Resolve: resolveAutoDetected},
		{Name: string(SourceModuleBased), Resolve: resolveModuleBased},
		{Name: string(SourceNone), Resolve: resolveNone},
	}
}

// Discoverer selects tests relevant to changed files in one repository.
type Discoverer struct {
	repoPath    string
	conventions []Convention
	resolvers   []Resolver
	inferModule ModuleInferrer
	exists      func(rel string) bool
	concurrency int
	debugLog    func(format string, args ...interface{})
}

// NewDiscoverer creates a Discoverer for the repository at repoPath.
func NewDiscoverer(repoPath string) *Discoverer {
	d := &Discoverer{
		repoPath:    repoPath,
		conventions: DefaultConventions(),
		resolvers:   DefaultResolvers(),
		inferModule: InferModuleFromSourceRoot,
		concurrency: 16,
		debugLog:    func(format string, args ...interface{}) {},
	}
	d.exists = d.fileExists
	return d
}

// SetModuleInferrer replaces the module inference heuristic.
func (d *Discoverer) SetModuleInferrer(fn ModuleInferrer) {
	if fn != nil {
		d.inferModule = fn
	}
}

// SetConventions replaces the candidate naming conventions.
func (d *Discoverer) SetConventions(conventions []Convention) {
	d.conventions = conventions
}

// SetExistsFunc replaces the filesystem probe. Used in tests.
func (d *Discoverer) SetExistsFunc(fn func(rel string) bool) {
	if fn != nil {
		d.exists = fn
	}
}

// SetConcurrency bounds the number of parallel existence probes.
func (d *Discoverer) SetConcurrency(n int) {
	if n > 0 {
		d.concurrency = n
	}
}

// SetDebugLog sets the debug logging function.
func (d *Discoverer) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		d.debugLog = fn
	}
}

// Discover runs the resolvers in order and returns the first result.
func (d *Discoverer) Discover(ctx context.Context, req Request) (*Result, error) {
	req.ChangedFiles = normalizeAll(req.ChangedFiles)
	for _, r := range d.resolvers {
		result, ok, err := r.Resolve(ctx, d, req)
		if err != nil {
			return nil, err
		}
		if ok {
			d.debugLog("[discovery] resolved by %s: pattern=%q files=%v", r.Name, result.Pattern, result.TestFiles)
			return result, nil
		}
	}
	return noneResult(), nil
}

// DiscoverTestsForFeature is a convenience wrapper around a default Discoverer.
// feature may be nil.
func DiscoverTestsForFeature(ctx context.Context, repoPath string, feature *models.Feature, changed []string) (*Result, error) {
	return NewDiscoverer(repoPath).Discover(ctx, Request{Feature: feature, ChangedFiles: changed})
}

// CandidatesFor returns candidate test paths for a source file under every
// applicable convention, without duplicates.
func (d *Discoverer) CandidatesFor(file string) []string {
	sf := ParseSourceFile(pathmatch.Normalize(file))
	var out []string
	seen := make(map[string]bool)
	for _, c := range d.conventions {
		if !c.applies(sf.Ext) {
			continue
		}
		for _, cand := range c.Candidates(sf) {
			if cand == "" || seen[cand] {
				continue
			}
			seen[cand] = true
			out = append(out, cand)
		}
	}
	return out
}

// probe checks candidates concurrently and returns those that exist, in
// candidate order.
func (d *Discoverer) probe(ctx context.Context, candidates []string) ([]string, error) {
	found := make([]bool, len(candidates))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, cand := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			found[i] = d.exists(cand)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var existing []string
	for i, ok := range found {
		if ok {
			existing = append(existing, candidates[i])
		}
	}
	return existing, nil
}

func (d *Discoverer) fileExists(rel string) bool {
	info, err := os.Stat(filepath.Join(d.repoPath, filepath.FromSlash(rel)))
	return err == nil && !info.IsDir()
}

func resolveExplicit(_ context.Context, _ *Discoverer, req Request) (*Result, bool, error) {
	if req.Feature == nil {
		return nil, false, nil
	}
	pattern := req.Feature.UnitTestPattern()
	if pattern == "" {
		return nil, false, nil
	}
	return &Result{
		Pattern:    pattern,
		Source:     SourceExplicit,
		Confidence: ConfidenceExplicit,
	}, true, nil
}

func resolveAutoDetected(ctx context.Context, d *Discoverer, req Request) (*Result, bool, error) {
	if len(req.ChangedFiles) == 0 {
		return nil, false, nil
	}

	var direct, candidates []string
	seen := make(map[string]bool)
	for _, file := range req.ChangedFiles {
		if IsTestFile(file) {
			if !seen[file] {
				seen[file] = true
				direct = append(direct, file)
			}
			continue
		}
		for _, cand := range d.CandidatesFor(file) {
			if !seen[cand] {
				seen[cand] = true
				candidates = append(candidates, cand)
			}
		}
	}

	existing, err := d.probe(ctx, candidates)
	if err != nil {
		return nil, false, err
	}
	files := append(direct, existing...)
	if len(files) == 0 {
		return nil, false, nil
	}
	return &Result{
		Pattern:    strings.Join(files, " "),
		Source:     SourceAutoDetected,
		TestFiles:  files,
		Confidence: ConfidenceAutoDetected,
	}, true, nil
}

func resolveModuleBased(_ context.Context, d *Discoverer, req Request) (*Result, bool, error) {
	if len(req.ChangedFiles) == 0 {
		return nil, false, nil
	}
	module := ""
	if req.Feature != nil {
		module = strings.Trim(req.Feature.Module, "/")
	}
	if module == "" {
		module = d.inferModule(req.ChangedFiles)
	}

	pattern := "**/*.test.*"
	if module != "" {
		pattern = "**/" + module + "/**/*.test.*"
	}
	return &Result{
		Pattern:    pattern,
		Source:     SourceModuleBased,
		Confidence: ConfidenceModuleBased,
	}, true, nil
}

func resolveNone(context.Context, *Discoverer, Request) (*Result, bool, error) {
	return noneResult(), true, nil
}

func noneResult() *Result {
	return &Result{Source: SourceNone, Confidence: ConfidenceNone}
}

func normalizeAll(files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if n := pathmatch.Normalize(f); n != "" {
			out = append(out, n)
		}
	}
	return out
}
