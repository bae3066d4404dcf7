package risk

import (
	"os"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/gauntlet/internal/pathmatch"
)

// Finding is one changed file that triggered escalation.
type Finding struct {
	File    string `json:"file"`
	Pattern string `json:"pattern"`
}

// Detector classifies changed files as high risk.
type Detector struct {
	patterns []string
	ignore   []string
	mu       sync.RWMutex
}

// projectConfig is the risk section of .gauntlet.yaml.
type projectConfig struct {
	Risk struct {
		Patterns []string `yaml:"patterns"`
		Ignore   []string `yaml:"ignore"`
	} `yaml:"risk"`
}

// New creates a detector with DefaultPatterns.
func New() *Detector {
	return &Detector{
		patterns: append([]string{}, DefaultPatterns...),
	}
}

// AddPattern adds a high-risk pattern.
func (d *Detector) AddPattern(pattern string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patterns = append(d.patterns, pattern)
}

// Ignore excludes paths matching pattern even when a risk pattern matches.
func (d *Detector) Ignore(pattern string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ignore = append(d.ignore, pattern)
}

// LoadConfig merges the risk section of a project config file.
func (d *Detector) LoadConfig(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	var cfg projectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.patterns = append(d.patterns, cfg.Risk.Patterns...)
	d.ignore = append(d.ignore, cfg.Risk.Ignore...)
	return nil
}

// Classify returns one finding per high-risk file, in input order.
func (d *Detector) Classify(files []string) []Finding {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var findings []Finding
	seen := make(map[string]bool)
	for _, f := range files {
		file := pathmatch.Normalize(f)
		if file == "" || seen[file] {
			continue
		}
		seen[file] = true
		if d.ignored(file) {
			continue
		}
		for _, p := range d.patterns {
			if pathmatch.Match(p, file) {
				findings = append(findings, Finding{File: file, Pattern: p})
				break
			}
		}
	}
	return findings
}

// IsHighRisk reports whether any file is high risk.
func (d *Detector) IsHighRisk(files []string) bool {
	return len(d.Classify(files)) > 0
}

func (d *Detector) ignored(file string) bool {
	for _, p := range d.ignore {
		if pathmatch.Match(p, file) {
			return true
		}
	}
	return false
}

// IsHighRiskChange classifies files against DefaultPatterns. An empty set is
// never high risk.
func IsHighRiskChange(files []string) bool {
	return New().IsHighRisk(files)
}
