// Package capabilities describes what a project can run: its test framework,
// its check commands and any learned selective-test templates.
package capabilities

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/gauntlet/internal/testcmd"
	"github.com/ShayCichocki/gauntlet/pkg/models"
)

// ErrNoCapabilities is returned by Load when nothing could be detected.
var ErrNoCapabilities = errors.New("no project capabilities detected")

// Commands are the shell commands for each automated check. Empty means the
// check is not configured.
type Commands struct {
	Test      string `yaml:"test,omitempty" json:"test,omitempty"`
	Typecheck string `yaml:"typecheck,omitempty" json:"typecheck,omitempty"`
	Lint      string `yaml:"lint,omitempty" json:"lint,omitempty"`
	Build     string `yaml:"build,omitempty" json:"build,omitempty"`
	E2E       string `yaml:"e2e,omitempty" json:"e2e,omitempty"`
}

// For returns the command for a check type.
func (c Commands) For(t models.CheckType) string {
	switch t {
	case models.CheckTest:
		return c.Test
	case models.CheckTypecheck:
		return c.Typecheck
	case models.CheckLint:
		return c.Lint
	case models.CheckBuild:
		return c.Build
	case models.CheckE2E:
		return c.E2E
	default:
		return ""
	}
}

// Merge returns c with every non-empty field of override applied.
func (c Commands) Merge(override Commands) Commands {
	if override.Test != "" {
		c.Test = override.Test
	}
	if override.Typecheck != "" {
		c.Typecheck = override.Typecheck
	}
	if override.Lint != "" {
		c.Lint = override.Lint
	}
	if override.Build != "" {
		c.Build = override.Build
	}
	if override.E2E != "" {
		c.E2E = override.E2E
	}
	return c
}

// Capabilities is the project capabilities document.
type Capabilities struct {
	// Framework is the test framework identifier, e.g. "vitest" or "pytest".
	Framework string   `yaml:"framework,omitempty" json:"framework,omitempty"`
	Commands  Commands `yaml:"commands" json:"commands"`
	// LearnedTemplates is present only when captured by a discovery step.
	LearnedTemplates *testcmd.LearnedTemplates `yaml:"learnedTemplates,omitempty" json:"learnedTemplates,omitempty"`
	// Source records where the document came from ("file" or a manifest name).
	Source string `yaml:"-" json:"source,omitempty"`
}

// HasTests reports whether the project has a test command.
func (c *Capabilities) HasTests() bool {
	return c != nil && c.Commands.Test != ""
}

// Path returns the capabilities file location for a project root.
func Path(projectRoot string) string {
	return filepath.Join(projectRoot, ".gauntlet", "capabilities.yaml")
}

// Load reads the capabilities file, falling back to manifest detection when
// the file is absent. Partial learned templates are dropped.
func Load(projectRoot string) (*Capabilities, error) {
	data, err := os.ReadFile(Path(projectRoot))
	if errors.Is(err, os.ErrNotExist) {
		caps := Detect(projectRoot)
		if caps == nil {
			return nil, ErrNoCapabilities
		}
		return caps, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read capabilities: %w", err)
	}

	var caps Capabilities
	if err := yaml.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("parse capabilities: %w", err)
	}
	if !caps.LearnedTemplates.Usable() {
		caps.LearnedTemplates = nil
	}
	caps.Source = "file"
	return &caps, nil
}

// Save writes caps to the project capabilities file.
func Save(projectRoot string, caps *Capabilities) error {
	path := Path(projectRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create capabilities directory: %w", err)
	}
	data, err := yaml.Marshal(caps)
	if err != nil {
		return fmt.Errorf("marshal capabilities: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write capabilities: %w", err)
	}
	return nil
}
