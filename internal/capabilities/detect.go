package capabilities

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// detector inspects one kind of manifest. It returns nil when the manifest
// is absent or does not describe a usable project.
type detector struct {
	manifest string
	detect   func(root string, data []byte) *Capabilities
}

// detectors are tried in order; the first match wins.
var detectors = []detector{
	{"package.json", detectNode},
	{"pyproject.toml", detectPyproject},
	{"Cargo.toml", detectCargo},
	{"go.mod", detectGo},
	{"Gemfile", detectRuby},
	{"pom.xml", detectMaven},
	{"build.gradle", detectGradle},
	{"build.gradle.kts", detectGradle},
	{"composer.json", detectComposer},
	{"pytest.ini", func(string, []byte) *Capabilities { return pytestCaps() }},
	{"setup.py", func(string, []byte) *Capabilities { return pytestCaps() }},
}

// Detect infers capabilities from the manifests in projectRoot, or returns
// nil when none is recognized.
func Detect(projectRoot string) *Capabilities {
	for _, d := range detectors {
		data, err := os.ReadFile(filepath.Join(projectRoot, d.manifest))
		if err != nil {
			continue
		}
		if caps := d.detect(projectRoot, data); caps != nil {
			caps.Source = d.manifest
			return caps
		}
	}
	return nil
}

func exists(root, name string) bool {
	_, err := os.Stat(filepath.Join(root, name))
	return err == nil
}

type packageJSON struct {
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func (p packageJSON) hasDep(name string) bool {
	_, dep := p.Dependencies[name]
	_, dev := p.DevDependencies[name]
	return dep || dev
}

// packageManager picks the runner from the lockfile present.
func packageManager(root string) string {
	switch {
	case exists(root, "pnpm-lock.yaml"):
		return "pnpm"
	case exists(root, "yarn.lock"):
		return "yarn"
	case exists(root, "bun.lockb"), exists(root, "bun.lock"):
		return "bun"
	default:
		return "npm"
	}
}

func detectNode(root string, data []byte) *Capabilities {
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil
	}
	pm := packageManager(root)
	run := func(script string) string {
		if _, ok := pkg.Scripts[script]; !ok {
			return ""
		}
		if pm == "npm" {
			return "npm run " + script
		}
		return pm + " run " + script
	}

	caps := &Capabilities{}
	for _, fw := range []string{"vitest", "jest", "mocha"} {
		if pkg.hasDep(fw) {
			caps.Framework = fw
			break
		}
	}

	if _, ok := pkg.Scripts["test"]; ok {
		caps.Commands.Test = pm + " test"
	} else if caps.Framework != "" {
		caps.Commands.Test = "npx " + caps.Framework
		if caps.Framework == "vitest" {
			caps.Commands.Test = "npx vitest run"
		}
	}

	caps.Commands.Lint = run("lint")
	caps.Commands.Build = run("build")
	if c := run("typecheck"); c != "" {
		caps.Commands.Typecheck = c
	} else if exists(root, "tsconfig.json") {
		caps.Commands.Typecheck = "npx tsc --noEmit"
	}
	for _, script := range []string{"test:e2e", "e2e"} {
		if c := run(script); c != "" {
			caps.Commands.E2E = c
			break
		}
	}
	if caps.Commands.E2E == "" && pkg.hasDep("@playwright/test") {
		caps.Commands.E2E = "npx playwright test"
		if caps.Framework == "" {
			caps.Framework = "playwright"
		}
	}
	return caps
}

type pyproject struct {
	Project struct {
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
	DependencyGroups map[string][]any `toml:"dependency-groups"`
	Tool             map[string]any   `toml:"tool"`
}

func pytestCaps() *Capabilities {
	return &Capabilities{Framework: "pytest", Commands: Commands{Test: "pytest"}}
}

func detectPyproject(root string, data []byte) *Capabilities {
	var py pyproject
	if err := toml.Unmarshal(data, &py); err != nil {
		return nil
	}

	caps := &Capabilities{}
	if py.usesPytest() || exists(root, "pytest.ini") || exists(root, "conftest.py") {
		caps = pytestCaps()
	} else if exists(root, "tests") {
		caps.Framework = "pytest"
		caps.Commands.Test = "python -m pytest"
	}
	if _, ok := py.Tool["ruff"]; ok {
		caps.Commands.Lint = "ruff check ."
	}
	if _, ok := py.Tool["mypy"]; ok {
		caps.Commands.Typecheck = "mypy ."
	} else if _, ok := py.Tool["pyright"]; ok {
		caps.Commands.Typecheck = "pyright"
	}
	return caps
}

func (p pyproject) usesPytest() bool {
	if _, ok := p.Tool["pytest"]; ok {
		return true
	}
	deps := append([]string{}, p.Project.Dependencies...)
	for _, group := range p.Project.OptionalDependencies {
		deps = append(deps, group...)
	}
	for _, group := range p.DependencyGroups {
		for _, d := range group {
			if s, ok := d.(string); ok {
				deps = append(deps, s)
			}
		}
	}
	for _, d := range deps {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(d)), "pytest") {
			return true
		}
	}
	return containsKey(p.Tool["poetry"], "pytest")
}

// containsKey walks nested TOML tables looking for key.
func containsKey(v any, key string) bool {
	table, ok := v.(map[string]any)
	if !ok {
		return false
	}
	for k, child := range table {
		if k == key || containsKey(child, key) {
			return true
		}
	}
	return false
}

type cargoManifest struct {
	Package   map[string]any `toml:"package"`
	Workspace map[string]any `toml:"workspace"`
}

func detectCargo(_ string, data []byte) *Capabilities {
	var m cargoManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil
	}
	caps := &Capabilities{
		Framework: "cargo",
		Commands: Commands{
			Test:      "cargo test",
			Typecheck: "cargo check",
			Lint:      "cargo clippy -- -D warnings",
			Build:     "cargo build",
		},
	}
	if m.Workspace != nil {
		caps.Commands.Test = "cargo test --workspace"
		caps.Commands.Build = "cargo build --workspace"
	}
	return caps
}

func detectGo(string, []byte) *Capabilities {
	return &Capabilities{
		Framework: "go",
		Commands: Commands{
			Test:  "go test ./...",
			Lint:  "go vet ./...",
			Build: "go build ./...",
		},
	}
}

func detectRuby(_ string, data []byte) *Capabilities {
	if !strings.Contains(string(data), "rspec") {
		return nil
	}
	return &Capabilities{Framework: "rspec", Commands: Commands{Test: "bundle exec rspec"}}
}

func detectMaven(string, []byte) *Capabilities {
	return &Capabilities{
		Framework: "maven",
		Commands:  Commands{Test: "mvn test", Build: "mvn package -DskipTests"},
	}
}

func detectGradle(string, []byte) *Capabilities {
	return &Capabilities{
		Framework: "gradle",
		Commands:  Commands{Test: "gradle test", Build: "gradle build -x test"},
	}
}

func detectComposer(_ string, data []byte) *Capabilities {
	if !strings.Contains(string(data), "phpunit") {
		return nil
	}
	return &Capabilities{Framework: "phpunit", Commands: Commands{Test: "vendor/bin/phpunit"}}
}
