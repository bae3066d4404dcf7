package capabilities

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/gauntlet/internal/testcmd"
	"github.com/ShayCichocki/gauntlet/pkg/models"
)

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDetect_NodeWithVitest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{
  "scripts": {"test": "vitest run", "lint": "eslint .", "build": "vite build", "test:e2e": "playwright test"},
  "devDependencies": {"vitest": "^1.0.0", "@playwright/test": "^1.40.0"}
}`)
	writeFile(t, root, "pnpm-lock.yaml", "")
	writeFile(t, root, "tsconfig.json", "{}")

	caps := Detect(root)
	require.NotNil(t, caps)
	assert.Equal(t, "vitest", caps.Framework)
	assert.Equal(t, "package.json", caps.Source)
	assert.Equal(t, "pnpm test", caps.Commands.Test)
	assert.Equal(t, "pnpm run lint", caps.Commands.Lint)
	assert.Equal(t, "pnpm run build", caps.Commands.Build)
	assert.Equal(t, "pnpm run test:e2e", caps.Commands.E2E)
	assert.Equal(t, "npx tsc --noEmit", caps.Commands.Typecheck)
}

func TestDetect_NodeWithoutTestScript(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"devDependencies": {"jest": "^29.0.0"}}`)

	caps := Detect(root)
	require.NotNil(t, caps)
	assert.Equal(t, "jest", caps.Framework)
	assert.Equal(t, "npx jest", caps.Commands.Test)
	assert.Empty(t, caps.Commands.Typecheck)
}

func TestDetect_Pyproject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pyproject.toml", `
[project]
name = "svc"
dependencies = ["fastapi"]

[project.optional-dependencies]
dev = ["pytest>=8", "ruff"]

[tool.ruff]
line-length = 100

[tool.mypy]
strict = true
`)

	caps := Detect(root)
	require.NotNil(t, caps)
	assert.Equal(t, "pytest", caps.Framework)
	assert.Equal(t, "pytest", caps.Commands.Test)
	assert.Equal(t, "ruff check .", caps.Commands.Lint)
	assert.Equal(t, "mypy .", caps.Commands.Typecheck)
}

func TestDetect_PoetryPytest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pyproject.toml", `
[tool.poetry.group.dev.dependencies]
pytest = "^8.0"
`)

	caps := Detect(root)
	require.NotNil(t, caps)
	assert.Equal(t, "pytest", caps.Commands.Test)
}

func TestDetect_CargoWorkspace(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Cargo.toml", `
[workspace]
members = ["core", "cli"]
`)

	caps := Detect(root)
	require.NotNil(t, caps)
	assert.Equal(t, "cargo", caps.Framework)
	assert.Equal(t, "cargo test --workspace", caps.Commands.Test)
	assert.Equal(t, "cargo check", caps.Commands.Typecheck)
}

func TestDetect_Precedence(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/x\n")
	writeFile(t, root, "package.json", `{"scripts": {"test": "node test.js"}}`)

	caps := Detect(root)
	require.NotNil(t, caps)
	assert.Equal(t, "package.json", caps.Source)
	assert.Equal(t, "npm test", caps.Commands.Test)
}

func TestDetect_SkipsUnrecognizedManifest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Gemfile", `gem "rails"`)
	assert.Nil(t, Detect(root))

	writeFile(t, root, "go.mod", "module example.com/x\n")
	caps := Detect(root)
	require.NotNil(t, caps)
	assert.Equal(t, "go", caps.Framework)
}

func TestLoad_FileOverridesDetection(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/x\n")
	writeFile(t, root, ".gauntlet/capabilities.yaml", `
framework: vitest
commands:
  test: npm test
  lint: npm run lint
learnedTemplates:
  files: npx vitest run {files}
`)

	caps, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "file", caps.Source)
	assert.Equal(t, "vitest", caps.Framework)
	assert.Equal(t, "npm run lint", caps.Commands.Lint)
	assert.Nil(t, caps.LearnedTemplates, "partial templates are dropped")
}

func TestLoad_NothingDetected(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorIs(t, err, ErrNoCapabilities)
}

func TestLoad_InvalidYAML(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gauntlet/capabilities.yaml", "commands: [unterminated")

	_, err := Load(root)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	caps := &Capabilities{
		Framework: "pytest",
		Commands:  Commands{Test: "pytest"},
		LearnedTemplates: &testcmd.LearnedTemplates{
			Files:   "pytest {files}",
			Pattern: "pytest -k {pattern}",
		},
	}
	require.NoError(t, Save(root, caps))

	loaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, caps.Commands, loaded.Commands)
	assert.True(t, loaded.LearnedTemplates.Usable())
}

func TestCommands_MergeAndFor(t *testing.T) {
	base := Commands{Test: "npm test", Lint: "npm run lint"}
	merged := base.Merge(Commands{Lint: "eslint .", E2E: "npx playwright test"})

	assert.Equal(t, "npm test", merged.For(models.CheckTest))
	assert.Equal(t, "eslint .", merged.For(models.CheckLint))
	assert.Equal(t, "npx playwright test", merged.For(models.CheckE2E))
	assert.Empty(t, merged.For(models.CheckBuild))
	assert.Empty(t, merged.For(models.CheckType("unknown")))
}
