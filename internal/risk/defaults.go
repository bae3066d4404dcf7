// Package risk classifies changes that affect build or tooling configuration
// broadly enough to warrant a full check.
package risk

// DefaultPatterns are matched against changed paths; a pattern without a
// slash matches the base name anywhere in the tree.
var DefaultPatterns = []string{
	// Dependency manifests and lockfiles
	"package.json",
	"package-lock.json",
	"npm-shrinkwrap.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"pnpm-workspace.yaml",
	"bun.lockb",
	"bun.lock",
	"go.mod",
	"go.sum",
	"go.work",
	"Cargo.toml",
	"Cargo.lock",
	"pyproject.toml",
	"poetry.lock",
	"uv.lock",
	"Pipfile",
	"Pipfile.lock",
	"requirements*.txt",
	"setup.py",
	"setup.cfg",
	"Gemfile",
	"Gemfile.lock",
	"composer.json",
	"composer.lock",
	"pom.xml",
	"build.gradle",
	"build.gradle.kts",
	"settings.gradle",
	"settings.gradle.kts",

	// Type-check configuration
	"tsconfig.json",
	"tsconfig.*.json",
	"jsconfig.json",
	"mypy.ini",

	// Lint configuration
	".eslintrc",
	".eslintrc.*",
	"eslint.config.*",
	".prettierrc",
	".prettierrc.*",
	"biome.json",
	".golangci.yml",
	".golangci.yaml",
	"ruff.toml",
	".rubocop.yml",

	// Test and e2e configuration
	"jest.config.*",
	"vitest.config.*",
	"vitest.workspace.*",
	"playwright.config.*",
	"cypress.config.*",
	".mocharc*",
	"pytest.ini",
	"conftest.py",
	"tox.ini",
	"phpunit.xml",
	"phpunit.xml.dist",

	// Build configuration
	"vite.config.*",
	"webpack.config.*",
	"babel.config.*",
	".babelrc",
	"Makefile",

	// Environment
	".env",
	".env.*",
}
