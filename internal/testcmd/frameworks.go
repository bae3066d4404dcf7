package testcmd

import (
	"path"
	"strings"
)

// Framework describes how one test runner expresses a selective run.
// Either function may return "" when it cannot express the selection.
type Framework struct {
	Name string
	// Files runs exactly the given test files.
	Files func(files []string) string
	// Pattern runs tests whose name matches pattern.
	Pattern func(pattern string) string
}

// Frameworks is the lookup table keyed by framework identifier. Adding a
// runner is a new entry here.
var Frameworks = map[string]Framework{
	"vitest": {
		Name:    "vitest",
		Files:   prefixed("npx vitest run"),
		Pattern: flagged("npx vitest run -t"),
	},
	"jest": {
		Name:    "jest",
		Files:   prefixed("npx jest"),
		Pattern: flagged("npx jest -t"),
	},
	"mocha": {
		Name:    "mocha",
		Files:   prefixed("npx mocha"),
		Pattern: flagged("npx mocha --grep"),
	},
	"playwright": {
		Name:    "playwright",
		Files:   prefixed("npx playwright test"),
		Pattern: flagged("npx playwright test -g"),
	},
	"pytest": {
		Name:    "pytest",
		Files:   prefixed("pytest"),
		Pattern: flagged("pytest -k"),
	},
	"go": {
		Name:    "go",
		Files:   goPackages,
		Pattern: func(p string) string { return "go test ./... -run " + quote(p) },
	},
	"cargo": {
		Name:    "cargo",
		Files:   cargoIntegrationTests,
		Pattern: flagged("cargo test"),
	},
	"rspec": {
		Name:    "rspec",
		Files:   prefixed("bundle exec rspec"),
		Pattern: flagged("bundle exec rspec -e"),
	},
	"maven": {
		Name:    "maven",
		Files:   javaClasses("mvn test -Dtest=", ","),
		Pattern: func(p string) string { return "mvn test -Dtest=" + quote(p) },
	},
	"gradle": {
		Name:    "gradle",
		Files:   javaClasses("gradle test --tests ", " --tests "),
		Pattern: flagged("gradle test --tests"),
	},
	"phpunit": {
		Name:    "phpunit",
		Files:   prefixed("vendor/bin/phpunit"),
		Pattern: flagged("vendor/bin/phpunit --filter"),
	},
}

// frameworkAliases maps alternate identifiers onto table keys.
var frameworkAliases = map[string]string{
	"junit":           "maven",
	"golang":          "go",
	"go-test":         "go",
	"rust":            "cargo",
	"py.test":         "pytest",
	"playwright-test": "playwright",
}

// Lookup returns the table entry for a framework identifier.
func Lookup(name string) (Framework, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := frameworkAliases[key]; ok {
		key = alias
	}
	fw, ok := Frameworks[key]
	return fw, ok
}

func prefixed(base string) func([]string) string {
	return func(files []string) string {
		return base + " " + quoteAll(files)
	}
}

func flagged(base string) func(string) string {
	return func(p string) string {
		return base + " " + quote(p)
	}
}

// goPackages runs the packages containing the files.
func goPackages(files []string) string {
	var pkgs []string
	seen := make(map[string]bool)
	for _, f := range files {
		dir := path.Dir(f)
		pkg := "./" + dir
		if dir == "." {
			pkg = "."
		}
		if !seen[pkg] {
			seen[pkg] = true
			pkgs = append(pkgs, pkg)
		}
	}
	return "go test " + quoteAll(pkgs)
}

// cargoIntegrationTests selects targets under tests/. Unit tests live inside
// source modules and cannot be selected by file.
func cargoIntegrationTests(files []string) string {
	var args []string
	for _, f := range files {
		if !strings.HasPrefix(f, "tests/") || path.Ext(f) != ".rs" {
			continue
		}
		args = append(args, "--test", quote(strings.TrimSuffix(path.Base(f), ".rs")))
	}
	if len(args) == 0 {
		return ""
	}
	return "cargo test " + strings.Join(args, " ")
}

func javaClasses(prefix, sep string) func([]string) string {
	return func(files []string) string {
		var classes []string
		for _, f := range files {
			base := path.Base(f)
			classes = append(classes, quote(strings.TrimSuffix(base, path.Ext(base))))
		}
		return prefix + strings.Join(classes, sep)
	}
}
