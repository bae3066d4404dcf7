package discovery

import (
	"path"
	"regexp"
	"strings"
)

// SourceRoots are directory names that conventionally hold source code.
// Module inference and parallel test-root mirroring both key off them.
var SourceRoots = []string{"src", "lib", "app", "pkg", "internal", "packages"}

// TestRoots are top-level directories that mirror the source tree.
var TestRoots = []string{"tests", "test", "__tests__", "spec"}

// SourceFile is a changed source path broken into the parts conventions need.
type SourceFile struct {
	// Dir is the directory, without a trailing slash ("" at the root).
	Dir string
	// Stem is the base name without extension.
	Stem string
	// Ext includes the leading dot.
	Ext string
	// RelDir is Dir with a leading source root removed.
	RelDir string
}

// ParseSourceFile splits a workspace-relative path.
func ParseSourceFile(p string) SourceFile {
	dir, base := path.Split(p)
	dir = strings.TrimSuffix(dir, "/")
	ext := path.Ext(base)
	sf := SourceFile{Dir: dir, Stem: strings.TrimSuffix(base, ext), Ext: ext, RelDir: dir}
	for _, root := range SourceRoots {
		if dir == root {
			sf.RelDir = ""
			break
		}
		if strings.HasPrefix(dir, root+"/") {
			sf.RelDir = strings.TrimPrefix(dir, root+"/")
			break
		}
	}
	return sf
}

// Convention generates candidate test paths for a source file.
type Convention struct {
	Name string
	// Exts limits the convention to these extensions; empty means any.
	Exts       []string
	Candidates func(sf SourceFile) []string
}

func (c Convention) applies(ext string) bool {
	if len(c.Exts) == 0 {
		return true
	}
	for _, e := range c.Exts {
		if e == ext {
			return true
		}
	}
	return false
}

func join(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}

// DefaultConventions covers JS/TS sibling and __tests__ layouts, parallel
// test roots, and the Python, Go and Ruby naming rules.
func DefaultConventions() []Convention {
	return []Convention{
		{
			Name: "sibling",
			Candidates: func(sf SourceFile) []string {
				return []string{
					join(sf.Dir, sf.Stem+".test"+sf.Ext),
					join(sf.Dir, sf.Stem+".spec"+sf.Ext),
				}
			},
		},
		{
			Name: "nested",
			Candidates: func(sf SourceFile) []string {
				return []string{
					join(sf.Dir, "__tests__", sf.Stem+".test"+sf.Ext),
					join(sf.Dir, "__tests__", sf.Stem+".spec"+sf.Ext),
					join(sf.Dir, "__tests__", sf.Stem+sf.Ext),
				}
			},
		},
		{
			Name: "parallel-root",
			Candidates: func(sf SourceFile) []string {
				var out []string
				for _, root := range TestRoots {
					out = append(out,
						join(root, sf.RelDir, sf.Stem+".test"+sf.Ext),
						join(root, sf.RelDir, sf.Stem+".spec"+sf.Ext),
					)
				}
				return out
			},
		},
		{
			Name: "python",
			Exts: []string{".py"},
			Candidates: func(sf SourceFile) []string {
				return []string{
					join(sf.Dir, "test_"+sf.Stem+sf.Ext),
					join(sf.Dir, sf.Stem+"_test"+sf.Ext),
					join("tests", sf.RelDir, "test_"+sf.Stem+sf.Ext),
					join("tests", "test_"+sf.Stem+sf.Ext),
					join("test", sf.RelDir, "test_"+sf.Stem+sf.Ext),
				}
			},
		},
		{
			Name: "go",
			Exts: []string{".go"},
			Candidates: func(sf SourceFile) []string {
				return []string{join(sf.Dir, sf.Stem+"_test"+sf.Ext)}
			},
		},
		{
			Name: "ruby",
			Exts: []string{".rb"},
			Candidates: func(sf SourceFile) []string {
				return []string{
					join("spec", sf.RelDir, sf.Stem+"_spec"+sf.Ext),
					join("test", sf.RelDir, sf.Stem+"_test"+sf.Ext),
				}
			},
		},
	}
}

var testFileName = regexp.MustCompile(`([._](test|spec)\.[A-Za-z0-9]+$)|(^test_.+\.py$)`)

// IsTestFile reports whether p looks like a test file by name or location.
func IsTestFile(p string) bool {
	base := path.Base(p)
	if testFileName.MatchString(base) {
		return true
	}
	return strings.HasPrefix(p, "__tests__/") || strings.Contains(p, "/__tests__/")
}

// ModuleInferrer extracts a module name from a set of changed files.
// It returns "" when no module can be inferred.
type ModuleInferrer func(changed []string) string

// InferModuleFromSourceRoot returns the first path segment after a
// conventional source root in the first changed file that has one, e.g.
// "src/auth/login.ts" -> "auth". Best effort; deep or unusual layouts may
// yield the wrong module.
func InferModuleFromSourceRoot(changed []string) string {
	for _, c := range changed {
		segments := strings.Split(c, "/")
		for i := 0; i < len(segments)-2; i++ {
			for _, root := range SourceRoots {
				if segments[i] == root {
					return segments[i+1]
				}
			}
		}
	}
	return ""
}
