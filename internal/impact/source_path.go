package impact

import (
	"strings"

	"github.com/ShayCichocki/gauntlet/internal/pathmatch"
)

// SourceRoot is the directory prepended to derived source paths.
const SourceRoot = "src/"

// testRoots are stripped from the front of a test pattern.
var testRoots = []string{"tests/", "test/", "__tests__/", "spec/"}

// testMarkers are removed from the base name, keeping the extension.
var testMarkers = []string{".test.", ".spec.", "_test.", "_spec."}

// TestPatternToSourcePath guesses the source path a test pattern covers.
// It strips a leading test root, removes test/spec markers from the base
// name, and places the result under SourceRoot:
//
//	tests/auth/login.test.ts   -> src/auth/login.ts
//	tests/auth/**/*.test.*     -> src/auth/**/*.*
//	tests/test_login.py        -> src/login.py
//
// This is textual and approximate; it knows nothing about the build graph.
// Patterns already under SourceRoot (co-located tests) keep their directory.
func TestPatternToSourcePath(pattern string) string {
	p := pathmatch.Normalize(pattern)
	for _, root := range testRoots {
		if strings.HasPrefix(p, root) {
			p = strings.TrimPrefix(p, root)
			break
		}
	}

	dir, base := "", p
	if i := strings.LastIndex(p, "/"); i >= 0 {
		dir, base = p[:i+1], p[i+1:]
	}

	for _, marker := range testMarkers {
		if i := strings.LastIndex(base, marker); i >= 0 {
			base = base[:i] + "." + base[i+len(marker):]
			break
		}
	}
	if strings.HasPrefix(base, "test_") && len(base) > len("test_") {
		base = strings.TrimPrefix(base, "test_")
	}

	p = dir + base
	if strings.HasPrefix(p, SourceRoot) {
		return p
	}
	return SourceRoot + p
}
