// Package pathmatch matches workspace-relative paths against glob patterns
// with ** support.
package pathmatch

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Normalize converts a path to forward slashes and drops a leading "./".
func Normalize(p string) string {
	p = filepath.ToSlash(strings.TrimSpace(p))
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}

// Match reports whether file matches pattern. A pattern without a slash is
// also tried against the file's base name, so "*.sql" matches
// "migrations/001_init.sql". Malformed patterns never match.
func Match(pattern, file string) bool {
	pattern = Normalize(pattern)
	file = Normalize(file)
	if pattern == "" || file == "" {
		return false
	}

	if ok, err := doublestar.Match(pattern, file); err == nil && ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		if ok, err := doublestar.Match(pattern, path.Base(file)); err == nil && ok {
			return true
		}
	}
	return false
}

// MatchAny returns the files that match at least one pattern, in input order
// and without duplicates.
func MatchAny(patterns, files []string) []string {
	var matched []string
	seen := make(map[string]bool)
	for _, file := range files {
		if seen[file] {
			continue
		}
		for _, pattern := range patterns {
			if Match(pattern, file) {
				seen[file] = true
				matched = append(matched, file)
				break
			}
		}
	}
	return matched
}

// Valid reports whether pattern is a well-formed glob.
func Valid(pattern string) bool {
	return doublestar.ValidatePattern(Normalize(pattern))
}
