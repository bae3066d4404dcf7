package pathmatch

import (
	"reflect"
	"testing"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		pattern  string
		expected bool
	}{
		{"double star matches deep path", "a/b/c/d/file.go", "**/c/**", true},
		{"double star at start", "internal/auth/login.go", "**/auth/**", true},
		{"double star at end", "migrations/001_init.sql", "migrations/**", true},
		{"literal match", "config/settings.yaml", "config/settings.yaml", true},
		{"single star in segment", "internal/auth_handler.go", "internal/auth*", true},
		{"no match - different path", "api/handler.go", "**/auth/**", false},
		{"module glob matches top level dir", "auth/login.ts", "**/auth/**/*", true},
		{"affectedBy glob", "src/auth/login.ts", "src/auth/**/*", true},
		{"base name fallback", "migrations/001_init.sql", "*.sql", true},
		{"no base name fallback when pattern has slash", "deep/migrations/x.sql", "migrations/*.sql", false},
		{"leading dot slash is ignored", "./src/app.ts", "src/*.ts", true},
		{"empty pattern", "src/app.ts", "", false},
		{"malformed pattern", "src/app.ts", "src/[", false},
		{"brace alternatives", "src/app.tsx", "src/*.{ts,tsx}", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Match(tc.pattern, tc.path); got != tc.expected {
				t.Errorf("Match(%q, %q) = %v, expected %v", tc.pattern, tc.path, got, tc.expected)
			}
		})
	}
}

func TestMatchAny(t *testing.T) {
	files := []string{"src/a.ts", "docs/readme.md", "src/a.ts", "src/b.ts"}
	got := MatchAny([]string{"src/**/*.ts", "*.md"}, files)
	want := []string{"src/a.ts", "docs/readme.md", "src/b.ts"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MatchAny() = %v, want %v", got, want)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("./././src/x.go"); got != "src/x.go" {
		t.Errorf("Normalize() = %q", got)
	}
}
