package git

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ShayCichocki/gauntlet/internal/exec"
)

// ExecRunner implements Runner using the git binary.
type ExecRunner struct {
	repoPath string
	cmd      exec.CommandRunner
	debugLog func(format string, args ...interface{})
}

// NewRunner creates a new git runner for the repository at the given path.
// Commands go through cmd.
func NewRunner(repoPath string, cmd exec.CommandRunner) *ExecRunner {
	return &ExecRunner{
		repoPath: repoPath,
		cmd:      cmd,
		debugLog: func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (r *ExecRunner) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		r.debugLog = fn
	}
}

// run executes a git command and returns its stdout, trimmed.
func (r *ExecRunner) run(ctx context.Context, args ...string) (string, error) {
	out, err := r.runRaw(ctx, args...)
	return strings.TrimSpace(out), err
}

func (r *ExecRunner) runRaw(ctx context.Context, args ...string) (string, error) {
	out, err := r.cmd.Run(ctx, r.repoPath, "git", args...)
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// ChangedFiles returns the union of staged, unstaged, untracked and
// last-commit changes. Outside a repository it returns an empty list. A
// missing HEAD~1 (single-commit history) only drops the last-commit part.
func (r *ExecRunner) ChangedFiles(ctx context.Context) []string {
	if _, err := r.run(ctx, "rev-parse", "--is-inside-work-tree"); err != nil {
		r.debugLog("[git] not a work tree: %v", err)
		return []string{}
	}

	// -z keeps non-ASCII paths unquoted.
	queries := [][]string{
		{"diff", "--name-only", "-z", "--cached"},
		{"diff", "--name-only", "-z"},
		{"ls-files", "-z", "--others", "--exclude-standard"},
		{"diff", "--name-only", "-z", "HEAD~1", "HEAD"},
	}

	files := []string{}
	seen := make(map[string]bool)
	for _, args := range queries {
		out, err := r.runRaw(ctx, args...)
		if err != nil {
			r.debugLog("[git] %v", err)
			continue
		}
		for _, path := range strings.Split(out, "\x00") {
			if path == "" || seen[path] {
				continue
			}
			seen[path] = true
			files = append(files, path)
		}
	}
	return files
}

// CommitHash returns the full HEAD hash, or UnknownCommit.
func (r *ExecRunner) CommitHash(ctx context.Context) string {
	out, err := r.run(ctx, "rev-parse", "HEAD")
	if err != nil || out == "" {
		return UnknownCommit
	}
	return out
}

// DiffSummary returns `git diff --stat HEAD` limited to files.
func (r *ExecRunner) DiffSummary(ctx context.Context, files []string) string {
	out, err := r.run(ctx, pathArgs([]string{"diff", "--stat", "HEAD"}, files)...)
	if err != nil {
		r.debugLog("[git] diff summary: %v", err)
		return ""
	}
	return out
}

// Diff returns `git diff HEAD` limited to files.
func (r *ExecRunner) Diff(ctx context.Context, files []string, maxBytes int) string {
	out, err := r.run(ctx, pathArgs([]string{"diff", "HEAD"}, files)...)
	if err != nil {
		r.debugLog("[git] diff: %v", err)
		return ""
	}
	return truncateDiff(out, maxBytes)
}

// truncateDiff cuts s to at most maxBytes without splitting a rune.
func truncateDiff(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (diff truncated)"
}

func pathArgs(args, files []string) []string {
	if len(files) == 0 {
		return args
	}
	return append(append(args, "--"), files...)
}

// Verify ExecRunner implements Runner at compile time.
var _ Runner = (*ExecRunner)(nil)
