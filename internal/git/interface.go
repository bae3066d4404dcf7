// Package git provides the version-control queries the checker needs.
package git

import "context"

// UnknownCommit is returned by CommitHash when HEAD cannot be resolved.
const UnknownCommit = "unknown"

// Runner defines the version-control collaborator. Implementations never
// fail: errors degrade to empty values.
type Runner interface {
	// ChangedFiles returns staged, unstaged, untracked and last-commit
	// changes, deduplicated. It returns an empty list on any git error.
	ChangedFiles(ctx context.Context) []string
	// CommitHash returns the HEAD commit, or UnknownCommit.
	CommitHash(ctx context.Context) string
	// DiffSummary returns a --stat summary for files against HEAD.
	DiffSummary(ctx context.Context, files []string) string
	// Diff returns the patch for files against HEAD, truncated to maxBytes
	// when maxBytes > 0.
	Diff(ctx context.Context, files []string, maxBytes int) string
}
