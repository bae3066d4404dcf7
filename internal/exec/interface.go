// Package exec runs external commands for automated checks.
package exec

import (
	"context"
	"time"
)

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and returns its stdout. On failure the returned
	// error carries the trimmed stderr. The working directory is set to
	// workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (stdout []byte, err error)
}

// Outcome is the result of running one check command. A nonzero exit is
// Success=false, never an error.
type Outcome struct {
	Success  bool
	Duration time.Duration
	Output   string
	// TimedOut is set when the caller's deadline expired.
	TimedOut bool
}

// CheckRunner executes check command strings.
type CheckRunner interface {
	RunCheck(ctx context.Context, command string) Outcome
}
