package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ExecRunner implements CommandRunner and CheckRunner using os/exec.
type ExecRunner struct {
	workDir string
	// MaxOutput truncates captured check output to the last MaxOutput bytes.
	// Zero means unlimited.
	MaxOutput int
}

// NewRunner creates a runner rooted at workDir.
func NewRunner(workDir string) *ExecRunner {
	return &ExecRunner{workDir: workDir, MaxOutput: 64 * 1024}
}

// Run executes a command and returns its stdout. Stderr is kept apart so
// warnings never mix into parsed output; it is attached to the error.
func (r *ExecRunner) Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.dir(workDir)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}
		return out, err
	}
	return out, nil
}

// RunCheck runs command through the shell in the runner's work directory.
// Any deadline on ctx is applied to the subprocess.
func (r *ExecRunner) RunCheck(ctx context.Context, command string) Outcome {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = r.workDir
	// Grandchildren holding the output pipes must not outlive the deadline.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	outcome := Outcome{Duration: time.Since(start)}

	var combined strings.Builder
	combined.WriteString(stdout.String())
	if stderr.Len() > 0 {
		if combined.Len() > 0 {
			combined.WriteString("\n")
		}
		combined.WriteString(stderr.String())
	}
	outcome.Output = r.truncate(combined.String())

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		outcome.TimedOut = true
		outcome.Output = "Command timed out: " + outcome.Output
		return outcome
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			outcome.Output = "Error running command: " + err.Error() + "\n" + outcome.Output
		}
		return outcome
	}

	outcome.Success = true
	return outcome
}

func (r *ExecRunner) dir(workDir string) string {
	if workDir != "" {
		return workDir
	}
	return r.workDir
}

func (r *ExecRunner) truncate(s string) string {
	if r.MaxOutput <= 0 || len(s) <= r.MaxOutput {
		return s
	}
	return "...(truncated)\n" + s[len(s)-r.MaxOutput:]
}

// Verify ExecRunner implements both interfaces at compile time.
var (
	_ CommandRunner = (*ExecRunner)(nil)
	_ CheckRunner   = (*ExecRunner)(nil)
)
