package exec

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunCheck_Success(t *testing.T) {
	r := NewRunner(t.TempDir())

	outcome := r.RunCheck(context.Background(), "echo hello")

	if !outcome.Success {
		t.Fatalf("expected success, output: %s", outcome.Output)
	}
	if !strings.Contains(outcome.Output, "hello") {
		t.Errorf("output = %q, want it to contain hello", outcome.Output)
	}
	if outcome.Duration <= 0 {
		t.Error("expected a positive duration")
	}
}

func TestRunCheck_NonzeroExitIsData(t *testing.T) {
	r := NewRunner(t.TempDir())

	outcome := r.RunCheck(context.Background(), "echo broken >&2; exit 3")

	if outcome.Success {
		t.Fatal("expected failure")
	}
	if outcome.TimedOut {
		t.Error("did not expect a timeout")
	}
	if !strings.Contains(outcome.Output, "broken") {
		t.Errorf("stderr not captured: %q", outcome.Output)
	}
}

func TestRunCheck_Timeout(t *testing.T) {
	r := NewRunner(t.TempDir())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	outcome := r.RunCheck(ctx, "sleep 5")

	if outcome.Success {
		t.Fatal("expected failure on timeout")
	}
	if !outcome.TimedOut {
		t.Error("expected TimedOut")
	}
}

func TestRunCheck_RunsInWorkDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	r := NewRunner(dir)

	outcome := r.RunCheck(context.Background(), "test -f marker")

	if !outcome.Success {
		t.Errorf("command did not run in %s: %q", dir, outcome.Output)
	}
}

func TestTruncate(t *testing.T) {
	r := &ExecRunner{MaxOutput: 4}
	if got := r.truncate("abcdefgh"); got != "...(truncated)\nefgh" {
		t.Errorf("truncate = %q", got)
	}
	if got := r.truncate("abc"); got != "abc" {
		t.Errorf("truncate short = %q", got)
	}
}

func TestRun_StdoutOnly(t *testing.T) {
	r := NewRunner(t.TempDir())

	out, err := r.Run(context.Background(), "", "sh", "-c", "echo data; echo noise >&2")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := string(out); got != "data\n" {
		t.Errorf("stdout = %q, want %q", got, "data\n")
	}
}

func TestRun_ErrorCarriesStderr(t *testing.T) {
	r := NewRunner(t.TempDir())

	_, err := r.Run(context.Background(), "", "sh", "-c", "echo bad ref >&2; exit 128")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "bad ref") {
		t.Errorf("error %q does not carry stderr", err)
	}
}

func TestRun_WorkDirOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	r := NewRunner(t.TempDir())

	if _, err := r.Run(context.Background(), dir, "test", "-f", "marker"); err != nil {
		t.Errorf("Run did not use workDir %s: %v", dir, err)
	}
}
