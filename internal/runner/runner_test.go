package runner

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestRunner() *ExecRunner {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewExecRunner(logger)
}

func TestRunCapturesStdout(t *testing.T) {
	out, err := newTestRunner().Run("sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out != "hello\n" {
		t.Errorf("Expected stdout hello, got %q", out)
	}
}

func TestRunFailure(t *testing.T) {
	_, err := newTestRunner().Run("sh", "-c", "echo oops >&2; exit 3")

	var cerr *CommandError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected *CommandError, got %v", err)
	}
	if cerr.ExitCode != 3 {
		t.Errorf("Expected exit code 3, got %d", cerr.ExitCode)
	}
	if strings.TrimSpace(cerr.Stderr) != "oops" {
		t.Errorf("Expected stderr oops, got %q", cerr.Stderr)
	}
	if !strings.Contains(cerr.Error(), "exit code 3") {
		t.Errorf("Unexpected error message: %s", cerr.Error())
	}
}

func TestRunMissingCommand(t *testing.T) {
	_, err := newTestRunner().Run("/nonexistent/diskimg-test-command")

	var cerr *CommandError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected *CommandError, got %v", err)
	}
	if cerr.ExitCode != -1 {
		t.Errorf("Expected exit code -1, got %d", cerr.ExitCode)
	}
}

func TestRunAttachedInDir(t *testing.T) {
	dir := t.TempDir()
	if err := newTestRunner().RunAttached(dir, "sh", "-c", "touch marker"); err != nil {
		t.Fatalf("RunAttached() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "marker")); err != nil {
		t.Errorf("Expected command to run in %s: %v", dir, err)
	}
}

func TestCommandLine(t *testing.T) {
	cerr := &CommandError{
		Name: "parted",
		Args: []string{"--script", "disk.img", "--", "mkpart primary ext4 8MiB 100%", ""},
	}
	want := `parted --script disk.img -- "mkpart primary ext4 8MiB 100%" ""`
	if got := cerr.CommandLine(); got != want {
		t.Errorf("CommandLine() = %s, want %s", got, want)
	}
}
