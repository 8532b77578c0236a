// Package runner executes the external tools that partition, format and
// mount disk images.
package runner

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Runner runs external commands.
type Runner interface {
	// Run executes a command and returns its standard output.
	Run(name string, args ...string) (string, error)

	// RunAttached executes a command connected to the caller's terminal,
	// in dir when dir is not empty.
	RunAttached(dir, name string, args ...string) error
}

// CommandError describes a command that could not be run or exited with a
// non-zero status.
type CommandError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed", e.CommandLine())
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s with exit code %d", msg, e.ExitCode)
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, stderr)
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// CommandLine renders the command with arguments quoted where needed.
func (e *CommandError) CommandLine() string {
	parts := []string{quote(e.Name)}
	for _, arg := range e.Args {
		parts = append(parts, quote(arg))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\n\"") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger logrus.FieldLogger
}

func NewExecRunner(logger logrus.FieldLogger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

func (r *ExecRunner) Run(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debugf("running: %s %s", name, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		cerr := newCommandError(name, args, err)
		cerr.Stderr = stderr.String()
		r.logger.WithError(err).Debugf("command failed: %s\nstdout: %s\nstderr: %s", name, stdout.String(), stderr.String())
		return stdout.String(), cerr
	}
	return stdout.String(), nil
}

func (r *ExecRunner) RunAttached(dir, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	r.logger.Debugf("running in %q: %s %s", dir, name, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return newCommandError(name, args, err)
	}
	return nil
}

func newCommandError(name string, args []string, err error) *CommandError {
	cerr := &CommandError{Name: name, Args: args, ExitCode: -1, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitCode = exitErr.ExitCode()
	}
	return cerr
}
