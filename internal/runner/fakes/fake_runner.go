// Package fakes provides a scripted Runner for tests.
package fakes

import (
	"strings"

	"github.com/larsks/diskimg/internal/runner"
)

// FakeResult is what a FakeRunner returns for one command line.
type FakeResult struct {
	Stdout string
	Err    error

	// Sideeffect runs before the result is returned, e.g. to create the
	// files a real command would.
	Sideeffect func() error
}

// FakeCommand is one recorded invocation.
type FakeCommand struct {
	Dir      string
	Name     string
	Args     []string
	Attached bool
}

func (c FakeCommand) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

type FakeRunner struct {
	Commands []FakeCommand

	results map[string][]FakeResult
}

var _ runner.Runner = (*FakeRunner)(nil)

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{results: map[string][]FakeResult{}}
}

// AddResult queues a result for the command line (name and arguments joined
// by single spaces). Queued results are used in order; the last one repeats.
func (r *FakeRunner) AddResult(cmdline string, result FakeResult) {
	r.results[cmdline] = append(r.results[cmdline], result)
}

func (r *FakeRunner) Run(name string, args ...string) (string, error) {
	return r.record(FakeCommand{Name: name, Args: args})
}

func (r *FakeRunner) RunAttached(dir, name string, args ...string) error {
	_, err := r.record(FakeCommand{Dir: dir, Name: name, Args: args, Attached: true})
	return err
}

func (r *FakeRunner) record(cmd FakeCommand) (string, error) {
	r.Commands = append(r.Commands, cmd)

	queue := r.results[cmd.String()]
	if len(queue) == 0 {
		return "", nil
	}
	result := queue[0]
	if len(queue) > 1 {
		r.results[cmd.String()] = queue[1:]
	}

	if result.Sideeffect != nil {
		if err := result.Sideeffect(); err != nil {
			return "", err
		}
	}
	return result.Stdout, result.Err
}

// CommandLines returns every recorded invocation as a command line.
func (r *FakeRunner) CommandLines() []string {
	lines := make([]string, 0, len(r.Commands))
	for _, cmd := range r.Commands {
		lines = append(lines, cmd.String())
	}
	return lines
}

// Ran reports whether cmdline was invoked.
func (r *FakeRunner) Ran(cmdline string) bool {
	for _, cmd := range r.Commands {
		if cmd.String() == cmdline {
			return true
		}
	}
	return false
}
