package exec

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// FakeRunner implements CommandRunner for testing without executing anything.
// Results are keyed by the space-joined command line; every invocation is
// recorded in Calls. For expectation-based testing use MockCommandRunner.
type FakeRunner struct {
	Results map[string]CommandResult
	Calls   []string

	// Fallback, when set, answers command lines missing from Results.
	Fallback func(line string) (CommandResult, bool)
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{Results: map[string]CommandResult{}}
}

// On registers the result returned for a command line.
func (f *FakeRunner) On(line string, result CommandResult) *FakeRunner {
	f.Results[line] = result

	return f
}

// Called reports whether the exact command line was executed.
func (f *FakeRunner) Called(line string) bool {
	for _, c := range f.Calls {
		if c == line {
			return true
		}
	}

	return false
}

// Run records the call and returns the registered result.
func (f *FakeRunner) Run(_ context.Context, name string, args ...string) CommandResult {
	return f.lookup(name, args...)
}

func (f *FakeRunner) lookup(name string, args ...string) CommandResult {
	line := strings.Join(append([]string{name}, args...), " ")
	f.Calls = append(f.Calls, line)

	if r, ok := f.Results[line]; ok {
		return r
	}

	if f.Fallback != nil {
		if r, ok := f.Fallback(line); ok {
			return r
		}
	}

	return CommandResult{ExitCode: -1, Err: errors.Errorf("unexpected command: %s", line)}
}
