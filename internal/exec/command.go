// Package exec provides abstractions for executing external commands.
package exec

//go:generate mockgen -source=command.go -destination=command_mock.go -package=exec

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// CommandResult contains the result of a command execution.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Success reports whether the command ran and exited zero.
func (r CommandResult) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Failed is the inverse of Success.
func (r CommandResult) Failed() bool {
	return !r.Success()
}

// Output returns stdout and stderr joined, trimmed of surrounding whitespace.
func (r CommandResult) Output() string {
	return strings.TrimSpace(r.Stdout + r.Stderr)
}

// CommandRunner executes external commands and captures their output.
type CommandRunner interface {
	// Run executes a command and returns the result.
	Run(ctx context.Context, name string, args ...string) CommandResult
}

// commandRunner implements CommandRunner.
type commandRunner struct {
	defaultTimeout time.Duration
}

// NewCommandRunner creates a new CommandRunner. A zero defaultTimeout leaves
// commands unbounded; only ctx can stop them.
//
//nolint:ireturn // factory returns the interface on purpose
func NewCommandRunner(defaultTimeout time.Duration) CommandRunner {
	return &commandRunner{defaultTimeout: defaultTimeout}
}

// Run executes a command and returns the result. The default timeout, when
// set, applies on top of ctx.
func (r *commandRunner) Run(ctx context.Context, name string, args ...string) CommandResult {
	if r.defaultTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.defaultTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		return result
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		result.Err = errors.Wrapf(err, "%s exited with code %d", name, result.ExitCode)

		return result
	}

	result.ExitCode = -1
	result.Err = errors.Wrapf(err, "executing %s", name)

	return result
}
