package source

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/voltwatch/victronctl/internal/exec"
)

// fatalSignature is what git prints before an unrecoverable repository error.
const fatalSignature = "fatal:"

// CLIBackend implements Backend by running the git binary.
type CLIBackend struct {
	runner exec.CommandRunner
	git    string
}

// NewCLIBackend creates a CLIBackend running gitPath (usually "git").
func NewCLIBackend(runner exec.CommandRunner, gitPath string) *CLIBackend {
	if gitPath == "" {
		gitPath = "git"
	}

	return &CLIBackend{runner: runner, git: gitPath}
}

// Clone runs git clone.
func (b *CLIBackend) Clone(ctx context.Context, url, dest string) error {
	return resultError(b.runner.Run(ctx, b.git, "clone", "--quiet", url, dest))
}

// HardReset runs git reset --hard. The CLI exposes no structured status, so
// the output decides whether the tree is corrupt.
func (b *CLIBackend) HardReset(ctx context.Context, dest string) error {
	result := b.runner.Run(ctx, b.git, "-C", dest, "reset", "--hard", "--quiet")
	if result.Success() {
		return nil
	}

	err := resultError(result)
	if resetOutputIsFatal(result.Output()) {
		return errors.Mark(err, ErrCorruptTree)
	}

	return err
}

// resetOutputIsFatal is the single place that pattern-matches git output.
func resetOutputIsFatal(output string) bool {
	return strings.Contains(output, fatalSignature)
}

// Pull runs a fast-forward-only pull.
func (b *CLIBackend) Pull(ctx context.Context, dest, remote string) error {
	return resultError(b.runner.Run(ctx, b.git, "-C", dest, "pull", "--ff-only", "--quiet", remote))
}

// Head reads the HEAD commit via git log.
func (b *CLIBackend) Head(ctx context.Context, dest string) (Revision, error) {
	result := b.runner.Run(ctx, b.git, "-C", dest, "log", "-1", "--format=%H%x00%ct%x00%s")
	if err := resultError(result); err != nil {
		return Revision{}, err
	}

	fields := strings.SplitN(strings.TrimSpace(result.Stdout), "\x00", 3)
	if len(fields) != 3 {
		return Revision{}, errors.Newf("unexpected git log output %q", result.Stdout)
	}

	unix, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Revision{}, errors.Wrapf(err, "parsing commit time %q", fields[1])
	}

	return Revision{Hash: fields[0], When: time.Unix(unix, 0), Subject: fields[2]}, nil
}

func resultError(result exec.CommandResult) error {
	if result.Success() {
		return nil
	}

	if out := result.Output(); out != "" {
		return errors.Newf("%s", out)
	}

	if result.Err != nil {
		return result.Err
	}

	return errors.Newf("exit code %d", result.ExitCode)
}
