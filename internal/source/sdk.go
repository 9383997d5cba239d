package source

import (
	"compress/zlib"
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/format/index"
)

// SDKBackend implements Backend with go-git.
type SDKBackend struct{}

// NewSDKBackend creates an SDKBackend.
func NewSDKBackend() *SDKBackend {
	return &SDKBackend{}
}

// Clone clones url into dest.
func (*SDKBackend) Clone(ctx context.Context, url, dest string) error {
	_, err := git.PlainCloneContext(ctx, dest, &git.CloneOptions{URL: url})

	return err
}

// HardReset resets the worktree to HEAD.
func (*SDKBackend) HardReset(_ context.Context, dest string) error {
	repo, err := git.PlainOpen(dest)
	if err != nil {
		return classifyResetError(err)
	}

	head, err := repo.Head()
	if err != nil {
		return classifyResetError(err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return classifyResetError(err)
	}

	err = worktree.Reset(&git.ResetOptions{Commit: head.Hash(), Mode: git.HardReset})

	return classifyResetError(err)
}

// Pull fast-forwards from remote.
func (*SDKBackend) Pull(ctx context.Context, dest, remote string) error {
	repo, err := git.PlainOpen(dest)
	if err != nil {
		return errors.Wrap(err, "opening repository")
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return errors.Wrap(err, "opening worktree")
	}

	err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: remote})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}

	return err
}

// Head returns the HEAD commit.
func (*SDKBackend) Head(_ context.Context, dest string) (Revision, error) {
	repo, err := git.PlainOpen(dest)
	if err != nil {
		return Revision{}, errors.Wrap(err, "opening repository")
	}

	ref, err := repo.Head()
	if err != nil {
		return Revision{}, errors.Wrap(err, "resolving HEAD")
	}

	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return Revision{}, errors.Wrapf(err, "reading commit %s", ref.Hash())
	}

	subject, _, _ := strings.Cut(commit.Message, "\n")

	return Revision{
		Hash:    ref.Hash().String(),
		When:    commit.Committer.When,
		Subject: subject,
	}, nil
}

// corruptionErrors are go-git failures meaning the repository is unusable.
var corruptionErrors = []error{
	git.ErrRepositoryNotExists,
	git.ErrWorktreeNotProvided,
	plumbing.ErrObjectNotFound,
	plumbing.ErrReferenceNotFound,
	index.ErrMalformedSignature,
	index.ErrInvalidChecksum,
	index.ErrUnsupportedVersion,
	zlib.ErrChecksum,
	zlib.ErrHeader,
}

// classifyResetError marks err with ErrCorruptTree when it shows the
// repository is broken rather than the operation.
func classifyResetError(err error) error {
	if err == nil {
		return nil
	}

	for _, target := range corruptionErrors {
		if errors.Is(err, target) {
			return errors.Mark(err, ErrCorruptTree)
		}
	}

	return err
}
