// Package source keeps the agent's source tree in the install directory in
// step with its upstream repository.
package source

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/voltwatch/victronctl/internal/fsutil"
	"github.com/voltwatch/victronctl/pkg/logger"
)

var (
	// ErrClone is returned when a clone or re-clone fails.
	ErrClone = errors.New("clone failed")

	// ErrPull is returned when a reset or pull of an intact tree fails.
	ErrPull = errors.New("pull failed")

	// ErrCorruptTree marks reset failures that only a re-clone can repair.
	ErrCorruptTree = errors.New("source tree is corrupt")
)

// Revision describes the checked-out commit.
type Revision struct {
	Hash    string    `json:"hash"    yaml:"hash"`
	When    time.Time `json:"when"    yaml:"when"`
	Subject string    `json:"subject" yaml:"subject"`
}

// Short returns the abbreviated hash.
func (r Revision) Short() string {
	const shortLen = 7
	if len(r.Hash) <= shortLen {
		return r.Hash
	}

	return r.Hash[:shortLen]
}

// Backend is a git implementation.
type Backend interface {
	// Clone clones url into dest, which must not exist or be empty.
	Clone(ctx context.Context, url, dest string) error

	// HardReset discards local modifications. Failures that mean the
	// repository itself is unusable are marked with ErrCorruptTree.
	HardReset(ctx context.Context, dest string) error

	// Pull fast-forwards dest from remote. Already up to date is success.
	Pull(ctx context.Context, dest, remote string) error

	// Head returns the checked-out revision.
	Head(ctx context.Context, dest string) (Revision, error)
}

// SyncResult reports what SyncExisting did.
type SyncResult struct {
	// Recloned is true when the tree was deleted and cloned again.
	Recloned bool
	Head     Revision
}

// Synchronizer runs fresh and existing syncs over a Backend.
type Synchronizer struct {
	backend Backend
	url     string
	remote  string
	log     logger.Logger
}

// NewSynchronizer creates a Synchronizer. url is the canonical upstream used
// for every re-clone, remote the name pulled from.
func NewSynchronizer(backend Backend, url, remote string, log logger.Logger) *Synchronizer {
	return &Synchronizer{backend: backend, url: url, remote: remote, log: log}
}

// SyncFresh clones url into dest. dest must be absent or empty.
func (s *Synchronizer) SyncFresh(ctx context.Context, url, dest string) error {
	if fsutil.Exists(dest) && !fsutil.IsEmptyDir(dest) {
		return errors.Wrapf(ErrClone, "destination %s already exists and is not empty", dest)
	}

	if err := os.MkdirAll(filepath.Dir(dest), fsutil.DefaultDirPermissions); err != nil {
		return errors.Mark(errors.Wrapf(err, "creating parent of %s", dest), ErrClone)
	}

	s.log.Info("cloning source", "url", url, "dest", dest)

	if err := s.backend.Clone(ctx, url, dest); err != nil {
		// a half-written tree would read as an installation marker
		_ = os.RemoveAll(dest)

		return errors.Mark(errors.Wrapf(err, "cloning %s", url), ErrClone)
	}

	return nil
}

// SyncExisting hard-resets dest and pulls. When the reset shows the
// repository is corrupt, dest is deleted and cloned again from the
// canonical URL.
func (s *Synchronizer) SyncExisting(ctx context.Context, dest string) (SyncResult, error) {
	var result SyncResult

	err := s.backend.HardReset(ctx, dest)

	switch {
	case errors.Is(err, ErrCorruptTree):
		s.log.Info("source tree corrupt, re-cloning", "dest", dest, "cause", err.Error())

		if err := os.RemoveAll(dest); err != nil {
			return result, errors.Mark(errors.Wrapf(err, "removing %s", dest), ErrClone)
		}

		if err := s.SyncFresh(ctx, s.url, dest); err != nil {
			return result, err
		}

		result.Recloned = true

	case err != nil:
		return result, errors.Mark(errors.Wrapf(err, "resetting %s", dest), ErrPull)

	default:
		s.log.Debug("pulling source", "dest", dest, "remote", s.remote)

		if err := s.backend.Pull(ctx, dest, s.remote); err != nil {
			return result, errors.Mark(errors.Wrapf(err, "pulling %s", s.remote), ErrPull)
		}
	}

	head, err := s.backend.Head(ctx, dest)
	if err != nil {
		return result, errors.Mark(errors.Wrap(err, "reading HEAD"), ErrPull)
	}

	result.Head = head

	s.log.Info("source synchronized", "dest", dest, "head", head.Short(), "recloned", result.Recloned)

	return result, nil
}

// Head returns the checked-out revision of dest.
func (s *Synchronizer) Head(ctx context.Context, dest string) (Revision, error) {
	return s.backend.Head(ctx, dest)
}
