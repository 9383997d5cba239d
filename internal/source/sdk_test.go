package source_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/voltwatch/victronctl/internal/source"
	"github.com/voltwatch/victronctl/pkg/logger"
)

var testAuthor = &object.Signature{
	Name:  "Test User",
	Email: "test@example.com",
	When:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
}

// newUpstream creates a repository with one commit holding files.
func newUpstream(files map[string]string) (string, *git.Repository) {
	dir := GinkgoT().TempDir()

	repo, err := git.PlainInit(dir, false)
	Expect(err).NotTo(HaveOccurred())

	commitFiles(repo, dir, files, "initial")

	return dir, repo
}

func commitFiles(repo *git.Repository, dir string, files map[string]string, msg string) {
	worktree, err := repo.Worktree()
	Expect(err).NotTo(HaveOccurred())

	for name, content := range files {
		Expect(os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)).To(Succeed())

		_, err = worktree.Add(name)
		Expect(err).NotTo(HaveOccurred())
	}

	_, err = worktree.Commit(msg, &git.CommitOptions{Author: testAuthor})
	Expect(err).NotTo(HaveOccurred())
}

func topLevel(dir string) []string {
	entries, err := os.ReadDir(dir)
	Expect(err).NotTo(HaveOccurred())

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	return names
}

var _ = Describe("SDKBackend synchronization", func() {
	var (
		ctx      context.Context
		upstream string
		upRepo   *git.Repository
		dest     string
		sync     *source.Synchronizer
	)

	BeforeEach(func() {
		ctx = context.Background()
		upstream, upRepo = newUpstream(map[string]string{
			"victron_monitor.py": "#!/usr/bin/env python3\nprint('hi')\n",
			"requirements.txt":   "requests\n",
		})
		dest = filepath.Join(GinkgoT().TempDir(), "opt", "victron_monitor")
		sync = source.NewSynchronizer(source.NewSDKBackend(), upstream, "origin", logger.NewNoOpLogger())
	})

	It("clones fresh and reports HEAD", func() {
		Expect(sync.SyncFresh(ctx, upstream, dest)).To(Succeed())
		Expect(filepath.Join(dest, "victron_monitor.py")).To(BeAnExistingFile())

		head, err := sync.Head(ctx, dest)
		Expect(err).NotTo(HaveOccurred())
		Expect(head.Subject).To(Equal("initial"))
		Expect(head.Short()).To(HaveLen(7))
	})

	It("refuses a non-empty destination", func() {
		Expect(os.MkdirAll(dest, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dest, "stray"), nil, 0o644)).To(Succeed())

		err := sync.SyncFresh(ctx, upstream, dest)
		Expect(errors.Is(err, source.ErrClone)).To(BeTrue())
	})

	It("removes a partial tree when the clone fails", func() {
		err := sync.SyncFresh(ctx, filepath.Join(upstream, "missing"), dest)
		Expect(errors.Is(err, source.ErrClone)).To(BeTrue())
		Expect(dest).NotTo(BeADirectory())
	})

	It("discards local edits and pulls new commits", func() {
		Expect(sync.SyncFresh(ctx, upstream, dest)).To(Succeed())

		script := filepath.Join(dest, "victron_monitor.py")
		Expect(os.WriteFile(script, []byte("#!/usr/bin/python3.11\nlocal edit\n"), 0o755)).To(Succeed())

		commitFiles(upRepo, upstream, map[string]string{"NEWS.md": "v2\n"}, "second")

		result, err := sync.SyncExisting(ctx, dest)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Recloned).To(BeFalse())
		Expect(result.Head.Subject).To(Equal("second"))

		data, err := os.ReadFile(script)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("print('hi')"))
		Expect(filepath.Join(dest, "NEWS.md")).To(BeAnExistingFile())
	})

	DescribeTable("repairs a corrupt tree by re-cloning",
		func(corrupt func(dest string)) {
			Expect(sync.SyncFresh(ctx, upstream, dest)).To(Succeed())
			corrupt(dest)

			result, err := sync.SyncExisting(ctx, dest)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Recloned).To(BeTrue())

			reference := filepath.Join(GinkgoT().TempDir(), "reference")
			Expect(source.NewSDKBackend().Clone(ctx, upstream, reference)).To(Succeed())
			Expect(topLevel(dest)).To(Equal(topLevel(reference)))
		},
		Entry("garbage index", func(dest string) {
			Expect(os.WriteFile(filepath.Join(dest, ".git", "index"), []byte("garbage"), 0o644)).To(Succeed())
		}),
		Entry("repository metadata deleted", func(dest string) {
			Expect(os.RemoveAll(filepath.Join(dest, ".git"))).To(Succeed())
		}),
		Entry("tree deleted entirely", func(dest string) {
			Expect(os.RemoveAll(dest)).To(Succeed())
		}),
	)
})
