package settings_test

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/voltwatch/victronctl/internal/settings"
)

var _ = Describe("Custodian", func() {
	var (
		c    *settings.Custodian
		path string
	)

	BeforeEach(func() {
		c = settings.NewCustodian(nil, nil)
		path = filepath.Join(GinkgoT().TempDir(), "victron_monitor", "settings.ini")
	})

	read := func() string {
		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())

		return string(data)
	}

	write := func(content string) {
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
	}

	Describe("EnsureDefault", func() {
		It("creates the directory and full template with private mode", func() {
			created, err := c.EnsureDefault(path, settings.Current())
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())

			Expect(read()).To(Equal(string(settings.Render(settings.Current()))))

			info, err := os.Stat(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("leaves an existing file alone", func() {
			write("[DEFAULT]\nTELEGRAM_TOKEN = abc\n")

			created, err := c.EnsureDefault(path, settings.Current())
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())
			Expect(read()).To(Equal("[DEFAULT]\nTELEGRAM_TOKEN = abc\n"))
		})
	})

	Describe("Backup and Restore", func() {
		DescribeTable("round-trips content byte for byte",
			func(content string) {
				write(content)

				backup, err := c.Backup(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(backup).To(Equal(path + settings.BackupSuffix))

				// a destructive step in between
				Expect(os.Remove(path)).To(Succeed())

				Expect(c.Restore(backup, path)).To(Succeed())
				Expect(read()).To(Equal(content))
				Expect(backup).NotTo(BeAnExistingFile())
			},
			Entry("rendered defaults", string(settings.Render(settings.Current()))),
			Entry("operator edits with comments", "# keep\n[DEFAULT]\nTELEGRAM_TOKEN = abc\r\nUNKNOWN = x"),
			Entry("empty file", ""),
		)

		It("is a no-op when the file is absent", func() {
			backup, err := c.Backup(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(backup).To(BeEmpty())

			Expect(c.Restore(backup, path)).To(Succeed())
			Expect(path).NotTo(BeAnExistingFile())
		})

		It("discards a backup that is no longer needed", func() {
			write("[DEFAULT]\n")

			backup, err := c.Backup(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Discard(backup)).To(Succeed())
			Expect(backup).NotTo(BeAnExistingFile())
			Expect(path).To(BeAnExistingFile())
			Expect(c.Discard("")).To(Succeed())
		})
	})

	Describe("MergeMissingKeys", func() {
		var newer settings.Template

		BeforeEach(func() {
			newer = settings.Template{
				Schema: 2,
				Entries: []settings.Entry{
					{Key: "TELEGRAM_TOKEN", Value: ""},
					{Key: "REFRESH_PERIOD", Value: "5"},
					{Key: "LOG_LEVEL", Value: "INFO"},
				},
			}
		})

		It("preserves operator values and appends new keys", func() {
			write("[DEFAULT]\nTELEGRAM_TOKEN = abc\nREFRESH_PERIOD = 10\n")

			added, err := c.MergeMissingKeys(path, newer)
			Expect(err).NotTo(HaveOccurred())
			Expect(added).To(Equal([]string{"LOG_LEVEL"}))

			f, err := c.Load(path)
			Expect(err).NotTo(HaveOccurred())
			for key, want := range map[string]string{
				"TELEGRAM_TOKEN": "abc",
				"REFRESH_PERIOD": "10",
				"LOG_LEVEL":      "INFO",
			} {
				got, ok := f.Get(key)
				Expect(ok).To(BeTrue(), key)
				Expect(got).To(Equal(want), key)
			}
		})

		It("is idempotent", func() {
			write("[DEFAULT]\nTELEGRAM_TOKEN = abc\nCUSTOM = kept\n")

			_, err := c.MergeMissingKeys(path, settings.Current())
			Expect(err).NotTo(HaveOccurred())

			once := read()

			added, err := c.MergeMissingKeys(path, settings.Current())
			Expect(err).NotTo(HaveOccurred())
			Expect(added).To(BeEmpty())
			Expect(read()).To(Equal(once))
			Expect(once).To(HavePrefix("[DEFAULT]\nTELEGRAM_TOKEN = abc\nCUSTOM = kept\n"))
		})

		It("never duplicates an indented key", func() {
			write("[DEFAULT]\n  TELEGRAM_TOKEN = abc\nREFRESH_PERIOD = 10\n")

			added, err := c.MergeMissingKeys(path, newer)
			Expect(err).NotTo(HaveOccurred())
			Expect(added).To(Equal([]string{"LOG_LEVEL"}))
			Expect(read()).To(Equal("[DEFAULT]\n  TELEGRAM_TOKEN = abc\nREFRESH_PERIOD = 10\nLOG_LEVEL = INFO\n"))
		})

		It("appends with the file's CRLF line endings", func() {
			write("[DEFAULT]\r\nTELEGRAM_TOKEN = abc\r\nREFRESH_PERIOD = 10\r\n")

			_, err := c.MergeMissingKeys(path, newer)
			Expect(err).NotTo(HaveOccurred())
			Expect(read()).To(Equal("[DEFAULT]\r\nTELEGRAM_TOKEN = abc\r\nREFRESH_PERIOD = 10\r\nLOG_LEVEL = INFO\r\n"))
		})

		It("keeps the file mode", func() {
			write("[DEFAULT]\n")
			Expect(os.Chmod(path, 0o640)).To(Succeed())

			_, err := c.MergeMissingKeys(path, newer)
			Expect(err).NotTo(HaveOccurred())

			info, err := os.Stat(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o640)))
		})

		It("fails on a missing file", func() {
			_, err := c.MergeMissingKeys(path, newer)
			Expect(errors.Is(err, settings.ErrSettings)).To(BeTrue())
		})
	})

	Describe("Delete", func() {
		It("removes the file and tolerates absence", func() {
			write("[DEFAULT]\n")
			Expect(c.Delete(path)).To(Succeed())
			Expect(path).NotTo(BeAnExistingFile())
			Expect(c.Delete(path)).To(Succeed())
		})
	})
})
