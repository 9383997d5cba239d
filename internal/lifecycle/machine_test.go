package lifecycle_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/voltwatch/victronctl/internal/binder"
	"github.com/voltwatch/victronctl/internal/color"
	installerconfig "github.com/voltwatch/victronctl/internal/config"
	"github.com/voltwatch/victronctl/internal/deps"
	"github.com/voltwatch/victronctl/internal/exec"
	"github.com/voltwatch/victronctl/internal/lifecycle"
	"github.com/voltwatch/victronctl/internal/probe"
	"github.com/voltwatch/victronctl/internal/prompt"
	"github.com/voltwatch/victronctl/internal/service"
	"github.com/voltwatch/victronctl/internal/settings"
	"github.com/voltwatch/victronctl/internal/source"
	"github.com/voltwatch/victronctl/pkg/config"
	"github.com/voltwatch/victronctl/pkg/logger"
)

const (
	unitName = "victron_monitor.service"
	python   = "/usr/bin/python3"
)

type fakeProber struct {
	env *probe.Environment
	err error
}

func (f *fakeProber) Probe(context.Context) (*probe.Environment, error) { return f.env, f.err }

func (f *fakeProber) ResolveAccount() (*probe.Environment, error) { return f.env, f.err }

// fakeHost answers systemctl and pip like a host where everything succeeds.
type fakeHost struct {
	*exec.FakeRunner
	active bool
}

func newFakeHost() *fakeHost {
	h := &fakeHost{FakeRunner: exec.NewFakeRunner()}
	h.Fallback = func(line string) (exec.CommandResult, bool) {
		switch {
		case strings.HasPrefix(line, "systemctl is-active --quiet"):
			if h.active {
				return exec.CommandResult{}, true
			}

			return exec.CommandResult{ExitCode: 3}, true
		case strings.HasPrefix(line, "systemctl start"), strings.HasPrefix(line, "systemctl restart"):
			h.active = true

			return exec.CommandResult{}, true
		case strings.HasPrefix(line, "systemctl stop"):
			h.active = false

			return exec.CommandResult{}, true
		case strings.HasPrefix(line, "systemctl is-active"):
			if h.active {
				return exec.CommandResult{Stdout: "active\n"}, true
			}

			return exec.CommandResult{Stdout: "inactive\n", ExitCode: 3}, true
		default:
			return exec.CommandResult{}, true
		}
	}

	return h
}

func (h *fakeHost) systemctlCalls() []string {
	var calls []string

	for _, c := range h.Calls {
		if strings.HasPrefix(c, "systemctl ") && !strings.HasPrefix(c, "systemctl is-") {
			calls = append(calls, c)
		}
	}

	return calls
}

func newUpstream() string {
	dir := GinkgoT().TempDir()

	repo, err := git.PlainInit(dir, false)
	Expect(err).NotTo(HaveOccurred())

	worktree, err := repo.Worktree()
	Expect(err).NotTo(HaveOccurred())

	for name, content := range map[string]string{
		"victron_monitor.py": "#!/usr/bin/env python3\nprint('monitoring')\n",
		"requirements.txt":   "requests\n",
	} {
		Expect(os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)).To(Succeed())

		_, err = worktree.Add(name)
		Expect(err).NotTo(HaveOccurred())
	}

	_, err = worktree.Commit("initial", &git.CommitOptions{Author: &object.Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}})
	Expect(err).NotTo(HaveOccurred())

	return dir
}

// steppingClock advances two seconds per reading.
func steppingClock() func() time.Time {
	t := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	return func() time.Time {
		t = t.Add(2 * time.Second)

		return t
	}
}

// headlessSource hides the checked-out revision.
type headlessSource struct {
	lifecycle.Syncer
}

func (headlessSource) Head(context.Context, string) (source.Revision, error) {
	return source.Revision{}, errors.New("object not found")
}

func readSettings(path string) *settings.File {
	data, err := os.ReadFile(path)
	Expect(err).NotTo(HaveOccurred())

	return settings.Parse(data)
}

func exists(path string) bool {
	_, err := os.Lstat(path)

	return err == nil
}

var _ = Describe("Machine", func() {
	var (
		ctx    context.Context
		root   string
		cfg    *config.Config
		prober *fakeProber
		host   *fakeHost
		out    *bytes.Buffer
		input  string
		tmpl   settings.Template
		logBuf *bytes.Buffer

		// wrapSource lets a test replace parts of the real synchronizer.
		wrapSource func(lifecycle.Syncer) lifecycle.Syncer

		installDir, binPath, unitPath, configDir, configFile string
	)

	newMachine := func() *lifecycle.Machine {
		log := logger.NewLoggerWithLevel(logBuf, logger.LevelDebug)

		var sync lifecycle.Syncer = source.NewSynchronizer(source.NewSDKBackend(), cfg.Source.URL, cfg.Source.Remote, log)
		if wrapSource != nil {
			sync = wrapSource(sync)
		}

		return lifecycle.NewMachine(cfg, lifecycle.Components{
			Prober:   prober,
			Source:   sync,
			Deps:     deps.NewProvisioner(host, cfg.Runtime.BootstrapPackages, log),
			Binder:   binder.NewBinder(log),
			Services: service.NewController(host, log),
			Prompter: prompt.NewPrompter(strings.NewReader(input), out),
		}, log,
			lifecycle.WithRoot(root),
			lifecycle.WithTemplate(tmpl),
			lifecycle.WithClock(steppingClock()),
			lifecycle.WithOutput(out, color.NewTheme(false)),
		)
	}

	install := func() {
		_, err := newMachine().Install(ctx)
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		ctx = context.Background()
		root = GinkgoT().TempDir()
		cfg = installerconfig.DefaultConfig()
		cfg.Source.URL = newUpstream()
		prober = &fakeProber{env: &probe.Environment{
			Elevated:    true,
			Username:    "pi",
			Group:       "pi",
			HomeDir:     "/home/pi",
			RuntimePath: python,
		}}
		host = newFakeHost()
		out = &bytes.Buffer{}
		logBuf = &bytes.Buffer{}
		wrapSource = nil
		input = ""
		tmpl = settings.Template{Schema: 2, Entries: []settings.Entry{
			{Key: "TELEGRAM_TOKEN"},
			{Key: "REFRESH_PERIOD", Value: "30"},
			{Key: "LOG_LEVEL", Value: "INFO"},
		}}

		installDir = filepath.Join(root, "opt", "victron_monitor")
		binPath = filepath.Join(root, "usr", "local", "bin", "victron_monitor")
		unitPath = filepath.Join(root, "etc", "systemd", "system", unitName)
		configDir = filepath.Join(root, "home", "pi", "victron_monitor")
		configFile = filepath.Join(configDir, "settings.ini")
	})

	Describe("Run on an absent installation", func() {
		It("installs without prompting", func() {
			outcome, err := newMachine().Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(outcome.Action).To(Equal(lifecycle.ActionInstall))
			Expect(outcome.Started).To(BeTrue())
			Expect(outcome.ConfigCreated).To(BeTrue())
			Expect(outcome.Head.Subject).To(Equal("initial"))
			Expect(outcome.Elapsed).To(Equal(2 * time.Second))
			Expect(out.String()).NotTo(ContainSubstring("Select"))
			Expect(out.String()).To(ContainSubstring("Install finished in 2 seconds"))

			markers := lifecycle.DetectMarkers(layoutFor(root))
			Expect(markers.Complete()).To(BeTrue())

			script, err := os.ReadFile(binPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(script)).To(HavePrefix("#!" + python + "\n"))
			Expect(exists(filepath.Join(installDir, "victron_monitor.py"))).To(BeFalse())

			unit, err := os.ReadFile(unitPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(unit)).To(ContainSubstring("ExecStart=" + binPath + "\n"))
			Expect(string(unit)).To(ContainSubstring("User=pi\n"))

			Expect(readSettings(configFile).Keys()).To(Equal([]string{"TELEGRAM_TOKEN", "REFRESH_PERIOD", "LOG_LEVEL"}))

			Expect(host.Called(python + " -m pip install --upgrade pip setuptools wheel")).To(BeTrue())
			Expect(host.Called(python + " -m pip install -r " + filepath.Join(installDir, "requirements.txt"))).To(BeTrue())
			Expect(host.systemctlCalls()).To(Equal([]string{
				"systemctl daemon-reload",
				"systemctl enable " + unitName,
				"systemctl start " + unitName,
			}))
		})

		It("leaves the unit stopped when start_on_install is off", func() {
			off := false
			cfg.Service.StartOnInstall = &off

			outcome, err := newMachine().Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Started).To(BeFalse())
			Expect(host.Called("systemctl start " + unitName)).To(BeFalse())
			Expect(out.String()).To(ContainSubstring("Advisory:"))
		})

		It("keeps a settings file that already exists", func() {
			Expect(os.MkdirAll(configDir, 0o755)).To(Succeed())
			Expect(os.WriteFile(configFile, []byte("[DEFAULT]\nTELEGRAM_TOKEN = abc\n"), 0o600)).To(Succeed())

			outcome, err := newMachine().Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.ConfigCreated).To(BeFalse())
			Expect(readSettings(configFile).Keys()).To(Equal([]string{"TELEGRAM_TOKEN"}))
		})

		It("stops at the first failing step", func() {
			host.On(python+" -m pip install --upgrade pip setuptools wheel",
				exec.CommandResult{ExitCode: 1, Stderr: "no network"})

			_, err := newMachine().Run(ctx)
			Expect(errors.Is(err, deps.ErrBootstrap)).To(BeTrue())
			Expect(err.Error()).To(HavePrefix("installing dependencies: "))
			Expect(exists(binPath)).To(BeFalse())
			Expect(exists(unitPath)).To(BeFalse())
		})

		It("installs without a revision when the head cannot be read", func() {
			wrapSource = func(s lifecycle.Syncer) lifecycle.Syncer { return headlessSource{s} }

			outcome, err := newMachine().Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Head).To(Equal(source.Revision{}))
			Expect(exists(binPath)).To(BeTrue())
			Expect(logBuf.String()).To(ContainSubstring("DEBUG revision lookup failed"))
			Expect(logBuf.String()).To(ContainSubstring("error=\"object not found\""))
		})

		It("aborts before touching anything when the probe fails", func() {
			prober.err = errors.WithHint(probe.ErrPrivilege, "re-run with sudo")

			_, err := newMachine().Run(ctx)
			Expect(errors.Is(err, probe.ErrPrivilege)).To(BeTrue())
			Expect(exists(installDir)).To(BeFalse())
		})
	})

	Describe("Install", func() {
		DescribeTable("refuses any partial installation",
			func(existing func() (file, marker string)) {
				file, marker := existing()
				Expect(os.MkdirAll(filepath.Dir(file), 0o755)).To(Succeed())
				Expect(os.WriteFile(file, []byte("x"), 0o644)).To(Succeed())

				_, err := newMachine().Install(ctx)
				Expect(errors.Is(err, lifecycle.ErrAlreadyInstalled)).To(BeTrue())
				Expect(err.Error()).To(ContainSubstring("found " + marker + ":"))
				Expect(host.Calls).To(BeEmpty())
			},
			Entry("bound executable only", func() (string, string) { return binPath, binPath }),
			Entry("unit file only", func() (string, string) { return unitPath, unitPath }),
			Entry("source tree only", func() (string, string) {
				return filepath.Join(installDir, "README"), installDir
			}),
		)
	})

	Describe("Run on a present installation", func() {
		BeforeEach(func() {
			install()
			host.Calls = nil
		})

		It("updates and preserves every operator value", func() {
			Expect(os.WriteFile(configFile,
				[]byte("[DEFAULT]\nTELEGRAM_TOKEN = abc\nREFRESH_PERIOD = 10\n# my note\nEXTRA = kept\n"),
				0o600)).To(Succeed())

			input = "1\n"

			outcome, err := newMachine().Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Action).To(Equal(lifecycle.ActionUpdate))
			Expect(outcome.AddedKeys).To(Equal([]string{"LOG_LEVEL"}))
			Expect(outcome.Restarted).To(BeTrue())

			f := readSettings(configFile)
			for key, want := range map[string]string{
				"TELEGRAM_TOKEN": "abc",
				"REFRESH_PERIOD": "10",
				"EXTRA":          "kept",
				"LOG_LEVEL":      "INFO",
			} {
				got, ok := f.Get(key)
				Expect(ok).To(BeTrue(), key)
				Expect(got).To(Equal(want), key)
			}

			content, err := os.ReadFile(configFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(content)).To(ContainSubstring("# my note\n"))
			Expect(exists(configFile + settings.BackupSuffix)).To(BeFalse())

			target, err := os.Readlink(binPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(target).To(Equal(filepath.Join(installDir, "victron_monitor.py")))

			Expect(host.Called("systemctl restart " + unitName)).To(BeTrue())
		})

		It("is idempotent on a second update", func() {
			input = "1\n"
			_, err := newMachine().Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			before, err := os.ReadFile(configFile)
			Expect(err).NotTo(HaveOccurred())

			input = "1\n"
			outcome, err := newMachine().Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.AddedKeys).To(BeEmpty())

			after, err := os.ReadFile(configFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal(before))
		})

		It("never starts an inactive service", func() {
			host.active = false
			input = "1\n"

			outcome, err := newMachine().Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Restarted).To(BeFalse())
			Expect(host.systemctlCalls()).To(BeEmpty())
			Expect(out.String()).To(ContainSubstring("start it manually"))
		})

		It("recreates missing settings from the template", func() {
			Expect(os.Remove(configFile)).To(Succeed())
			input = "1\n"

			outcome, err := newMachine().Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.ConfigCreated).To(BeTrue())
			Expect(readSettings(configFile).Keys()).To(HaveLen(3))
		})

		It("re-clones a corrupt source tree", func() {
			Expect(os.WriteFile(filepath.Join(installDir, ".git", "index"), []byte("garbage"), 0o644)).To(Succeed())
			input = "1\n"

			outcome, err := newMachine().Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Recloned).To(BeTrue())
			Expect(exists(filepath.Join(installDir, "victron_monitor.py"))).To(BeTrue())
		})

		It("uninstalls on the second option", func() {
			input = "2\n"

			outcome, err := newMachine().Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Action).To(Equal(lifecycle.ActionUninstall))
			Expect(lifecycle.DetectMarkers(layoutFor(root)).Installed()).To(BeFalse())
		})

		It("changes nothing on cancel", func() {
			input = "3\n"

			outcome, err := newMachine().Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Action).To(Equal(lifecycle.ActionCancel))
			Expect(lifecycle.DetectMarkers(layoutFor(root)).Complete()).To(BeTrue())
			Expect(host.systemctlCalls()).To(BeEmpty())
		})

		DescribeTable("rejects an invalid selection",
			func(answer string) {
				input = answer

				_, err := newMachine().Run(ctx)
				Expect(errors.Is(err, lifecycle.ErrInvalidChoice)).To(BeTrue())
				Expect(lifecycle.DetectMarkers(layoutFor(root)).Complete()).To(BeTrue())
				Expect(host.systemctlCalls()).To(BeEmpty())
			},
			Entry("out of range", "4\n"),
			Entry("zero", "0\n"),
			Entry("word", "update\n"),
			Entry("empty", "\n"),
			Entry("closed input", ""),
		)
	})

	Describe("Update", func() {
		It("refuses when nothing is installed", func() {
			_, err := newMachine().Update(ctx)
			Expect(errors.Is(err, lifecycle.ErrNotInstalled)).To(BeTrue())
		})

		It("repairs a partial install missing its source tree", func() {
			install()
			Expect(os.RemoveAll(installDir)).To(Succeed())

			outcome, err := newMachine().Update(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Recloned).To(BeTrue())
			Expect(lifecycle.DetectMarkers(layoutFor(root)).Complete()).To(BeTrue())
		})
	})

	Describe("Uninstall", func() {
		It("removes the installation and agent files", func() {
			install()
			Expect(os.WriteFile(filepath.Join(configDir, "victron_monitor.log"), []byte("log"), 0o644)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(configDir, "victron_monitor.log.1"), []byte("old"), 0o644)).To(Succeed())

			outcome, err := newMachine().Uninstall(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Purged).To(HaveLen(2))

			Expect(lifecycle.DetectMarkers(layoutFor(root)).Installed()).To(BeFalse())
			Expect(exists(configDir)).To(BeFalse())
			Expect(host.Called("systemctl stop " + unitName)).To(BeTrue())
			Expect(host.Called("systemctl disable " + unitName)).To(BeTrue())
		})

		It("keeps the settings directory when it holds unrelated files", func() {
			install()
			Expect(os.WriteFile(filepath.Join(configDir, "notes.txt"), []byte("mine"), 0o644)).To(Succeed())

			_, err := newMachine().Uninstall(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists(configFile)).To(BeFalse())
			Expect(exists(filepath.Join(configDir, "notes.txt"))).To(BeTrue())
		})

		DescribeTable("cleans up partial installations",
			func(remove func() []string) {
				install()

				for _, p := range remove() {
					Expect(os.RemoveAll(p)).To(Succeed())
				}

				_, err := newMachine().Uninstall(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(lifecycle.DetectMarkers(layoutFor(root)).Installed()).To(BeFalse())
				Expect(host.Called("systemctl daemon-reload")).To(BeTrue())
			},
			Entry("no unit file", func() []string { return []string{unitPath} }),
			Entry("no source tree", func() []string { return []string{installDir} }),
			Entry("no executable", func() []string { return []string{binPath} }),
			Entry("executable only", func() []string { return []string{unitPath, installDir} }),
			Entry("no settings", func() []string { return []string{configDir} }),
		)

		It("is a no-op when nothing is installed", func() {
			outcome, err := newMachine().Uninstall(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Action).To(Equal(lifecycle.ActionUninstall))
			Expect(host.Calls).To(BeEmpty())
		})

		It("requires root", func() {
			install()
			prober.env.Elevated = false

			_, err := newMachine().Uninstall(ctx)
			Expect(errors.Is(err, probe.ErrPrivilege)).To(BeTrue())
			Expect(exists(installDir)).To(BeTrue())
		})
	})

	Describe("PlanUpdate", func() {
		It("shows the keys an update would add without writing", func() {
			install()
			original := []byte("[DEFAULT]\nTELEGRAM_TOKEN = abc\nREFRESH_PERIOD = 10\n")
			Expect(os.WriteFile(configFile, original, 0o600)).To(Succeed())

			plan, err := newMachine().PlanUpdate()
			Expect(err).NotTo(HaveOccurred())
			Expect(plan.AddedKeys).To(Equal([]string{"LOG_LEVEL"}))
			Expect(plan.Diff).To(ContainSubstring("+LOG_LEVEL = INFO\n"))
			Expect(plan.Diff).NotTo(ContainSubstring("-TELEGRAM_TOKEN"))

			content, err := os.ReadFile(configFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(content).To(Equal(original))
		})

		It("reports a complete file as nothing to do", func() {
			install()

			plan, err := newMachine().PlanUpdate()
			Expect(err).NotTo(HaveOccurred())
			Expect(plan.AddedKeys).To(BeEmpty())
			Expect(plan.Diff).To(BeEmpty())
		})
	})

	Describe("Inspect", func() {
		It("describes an absent installation", func() {
			ins, err := newMachine().Inspect(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ins.State).To(Equal(lifecycle.StateAbsent))
			Expect(ins.Source).To(BeNil())
			Expect(ins.Settings.Present).To(BeFalse())
		})

		It("describes a running installation", func() {
			install()
			Expect(os.WriteFile(configFile, []byte("[DEFAULT]\nTELEGRAM_TOKEN = abc\n"), 0o600)).To(Succeed())

			ins, err := newMachine().Inspect(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ins.State).To(Equal(lifecycle.StatePresent))
			Expect(ins.User).To(Equal("pi"))
			Expect(ins.Source).NotTo(BeNil())
			Expect(ins.Source.Revision.Subject).To(Equal("initial"))
			Expect(ins.Service.Active).To(Equal("active"))
			Expect(ins.Settings.Keys).To(Equal(1))
			Expect(ins.Settings.Missing).To(Equal([]string{"REFRESH_PERIOD", "LOG_LEVEL"}))
		})
	})
})

var _ = Describe("FormatElapsed", func() {
	DescribeTable("keeps the two largest units",
		func(d time.Duration, want string) {
			Expect(lifecycle.FormatElapsed(d)).To(Equal(want))
		},
		Entry("seconds", 4*time.Second, "4 seconds"),
		Entry("minutes", 63*time.Second+250*time.Millisecond, "1 minute 3 seconds"),
	)
})
