package probe_test

import (
	"context"
	"os/user"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/voltwatch/victronctl/internal/exec"
	"github.com/voltwatch/victronctl/internal/probe"
	"github.com/voltwatch/victronctl/pkg/logger"
)

var _ = Describe("Prober", func() {
	var (
		runner  *exec.FakeRunner
		onPath  map[string]string
		euid    int
		envVars map[string]string
		opts    probe.Options
	)

	users := map[string]*user.User{
		"root": {Username: "root", Uid: "0", Gid: "0", HomeDir: "/root"},
		"pi":   {Username: "pi", Uid: "1000", Gid: "1000", HomeDir: "/home/pi"},
	}

	newProber := func() *probe.Prober {
		tools := exec.NewToolCheckerWithLookup(func(name string) (string, error) {
			if p, ok := onPath[name]; ok {
				return p, nil
			}

			return "", errors.New("not found")
		})

		return probe.NewProber(runner, tools, logger.NewNoOpLogger(), opts,
			probe.WithEUID(func() int { return euid }),
			probe.WithGetenv(func(k string) string { return envVars[k] }),
			probe.WithUserLookup(
				func(name string) (*user.User, error) {
					if u, ok := users[name]; ok {
						return u, nil
					}

					return nil, user.UnknownUserError(name)
				},
				func() (*user.User, error) { return users["root"], nil },
			),
		)
	}

	ok := func(stdout string) exec.CommandResult { return exec.CommandResult{Stdout: stdout} }
	fail := exec.CommandResult{ExitCode: 1, Stderr: "No module named pip"}

	BeforeEach(func() {
		runner = exec.NewFakeRunner()
		onPath = map[string]string{"python3": "/usr/bin/python3", "systemctl": "/bin/systemctl"}
		euid = 0
		envVars = map[string]string{"SUDO_USER": "pi"}
		opts = probe.Options{
			Candidates:    []string{"python3.12", "python3"},
			MinVersion:    "3.8.0",
			RequiredTools: []string{"systemctl"},
		}

		runner.On("/usr/bin/python3 --version", ok("Python 3.11.2\n"))
		runner.On("/usr/bin/python3 -m pip --version", ok("pip 23.0.1\n"))
	})

	It("returns the operator account and runtime", func() {
		env, err := newProber().Probe(context.Background())
		Expect(err).NotTo(HaveOccurred())

		Expect(env.Elevated).To(BeTrue())
		Expect(env.ViaSudo).To(BeTrue())
		Expect(env.Username).To(Equal("pi"))
		Expect(env.HomeDir).To(Equal("/home/pi"))
		Expect(env.UID).To(Equal(1000))
		Expect(env.RuntimePath).To(Equal("/usr/bin/python3"))
		Expect(env.RuntimeVersion.String()).To(Equal("3.11.2"))
		Expect(env.PipBootstrapped).To(BeFalse())
	})

	It("requires root", func() {
		euid = 1000

		_, err := newProber().Probe(context.Background())
		Expect(errors.Is(err, probe.ErrPrivilege)).To(BeTrue())
		Expect(runner.Calls).To(BeEmpty())
	})

	It("falls back to the process user without SUDO_USER", func() {
		delete(envVars, "SUDO_USER")

		env, err := newProber().Probe(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(env.ViaSudo).To(BeFalse())
		Expect(env.HomeDir).To(Equal("/root"))
	})

	It("fails on an unknown sudo user", func() {
		envVars["SUDO_USER"] = "ghost"

		_, err := newProber().Probe(context.Background())
		Expect(errors.Is(err, probe.ErrAccount)).To(BeTrue())
	})

	It("fails when a required tool is missing", func() {
		delete(onPath, "systemctl")

		_, err := newProber().Probe(context.Background())
		Expect(errors.Is(err, probe.ErrToolMissing)).To(BeTrue())
	})

	It("fails when no candidate is on PATH", func() {
		delete(onPath, "python3")

		_, err := newProber().Probe(context.Background())
		Expect(errors.Is(err, probe.ErrRuntimeNotFound)).To(BeTrue())
	})

	It("prefers the first candidate that is new enough", func() {
		onPath["python3.12"] = "/usr/local/bin/python3.12"
		runner.On("/usr/local/bin/python3.12 --version", ok("Python 3.12\n"))
		runner.On("/usr/local/bin/python3.12 -m pip --version", ok("pip 24.0\n"))

		env, err := newProber().Probe(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(env.RuntimePath).To(Equal("/usr/local/bin/python3.12"))
		Expect(env.RuntimeVersion.String()).To(Equal("3.12.0"))
	})

	DescribeTable("compares versions component-wise",
		func(output string, accepted bool) {
			runner.On("/usr/bin/python3 --version", ok(output))

			_, err := newProber().Probe(context.Background())
			if accepted {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(errors.Is(err, probe.ErrRuntimeTooOld)).To(BeTrue())
			}
		},
		Entry("exact minimum", "Python 3.8.0", true),
		Entry("missing patch equals zero", "Python 3.8", true),
		Entry("double-digit minor", "Python 3.10.4", true),
		Entry("release candidate suffix", "Python 3.13.0rc1", true),
		Entry("older minor", "Python 3.7.17", false),
		Entry("python 2", "Python 2.7.18", false),
	)

	It("bootstraps pip with ensurepip", func() {
		calls := 0
		runner.Results = map[string]exec.CommandResult{
			"/usr/bin/python3 --version":              ok("Python 3.11.2"),
			"/usr/bin/python3 -m ensurepip --upgrade": ok(""),
		}
		runner.Fallback = func(line string) (exec.CommandResult, bool) {
			if line != "/usr/bin/python3 -m pip --version" {
				return exec.CommandResult{}, false
			}

			calls++
			if calls == 1 {
				return fail, true
			}

			return ok("pip 23.0"), true
		}

		env, err := newProber().Probe(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(env.PipBootstrapped).To(BeTrue())
		Expect(runner.Called("/usr/bin/python3 -m ensurepip --upgrade")).To(BeTrue())
	})

	It("fails when ensurepip cannot help", func() {
		runner.On("/usr/bin/python3 -m pip --version", fail)
		runner.On("/usr/bin/python3 -m ensurepip --upgrade", exec.CommandResult{ExitCode: 1, Stderr: "disabled by distro"})

		_, err := newProber().Probe(context.Background())
		Expect(errors.Is(err, probe.ErrPackageManagerUnavailable)).To(BeTrue())
	})

	It("resolves the account without touching the runtime", func() {
		env, err := newProber().ResolveAccount()
		Expect(err).NotTo(HaveOccurred())
		Expect(env.HomeDir).To(Equal("/home/pi"))
		Expect(runner.Calls).To(BeEmpty())
	})
})
