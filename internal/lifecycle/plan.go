package lifecycle

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/voltwatch/victronctl/internal/settings"
)

// diffContext is the number of unchanged lines shown around each hunk.
const diffContext = 3

// Plan previews the settings change an update would make.
type Plan struct {
	ConfigFile string
	Missing    bool
	AddedKeys  []string
	Diff       string
}

// PlanUpdate computes, without touching anything, which settings keys an
// update would add and the resulting unified diff.
func (m *Machine) PlanUpdate() (Plan, error) {
	env, err := m.account(false)
	if err != nil {
		return Plan{}, errors.Wrap(err, "resolving account")
	}

	s := m.newSession(env)
	if !s.markers.Installed() {
		return Plan{}, errors.WithHint(ErrNotInstalled, "use install")
	}

	path := s.layout.ConfigFile
	plan := Plan{ConfigFile: path}

	before, err := os.ReadFile(path) //nolint:gosec // path comes from the layout
	if err != nil && !os.IsNotExist(err) {
		return plan, errors.Mark(errors.Wrapf(err, "reading %s", path), settings.ErrSettings)
	}

	var after []byte

	if err != nil {
		plan.Missing = true
		plan.AddedKeys = m.template.Keys()
		after = settings.Render(m.template)
	} else {
		f := settings.Parse(before)
		plan.AddedKeys = f.Append(m.template.Entries...)
		after = f.Bytes()
	}

	if len(plan.AddedKeys) == 0 {
		return plan, nil
	}

	plan.Diff, err = difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: path,
		ToFile:   path,
		FromDate: "current",
		ToDate:   "after update",
		Context:  diffContext,
	})
	if err != nil {
		return plan, errors.Wrap(err, "diffing settings")
	}

	return plan, nil
}
