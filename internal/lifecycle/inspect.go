package lifecycle

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/voltwatch/victronctl/internal/service"
	"github.com/voltwatch/victronctl/internal/source"
)

// Inspection is a read-only snapshot of an installation.
type Inspection struct {
	State    State          `json:"state"    yaml:"state"`
	Markers  Markers        `json:"markers"  yaml:"markers"`
	User     string         `json:"user"     yaml:"user"`
	Source   *SourceStatus  `json:"source"   yaml:"source"`
	Service  service.State  `json:"service"  yaml:"service"`
	Settings SettingsStatus `json:"settings" yaml:"settings"`
}

// SourceStatus is the checked-out revision, or why it could not be read.
type SourceStatus struct {
	Revision source.Revision `json:"revision"        yaml:"revision"`
	Error    string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// SettingsStatus describes the agent settings file.
type SettingsStatus struct {
	Path    string   `json:"path"            yaml:"path"`
	Present bool     `json:"present"         yaml:"present"`
	Size    int64    `json:"size"            yaml:"size"`
	Keys    int      `json:"keys"            yaml:"keys"`
	Missing []string `json:"missing"         yaml:"missing"`
	Error   string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// MarshalText lets State serialize as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Inspect gathers markers, revision, service state and settings health.
// It needs no privileges and changes nothing.
func (m *Machine) Inspect(ctx context.Context) (Inspection, error) {
	env, err := m.account(false)
	if err != nil {
		return Inspection{}, errors.Wrap(err, "resolving account")
	}

	s := m.newSession(env)
	l := s.layout

	ins := Inspection{
		State:    s.markers.State(),
		Markers:  s.markers,
		User:     env.Username,
		Service:  m.c.Services.State(ctx, l.ServiceName),
		Settings: SettingsStatus{Path: l.ConfigFile},
	}

	if s.markers.InstallDir.Present {
		ins.Source = &SourceStatus{}

		head, err := m.c.Source.Head(ctx, l.InstallDir)
		if err != nil {
			ins.Source.Error = err.Error()
		} else {
			ins.Source.Revision = head
		}
	}

	info, err := os.Stat(l.ConfigFile)
	if err != nil {
		if !os.IsNotExist(err) {
			ins.Settings.Error = err.Error()
		}

		return ins, nil
	}

	ins.Settings.Present = true
	ins.Settings.Size = info.Size()

	f, err := s.settings.Load(l.ConfigFile)
	if err != nil {
		ins.Settings.Error = err.Error()

		return ins, nil
	}

	ins.Settings.Keys = len(f.Keys())

	for _, key := range m.template.Keys() {
		if !f.Has(key) {
			ins.Settings.Missing = append(ins.Settings.Missing, key)
		}
	}

	return ins, nil
}
