package lifecycle

import (
	"github.com/voltwatch/victronctl/internal/fsutil"
	"github.com/voltwatch/victronctl/internal/layout"
)

// Marker is one filesystem artifact that proves an installation exists.
type Marker struct {
	Path    string `json:"path"    yaml:"path"`
	Present bool   `json:"present" yaml:"present"`
}

// Markers is the installation evidence, computed once per run.
type Markers struct {
	InstallDir      Marker `json:"install_dir"      yaml:"install_dir"`
	UnitFile        Marker `json:"unit_file"        yaml:"unit_file"`
	BoundExecutable Marker `json:"bound_executable" yaml:"bound_executable"`
}

// DetectMarkers checks every marker path of l.
func DetectMarkers(l layout.Layout) Markers {
	return Markers{
		InstallDir:      detect(l.InstallDir),
		UnitFile:        detect(l.UnitPath),
		BoundExecutable: detect(l.BinPath),
	}
}

func detect(path string) Marker {
	return Marker{Path: path, Present: fsutil.Exists(path)}
}

// Installed is true when any marker is present. A partial installation
// counts as installed so a fresh install never overwrites it.
func (m Markers) Installed() bool {
	return m.InstallDir.Present || m.UnitFile.Present || m.BoundExecutable.Present
}

// Complete is true when every marker is present.
func (m Markers) Complete() bool {
	return m.InstallDir.Present && m.UnitFile.Present && m.BoundExecutable.Present
}

// State derives the machine state.
func (m Markers) State() State {
	if m.Installed() {
		return StatePresent
	}

	return StateAbsent
}

// State is the installation state seen at startup.
type State int

const (
	// StateAbsent means no marker exists.
	StateAbsent State = iota

	// StatePresent means at least one marker exists.
	StatePresent
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StatePresent:
		return "present"
	default:
		return "unknown"
	}
}
