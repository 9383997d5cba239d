// Package layout resolves the fixed filesystem roles of an installation.
package layout

import (
	"path/filepath"

	"github.com/voltwatch/victronctl/pkg/config"
)

// Layout holds every path an installation touches. Roles are fixed by the
// installer; locations come from config and the operator's home directory.
type Layout struct {
	InstallDir   string
	SourceScript string
	Manifest     string
	BinPath      string
	UnitDir      string
	UnitPath     string
	ServiceName  string
	ConfigDir    string
	ConfigFile   string
}

// For resolves the layout for the operator whose home is homeDir.
func For(cfg *config.Config, homeDir string) Layout {
	configDir := filepath.Join(homeDir, cfg.Paths.ConfigDirName)

	return Layout{
		InstallDir:   cfg.Paths.InstallDir,
		SourceScript: cfg.Paths.SourceScriptPath(),
		Manifest:     cfg.Paths.ManifestPath(),
		BinPath:      cfg.Paths.BinPath,
		UnitDir:      cfg.Paths.UnitDir,
		UnitPath:     cfg.UnitPath(),
		ServiceName:  cfg.Service.Name,
		ConfigDir:    configDir,
		ConfigFile:   filepath.Join(configDir, cfg.Paths.ConfigFile),
	}
}

// Rooted returns a copy with every absolute path re-rooted under root.
// Used by tests and by staged installs into an image directory.
func (l Layout) Rooted(root string) Layout {
	join := func(p string) string { return filepath.Join(root, p) }

	l.InstallDir = join(l.InstallDir)
	l.SourceScript = join(l.SourceScript)
	l.Manifest = join(l.Manifest)
	l.BinPath = join(l.BinPath)
	l.UnitDir = join(l.UnitDir)
	l.UnitPath = join(l.UnitPath)
	l.ConfigDir = join(l.ConfigDir)
	l.ConfigFile = join(l.ConfigFile)

	return l
}
