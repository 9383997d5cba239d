package config

import "path/filepath"

// CurrentConfigVersion is the latest installer config schema version.
const CurrentConfigVersion = 1

// Config represents the root configuration of the installer.
type Config struct {
	// Version is the config schema version. Defaults to 1 when omitted.
	Version int `json:"version,omitempty" koanf:"version" toml:"version,omitempty"`

	// Source describes where the agent source tree comes from.
	Source *SourceConfig `json:"source,omitempty" koanf:"source" toml:"source,omitempty"`

	// Paths fixes the roles of every path the installer touches.
	Paths *PathsConfig `json:"paths,omitempty" koanf:"paths" toml:"paths,omitempty"`

	// Runtime configures interpreter discovery.
	Runtime *RuntimeConfig `json:"runtime,omitempty" koanf:"runtime" toml:"runtime,omitempty"`

	// Service configures the systemd unit.
	Service *ServiceConfig `json:"service,omitempty" koanf:"service" toml:"service,omitempty"`

	// Exec configures external command execution.
	Exec *ExecConfig `json:"exec,omitempty" koanf:"exec" toml:"exec,omitempty"`

	// Log configures the installer's own log file.
	Log *LogConfig `json:"log,omitempty" koanf:"log" toml:"log,omitempty"`

	// Uninstall configures what an uninstall removes beyond the markers.
	Uninstall *UninstallConfig `json:"uninstall,omitempty" koanf:"uninstall" toml:"uninstall,omitempty"`
}

// SourceConfig describes the upstream repository of the agent.
type SourceConfig struct {
	// URL is the canonical clone URL. Re-clones always use it.
	URL string `json:"url" koanf:"url" toml:"url" jsonschema:"minLength=1"`

	// Remote is the remote name used for pulls.
	// Default: "origin"
	Remote string `json:"remote,omitempty" koanf:"remote" toml:"remote"`

	// Backend selects the git implementation ("sdk" or "cli").
	// Default: "sdk"
	Backend GitBackend `json:"backend,omitempty" koanf:"backend" toml:"backend" jsonschema:"enum=sdk,enum=cli"`
}

// PathsConfig holds the filesystem layout. Roles are fixed, locations are not.
type PathsConfig struct {
	// InstallDir holds the synchronized source tree.
	// Default: "/opt/victron_monitor"
	InstallDir string `json:"install_dir" koanf:"install_dir" toml:"install_dir"`

	// EntryScript is the agent entry point, relative to InstallDir.
	// Default: "victron_monitor.py"
	EntryScript string `json:"entry_script" koanf:"entry_script" toml:"entry_script"`

	// Manifest is the dependency manifest, relative to InstallDir.
	// Default: "requirements.txt"
	Manifest string `json:"manifest" koanf:"manifest" toml:"manifest"`

	// BinPath is where the bound executable is exposed.
	// Default: "/usr/local/bin/victron_monitor"
	BinPath string `json:"bin_path" koanf:"bin_path" toml:"bin_path"`

	// UnitDir is the systemd unit directory.
	// Default: "/etc/systemd/system"
	UnitDir string `json:"unit_dir" koanf:"unit_dir" toml:"unit_dir"`

	// ConfigDirName is the agent config directory below the operator's home.
	// Default: "victron_monitor"
	ConfigDirName string `json:"config_dir_name" koanf:"config_dir_name" toml:"config_dir_name"`

	// ConfigFile is the agent settings file name inside ConfigDirName.
	// Default: "settings.ini"
	ConfigFile string `json:"config_file" koanf:"config_file" toml:"config_file"`
}

// SourceScriptPath returns the absolute path of the entry script in the tree.
func (p *PathsConfig) SourceScriptPath() string {
	return filepath.Join(p.InstallDir, p.EntryScript)
}

// ManifestPath returns the absolute path of the dependency manifest.
func (p *PathsConfig) ManifestPath() string {
	return filepath.Join(p.InstallDir, p.Manifest)
}

// RuntimeConfig configures interpreter discovery.
type RuntimeConfig struct {
	// Candidates are interpreter names tried in order on PATH.
	Candidates []string `json:"candidates" koanf:"candidates" toml:"candidates"`

	// MinVersion is the lowest accepted interpreter version.
	// Default: "3.8.0"
	MinVersion string `json:"min_version" koanf:"min_version" toml:"min_version"`

	// BootstrapPackages are upgraded before the manifest is installed.
	// Default: ["pip", "setuptools", "wheel"]
	BootstrapPackages []string `json:"bootstrap_packages" koanf:"bootstrap_packages" toml:"bootstrap_packages"`
}

// ServiceConfig configures the systemd unit.
type ServiceConfig struct {
	// Name is the unit name including the ".service" suffix.
	// Default: "victron_monitor.service"
	Name string `json:"name" koanf:"name" toml:"name"`

	// Description is written into the [Unit] section.
	// Default: "Victron Monitoring Tool"
	Description string `json:"description" koanf:"description" toml:"description"`

	// StartOnInstall enables and starts the unit after a fresh install.
	// Default: true
	StartOnInstall *bool `json:"start_on_install,omitempty" koanf:"start_on_install" toml:"start_on_install,omitempty"`
}

// IsStartOnInstall returns whether a fresh install starts the service.
func (s *ServiceConfig) IsStartOnInstall() bool {
	if s == nil || s.StartOnInstall == nil {
		return true
	}

	return *s.StartOnInstall
}

// UnitPath returns the full path of the unit file.
func (c *Config) UnitPath() string {
	return filepath.Join(c.Paths.UnitDir, c.Service.Name)
}

// ExecConfig configures external command execution.
type ExecConfig struct {
	// Timeout bounds each external command. Zero means unbounded.
	// Default: "0s"
	Timeout Duration `json:"timeout,omitempty" koanf:"timeout" toml:"timeout"`
}

// LogConfig configures the installer log.
type LogConfig struct {
	// File is the installer log path.
	// Default: "/var/log/victronctl.log"
	File string `json:"file" koanf:"file" toml:"file"`

	// Level is one of DEBUG, INFO, ERROR.
	// Default: "INFO"
	Level string `json:"level" koanf:"level" toml:"level" jsonschema:"enum=DEBUG,enum=INFO,enum=ERROR"`
}

// UninstallConfig configures uninstall cleanup.
type UninstallConfig struct {
	// PurgePatterns are doublestar globs, relative to the agent config
	// directory, removed together with the settings file.
	PurgePatterns []string `json:"purge_patterns" koanf:"purge_patterns" toml:"purge_patterns"`
}
