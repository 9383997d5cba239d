// Package config provides internal configuration loading and processing.
package config

import (
	"github.com/voltwatch/victronctl/pkg/config"
)

// Default values for the installer configuration.
const (
	DefaultSourceURL     = "https://github.com/voltwatch/victron_monitor.git"
	DefaultRemote        = "origin"
	DefaultInstallDir    = "/opt/victron_monitor"
	DefaultEntryScript   = "victron_monitor.py"
	DefaultManifest      = "requirements.txt"
	DefaultBinPath       = "/usr/local/bin/victron_monitor"
	DefaultUnitDir       = "/etc/systemd/system"
	DefaultConfigDirName = "victron_monitor"
	DefaultConfigFile    = "settings.ini"
	DefaultMinVersion    = "3.8.0"
	DefaultServiceName   = "victron_monitor.service"
	DefaultDescription   = "Victron Monitoring Tool"
	DefaultLogFile       = "/var/log/victronctl.log"
	DefaultLogLevel      = "INFO"

	// SystemConfigPath is where the installer looks for its own TOML config.
	SystemConfigPath = "/etc/victronctl/config.toml"

	// EnvPrefix prefixes environment overrides, e.g. VICTRONCTL_SOURCE_URL.
	EnvPrefix = "VICTRONCTL_"
)

// DefaultRuntimeCandidates lists interpreters tried in order.
var DefaultRuntimeCandidates = []string{
	"python3.13", "python3.12", "python3.11", "python3.10", "python3.9", "python3",
}

// DefaultBootstrapPackages are upgraded before the manifest is installed.
var DefaultBootstrapPackages = []string{"pip", "setuptools", "wheel"}

// DefaultPurgePatterns are agent runtime leftovers removed on uninstall.
var DefaultPurgePatterns = []string{
	"victron_monitor.log*",
	"dtek_schedule_cache.json",
	"*.session",
}

// DefaultConfig returns a Config with all default values populated.
func DefaultConfig() *config.Config {
	startOnInstall := true

	return &config.Config{
		Version: config.CurrentConfigVersion,
		Source: &config.SourceConfig{
			URL:     DefaultSourceURL,
			Remote:  DefaultRemote,
			Backend: config.GitBackendSDK,
		},
		Paths: &config.PathsConfig{
			InstallDir:    DefaultInstallDir,
			EntryScript:   DefaultEntryScript,
			Manifest:      DefaultManifest,
			BinPath:       DefaultBinPath,
			UnitDir:       DefaultUnitDir,
			ConfigDirName: DefaultConfigDirName,
			ConfigFile:    DefaultConfigFile,
		},
		Runtime: &config.RuntimeConfig{
			Candidates:        append([]string(nil), DefaultRuntimeCandidates...),
			MinVersion:        DefaultMinVersion,
			BootstrapPackages: append([]string(nil), DefaultBootstrapPackages...),
		},
		Service: &config.ServiceConfig{
			Name:           DefaultServiceName,
			Description:    DefaultDescription,
			StartOnInstall: &startOnInstall,
		},
		Exec: &config.ExecConfig{},
		Log: &config.LogConfig{
			File:  DefaultLogFile,
			Level: DefaultLogLevel,
		},
		Uninstall: &config.UninstallConfig{
			PurgePatterns: append([]string(nil), DefaultPurgePatterns...),
		},
	}
}

// defaultsToMap flattens the defaults for the koanf confmap provider.
func defaultsToMap() map[string]any {
	return map[string]any{
		"version":                    config.CurrentConfigVersion,
		"source.url":                 DefaultSourceURL,
		"source.remote":              DefaultRemote,
		"source.backend":             string(config.GitBackendSDK),
		"paths.install_dir":          DefaultInstallDir,
		"paths.entry_script":         DefaultEntryScript,
		"paths.manifest":             DefaultManifest,
		"paths.bin_path":             DefaultBinPath,
		"paths.unit_dir":             DefaultUnitDir,
		"paths.config_dir_name":      DefaultConfigDirName,
		"paths.config_file":          DefaultConfigFile,
		"runtime.candidates":         append([]string(nil), DefaultRuntimeCandidates...),
		"runtime.min_version":        DefaultMinVersion,
		"runtime.bootstrap_packages": append([]string(nil), DefaultBootstrapPackages...),
		"service.name":               DefaultServiceName,
		"service.description":        DefaultDescription,
		"service.start_on_install":   true,
		"exec.timeout":               "0s",
		"log.file":                   DefaultLogFile,
		"log.level":                  DefaultLogLevel,
		"uninstall.purge_patterns":   append([]string(nil), DefaultPurgePatterns...),
	}
}
