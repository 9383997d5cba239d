package config

import (
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"

	"github.com/voltwatch/victronctl/pkg/config"
	"github.com/voltwatch/victronctl/pkg/logger"
)

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyValue is returned when a required value is empty.
	ErrEmptyValue = errors.New("empty value not allowed")

	// ErrRelativePath is returned when a path that must be absolute is not.
	ErrRelativePath = errors.New("path must be absolute")

	// ErrInvalidOption is returned when an option value is invalid.
	ErrInvalidOption = errors.New("invalid option value")
)

const serviceSuffix = ".service"

// Validator validates configuration semantics.
type Validator struct{}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the entire configuration.
// Returns an error describing all validation failures.
func (v *Validator) Validate(cfg *config.Config) error {
	if cfg == nil {
		return errors.WithMessage(ErrInvalidConfig, "config is nil")
	}

	var validationErrors []error

	validationErrors = append(validationErrors, v.validateSource(cfg.Source)...)
	validationErrors = append(validationErrors, v.validatePaths(cfg.Paths)...)
	validationErrors = append(validationErrors, v.validateRuntime(cfg.Runtime)...)
	validationErrors = append(validationErrors, v.validateService(cfg.Service)...)
	validationErrors = append(validationErrors, v.validateLog(cfg.Log)...)
	validationErrors = append(validationErrors, v.validateUninstall(cfg.Uninstall)...)

	if cfg.Exec != nil && cfg.Exec.Timeout < 0 {
		validationErrors = append(validationErrors,
			errors.Wrap(config.ErrNegativeDuration, "exec.timeout"))
	}

	if len(validationErrors) > 0 {
		details := make([]string, len(validationErrors))
		for i, e := range validationErrors {
			details[i] = e.Error()
		}

		return errors.WithSecondaryError(
			errors.Wrapf(
				ErrInvalidConfig,
				"validation failed with %d error(s): %s",
				len(validationErrors),
				strings.Join(details, "; "),
			),
			combineErrors(validationErrors),
		)
	}

	return nil
}

func (*Validator) validateSource(cfg *config.SourceConfig) []error {
	if cfg == nil {
		return []error{errors.Wrap(ErrEmptyValue, "source")}
	}

	var errs []error

	if strings.TrimSpace(cfg.URL) == "" {
		errs = append(errs, errors.Wrap(ErrEmptyValue, "source.url"))
	}

	if cfg.Remote == "" {
		errs = append(errs, errors.Wrap(ErrEmptyValue, "source.remote"))
	}

	if err := cfg.Backend.Validate(); err != nil {
		errs = append(errs, errors.Wrap(err, "source.backend"))
	}

	return errs
}

func (*Validator) validatePaths(cfg *config.PathsConfig) []error {
	if cfg == nil {
		return []error{errors.Wrap(ErrEmptyValue, "paths")}
	}

	var errs []error

	absolute := map[string]string{
		"paths.install_dir": cfg.InstallDir,
		"paths.bin_path":    cfg.BinPath,
		"paths.unit_dir":    cfg.UnitDir,
	}

	for _, key := range []string{"paths.install_dir", "paths.bin_path", "paths.unit_dir"} {
		switch value := absolute[key]; {
		case value == "":
			errs = append(errs, errors.Wrap(ErrEmptyValue, key))
		case !filepath.IsAbs(value):
			errs = append(errs, errors.Wrapf(ErrRelativePath, "%s: %q", key, value))
		}
	}

	relative := []struct {
		key, value string
	}{
		{"paths.entry_script", cfg.EntryScript},
		{"paths.manifest", cfg.Manifest},
		{"paths.config_dir_name", cfg.ConfigDirName},
		{"paths.config_file", cfg.ConfigFile},
	}

	for _, r := range relative {
		switch {
		case r.value == "":
			errs = append(errs, errors.Wrap(ErrEmptyValue, r.key))
		case filepath.IsAbs(r.value) || strings.HasPrefix(filepath.Clean(r.value), ".."):
			errs = append(errs, errors.Wrapf(ErrInvalidOption,
				"%s must stay relative to its parent: %q", r.key, r.value))
		}
	}

	return errs
}

func (*Validator) validateRuntime(cfg *config.RuntimeConfig) []error {
	if cfg == nil {
		return []error{errors.Wrap(ErrEmptyValue, "runtime")}
	}

	var errs []error

	if len(cfg.Candidates) == 0 {
		errs = append(errs, errors.Wrap(ErrEmptyValue, "runtime.candidates"))
	}

	if _, err := semver.NewVersion(cfg.MinVersion); err != nil {
		errs = append(errs, errors.Wrapf(ErrInvalidOption,
			"runtime.min_version %q: %v", cfg.MinVersion, err))
	}

	return errs
}

func (*Validator) validateService(cfg *config.ServiceConfig) []error {
	if cfg == nil {
		return []error{errors.Wrap(ErrEmptyValue, "service")}
	}

	var errs []error

	switch {
	case cfg.Name == "":
		errs = append(errs, errors.Wrap(ErrEmptyValue, "service.name"))
	case !strings.HasSuffix(cfg.Name, serviceSuffix) || strings.ContainsRune(cfg.Name, '/'):
		errs = append(errs, errors.Wrapf(ErrInvalidOption,
			"service.name must be a bare unit name ending in %s, got %q", serviceSuffix, cfg.Name))
	}

	if strings.ContainsAny(cfg.Description, "\r\n") {
		errs = append(errs, errors.Wrap(ErrInvalidOption, "service.description must be a single line"))
	}

	return errs
}

func (*Validator) validateLog(cfg *config.LogConfig) []error {
	if cfg == nil {
		return nil
	}

	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return []error{errors.Wrap(err, "log.level")}
	}

	return nil
}

func (*Validator) validateUninstall(cfg *config.UninstallConfig) []error {
	if cfg == nil {
		return nil
	}

	var errs []error

	for _, pattern := range cfg.PurgePatterns {
		if !doublestar.ValidatePattern(pattern) {
			errs = append(errs, errors.Wrapf(ErrInvalidOption,
				"uninstall.purge_patterns: invalid glob %q", pattern))

			continue
		}

		if filepath.IsAbs(pattern) || strings.HasPrefix(pattern, "..") {
			errs = append(errs, errors.Wrapf(ErrInvalidOption,
				"uninstall.purge_patterns: %q escapes the config directory", pattern))
		}
	}

	return errs
}

// combineErrors combines multiple errors into a single error.
func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	return errors.Join(errs...)
}
