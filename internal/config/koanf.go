package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	tomlparser "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/voltwatch/victronctl/pkg/config"
)

var (
	// ErrInvalidPermissions is returned when config file has insecure permissions.
	ErrInvalidPermissions = errors.New("config file has insecure permissions")

	// ErrConfigNotFound is returned when an explicitly requested config file is missing.
	ErrConfigNotFound = errors.New("configuration file not found")
)

// KoanfLoader handles configuration loading from multiple sources using koanf.
// Precedence order (highest to lowest):
// 1. CLI Flags
// 2. Environment Variables (VICTRONCTL_*)
// 3. Config file (/etc/victronctl/config.toml or --config)
// 4. Defaults
type KoanfLoader struct {
	k          *koanf.Koanf
	configPath string
	explicit   bool
	environ    func() []string
}

// NewKoanfLoader creates a loader. An empty configPath selects
// SystemConfigPath, which may be absent. An explicit path must exist.
func NewKoanfLoader(configPath string) *KoanfLoader {
	explicit := configPath != ""
	if !explicit {
		configPath = SystemConfigPath
	}

	return &KoanfLoader{
		k:          koanf.New("."),
		configPath: configPath,
		explicit:   explicit,
		environ:    os.Environ,
	}
}

// WithEnviron replaces the environment source, for tests.
func (l *KoanfLoader) WithEnviron(environ func() []string) *KoanfLoader {
	l.environ = environ

	return l
}

// ConfigPath returns the config file path the loader reads.
func (l *KoanfLoader) ConfigPath() string {
	return l.configPath
}

// Load loads configuration from all sources with precedence and validates it.
func (l *KoanfLoader) Load(flags map[string]any) (*config.Config, error) {
	cfg, err := l.LoadWithoutValidation(flags)
	if err != nil {
		return nil, err
	}

	if err := NewValidator().Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

// LoadWithoutValidation loads configuration without running validation.
func (l *KoanfLoader) LoadWithoutValidation(flags map[string]any) (*config.Config, error) {
	l.k = koanf.New(".")

	if err := l.k.Load(confmap.Provider(defaultsToMap(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	if err := l.loadTOMLFile(l.configPath); err != nil {
		switch {
		case os.IsNotExist(err) && l.explicit:
			return nil, errors.Wrapf(ErrConfigNotFound, "%s", l.configPath)
		case os.IsNotExist(err):
		default:
			return nil, errors.Wrap(err, "failed to load config file")
		}
	}

	envOpt := env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envTransform,
		EnvironFunc:   l.environ,
	}

	if err := l.k.Load(env.Provider(".", envOpt), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load env vars")
	}

	if len(flags) > 0 {
		if err := l.k.Load(confmap.Provider(flagsToConfig(flags), "."), nil); err != nil {
			return nil, errors.Wrap(err, "failed to load flags")
		}
	}

	decoderConfig := CustomDecoderConfig()

	var cfg config.Config
	if err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag:           "koanf",
		DecoderConfig: decoderConfig,
	}); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	return &cfg, nil
}

// loadTOMLFile loads a TOML configuration file with security checks.
func (l *KoanfLoader) loadTOMLFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	// the installer runs as root, so a world-writable file is a privilege escalation
	if info.Mode().Perm()&0o002 != 0 {
		return errors.Wrapf(
			ErrInvalidPermissions,
			"%s is world-writable (mode: %s)",
			path,
			info.Mode().Perm(),
		)
	}

	return l.k.Load(file.Provider(path), tomlparser.Parser())
}

// envTransform transforms environment variable names to config paths.
// The first segment is the section, the remainder is the key:
// VICTRONCTL_PATHS_INSTALL_DIR → paths.install_dir
func envTransform(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))

	section, rest, found := strings.Cut(key, "_")
	if !found {
		return section, value
	}

	return section + "." + rest, value
}

// flagsToConfig converts CLI flags to a configuration map.
func flagsToConfig(flags map[string]any) map[string]any {
	result := make(map[string]any)

	for key, value := range flags {
		switch key {
		case "git-backend":
			if s, ok := value.(string); ok && s != "" {
				result["source.backend"] = s
			}

		case "source-url":
			if s, ok := value.(string); ok && s != "" {
				result["source.url"] = s
			}

		case "log-level":
			if s, ok := value.(string); ok && s != "" {
				result["log.level"] = s
			}

		case "log-file":
			if s, ok := value.(string); ok && s != "" {
				result["log.file"] = s
			}

		case "no-start":
			if b, ok := value.(bool); ok && b {
				result["service.start_on_install"] = false
			}

		case "timeout":
			if s, ok := value.(string); ok && s != "" {
				result["exec.timeout"] = s
			}
		}
	}

	return result
}
