// Package config provides configuration schema types for victronctl.
package config

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
)

var (
	// ErrNegativeDuration is returned when a negative duration is provided.
	ErrNegativeDuration = errors.New("duration must be non-negative")

	// ErrInvalidGitBackend is returned for an unknown source.backend value.
	ErrInvalidGitBackend = errors.New("invalid git backend")
)

// GitBackend selects how the source tree is synchronized.
type GitBackend string

const (
	// GitBackendSDK uses the embedded go-git implementation.
	GitBackendSDK GitBackend = "sdk"

	// GitBackendCLI shells out to the git binary.
	GitBackendCLI GitBackend = "cli"
)

// Validate checks that the backend is one of the known values.
func (b GitBackend) Validate() error {
	switch b {
	case GitBackendSDK, GitBackendCLI:
		return nil
	default:
		return errors.Wrapf(ErrInvalidGitBackend, "%q (want %q or %q)", string(b), GitBackendSDK, GitBackendCLI)
	}
}

// JSONSchema returns the JSON Schema for the GitBackend type.
func (GitBackend) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Enum:        []any{string(GitBackendSDK), string(GitBackendCLI)},
		Description: "Git implementation used to synchronize the source tree",
	}
}

// Duration wraps time.Duration for TOML parsing.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrap(err, "invalid duration")
	}

	if dur < 0 {
		return errors.Wrapf(ErrNegativeDuration, "got %s", dur)
	}

	*d = Duration(dur)

	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML serialization.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// String returns the string representation of the duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// ToDuration converts Duration to time.Duration.
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}

// JSONSchema returns the JSON Schema for the Duration type.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
		Description: "Go duration string",
		Examples:    []any{"0s", "90s", "5m"},
	}
}
