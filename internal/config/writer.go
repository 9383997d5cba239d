package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/voltwatch/victronctl/internal/fsutil"
	"github.com/voltwatch/victronctl/internal/schema"
	"github.com/voltwatch/victronctl/pkg/config"
)

const (
	// ConfigFileMode is the file mode for configuration files.
	ConfigFileMode = 0o600

	// ConfigDirMode is the file mode for configuration directories.
	ConfigDirMode = 0o755
)

// ErrConfigExists is returned when WriteFile would overwrite an existing file.
var ErrConfigExists = errors.New("configuration file already exists")

// Writer handles writing configuration to TOML.
type Writer struct {
	// force allows overwriting an existing file.
	force bool
}

// NewWriter creates a new Writer that refuses to overwrite files.
func NewWriter() *Writer {
	return &Writer{}
}

// NewForceWriter creates a Writer that overwrites existing files.
func NewForceWriter() *Writer {
	return &Writer{force: true}
}

// Encode renders cfg as TOML with the schema directive on top.
func (*Writer) Encode(out io.Writer, cfg *config.Config) error {
	if cfg == nil {
		return errors.Wrap(ErrInvalidConfig, "config is nil")
	}

	var buf bytes.Buffer

	buf.WriteString(schema.SchemaDirective())
	buf.WriteByte('\n')

	encoder := toml.NewEncoder(&buf)
	encoder.SetIndentTables(true)

	if err := encoder.Encode(cfg); err != nil {
		return errors.Wrap(err, "failed to encode config to TOML")
	}

	_, err := out.Write(buf.Bytes())

	return errors.Wrap(err, "failed to write config")
}

// WriteFile writes cfg to path atomically.
func (w *Writer) WriteFile(path string, cfg *config.Config) error {
	if !w.force && fsutil.Exists(path) {
		return errors.Wrapf(ErrConfigExists, "%s", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, ConfigDirMode); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	var buf bytes.Buffer
	if err := w.Encode(&buf, cfg); err != nil {
		return err
	}

	if err := fsutil.AtomicWriteFile(path, buf.Bytes(), ConfigFileMode); err != nil {
		return errors.Wrapf(err, "failed to write config file %s", path)
	}

	return nil
}
