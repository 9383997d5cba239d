// Package report renders installation status for operators and scripts.
package report

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/voltwatch/victronctl/internal/color"
	"github.com/voltwatch/victronctl/internal/lifecycle"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Format selects the status rendering.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formats lists the accepted values of --output.
var Formats = []Format{FormatTable, FormatJSON, FormatYAML}

// ParseFormat validates s as a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))

	switch f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", errors.Wrapf(ErrUnknownFormat, "%q, want one of table, json, yaml", s)
	}
}

// Options tune table rendering.
type Options struct {
	Theme color.Theme
	Now   time.Time
}

// Render writes ins to w in format.
func Render(w io.Writer, ins lifecycle.Inspection, format Format, opts Options) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return errors.Wrap(enc.Encode(ins), "encoding status as JSON")

	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(ins); err != nil {
			return errors.Wrap(err, "encoding status as YAML")
		}

		return errors.Wrap(enc.Close(), "encoding status as YAML")

	case FormatTable:
		if opts.Now.IsZero() {
			opts.Now = time.Now()
		}

		_, err := io.WriteString(w, RenderTable(ins, opts.Theme, opts.Now)+"\n")

		return errors.Wrap(err, "writing status table")

	default:
		return errors.Wrapf(ErrUnknownFormat, "%q", string(format))
	}
}
