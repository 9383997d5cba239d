package service

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/cockroachdb/errors"
	"mvdan.cc/sh/v3/syntax"
)

// Unit defaults for the agent service.
const (
	DefaultAfter    = "network.target"
	DefaultRestart  = "always"
	DefaultWantedBy = "multi-user.target"
)

// ErrInvalidUnit is returned when a unit cannot be rendered.
var ErrInvalidUnit = errors.New("invalid unit definition")

// Unit is a systemd service definition supervising the bound executable.
type Unit struct {
	Name        string
	Path        string
	Description string
	ExecStart   string
	User        string
	Group       string
	After       string
	Restart     string
	WantedBy    string
}

// NewUnit returns a Unit with the agent defaults filled in.
func NewUnit(name, path, description, execStart, user, group string) Unit {
	return Unit{
		Name:        name,
		Path:        path,
		Description: description,
		ExecStart:   execStart,
		User:        user,
		Group:       group,
		After:       DefaultAfter,
		Restart:     DefaultRestart,
		WantedBy:    DefaultWantedBy,
	}
}

var unitTemplate = template.Must(template.New("unit").Funcs(template.FuncMap{
	"quote": quoteArg,
}).Parse(`[Unit]
Description={{ .Description }}
After={{ .After }}

[Service]
ExecStart={{ quote .ExecStart }}
Restart={{ .Restart }}
{{- if .User }}
User={{ .User }}
{{- end }}
{{- if .Group }}
Group={{ .Group }}
{{- end }}

[Install]
WantedBy={{ .WantedBy }}
`))

// Render produces the unit file content.
func (u Unit) Render() ([]byte, error) {
	if u.ExecStart == "" {
		return nil, errors.Wrap(ErrInvalidUnit, "ExecStart is empty")
	}

	for field, value := range map[string]string{
		"Description": u.Description,
		"ExecStart":   u.ExecStart,
		"User":        u.User,
		"Group":       u.Group,
	} {
		if strings.ContainsAny(value, "\r\n") {
			return nil, errors.Wrapf(ErrInvalidUnit, "%s spans lines", field)
		}
	}

	var buf bytes.Buffer
	if err := unitTemplate.Execute(&buf, u); err != nil {
		return nil, errors.Wrap(err, "rendering unit")
	}

	return buf.Bytes(), nil
}

// quoteArg quotes a path for ExecStart. systemd splits on whitespace and
// honours POSIX-style single quotes, so bash quoting is accepted.
func quoteArg(s string) (string, error) {
	quoted, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidUnit, "cannot quote %q: %v", s, err)
	}

	return quoted, nil
}
