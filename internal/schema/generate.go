// Package schema generates JSON Schema from the victronctl config types.
package schema

//go:generate go run github.com/voltwatch/victronctl/cmd/schema-gen ../..

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"

	"github.com/voltwatch/victronctl/pkg/config"
)

const (
	schemaURI = "https://json-schema.org/draft/2020-12/schema"
	title     = "victronctl configuration"

	filename = "victronctl.schema.json"

	// SchemaURL is where the published schema lives, referenced by editors.
	SchemaURL = "https://raw.githubusercontent.com/voltwatch/victronctl/main/" + filename
)

// Filename is the name of the published schema file at the repository root.
func Filename() string {
	return filename
}

// Generate produces a JSON Schema from the config.Config struct.
func Generate() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
	}

	s := r.Reflect(&config.Config{})
	s.Version = schemaURI
	s.Title = title

	return s
}

// GenerateJSON produces a JSON Schema as bytes.
// When indent is true, the output is pretty-printed.
func GenerateJSON(indent bool) ([]byte, error) {
	s := Generate()

	var (
		data []byte
		err  error
	)

	if indent {
		data, err = json.MarshalIndent(s, "", "  ")
	} else {
		data, err = json.Marshal(s)
	}

	if err != nil {
		return nil, errors.Wrap(err, "marshaling schema to JSON")
	}

	// Append trailing newline for file output.
	return append(data, '\n'), nil
}

// SchemaDirective returns the Taplo schema comment placed atop written TOML.
func SchemaDirective() string {
	return "#:schema " + SchemaURL
}
