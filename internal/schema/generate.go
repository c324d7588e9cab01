// Package schema generates JSON Schema for the plugin manifest.
package schema

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"

	pluginapi "github.com/luma-launcher/luma/pkg/plugin"
)

const (
	schemaURI = "https://json-schema.org/draft/2020-12/schema"
	title     = "luma plugin manifest"
	filename  = "metadata.schema.json"
)

// Filename returns the schema file name.
func Filename() string {
	return filename
}

// Generate produces a JSON Schema from the plugin metadata struct.
func Generate() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
	}

	s := r.Reflect(&pluginapi.Metadata{})
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
