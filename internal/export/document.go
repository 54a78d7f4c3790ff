package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/shpitdev/prospect-pipeline/internal/lead"
)

// JSON writes leads as an indented JSON array using the model's field names.
func JSON(w io.Writer, leads []lead.Lead) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(leads); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}

// YAML writes leads as a YAML sequence using the model's field names.
func YAML(w io.Writer, leads []lead.Lead) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(leads); err != nil {
		return eris.Wrap(err, "export: encode yaml")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "export: close yaml")
	}
	return nil
}
