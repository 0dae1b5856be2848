package param

import (
	"reflect"

	"github.com/invopop/jsonschema"
)

var rawMessageType = reflect.TypeOf(RawJSON(nil))

// Schema describes the declaration as a JSON Schema object: one property
// per parameter in declaration order, required parameters listed, and
// additionalProperties closed unless the declaration allows extras.
func (d *Declaration) Schema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: jsonschema.NewProperties(),
	}
	for _, sp := range d.specs {
		s.Properties.Set(sp.name, schemaForType(sp.typ))
		if sp.required {
			s.Required = append(s.Required, sp.name)
		}
	}
	if !d.allowExtra {
		s.AdditionalProperties = jsonschema.FalseSchema
	}
	return s
}

func schemaForType(t reflect.Type) *jsonschema.Schema {
	if t == nil || t == rawMessageType {
		return &jsonschema.Schema{}
	}
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}
	s := r.ReflectFromType(t)
	if s == nil {
		return &jsonschema.Schema{}
	}
	s.Version = ""
	s.ID = ""
	return s
}
