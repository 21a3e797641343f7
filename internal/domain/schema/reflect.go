package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaBaseURL = "https://claimdesk.local/schemas/"

// reflectFunction builds a Function from a typed struct: the struct is
// reflected into a JSON Schema, the schema is compiled for validation and
// its properties become the function's fields.
func reflectFunction(name, description string, v any, fallbacks map[string]any) (Function, error) {
	r := &invopop.Reflector{
		Anonymous:                 true,
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(v)

	raw, err := json.Marshal(s)
	if err != nil {
		return Function{}, fmt.Errorf("marshal schema %s: %w", name, err)
	}

	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return Function{}, fmt.Errorf("decode schema %s: %w", name, err)
	}
	delete(params, "$schema")
	delete(params, "$id")

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := schemaBaseURL + name + ".json"
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return Function{}, fmt.Errorf("add schema %s: %w", name, err)
	}
	validator, err := c.Compile(url)
	if err != nil {
		return Function{}, fmt.Errorf("compile schema %s: %w", name, err)
	}

	fn := Function{
		Name:        name,
		Description: description,
		Parameters:  params,
		validator:   validator,
	}
	if s.Properties == nil {
		return fn, nil
	}
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		p := pair.Value
		fd := Field{
			Name:        pair.Key,
			Type:        FieldType(p.Type),
			Required:    slices.Contains(s.Required, pair.Key),
			Description: p.Description,
			Fallback:    fallbacks[pair.Key],
		}
		for _, e := range p.Enum {
			if es, ok := e.(string); ok {
				fd.Enum = append(fd.Enum, es)
			}
		}
		if p.MinItems != nil {
			fd.MinItems = int(*p.MinItems)
		}
		fn.Fields = append(fn.Fields, fd)
	}
	return fn, nil
}
