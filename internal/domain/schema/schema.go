// Package schema is the decision schema registry: for each specialist, the
// shape of the delegation it accepts, the structured decision it must
// return, and the templates that turn a decision into customer-facing text.
package schema

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Strob0t/ClaimDesk/internal/domain"
	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
	"github.com/Strob0t/ClaimDesk/internal/domain/payload"
)

// FieldType is the primitive type of a field.
type FieldType string

const (
	TypeString     FieldType = "string"
	TypeStringList FieldType = "array"
)

// Field describes one named field of a request or decision.
type Field struct {
	Name        string
	Type        FieldType
	Required    bool
	Enum        []string
	MinItems    int
	Description string
	Fallback    any
}

// accept returns the normalized value when v conforms to the field.
// Empty strings and lists shorter than MinItems do not conform.
func (f *Field) accept(v any) (any, bool) {
	switch f.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, false
		}
		if len(f.Enum) > 0 && !slices.Contains(f.Enum, s) {
			return nil, false
		}
		return s, true
	case TypeStringList:
		items := payload.Fields{f.Name: v}.Strings(f.Name)
		if items == nil {
			return nil, false
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			if it = strings.TrimSpace(it); it != "" {
				out = append(out, it)
			}
		}
		if len(out) < max(f.MinItems, 0) {
			return nil, false
		}
		return out, true
	}
	return nil, false
}

func (f *Field) fallback(defaults payload.Fields) any {
	if v, ok := defaults[f.Name]; ok {
		return v
	}
	if l, ok := f.Fallback.([]string); ok {
		return slices.Clone(l)
	}
	return f.Fallback
}

// Report describes how raw collaborator output was turned into Fields.
type Report struct {
	// Malformed is set when the arguments did not validate against the
	// compiled JSON Schema.
	Malformed bool
	// Reason holds the parse or validation failure.
	Reason string
	// Substituted lists fields replaced by their fallback.
	Substituted []string
	// Adjusted lists fields rewritten by a domain rule.
	Adjusted []string
}

// Err returns ErrMalformedStructuredReply when the input was malformed.
func (r *Report) Err() error {
	if !r.Malformed {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrMalformedStructuredReply, r.Reason)
}

// WasSubstituted reports whether the named field took its fallback.
func (r *Report) WasSubstituted(name string) bool {
	return slices.Contains(r.Substituted, name)
}

// Function is a named, schema-constrained structured call.
type Function struct {
	Name        string
	Description string
	Fields      []Field
	// Parameters is the JSON Schema offered to the inference collaborator.
	Parameters map[string]any
	validator  *jsonschema.Schema
}

// Field returns the named field definition.
func (f *Function) Field(name string) (Field, bool) {
	for i := range f.Fields {
		if f.Fields[i].Name == name {
			return f.Fields[i], true
		}
	}
	return Field{}, false
}

// Parse decodes raw JSON arguments and completes them. Invalid JSON is
// treated as an empty argument object.
func (f *Function) Parse(arguments string, defaults payload.Fields) (payload.Fields, Report) {
	var raw any
	if err := json.Unmarshal([]byte(arguments), &raw); err != nil {
		rep := Report{Malformed: true, Reason: "arguments are not valid JSON: " + err.Error()}
		fields, sub := f.complete(nil, defaults)
		rep.Substituted = sub
		return fields, rep
	}
	return f.Validate(raw, defaults)
}

// Validate checks decoded arguments against the compiled schema and
// completes every field, substituting fallbacks where needed.
func (f *Function) Validate(raw any, defaults payload.Fields) (payload.Fields, Report) {
	var rep Report
	if err := f.validator.Validate(raw); err != nil {
		rep.Malformed = true
		rep.Reason = err.Error()
	}
	obj, _ := raw.(map[string]any)
	fields, sub := f.complete(obj, defaults)
	rep.Substituted = sub
	return fields, rep
}

// Complete fills every field of the function from raw, falling back to
// defaults and then the field fallback. Unknown keys are dropped.
func (f *Function) Complete(raw payload.Fields, defaults payload.Fields) (payload.Fields, []string) {
	return f.complete(raw, defaults)
}

func (f *Function) complete(raw map[string]any, defaults payload.Fields) (payload.Fields, []string) {
	out := make(payload.Fields, len(f.Fields))
	var substituted []string
	for i := range f.Fields {
		fd := &f.Fields[i]
		if v, ok := fd.accept(raw[fd.Name]); ok {
			out[fd.Name] = v
			continue
		}
		out[fd.Name] = fd.fallback(defaults)
		substituted = append(substituted, fd.Name)
	}
	return out, substituted
}

// Schema binds a specialist to its delegation action, its decision
// function and its templates.
type Schema struct {
	Specialist agent.Identity
	// DisplayName is how Eloise refers to the specialist.
	DisplayName string
	// ActionCode tags delegation entries in the audit log.
	ActionCode string
	// Skill names the specialist on external surfaces (MCP tools, A2A skills).
	Skill      string
	Action     Function
	Decision   Function
	// PrimaryField selects among templated reply branches.
	PrimaryField string
	// NarrativeField is the free-text request field that falls back to the
	// customer's narrative.
	NarrativeField string
	// Instruction is appended to the specialist's prompt.
	Instruction string
	// Acknowledgement is Eloise's reply when she delegates.
	Acknowledgement string
	// Undetermined is the specialist's reply when no structured decision
	// was produced.
	Undetermined string

	reply     func(payload.Fields) string
	relay     func(payload.Fields) string
	normalize func(payload.Fields, *Report)
}

// CompleteDecision validates raw decision arguments, applies fallbacks and
// the specialist's domain rules.
func (s *Schema) CompleteDecision(arguments string) (payload.Fields, Report) {
	fields, rep := s.Decision.Parse(arguments, nil)
	if s.normalize != nil {
		s.normalize(fields, &rep)
	}
	return fields, rep
}

// CompleteRequest validates raw delegation arguments. defaults supply
// values taken from conversation text for missing fields.
func (s *Schema) CompleteRequest(arguments string, defaults payload.Fields) (payload.Fields, Report) {
	return s.Action.Parse(arguments, defaults)
}

// Reply renders the specialist's own reply for a decision.
func (s *Schema) Reply(decision payload.Fields) string {
	return strings.TrimSpace(s.reply(decision))
}

// Relay renders Eloise's customer-facing summary of a decision.
func (s *Schema) Relay(decision payload.Fields) string {
	return strings.TrimSpace(s.relay(decision))
}

// Primary returns the value of the decision's primary field as text.
func (s *Schema) Primary(decision payload.Fields) string {
	fd, _ := s.Decision.Field(s.PrimaryField)
	if fd.Type == TypeStringList {
		return strings.Join(decision.Strings(s.PrimaryField), ", ")
	}
	return decision.String(s.PrimaryField)
}
