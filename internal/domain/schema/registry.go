package schema

import (
	"fmt"
	"sync"

	"github.com/Strob0t/ClaimDesk/internal/domain"
	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
)

// Registry maps each specialist to its Schema. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	order      []*Schema
	byID       map[agent.Identity]*Schema
	byAction   map[string]*Schema
	byDecision map[string]*Schema
	bySkill    map[string]*Schema
}

// NewRegistry builds the registry for all specialists.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		byID:       make(map[agent.Identity]*Schema),
		byAction:   make(map[string]*Schema),
		byDecision: make(map[string]*Schema),
		bySkill:    make(map[string]*Schema),
	}
	for _, build := range []func() (*Schema, error){newCoverageSchema, newTriageSchema} {
		s, err := build()
		if err != nil {
			return nil, fmt.Errorf("build schema: %w", err)
		}
		r.order = append(r.order, s)
		r.byID[s.Specialist] = s
		r.byAction[s.Action.Name] = s
		r.byDecision[s.Decision.Name] = s
		r.bySkill[s.Skill] = s
	}
	return r, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry. Schemas are static, so a
// build failure panics.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := NewRegistry()
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// SchemaFor returns the schema for a specialist. The same pointer is
// returned on every call.
func (r *Registry) SchemaFor(id agent.Identity) (*Schema, error) {
	s, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("schema for %q: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

// MustSchemaFor is SchemaFor for identities known to be specialists.
func (r *Registry) MustSchemaFor(id agent.Identity) *Schema {
	s, err := r.SchemaFor(id)
	if err != nil {
		panic(err)
	}
	return s
}

// ActionFor resolves a delegation action name such as send_to_chris.
func (r *Registry) ActionFor(name string) (*Schema, bool) {
	s, ok := r.byAction[name]
	return s, ok
}

// DecisionFor resolves a decision function name such as triage_action.
func (r *Registry) DecisionFor(name string) (*Schema, bool) {
	s, ok := r.byDecision[name]
	return s, ok
}

// SkillFor resolves an external skill name such as check_coverage.
func (r *Registry) SkillFor(name string) (*Schema, bool) {
	s, ok := r.bySkill[name]
	return s, ok
}

// Schemas returns all schemas in registration order.
func (r *Registry) Schemas() []*Schema {
	return append([]*Schema(nil), r.order...)
}

// Actions returns the delegation actions offered to Eloise.
func (r *Registry) Actions() []*Function {
	out := make([]*Function, 0, len(r.order))
	for _, s := range r.order {
		out = append(out, &s.Action)
	}
	return out
}
