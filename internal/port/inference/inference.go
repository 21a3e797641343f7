// Package inference defines the port to the language-model collaborator
// that drafts replies and selects structured actions.
package inference

import (
	"context"
	"encoding/json"
)

// Role of a dialogue turn as seen by the collaborator.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of dialogue history.
type Message struct {
	Role Role
	Text string
}

// Action is a function the collaborator may select.
type Action struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object.
	Parameters map[string]any
}

// Request is a single inference call.
type Request struct {
	SystemPrompt string
	Turns        []Message
	Actions      []Action
	Model        string
	Temperature  *float64 // nil leaves the provider default
	MaxTokens    int
}

// Call is a structured action selected by the collaborator. Arguments is
// the raw JSON object as returned by the provider.
type Call struct {
	Name      string
	Arguments json.RawMessage
}

// Response carries free text, a structured call, or both.
type Response struct {
	Text string
	Call *Call
}

// HasCall reports whether the collaborator selected an action.
func (r Response) HasCall() bool {
	return r.Call != nil && r.Call.Name != ""
}

// Collaborator is implemented by the provider adapters.
type Collaborator interface {
	Infer(ctx context.Context, req Request) (Response, error)
}

// CollaboratorFunc adapts a function to Collaborator.
type CollaboratorFunc func(ctx context.Context, req Request) (Response, error)

// Infer calls f.
func (f CollaboratorFunc) Infer(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
