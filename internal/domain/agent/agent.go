// Package agent defines the identities taking part in a claim conversation.
package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Strob0t/ClaimDesk/internal/domain"
)

// Identity names a participant: the customer, the intake agent or one of
// the specialists.
type Identity string

const (
	User     Identity = "User"
	Eloise   Identity = "Eloise"
	Coverage Identity = "Coverage"
	Triage   Identity = "Triage"
)

// aliases maps wire names used by older clients to identities.
var aliases = map[string]Identity{
	"you":            User,
	"user":           User,
	"eloise":         Eloise,
	"coverage":       Coverage,
	"chris":          Coverage,
	"chris_coverage": Coverage,
	"triage":         Triage,
}

// Parse resolves a wire name (case-insensitive, aliases accepted).
func Parse(s string) (Identity, error) {
	id, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: unknown identity %q", domain.ErrValidation, s)
	}
	return id, nil
}

// Valid reports whether id is one of the known identities.
func (id Identity) Valid() bool {
	switch id {
	case User, Eloise, Coverage, Triage:
		return true
	}
	return false
}

// IsSpecialist reports whether id is a decision-focused sub-agent.
func (id Identity) IsSpecialist() bool {
	return id == Coverage || id == Triage
}

// Specialists returns the specialist identities in registry order.
func Specialists() []Identity {
	return []Identity{Coverage, Triage}
}

// PromptName is the persona resource name used for this identity.
func (id Identity) PromptName() string {
	switch id {
	case Coverage:
		return "chris_coverage"
	default:
		return strings.ToLower(string(id))
	}
}

func (id Identity) String() string { return string(id) }

// UnmarshalJSON accepts canonical names and legacy aliases.
func (id *Identity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
