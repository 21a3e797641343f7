// Package audit defines the append-only record of inter-agent messages.
package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/ClaimDesk/internal/domain"
	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
	"github.com/Strob0t/ClaimDesk/internal/domain/payload"
)

// Kind distinguishes what an entry's payload carries.
type Kind string

const (
	// KindDelegation carries a delegation request (Eloise -> specialist).
	KindDelegation Kind = "delegation"
	// KindDecision carries a structured decision (specialist -> Eloise).
	KindDecision Kind = "decision"
)

// Entry is one immutable inter-agent message.
type Entry struct {
	ID      string         `json:"id,omitempty"`
	From    agent.Identity `json:"from"`
	To      agent.Identity `json:"to"`
	Time    time.Time      `json:"time"`
	Kind    Kind           `json:"kind,omitempty"`
	Action  string         `json:"action,omitempty"`
	Turn    int            `json:"turn,omitempty"` // 1-based user turn that produced the entry; 0 when unknown
	Payload payload.Fields `json:"payload"`
}

// NewEntry builds a validated entry with a fresh id. The kind is derived
// from the direction of the message.
func NewEntry(from, to agent.Identity, at time.Time, turn int, action string, p payload.Fields) (Entry, error) {
	e := Entry{
		ID:      uuid.NewString(),
		From:    from,
		To:      to,
		Time:    at.UTC(),
		Kind:    kindOf(from, to),
		Action:  action,
		Turn:    turn,
		Payload: p.Clone(),
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func kindOf(from, to agent.Identity) Kind {
	if from.IsSpecialist() && !to.IsSpecialist() {
		return KindDecision
	}
	return KindDelegation
}

// Validate checks identities and direction.
func (e *Entry) Validate() error {
	if !e.From.Valid() || !e.To.Valid() {
		return fmt.Errorf("%w: audit entry between unknown identities %q -> %q", domain.ErrValidation, e.From, e.To)
	}
	if e.From == e.To {
		return fmt.Errorf("%w: audit entry from %s to itself", domain.ErrValidation, e.From)
	}
	if e.Turn < 0 {
		return fmt.Errorf("%w: audit entry turn %d is negative", domain.ErrValidation, e.Turn)
	}
	return nil
}

// IsDecisionTo reports whether e is a specialist reply addressed to id.
func (e *Entry) IsDecisionTo(id agent.Identity) bool {
	return e.To == id && e.From.IsSpecialist()
}

// IsDelegation reports whether e asks a specialist for a decision.
func (e *Entry) IsDelegation() bool {
	return e.To.IsSpecialist() && !e.From.IsSpecialist()
}
