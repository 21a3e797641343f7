// Package conversation defines the visible dialogue of a claim session.
package conversation

import (
	"fmt"
	"strings"

	"github.com/Strob0t/ClaimDesk/internal/domain"
	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
)

// DefaultGreeting seeds an empty conversation.
const DefaultGreeting = "Hi, I'm Eloise from claims. Tell me what happened and I'll help you get it sorted."

// narrativeMaxChars bounds the narrative summary of user utterances.
const narrativeMaxChars = 300

// Turn is a single utterance in the dialogue.
type Turn struct {
	Speaker agent.Identity `json:"speaker"`
	Text    string         `json:"text"`
}

// Transcript is the ordered, append-only sequence of turns.
type Transcript []Turn

// Seed returns t unchanged when non-empty, otherwise a transcript holding
// only the greeting.
func Seed(t Transcript) Transcript {
	if len(t) > 0 {
		return t
	}
	return Transcript{{Speaker: agent.Eloise, Text: DefaultGreeting}}
}

// Validate checks that the first turn is Eloise's greeting and that every
// speaker is known.
func (t Transcript) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: conversation is empty", domain.ErrValidation)
	}
	if t[0].Speaker != agent.Eloise {
		return fmt.Errorf("%w: conversation must start with an Eloise greeting", domain.ErrValidation)
	}
	for i := range t {
		if !t[i].Speaker.Valid() {
			return fmt.Errorf("%w: turn %d has unknown speaker %q", domain.ErrValidation, i, t[i].Speaker)
		}
	}
	return nil
}

// Append returns a copy of t with the turn added. The receiver's backing
// array is never written.
func (t Transcript) Append(speaker agent.Identity, text string) Transcript {
	out := make(Transcript, len(t), len(t)+1)
	copy(out, t)
	return append(out, Turn{Speaker: speaker, Text: text})
}

// AppendOnce is Append unless the last turn already carries the same
// speaker and text.
func (t Transcript) AppendOnce(speaker agent.Identity, text string) (Transcript, bool) {
	if n := len(t); n > 0 && t[n-1].Speaker == speaker && t[n-1].Text == text {
		return t, false
	}
	return t.Append(speaker, text), true
}

// UserTurns counts the turns spoken by the customer.
func (t Transcript) UserTurns() int {
	n := 0
	for i := range t {
		if t[i].Speaker == agent.User {
			n++
		}
	}
	return n
}

// UserTurnsAfter counts the customer turns that follow the last turn
// spoken by id. ok is false when id never spoke.
func (t Transcript) UserTurnsAfter(id agent.Identity) (n int, ok bool) {
	for i := len(t) - 1; i >= 0; i-- {
		switch t[i].Speaker {
		case id:
			return n, true
		case agent.User:
			n++
		}
	}
	return 0, false
}

// UserUtterances returns the customer's utterances in order.
func (t Transcript) UserUtterances() []string {
	var out []string
	for i := range t {
		if t[i].Speaker == agent.User {
			out = append(out, t[i].Text)
		}
	}
	return out
}

// Narrative joins the customer's utterances with " | " and keeps the last
// 300 characters.
func (t Transcript) Narrative() string {
	s := strings.Join(t.UserUtterances(), " | ")
	r := []rune(s)
	if len(r) > narrativeMaxChars {
		r = r[len(r)-narrativeMaxChars:]
	}
	return string(r)
}

// LastUserUtterance returns the most recent customer utterance, or "".
func (t Transcript) LastUserUtterance() string {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Speaker == agent.User {
			return t[i].Text
		}
	}
	return ""
}
