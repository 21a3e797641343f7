package service

import (
	"fmt"
	"strings"

	"github.com/Strob0t/ClaimDesk/internal/domain"
	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
	"github.com/Strob0t/ClaimDesk/internal/domain/payload"
	"github.com/Strob0t/ClaimDesk/internal/domain/schema"
	"github.com/Strob0t/ClaimDesk/internal/port/inference"
)

// Action is Eloise's validated choice for a turn. The set of variants is
// closed: DelegateToCoverage, DelegateToTriage and NoAction.
type Action interface {
	isAction()
}

// DelegateToCoverage asks Chris for a coverage decision.
type DelegateToCoverage struct {
	Request payload.Fields
}

// DelegateToTriage asks Triage for urgent actions.
type DelegateToTriage struct {
	Request payload.Fields
}

// NoAction replies to the customer directly.
type NoAction struct {
	Text string
}

func (DelegateToCoverage) isAction() {}
func (DelegateToTriage) isAction()   {}
func (NoAction) isAction()           {}

// delegation returns the target and request of a delegating action.
func delegation(a Action) (agent.Identity, payload.Fields, bool) {
	switch v := a.(type) {
	case DelegateToCoverage:
		return agent.Coverage, v.Request, true
	case DelegateToTriage:
		return agent.Triage, v.Request, true
	}
	return "", nil, false
}

// parseAction validates a collaborator response into an Action before any
// business logic sees it. narrative fills a missing free-text field.
// Unknown function names degrade to NoAction with ErrUnknownAction;
// non-conforming arguments are completed and reported with
// ErrMalformedStructuredReply.
func parseAction(reg *schema.Registry, resp inference.Response, narrative string) (Action, error) {
	text := strings.TrimSpace(resp.Text)
	if !resp.HasCall() {
		return NoAction{Text: text}, nil
	}

	s, ok := reg.ActionFor(resp.Call.Name)
	if !ok {
		return NoAction{Text: text}, fmt.Errorf("%w: %q", domain.ErrUnknownAction, resp.Call.Name)
	}

	var defaults payload.Fields
	if s.NarrativeField != "" {
		defaults = payload.Fields{s.NarrativeField: narrative}
	}
	req, rep := s.CompleteRequest(string(resp.Call.Arguments), defaults)

	var a Action
	switch s.Specialist {
	case agent.Coverage:
		a = DelegateToCoverage{Request: req}
	case agent.Triage:
		a = DelegateToTriage{Request: req}
	default:
		return NoAction{Text: text}, fmt.Errorf("%w: %q targets %s", domain.ErrUnknownAction, resp.Call.Name, s.Specialist)
	}
	return a, rep.Err()
}
