package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	cdotel "github.com/Strob0t/ClaimDesk/internal/adapter/otel"
	"github.com/Strob0t/ClaimDesk/internal/config"
	"github.com/Strob0t/ClaimDesk/internal/domain"
	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
	"github.com/Strob0t/ClaimDesk/internal/domain/audit"
	"github.com/Strob0t/ClaimDesk/internal/domain/conversation"
	"github.com/Strob0t/ClaimDesk/internal/domain/schema"
	"github.com/Strob0t/ClaimDesk/internal/port/inference"
)

const (
	// GenericApology is shown when the collaborator cannot be reached.
	GenericApology = "I'm sorry, I'm having trouble right now. Please try again in a moment."
	// GenericPrompt replaces an empty free-text reply.
	GenericPrompt = "I'm here to help. Could you tell me a bit more about what happened?"
)

// OrchestratorInput is one invocation of Eloise. Conversation already
// holds the latest user turn.
type OrchestratorInput struct {
	Conversation conversation.Transcript
	Log          audit.Log
	Debug        bool
}

// OrchestratorResult is what Eloise produced for a turn.
type OrchestratorResult struct {
	Reply string `json:"reply"`
	// Route is the branch taken after DECIDE_ACTION, or DONE on failure.
	Route      State          `json:"state"`
	Path       []State        `json:"path"`
	Log        audit.Log      `json:"agent_log"`
	Delta      audit.Log      `json:"delta"`
	Trace      []string       `json:"debug,omitempty"`
	Narrative  string         `json:"narrative"`
	Transcript []string       `json:"transcript"`
	Action     Action         `json:"-"`
	Delegated  agent.Identity `json:"delegated,omitempty"`
}

// OrchestratorService is Eloise: it relays pending decisions, delegates
// to specialists or replies directly.
type OrchestratorService struct {
	llm      inference.Collaborator
	personas *PersonaService
	registry *schema.Registry
	agents   *config.Agents
	orchCfg  *config.Orchestrator
	metrics  *cdotel.Metrics
	now      func() time.Time
}

// NewOrchestratorService creates an OrchestratorService with all dependencies.
func NewOrchestratorService(
	llm inference.Collaborator,
	personas *PersonaService,
	registry *schema.Registry,
	agents *config.Agents,
	orchCfg *config.Orchestrator,
) *OrchestratorService {
	return &OrchestratorService{
		llm:      llm,
		personas: personas,
		registry: registry,
		agents:   agents,
		orchCfg:  orchCfg,
		now:      time.Now,
	}
}

// SetMetrics attaches metric instruments.
func (s *OrchestratorService) SetMetrics(m *cdotel.Metrics) {
	s.metrics = m
}

// RelayPending returns the decision Eloise should relay for the current
// turn. A decision qualifies when it is the latest one addressed to Eloise
// and no user turn arrived after it. With lag set, a decision from the
// previous user turn also qualifies; this serves callers that skip the
// in-turn relay pass.
//
// Entries without a turn (caller-built logs) are anchored on the
// specialist's last reply in the transcript. A decision whose reply never
// reached the transcript is not relayed.
func RelayPending(conv conversation.Transcript, log audit.Log, lag bool) (audit.Entry, bool) {
	e, ok := log.LatestDecisionTo(agent.Eloise)
	if !ok {
		return audit.Entry{}, false
	}
	newer := conv.UserTurns() - e.Turn
	if e.Turn == 0 {
		newer, ok = conv.UserTurnsAfter(e.From)
		if !ok {
			return audit.Entry{}, false
		}
	}
	if newer == 0 || (lag && newer == 1) {
		return e, true
	}
	return audit.Entry{}, false
}

// Handle runs one pass of the routing state machine. The returned result
// is usable even when err is a recoverable sentinel.
func (s *OrchestratorService) Handle(ctx context.Context, in OrchestratorInput) (*OrchestratorResult, error) {
	ctx, span := cdotel.StartAgentSpan(ctx, agent.Eloise.String())
	defer span.End()

	r := newRoute()
	trace := NewTrace(in.Debug)
	res := &OrchestratorResult{
		Log:        in.Log,
		Narrative:  in.Conversation.Narrative(),
		Transcript: in.Conversation.UserUtterances(),
	}
	r.fire(EventInput)

	finish := func(err error) (*OrchestratorResult, error) {
		r.fire(EventReplied)
		res.Route = r.branch()
		res.Path = r.path
		res.Trace = trace.Lines()
		span.SetAttributes(attribute.String("claimdesk.route", res.Route.String()))
		return res, err
	}

	if e, ok := RelayPending(in.Conversation, in.Log, !s.orchCfg.RelayAfterDelegation); ok {
		sch, err := s.registry.SchemaFor(e.From)
		if err != nil {
			return nil, fmt.Errorf("relay: %w", err)
		}
		r.fire(EventPendingDecision)
		res.Reply = sch.Relay(e.Payload)
		trace.Addf(agent.Eloise, "Relaying %s decision from turn %d.", sch.DisplayName, e.Turn)
		if s.metrics != nil {
			s.metrics.Relays.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", e.From.String())))
		}
		return finish(nil)
	}

	model := s.agents.For(agent.Eloise)
	resp, err := callCollaborator(ctx, s.llm, s.metrics, agent.Eloise, inference.Request{
		SystemPrompt: s.personas.Persona(ctx, agent.Eloise),
		Turns:        dialogue(in.Conversation),
		Actions:      s.delegationActions(),
		Model:        model.Model,
		Temperature:  &model.Temperature,
		MaxTokens:    model.MaxTokens,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		r.fire(EventFailure)
		res.Route = r.branch()
		res.Path = r.path
		res.Reply = GenericApology
		trace.Addf(agent.Eloise, "API error: %v", err)
		res.Trace = trace.Lines()
		slog.WarnContext(ctx, "orchestrator inference failed", "error", err)
		return res, fmt.Errorf("orchestrate: %w", err)
	}

	action, actErr := parseAction(s.registry, resp, res.Narrative)
	if actErr != nil {
		trace.Addf(agent.Eloise, "%v", actErr)
	}
	res.Action = action

	target, request, ok := delegation(action)
	if !ok {
		r.fire(EventNoAction)
		res.Reply = action.(NoAction).Text
		if res.Reply == "" {
			res.Reply = GenericPrompt
		}
		return finish(actErr)
	}

	sch := s.registry.MustSchemaFor(target)
	entry, err := audit.NewEntry(agent.Eloise, target, s.now(), in.Conversation.UserTurns(), sch.ActionCode, request)
	if err != nil {
		return nil, fmt.Errorf("orchestrate: %w", err)
	}
	r.fire(EventDelegationChosen)
	res.Log = in.Log.Append(entry)
	res.Delta = res.Log.Since(len(in.Log))
	res.Delegated = target
	res.Reply = sch.Acknowledgement
	trace.Addf(agent.Eloise, "Delegating to %s with %s.", sch.DisplayName, sch.ActionCode)
	if s.metrics != nil {
		s.metrics.Delegations.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", target.String())))
	}
	slog.InfoContext(ctx, "delegation", "agent", target, "action", sch.ActionCode)

	// Only malformed arguments survive a delegation; an unknown action
	// would have produced NoAction.
	if actErr != nil && !errors.Is(actErr, domain.ErrMalformedStructuredReply) {
		actErr = nil
	}
	return finish(actErr)
}

func (s *OrchestratorService) delegationActions() []inference.Action {
	schemas := s.registry.Schemas()
	out := make([]inference.Action, 0, len(schemas))
	for _, sch := range schemas {
		out = append(out, actionOf(&sch.Action))
	}
	return out
}

// dialogue maps the transcript onto collaborator roles. Only the customer
// speaks as user; every agent turn is the assistant's.
func dialogue(t conversation.Transcript) []inference.Message {
	out := make([]inference.Message, 0, len(t))
	for i := range t {
		role := inference.RoleAssistant
		if t[i].Speaker == agent.User {
			role = inference.RoleUser
		}
		out = append(out, inference.Message{Role: role, Text: t[i].Text})
	}
	return out
}
