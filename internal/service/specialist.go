package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	cdotel "github.com/Strob0t/ClaimDesk/internal/adapter/otel"
	"github.com/Strob0t/ClaimDesk/internal/config"
	"github.com/Strob0t/ClaimDesk/internal/domain"
	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
	"github.com/Strob0t/ClaimDesk/internal/domain/audit"
	"github.com/Strob0t/ClaimDesk/internal/domain/payload"
	"github.com/Strob0t/ClaimDesk/internal/domain/schema"
	"github.com/Strob0t/ClaimDesk/internal/port/inference"
)

const specialistFailureReply = "I'm sorry, %s is unavailable right now. Please try again in a moment."

// DecisionRequest asks one specialist for a structured decision.
type DecisionRequest struct {
	Specialist agent.Identity
	Payload    payload.Fields
	// Turn is the user-turn ordinal stamped on the decision entry.
	Turn  int
	Debug bool
}

// DecisionResult is the outcome of Decide. Decision is nil when the
// collaborator produced no structured result.
type DecisionResult struct {
	Specialist agent.Identity `json:"specialist"`
	Reply      string         `json:"reply"`
	Decision   payload.Fields `json:"decision,omitempty"`
	Entries    audit.Log      `json:"agent_log"`
	Trace      []string       `json:"debug,omitempty"`
}

// SpecialistService runs the Coverage and Triage decision engines.
type SpecialistService struct {
	llm      inference.Collaborator
	personas *PersonaService
	registry *schema.Registry
	agents   *config.Agents
	metrics  *cdotel.Metrics
	now      func() time.Time
}

// NewSpecialistService creates a SpecialistService.
func NewSpecialistService(
	llm inference.Collaborator,
	personas *PersonaService,
	registry *schema.Registry,
	agents *config.Agents,
) *SpecialistService {
	return &SpecialistService{
		llm:      llm,
		personas: personas,
		registry: registry,
		agents:   agents,
		now:      time.Now,
	}
}

// SetMetrics attaches metric instruments.
func (s *SpecialistService) SetMetrics(m *cdotel.Metrics) {
	s.metrics = m
}

// Decide asks the specialist's collaborator for exactly one structured
// decision. A usable result is returned alongside recoverable errors
// (ErrInferenceUnavailable, ErrUnknownAction, ErrMalformedStructuredReply);
// only a non-specialist target fails outright.
func (s *SpecialistService) Decide(ctx context.Context, req DecisionRequest) (*DecisionResult, error) {
	sch, err := s.registry.SchemaFor(req.Specialist)
	if err != nil {
		return nil, fmt.Errorf("decide: %w", err)
	}

	ctx, span := cdotel.StartAgentSpan(ctx, req.Specialist.String())
	defer span.End()

	trace := NewTrace(req.Debug)
	res := &DecisionResult{Specialist: req.Specialist}

	body, err := json.MarshalIndent(req.Payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("decide: encode payload: %w", err)
	}

	model := s.agents.For(req.Specialist)
	resp, err := callCollaborator(ctx, s.llm, s.metrics, req.Specialist, inference.Request{
		SystemPrompt: s.personas.Persona(ctx, req.Specialist),
		Turns: []inference.Message{{
			Role: inference.RoleUser,
			Text: "Eloise (claims agent) sent this JSON: " + string(body) + "\n" + sch.Instruction,
		}},
		Actions:     []inference.Action{actionOf(&sch.Decision)},
		Model:       model.Model,
		Temperature: &model.Temperature,
		MaxTokens:   model.MaxTokens,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		trace.Addf(req.Specialist, "API error: %v", err)
		slog.WarnContext(ctx, "specialist inference failed", "agent", req.Specialist, "error", err)
		res.Reply = fmt.Sprintf(specialistFailureReply, sch.DisplayName)
		res.Trace = trace.Lines()
		return res, fmt.Errorf("decide %s: %w", req.Specialist, err)
	}

	if !resp.HasCall() || resp.Call.Name != sch.Decision.Name {
		var unknown error
		switch {
		case resp.HasCall():
			unknown = fmt.Errorf("%w: %s called %q", domain.ErrUnknownAction, req.Specialist, resp.Call.Name)
			trace.Addf(req.Specialist, "Ignored unknown function %q.", resp.Call.Name)
		case resp.Text != "":
			trace.Addf(req.Specialist, "No function call made. LLM said: %s", resp.Text)
		default:
			trace.Addf(req.Specialist, "No function call or message from LLM.")
		}
		res.Reply = sch.Undetermined
		res.Trace = trace.Lines()
		return res, unknown
	}

	decision, rep := sch.CompleteDecision(string(resp.Call.Arguments))
	if len(rep.Substituted) > 0 || len(rep.Adjusted) > 0 {
		trace.Addf(req.Specialist, "Completed decision: substituted %v, adjusted %v.", rep.Substituted, rep.Adjusted)
	}

	entry, err := audit.NewEntry(req.Specialist, agent.Eloise, s.now(), req.Turn, "", decision)
	if err != nil {
		return nil, fmt.Errorf("decide %s: %w", req.Specialist, err)
	}
	res.Decision = decision
	res.Entries = audit.Log{entry}
	res.Reply = sch.Reply(decision)
	trace.Addf(req.Specialist, "%s: %s | Rationale: %s", sch.PrimaryField, sch.Primary(decision), decision.String("rationale"))
	res.Trace = trace.Lines()

	if s.metrics != nil {
		s.metrics.Decisions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("agent", req.Specialist.String()),
			attribute.Bool("malformed", rep.Malformed),
		))
	}
	slog.InfoContext(ctx, "specialist decision", "agent", req.Specialist, "primary", sch.Primary(decision), "malformed", rep.Malformed)

	return res, rep.Err()
}

// actionOf exposes a schema function to the collaborator.
func actionOf(fn *schema.Function) inference.Action {
	return inference.Action{Name: fn.Name, Description: fn.Description, Parameters: fn.Parameters}
}

// callCollaborator wraps an inference call with a span and metrics. All
// failures are reported as ErrInferenceUnavailable.
func callCollaborator(
	ctx context.Context,
	llm inference.Collaborator,
	m *cdotel.Metrics,
	who agent.Identity,
	req inference.Request,
) (inference.Response, error) {
	ctx, span := cdotel.StartInferenceSpan(ctx, who.String(), req.Model, len(req.Actions))
	defer span.End()

	start := time.Now()
	resp, err := llm.Infer(ctx, req)
	attrs := metric.WithAttributes(attribute.String("agent", who.String()))
	if m != nil {
		m.InferenceDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if m != nil {
			m.InferenceFailures.Add(ctx, 1, attrs)
		}
		if !errors.Is(err, domain.ErrInferenceUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrInferenceUnavailable, err)
		}
		return inference.Response{}, err
	}
	resp.Text = strings.TrimSpace(resp.Text)
	return resp, nil
}
