package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	cdotel "github.com/Strob0t/ClaimDesk/internal/adapter/otel"
	"github.com/Strob0t/ClaimDesk/internal/config"
	"github.com/Strob0t/ClaimDesk/internal/domain"
	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
	"github.com/Strob0t/ClaimDesk/internal/domain/audit"
	"github.com/Strob0t/ClaimDesk/internal/domain/conversation"
	"github.com/Strob0t/ClaimDesk/internal/logger"
	"github.com/Strob0t/ClaimDesk/internal/port/auditsink"
)

const defaultPublishTimeout = 5 * time.Second

// Submission is one user turn together with the caller-held session state.
type Submission struct {
	SessionID    string                  `json:"session_id,omitempty"`
	Message      string                  `json:"message"`
	Conversation conversation.Transcript `json:"conversation"`
	Log          audit.Log               `json:"agent_log"`
	Debug        bool                    `json:"debug"`
}

// SessionState is returned to the caller after every turn.
type SessionState struct {
	SessionID    string                  `json:"session_id"`
	Conversation conversation.Transcript `json:"conversation"`
	Log          audit.Log               `json:"agent_log"`
	// Delta holds the entries appended during this turn.
	Delta audit.Log `json:"delta"`
	// Replies are the turns added after the user's message.
	Replies    []conversation.Turn `json:"replies"`
	State      State               `json:"state"`
	Trace      []string            `json:"debug,omitempty"`
	Narrative  string              `json:"narrative"`
	Transcript []string            `json:"transcript"`
}

// SagaService drives one user turn through Eloise and the specialists it
// delegates to, then mirrors the turn's audit entries.
type SagaService struct {
	orchestrator *OrchestratorService
	specialists  *SpecialistService
	sink         auditsink.Sink
	orchCfg      *config.Orchestrator
	auditCfg     *config.Audit
	metrics      *cdotel.Metrics
}

// NewSagaService creates a SagaService. A nil sink disables mirroring.
func NewSagaService(
	orchestrator *OrchestratorService,
	specialists *SpecialistService,
	sink auditsink.Sink,
	orchCfg *config.Orchestrator,
	auditCfg *config.Audit,
) *SagaService {
	if sink == nil {
		sink = auditsink.Nop{}
	}
	return &SagaService{
		orchestrator: orchestrator,
		specialists:  specialists,
		sink:         sink,
		orchCfg:      orchCfg,
		auditCfg:     auditCfg,
	}
}

// SetMetrics attaches metric instruments.
func (s *SagaService) SetMetrics(m *cdotel.Metrics) {
	s.metrics = m
}

// Run handles one turn. Only invalid input fails; collaborator trouble is
// absorbed into the replies and the debug trace.
func (s *SagaService) Run(ctx context.Context, sub Submission) (*SessionState, error) {
	msg := strings.TrimSpace(sub.Message)
	if msg == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrValidation)
	}
	conv := conversation.Seed(sub.Conversation)
	if err := conv.Validate(); err != nil {
		return nil, err
	}
	log, err := sub.Log.Normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: agent_log: %w", domain.ErrValidation, err)
	}

	sessionID := sub.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	ctx = logger.WithSessionID(ctx, sessionID)

	conv = conv.Append(agent.User, msg)
	firstReply := len(conv)
	prevLen := len(log)

	ctx, span := cdotel.StartTurnSpan(ctx, sessionID, conv.UserTurns())
	defer span.End()
	start := time.Now()

	trace := NewTrace(sub.Debug)
	res, err := s.orchestrator.Handle(ctx, OrchestratorInput{Conversation: conv, Log: log, Debug: sub.Debug})
	if res == nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("saga: %w", err)
	}
	trace.Extend(res.Trace)
	conv = conv.Append(agent.Eloise, res.Reply)
	log = log.Merge(res.Delta)

	decided := false
	for _, d := range log.Unresolved(prevLen) {
		dr, err := s.specialists.Decide(ctx, DecisionRequest{
			Specialist: d.To,
			Payload:    d.Payload,
			Turn:       d.Turn,
			Debug:      sub.Debug,
		})
		if dr == nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("saga: %w", err)
		}
		if err != nil {
			slog.InfoContext(ctx, "specialist recovered", "agent", d.To, "error", err)
		}
		trace.Extend(dr.Trace)
		conv = conv.Append(d.To, dr.Reply)
		log = log.Merge(dr.Entries)
		decided = decided || len(dr.Entries) > 0
	}

	state := res.Route
	if decided && s.orchCfg.RelayAfterDelegation {
		if _, ok := RelayPending(conv, log, false); ok {
			rr, err := s.orchestrator.Handle(ctx, OrchestratorInput{Conversation: conv, Log: log, Debug: sub.Debug})
			if rr == nil {
				span.SetStatus(codes.Error, err.Error())
				return nil, fmt.Errorf("saga: relay: %w", err)
			}
			trace.Extend(rr.Trace)
			if rr.Route == StateRelay {
				conv, _ = conv.AppendOnce(agent.Eloise, rr.Reply)
			}
		}
	}

	delta := log.Since(prevLen)
	s.publish(ctx, sessionID, delta, trace)

	if s.metrics != nil {
		attrs := metric.WithAttributes(attribute.String("route", state.String()))
		s.metrics.TurnsHandled.Add(ctx, 1, attrs)
		s.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
	slog.InfoContext(ctx, "turn handled", "route", state, "entries", len(delta), "replies", len(conv)-firstReply)

	return &SessionState{
		SessionID:    sessionID,
		Conversation: conv,
		Log:          log,
		Delta:        delta,
		Replies:      append([]conversation.Turn(nil), conv[firstReply:]...),
		State:        state,
		Trace:        trace.Lines(),
		Narrative:    conv.Narrative(),
		Transcript:   conv.UserUtterances(),
	}, nil
}

// publish mirrors the turn's entries. Failures are logged and traced but
// never fail the turn.
func (s *SagaService) publish(ctx context.Context, sessionID string, delta audit.Log, trace *Trace) {
	if len(delta) == 0 {
		return
	}
	timeout := s.auditCfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	ctx, span := cdotel.StartAuditPublishSpan(ctx, s.sink.Name(), len(delta))
	defer span.End()

	if err := s.sink.Publish(ctx, sessionID, delta); err != nil {
		span.SetStatus(codes.Error, err.Error())
		slog.WarnContext(ctx, "audit publish failed", "sink", s.sink.Name(), "entries", len(delta), "error", err)
		trace.Extend([]string{"[Audit] publish failed: " + err.Error()})
		if s.metrics != nil {
			s.metrics.AuditPublishFails.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", s.sink.Name())))
		}
	}
}
