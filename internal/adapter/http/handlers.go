package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Strob0t/ClaimDesk/internal/adapter/litellm"
	"github.com/Strob0t/ClaimDesk/internal/domain"
	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
	"github.com/Strob0t/ClaimDesk/internal/domain/audit"
	"github.com/Strob0t/ClaimDesk/internal/domain/conversation"
	"github.com/Strob0t/ClaimDesk/internal/domain/payload"
	"github.com/Strob0t/ClaimDesk/internal/domain/schema"
	"github.com/Strob0t/ClaimDesk/internal/service"
)

const (
	defaultBodyLimit = 1 << 20 // 1 MB
	probeTimeout     = 2 * time.Second
)

// Probe reports whether a dependency is reachable.
type Probe func(ctx context.Context) error

// AuditArchive reads back archived audit entries.
type AuditArchive interface {
	Entries(ctx context.Context, sessionID string) ([]audit.Entry, error)
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Saga         *service.SagaService
	Orchestrator *service.OrchestratorService
	Specialists  *service.SpecialistService
	Chat         *service.ChatService
	Registry     *schema.Registry
	Archive      AuditArchive    // nil when the postgres sink is disabled
	LiteLLM      *litellm.Client // nil when inference is not routed through LiteLLM
	Probes       map[string]Probe
	Version      string
	BodyLimit    int64
}

func (h *Handlers) bodyLimit() int64 {
	if h.BodyLimit > 0 {
		return h.BodyLimit
	}
	return defaultBodyLimit
}

// SubmitTurn handles POST /api/v1/turns
func (h *Handlers) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	sub, ok := readJSON[service.Submission](w, r, h.bodyLimit())
	if !ok {
		return
	}
	if !requireField(w, sub.Message, "message") {
		return
	}

	st, err := h.Saga.Run(r.Context(), sub)
	if err != nil {
		writeDomainError(w, err, "turn failed")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type orchestrateRequest struct {
	Conversation conversation.Transcript `json:"conversation"`
	Log          audit.Log               `json:"agent_log"`
	Debug        bool                    `json:"debug"`
}

// Orchestrate handles POST /api/v1/agents/eloise
func (h *Handlers) Orchestrate(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[orchestrateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	if err := req.Conversation.Validate(); err != nil {
		writeDomainError(w, err, "invalid conversation")
		return
	}
	log, err := req.Log.Normalize()
	if err != nil {
		writeError(w, http.StatusBadRequest, "agent_log: "+err.Error())
		return
	}

	res, err := h.Orchestrator.Handle(r.Context(), service.OrchestratorInput{
		Conversation: req.Conversation,
		Log:          log,
		Debug:        req.Debug,
	})
	if res == nil {
		writeDomainError(w, err, "orchestration failed")
		return
	}
	if err != nil {
		slog.InfoContext(r.Context(), "orchestrator recovered", "error", err)
	}
	writeJSON(w, http.StatusOK, res)
}

type decideRequest struct {
	Payload payload.Fields `json:"payload"`
	Turn    int            `json:"turn,omitempty"`
	Debug   bool           `json:"debug"`
}

// Decide handles POST /api/v1/agents/{agent}
func (h *Handlers) Decide(w http.ResponseWriter, r *http.Request) {
	id, err := agent.Parse(urlParam(r, "agent"))
	if err != nil || !id.IsSpecialist() {
		writeError(w, http.StatusNotFound, "unknown agent")
		return
	}
	req, ok := readJSON[decideRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	if req.Turn < 0 {
		writeError(w, http.StatusBadRequest, "turn must not be negative")
		return
	}
	sch := h.Registry.MustSchemaFor(id)
	request, _ := sch.Action.Complete(req.Payload, nil)

	res, err := h.Specialists.Decide(r.Context(), service.DecisionRequest{
		Specialist: id,
		Payload:    request,
		Turn:       req.Turn,
		Debug:      req.Debug,
	})
	if res == nil {
		writeDomainError(w, err, "unknown agent")
		return
	}
	if err != nil {
		slog.InfoContext(r.Context(), "specialist recovered", "agent", id, "error", err)
	}
	writeJSON(w, http.StatusOK, res)
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// CompleteChat handles POST /api/v1/chat
func (h *Handlers) CompleteChat(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[chatRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	if !requireField(w, req.Prompt, "prompt") {
		return
	}
	text, err := h.Chat.Complete(r.Context(), req.Prompt)
	if err != nil && !errors.Is(err, domain.ErrInferenceUnavailable) {
		writeDomainError(w, err, "chat failed")
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: text})
}

// FunctionInfo describes one structured call.
type FunctionInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// AgentInfo describes a specialist and its contract.
type AgentInfo struct {
	Agent       agent.Identity `json:"agent"`
	DisplayName string         `json:"display_name"`
	ActionCode  string         `json:"action_code"`
	Skill       string         `json:"skill"`
	Delegation  FunctionInfo   `json:"delegation"`
	Decision    FunctionInfo   `json:"decision"`
}

func functionInfo(f *schema.Function) FunctionInfo {
	return FunctionInfo{Name: f.Name, Description: f.Description, Parameters: f.Parameters}
}

// ListAgents handles GET /api/v1/agents
func (h *Handlers) ListAgents(w http.ResponseWriter, _ *http.Request) {
	schemas := h.Registry.Schemas()
	out := make([]AgentInfo, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, AgentInfo{
			Agent:       s.Specialist,
			DisplayName: s.DisplayName,
			ActionCode:  s.ActionCode,
			Skill:       s.Skill,
			Delegation:  functionInfo(&s.Action),
			Decision:    functionInfo(&s.Decision),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// SessionAudit handles GET /api/v1/sessions/{id}/audit
func (h *Handlers) SessionAudit(w http.ResponseWriter, r *http.Request) {
	if h.Archive == nil {
		writeError(w, http.StatusNotFound, "audit archive not configured")
		return
	}
	entries, err := h.Archive.Entries(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// LLMHealth handles GET /api/v1/llm/health
func (h *Handlers) LLMHealth(w http.ResponseWriter, r *http.Request) {
	if h.LiteLLM == nil {
		writeError(w, http.StatusNotFound, "litellm not configured")
		return
	}
	report, err := h.LiteLLM.HealthDetailed(r.Context())
	if err != nil {
		slog.WarnContext(r.Context(), "litellm health failed", "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type healthStatus struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Health handles GET /health. A failing dependency degrades the status
// but never the response code, so the endpoint doubles as liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{Status: "ok", Version: h.Version}
	if len(h.Probes) > 0 {
		status.Dependencies = make(map[string]string, len(h.Probes))
	}
	for name, probe := range h.Probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := probe(ctx)
		cancel()
		if err != nil {
			slog.WarnContext(r.Context(), "health probe failed", "dependency", name, "error", err)
			status.Dependencies[name] = "unhealthy"
			status.Status = "degraded"
			continue
		}
		status.Dependencies[name] = "healthy"
	}
	writeJSON(w, http.StatusOK, status)
}
