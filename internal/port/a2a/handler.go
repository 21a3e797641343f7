package a2a

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Strob0t/ClaimDesk/internal/domain"
	"github.com/Strob0t/ClaimDesk/internal/domain/payload"
	"github.com/Strob0t/ClaimDesk/internal/domain/schema"
	"github.com/Strob0t/ClaimDesk/internal/service"
)

// maxTasks bounds the in-memory task store; the oldest task is evicted first.
const maxTasks = 1024

// TaskRequest asks for one specialist skill to run.
type TaskRequest struct {
	ID      string         `json:"id"`
	Skill   string         `json:"skill"`
	Input   map[string]any `json:"input"`             //nolint:gosec // skill payloads are schema-validated downstream
	Context map[string]any `json:"context,omitempty"` //nolint:gosec // only context_id is read
}

// Handler serves the A2A protocol endpoints.
type Handler struct {
	baseURL     string
	version     string
	registry    *schema.Registry
	specialists *service.SpecialistService

	mu    sync.RWMutex
	tasks map[a2a.TaskID]*a2a.Task
	order []a2a.TaskID
}

// NewHandler creates an A2A handler.
func NewHandler(baseURL, version string, registry *schema.Registry, specialists *service.SpecialistService) *Handler {
	return &Handler{
		baseURL:     baseURL,
		version:     version,
		registry:    registry,
		specialists: specialists,
		tasks:       make(map[a2a.TaskID]*a2a.Task),
	}
}

// MountRoutes registers A2A routes on the given chi router.
// These are mounted at the root level, not under /api/v1.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/.well-known/agent.json", h.handleAgentCard)
	r.Get("/a2a/agents", h.handleSpecialistCards)
	r.Post("/a2a/tasks", h.handleCreateTask)
	r.Get("/a2a/tasks/{id}", h.handleGetTask)
}

func (h *Handler) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, BuildAgentCard(h.baseURL, h.version, h.registry))
}

func (h *Handler) handleSpecialistCards(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SpecialistCards(h.baseURL, h.version, h.registry))
}

func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	sch, ok := h.registry.SkillFor(req.Skill)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown skill")
		return
	}

	request, _ := sch.Action.Complete(payload.Fields(req.Input), nil)
	res, err := h.specialists.Decide(r.Context(), service.DecisionRequest{
		Specialist: sch.Specialist,
		Payload:    request,
	})
	if res == nil {
		slog.ErrorContext(r.Context(), "a2a task failed", "id", req.ID, "skill", req.Skill, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	task := newTask(req, res, err)
	h.store(task)

	slog.InfoContext(r.Context(), "a2a task finished", "id", req.ID, "skill", req.Skill, "state", task.Status.State)
	writeJSON(w, http.StatusCreated, task)
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := a2a.TaskID(chi.URLParam(r, "id"))

	h.mu.RLock()
	task, ok := h.tasks[id]
	h.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) store(task *a2a.Task) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.tasks[task.ID]; !exists {
		h.order = append(h.order, task.ID)
	}
	h.tasks[task.ID] = task
	for len(h.order) > maxTasks {
		delete(h.tasks, h.order[0])
		h.order = h.order[1:]
	}
}

// newTask converts a decision into a finished task. The reply becomes the
// status message and the structured decision becomes the artifact.
func newTask(req TaskRequest, res *service.DecisionResult, err error) *a2a.Task {
	contextID, _ := req.Context["context_id"].(string)
	if contextID == "" {
		contextID = uuid.NewString()
	}
	state := a2a.TaskStateCompleted
	if errors.Is(err, domain.ErrInferenceUnavailable) {
		state = a2a.TaskStateFailed
	}
	now := time.Now().UTC()
	task := &a2a.Task{
		ID:        a2a.TaskID(req.ID),
		ContextID: contextID,
		Status: a2a.TaskStatus{
			State:     state,
			Timestamp: &now,
			Message: &a2a.Message{
				ID:        uuid.NewString(),
				ContextID: contextID,
				TaskID:    a2a.TaskID(req.ID),
				Role:      a2a.MessageRoleAgent,
				Parts:     a2a.ContentParts{a2a.TextPart{Text: res.Reply}},
			},
		},
	}
	if res.Decision != nil {
		task.Artifacts = []*a2a.Artifact{{
			ID:    a2a.ArtifactID(uuid.NewString()),
			Name:  "decision",
			Parts: a2a.ContentParts{a2a.DataPart{Data: map[string]any(res.Decision)}},
		}}
	}
	return task
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
