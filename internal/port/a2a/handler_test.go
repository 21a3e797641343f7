package a2a_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/ClaimDesk/internal/config"
	"github.com/Strob0t/ClaimDesk/internal/domain/schema"
	cda2a "github.com/Strob0t/ClaimDesk/internal/port/a2a"
	"github.com/Strob0t/ClaimDesk/internal/port/inference"
	"github.com/Strob0t/ClaimDesk/internal/service"
)

func triageLLM(fail bool) inference.Collaborator {
	return inference.CollaboratorFunc(func(_ context.Context, _ inference.Request) (inference.Response, error) {
		if fail {
			return inference.Response{}, errors.New("provider down")
		}
		return inference.Response{Call: &inference.Call{
			Name:      "triage_action",
			Arguments: []byte(`{"actions":["Call EMS"],"rationale":"active fire."}`),
		}}, nil
	})
}

func newTestRouter(t *testing.T, llm inference.Collaborator) *chi.Mux {
	t.Helper()
	cfg := config.Defaults()
	cfg.Prompts.Dir = t.TempDir()
	reg := schema.Default()
	spec := service.NewSpecialistService(llm, service.NewPersonaService(&cfg.Prompts, nil), reg, &cfg.Agents)

	h := cda2a.NewHandler("http://localhost:8080", "test", reg, spec)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAgentCard(t *testing.T) {
	r := newTestRouter(t, triageLLM(false))
	w := do(r, http.MethodGet, "/.well-known/agent.json", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var card a2a.AgentCard
	if err := json.NewDecoder(w.Body).Decode(&card); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if card.Name != "ClaimDesk" {
		t.Fatalf("expected name ClaimDesk, got %s", card.Name)
	}
	if card.Version != "test" {
		t.Errorf("version = %q", card.Version)
	}
	ids := make([]string, 0, len(card.Skills))
	for _, s := range card.Skills {
		ids = append(ids, s.ID)
	}
	if len(ids) != 2 || ids[0] != "check_coverage" || ids[1] != "triage_emergency" {
		t.Fatalf("skills = %v", ids)
	}
}

func TestSpecialistCards(t *testing.T) {
	r := newTestRouter(t, triageLLM(false))
	w := do(r, http.MethodGet, "/a2a/agents", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var cards []a2a.AgentCard
	if err := json.NewDecoder(w.Body).Decode(&cards); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(cards))
	}
	if cards[0].Name != "Chris" || cards[1].Name != "Triage" {
		t.Errorf("names = %q, %q", cards[0].Name, cards[1].Name)
	}
	for _, c := range cards {
		if len(c.Skills) != 1 {
			t.Errorf("%s: expected one skill, got %d", c.Name, len(c.Skills))
		}
	}
}

type taskView struct {
	ID     string `json:"id"`
	Status struct {
		State   string `json:"state"`
		Message struct {
			Parts []map[string]any `json:"parts"`
		} `json:"message"`
	} `json:"status"`
	Artifacts []struct {
		Name  string           `json:"name"`
		Parts []map[string]any `json:"parts"`
	} `json:"artifacts"`
}

func TestCreateAndGetTask(t *testing.T) {
	r := newTestRouter(t, triageLLM(false))

	body := `{"id":"task-1","skill":"triage_emergency","input":{"summary":"kitchen fire"}}`
	w := do(r, http.MethodPost, "/a2a/tasks", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var task taskView
	if err := json.NewDecoder(w.Body).Decode(&task); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if task.ID != "task-1" {
		t.Errorf("id = %q", task.ID)
	}
	if task.Status.State != string(a2a.TaskStateCompleted) {
		t.Fatalf("expected completed, got %s", task.Status.State)
	}
	parts := task.Status.Message.Parts
	if len(parts) != 1 || parts[0]["text"] != "Triage has initiated: Call EMS." {
		t.Errorf("message parts = %v", parts)
	}
	if len(task.Artifacts) != 1 || task.Artifacts[0].Name != "decision" {
		t.Fatalf("artifacts = %+v", task.Artifacts)
	}

	w2 := do(r, http.MethodGet, "/a2a/tasks/task-1", "")
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w2.Code)
	}
}

func TestCreateTaskInferenceFailure(t *testing.T) {
	r := newTestRouter(t, triageLLM(true))
	w := do(r, http.MethodPost, "/a2a/tasks", `{"id":"task-2","skill":"check_coverage","input":{}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var task taskView
	if err := json.NewDecoder(w.Body).Decode(&task); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if task.Status.State != string(a2a.TaskStateFailed) {
		t.Errorf("expected failed, got %s", task.Status.State)
	}
	if len(task.Artifacts) != 0 {
		t.Errorf("failed task should carry no artifact, got %d", len(task.Artifacts))
	}
}

func TestCreateTaskRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid body", "not json", http.StatusBadRequest},
		{"missing id", `{"skill":"check_coverage"}`, http.StatusBadRequest},
		{"unknown skill", `{"id":"x","skill":"code-task"}`, http.StatusNotFound},
	}
	r := newTestRouter(t, triageLLM(false))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/a2a/tasks", tt.body)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestGetTaskNotFound(t *testing.T) {
	r := newTestRouter(t, triageLLM(false))
	w := do(r, http.MethodGet, "/a2a/tasks/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
