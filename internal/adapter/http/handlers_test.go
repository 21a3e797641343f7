package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/ClaimDesk/internal/config"
	"github.com/Strob0t/ClaimDesk/internal/domain"
	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
	"github.com/Strob0t/ClaimDesk/internal/domain/audit"
	"github.com/Strob0t/ClaimDesk/internal/domain/payload"
	"github.com/Strob0t/ClaimDesk/internal/domain/schema"
	"github.com/Strob0t/ClaimDesk/internal/port/inference"
	"github.com/Strob0t/ClaimDesk/internal/service"
)

// scriptedLLM answers by caller: "chat", "eloise", "coverage" or "triage".
// A caller without a scripted response gets an error.
type scriptedLLM struct {
	mu      sync.Mutex
	replies map[string]inference.Response
	calls   map[string][]inference.Request
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{replies: map[string]inference.Response{}, calls: map[string][]inference.Request{}}
}

func (l *scriptedLLM) on(caller string, resp inference.Response) *scriptedLLM {
	l.replies[caller] = resp
	return l
}

func (l *scriptedLLM) Infer(_ context.Context, req inference.Request) (inference.Response, error) {
	caller := "chat"
	if len(req.Actions) > 0 {
		switch req.Actions[0].Name {
		case "send_to_chris", "send_to_triage":
			caller = "eloise"
		case "reply_coverage_decision":
			caller = "coverage"
		case "triage_action":
			caller = "triage"
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[caller] = append(l.calls[caller], req)
	resp, ok := l.replies[caller]
	if !ok {
		return inference.Response{}, errors.New("provider down")
	}
	return resp, nil
}

func (l *scriptedLLM) callsBy(caller string) []inference.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[caller]
}

func call(name, args string) inference.Response {
	return inference.Response{Call: &inference.Call{Name: name, Arguments: []byte(args)}}
}

type fakeArchive struct {
	entries []audit.Entry
	err     error
}

func (a *fakeArchive) Entries(_ context.Context, _ string) ([]audit.Entry, error) {
	return a.entries, a.err
}

func newTestHandlers(t *testing.T, llm inference.Collaborator) *Handlers {
	t.Helper()
	cfg := config.Defaults()
	cfg.Prompts.Dir = t.TempDir()

	reg := schema.Default()
	personas := service.NewPersonaService(&cfg.Prompts, nil)
	orch := service.NewOrchestratorService(llm, personas, reg, &cfg.Agents, &cfg.Orchestrator)
	specialists := service.NewSpecialistService(llm, personas, reg, &cfg.Agents)
	return &Handlers{
		Saga:         service.NewSagaService(orch, specialists, nil, &cfg.Orchestrator, &cfg.Audit),
		Orchestrator: orch,
		Specialists:  specialists,
		Chat:         service.NewChatService(llm, &cfg.Agents),
		Registry:     reg,
		Version:      "test",
	}
}

func serve(h *Handlers, method, path, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	MountRoutes(r, h)

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

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

type turnView struct {
	Replies []struct {
		Speaker string `json:"speaker"`
		Text    string `json:"text"`
	} `json:"replies"`
	Log   []map[string]any `json:"agent_log"`
	State string           `json:"state"`
}

func TestSubmitTurnStatus(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"malformed body", `{`, http.StatusBadRequest, "invalid request body"},
		{"missing message", `{"message":"  "}`, http.StatusBadRequest, "message is required"},
		{"conversation without greeting", `{"message":"hi","conversation":[{"speaker":"User","text":"hello"}]}`,
			http.StatusBadRequest, "conversation must start with an Eloise greeting"},
		{"unknown speaker in log", `{"message":"hi","agent_log":[{"from":"Bob","to":"Eloise","payload":{}}]}`,
			http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(newTestHandlers(t, newScriptedLLM()), http.MethodPost, "/api/v1/turns", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantError != "" {
				if got := decode[errorResponse](t, w).Error; got != tt.wantError {
					t.Errorf("error = %q, want %q", got, tt.wantError)
				}
			}
		})
	}
}

func TestSubmitTurnInferenceFailureIsInBand(t *testing.T) {
	w := serve(newTestHandlers(t, newScriptedLLM()), http.MethodPost, "/api/v1/turns", `{"message":"my car was hit"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	got := decode[turnView](t, w)
	if len(got.Replies) != 1 || got.Replies[0].Text != service.GenericApology {
		t.Fatalf("replies = %+v", got.Replies)
	}
	if len(got.Log) != 0 {
		t.Errorf("agent_log = %v, want empty", got.Log)
	}
}

func TestSubmitTurnDelegatesAndRelays(t *testing.T) {
	llm := newScriptedLLM().
		on("eloise", call("send_to_triage", `{"summary":"kitchen fire"}`)).
		on("triage", call("triage_action", `{"actions":["Call EMS"],"rationale":"active fire."}`))

	w := serve(newTestHandlers(t, llm), http.MethodPost, "/api/v1/turns", `{"message":"my kitchen is on fire"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	got := decode[turnView](t, w)

	want := []string{
		"Eloise: I've alerted our emergency response team to assist you.",
		"Triage: Triage has initiated: Call EMS.",
		"Eloise: Our emergency team is already on it: Call EMS. active fire.",
	}
	if len(got.Replies) != len(want) {
		t.Fatalf("replies = %+v", got.Replies)
	}
	for i, r := range got.Replies {
		if line := r.Speaker + ": " + r.Text; line != want[i] {
			t.Errorf("reply %d = %q, want %q", i, line, want[i])
		}
	}
	if got.State != "DELEGATE" || len(got.Log) != 2 {
		t.Errorf("state = %s, agent_log = %v", got.State, got.Log)
	}
	if n := len(llm.callsBy("eloise")); n != 1 {
		t.Errorf("eloise called %d times, want 1", n)
	}
}

func TestOrchestrateRelaysCallerLog(t *testing.T) {
	llm := newScriptedLLM()
	body := `{
  "conversation": [
    {"speaker": "Eloise", "text": "Hi, how can I help?"},
    {"speaker": "You", "text": "my kitchen is on fire"},
    {"speaker": "Eloise", "text": "I've alerted our emergency response team to assist you."},
    {"speaker": "Triage", "text": "Triage has initiated: Call EMS."}
  ],
  "agent_log": [
    {"from": "Eloise", "to": "Triage", "payload": {"summary": "kitchen fire"}},
    {"from": "Triage", "to": "Eloise", "payload": {"actions": ["Call EMS"], "rationale": "active fire"}}
  ]
}`
	w := serve(newTestHandlers(t, llm), http.MethodPost, "/api/v1/agents/eloise", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	got := decode[struct {
		Reply string           `json:"reply"`
		State string           `json:"state"`
		Log   []map[string]any `json:"agent_log"`
	}](t, w)
	if got.State != "RELAY" {
		t.Errorf("state = %s, want RELAY", got.State)
	}
	if want := "Our emergency team is already on it: Call EMS. active fire"; got.Reply != want {
		t.Errorf("reply = %q, want %q", got.Reply, want)
	}
	if len(got.Log) != 2 {
		t.Errorf("relay must not append entries: %v", got.Log)
	}
	if n := len(llm.callsBy("eloise")); n != 0 {
		t.Errorf("collaborator called %d times during relay", n)
	}
}

func TestOrchestrateRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"conversation without greeting", `{"conversation":[{"speaker":"User","text":"hi"}]}`},
		{"empty conversation", `{"conversation":[]}`},
		{"self-addressed entry", `{"conversation":[{"speaker":"Eloise","text":"hi"}],"agent_log":[{"from":"Eloise","to":"Eloise","payload":{}}]}`},
		{"negative turn", `{"conversation":[{"speaker":"Eloise","text":"hi"}],"agent_log":[{"from":"Triage","to":"Eloise","turn":-1,"payload":{}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(newTestHandlers(t, newScriptedLLM()), http.MethodPost, "/api/v1/agents/eloise", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestDecideStatus(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"unknown agent", "/api/v1/agents/bob", `{"payload":{}}`, http.StatusNotFound},
		{"user is not a specialist", "/api/v1/agents/user", `{"payload":{}}`, http.StatusNotFound},
		{"malformed body", "/api/v1/agents/triage", `{"payload":`, http.StatusBadRequest},
		{"negative turn", "/api/v1/agents/triage", `{"payload":{},"turn":-2}`, http.StatusBadRequest},
		{"inference failure in band", "/api/v1/agents/triage", `{"payload":{"summary":"fire"}}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(newTestHandlers(t, newScriptedLLM()), http.MethodPost, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestDecideInferenceFailureHasNoDecision(t *testing.T) {
	w := serve(newTestHandlers(t, newScriptedLLM()), http.MethodPost, "/api/v1/agents/triage", `{"payload":{"summary":"fire"}}`)
	got := decode[service.DecisionResult](t, w)
	if got.Reply == "" || got.Decision != nil || len(got.Entries) != 0 {
		t.Fatalf("result = %+v", got)
	}
}

func TestDecideCompletesPartialPayload(t *testing.T) {
	llm := newScriptedLLM().on("coverage", call("reply_coverage_decision",
		`{"coverage":"Covered","incident_date":"2025-06-01","rationale":"Policy active."}`))

	w := serve(newTestHandlers(t, llm), http.MethodPost, "/api/v1/agents/chris_coverage",
		`{"payload":{"incident_description":"flood"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	reqs := llm.callsBy("coverage")
	if len(reqs) != 1 {
		t.Fatalf("coverage called %d times", len(reqs))
	}
	prompt := reqs[0].Turns[0].Text
	for _, field := range []string{`"incident_description": "flood"`, `"incident_date": ""`} {
		if !strings.Contains(prompt, field) {
			t.Errorf("prompt lacks %s: %q", field, prompt)
		}
	}

	got := decode[struct {
		Decision payload.Fields    `json:"decision"`
		Log      []json.RawMessage `json:"agent_log"`
	}](t, w)
	if got.Decision.String("coverage") != "Covered" {
		t.Errorf("decision = %v", got.Decision)
	}
	if len(got.Log) != 1 {
		t.Fatalf("agent_log = %d entries, want 1", len(got.Log))
	}
	if strings.Contains(string(got.Log[0]), `"turn"`) {
		t.Errorf("entry without a turn must omit it: %s", got.Log[0])
	}
}

func TestCompleteChat(t *testing.T) {
	tests := []struct {
		name       string
		llm        *scriptedLLM
		body       string
		wantStatus int
		wantText   string
	}{
		{"missing prompt", newScriptedLLM(), `{"prompt":""}`, http.StatusBadRequest, ""},
		{"inference failure in band", newScriptedLLM(), `{"prompt":"hello"}`, http.StatusOK, service.GenericApology},
		{"answer", newScriptedLLM().on("chat", inference.Response{Text: "Hello there."}), `{"prompt":"hello"}`, http.StatusOK, "Hello there."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(newTestHandlers(t, tt.llm), http.MethodPost, "/api/v1/chat", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantText != "" {
				if got := decode[chatResponse](t, w).Response; got != tt.wantText {
					t.Errorf("response = %q, want %q", got, tt.wantText)
				}
			}
		})
	}
}

func TestListAgents(t *testing.T) {
	w := serve(newTestHandlers(t, newScriptedLLM()), http.MethodGet, "/api/v1/agents", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[[]AgentInfo](t, w)
	if len(got) != 2 {
		t.Fatalf("agents = %d, want 2", len(got))
	}
	skills := map[agent.Identity]string{}
	for _, a := range got {
		skills[a.Agent] = a.Skill
		if a.Decision.Parameters == nil {
			t.Errorf("%s has no decision schema", a.Agent)
		}
	}
	if skills[agent.Coverage] != "check_coverage" || skills[agent.Triage] != "triage_emergency" {
		t.Errorf("skills = %v", skills)
	}
}

func TestSessionAudit(t *testing.T) {
	entry, err := audit.NewEntry(agent.Eloise, agent.Triage, time.Now(), 1, "TRIAGE_CALL", payload.Fields{"summary": "fire"})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name       string
		archive    AuditArchive
		wantStatus int
		wantLen    int
	}{
		{"archive disabled", nil, http.StatusNotFound, 0},
		{"unknown session", &fakeArchive{err: fmt.Errorf("session s-1: %w", domain.ErrNotFound)}, http.StatusNotFound, 0},
		{"archive failure", &fakeArchive{err: errors.New("connection reset")}, http.StatusInternalServerError, 0},
		{"entries", &fakeArchive{entries: []audit.Entry{entry}}, http.StatusOK, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandlers(t, newScriptedLLM())
			h.Archive = tt.archive
			w := serve(h, http.MethodGet, "/api/v1/sessions/s-1/audit", "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				if got := decode[[]audit.Entry](t, w); len(got) != tt.wantLen {
					t.Errorf("entries = %d, want %d", len(got), tt.wantLen)
				}
			}
		})
	}
}

func TestLLMHealthNotConfigured(t *testing.T) {
	w := serve(newTestHandlers(t, newScriptedLLM()), http.MethodGet, "/api/v1/llm/health", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("unreachable") }

	tests := []struct {
		name       string
		probes     map[string]Probe
		wantStatus string
		wantDeps   map[string]string
	}{
		{"no probes", nil, "ok", nil},
		{"all healthy", map[string]Probe{"postgres": ok, "nats": ok}, "ok",
			map[string]string{"postgres": "healthy", "nats": "healthy"}},
		{"one failing", map[string]Probe{"postgres": ok, "nats": down}, "degraded",
			map[string]string{"postgres": "healthy", "nats": "unhealthy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandlers(t, newScriptedLLM())
			h.Probes = tt.probes
			w := serve(h, http.MethodGet, "/health", "")
			if w.Code != http.StatusOK {
				t.Fatalf("status code = %d, want 200", w.Code)
			}
			got := decode[healthStatus](t, w)
			if got.Status != tt.wantStatus || got.Version != "test" {
				t.Errorf("health = %+v", got)
			}
			if len(got.Dependencies) != len(tt.wantDeps) {
				t.Fatalf("dependencies = %v, want %v", got.Dependencies, tt.wantDeps)
			}
			for name, want := range tt.wantDeps {
				if got.Dependencies[name] != want {
					t.Errorf("%s = %q, want %q", name, got.Dependencies[name], want)
				}
			}
		})
	}
}
