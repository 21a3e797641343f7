package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Strob0t/ClaimDesk/internal/config"
	"github.com/Strob0t/ClaimDesk/internal/domain/audit"
	"github.com/Strob0t/ClaimDesk/internal/domain/schema"
	"github.com/Strob0t/ClaimDesk/internal/port/inference"
	"github.com/Strob0t/ClaimDesk/internal/service"
)

var errBoom = errors.New("boom")

// callerOf names the agent behind a request by the actions it offers.
func callerOf(req *inference.Request) string {
	if len(req.Actions) == 0 {
		return "chat"
	}
	switch req.Actions[0].Name {
	case "send_to_chris", "send_to_triage":
		return "eloise"
	case "reply_coverage_decision":
		return "coverage"
	case "triage_action":
		return "triage"
	}
	return "unknown"
}

type reply struct {
	resp inference.Response
	err  error
}

// fakeLLM answers each agent from its own queue and records every request.
// An agent with an empty queue fails the test.
type fakeLLM struct {
	t *testing.T

	mu      sync.Mutex
	replies map[string][]reply
	calls   map[string][]inference.Request
}

func newFakeLLM(t *testing.T) *fakeLLM {
	t.Helper()
	return &fakeLLM{t: t, replies: map[string][]reply{}, calls: map[string][]inference.Request{}}
}

func (f *fakeLLM) text(agent, text string) *fakeLLM {
	return f.push(agent, reply{resp: inference.Response{Text: text}})
}

func (f *fakeLLM) call(agent, name, args string) *fakeLLM {
	return f.push(agent, reply{resp: inference.Response{Call: &inference.Call{Name: name, Arguments: []byte(args)}}})
}

func (f *fakeLLM) fail(agent string, err error) *fakeLLM {
	return f.push(agent, reply{err: err})
}

func (f *fakeLLM) push(agent string, r reply) *fakeLLM {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[agent] = append(f.replies[agent], r)
	return f
}

func (f *fakeLLM) Infer(_ context.Context, req inference.Request) (inference.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	who := callerOf(&req)
	f.calls[who] = append(f.calls[who], req)
	q := f.replies[who]
	if len(q) == 0 {
		f.t.Errorf("unexpected inference call from %s", who)
		return inference.Response{}, errBoom
	}
	f.replies[who] = q[1:]
	return q[0].resp, q[0].err
}

func (f *fakeLLM) callsBy(agent string) []inference.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]inference.Request(nil), f.calls[agent]...)
}

// recordingSink captures published deltas.
type recordingSink struct {
	mu        sync.Mutex
	err       error
	published [][]audit.Entry
	sessions  []string
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(_ context.Context, sessionID string, entries []audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, sessionID)
	s.published = append(s.published, append([]audit.Entry(nil), entries...))
	return s.err
}

type services struct {
	cfg          config.Config
	personas     *service.PersonaService
	orchestrator *service.OrchestratorService
	specialists  *service.SpecialistService
	saga         *service.SagaService
	chat         *service.ChatService
}

// newServices wires the services against llm with default configuration.
// Personas come from an empty directory and therefore use the defaults.
func newServices(t *testing.T, llm inference.Collaborator, relayAfterDelegation bool, sink *recordingSink) *services {
	t.Helper()
	cfg := config.Defaults()
	cfg.Prompts.Dir = t.TempDir()
	cfg.Orchestrator.RelayAfterDelegation = relayAfterDelegation

	s := &services{cfg: cfg}
	s.personas = service.NewPersonaService(&s.cfg.Prompts, nil)
	reg := schema.Default()
	s.orchestrator = service.NewOrchestratorService(llm, s.personas, reg, &s.cfg.Agents, &s.cfg.Orchestrator)
	s.specialists = service.NewSpecialistService(llm, s.personas, reg, &s.cfg.Agents)
	if sink == nil {
		sink = &recordingSink{}
	}
	s.saga = service.NewSagaService(s.orchestrator, s.specialists, sink, &s.cfg.Orchestrator, &s.cfg.Audit)
	s.chat = service.NewChatService(llm, &s.cfg.Agents)
	return s
}
