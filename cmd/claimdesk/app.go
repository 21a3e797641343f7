package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/ClaimDesk/internal/adapter/litellm"
	cdnats "github.com/Strob0t/ClaimDesk/internal/adapter/nats"
	cdotel "github.com/Strob0t/ClaimDesk/internal/adapter/otel"
	"github.com/Strob0t/ClaimDesk/internal/adapter/postgres"
	"github.com/Strob0t/ClaimDesk/internal/adapter/ristretto"
	"github.com/Strob0t/ClaimDesk/internal/config"
	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
	"github.com/Strob0t/ClaimDesk/internal/domain/schema"
	"github.com/Strob0t/ClaimDesk/internal/port/auditsink"
	"github.com/Strob0t/ClaimDesk/internal/resilience"
	"github.com/Strob0t/ClaimDesk/internal/service"
)

// app holds the wired services shared by serve and chat.
type app struct {
	cfg          *config.Config
	registry     *schema.Registry
	personas     *service.PersonaService
	orchestrator *service.OrchestratorService
	specialists  *service.SpecialistService
	saga         *service.SagaService
	chat         *service.ChatService

	nats    *cdnats.Publisher // nil unless the nats sink is enabled
	archive *postgres.Archive // nil unless the postgres sink is enabled
	litellm *litellm.Client   // nil unless inference goes through the proxy
	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, metrics *cdotel.Metrics) (*app, error) {
	a := &app{cfg: cfg, registry: schema.Default()}

	llm, err := newCollaborator(cfg)
	if err != nil {
		return nil, err
	}

	promptCache, err := ristretto.New(cfg.Prompts.CacheMaxBytes)
	if err != nil {
		return nil, fmt.Errorf("persona cache: %w", err)
	}
	a.closers = append(a.closers, promptCache.Close)

	// --- Audit mirrors ---
	var sinks auditsink.Fanout
	if cfg.Audit.HasSink("postgres") {
		pool, err := postgres.NewPool(ctx, &cfg.Postgres)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		a.archive = postgres.NewArchive(pool)
		sinks = append(sinks, a.archive)
	}
	if cfg.Audit.HasSink("nats") {
		pub, err := cdnats.Connect(ctx, &cfg.NATS)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("nats: %w", err)
		}
		a.closers = append(a.closers, func() { _ = pub.Close() })
		a.nats = pub
		sinks = append(sinks, pub)
	}
	var sink auditsink.Sink
	if len(sinks) > 0 {
		sink = sinks
		slog.Info("audit mirrors enabled", "sinks", sinks.Name())
	}

	// --- LiteLLM proxy ---
	if cfg.Inference.BaseURL != "" && cfg.LiteLLM.URL != "" {
		a.litellm = litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey)
		a.litellm.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
		a.checkModels(ctx)
	}

	// --- Services ---
	a.personas = service.NewPersonaService(&cfg.Prompts, promptCache)
	a.orchestrator = service.NewOrchestratorService(llm, a.personas, a.registry, &cfg.Agents, &cfg.Orchestrator)
	a.specialists = service.NewSpecialistService(llm, a.personas, a.registry, &cfg.Agents)
	a.saga = service.NewSagaService(a.orchestrator, a.specialists, sink, &cfg.Orchestrator, &cfg.Audit)
	a.chat = service.NewChatService(llm, &cfg.Agents)

	if metrics != nil {
		a.orchestrator.SetMetrics(metrics)
		a.specialists.SetMetrics(metrics)
		a.saga.SetMetrics(metrics)
		a.chat.SetMetrics(metrics)
	}
	return a, nil
}

// checkModels warns about configured models the proxy does not serve.
func (a *app) checkModels(ctx context.Context) {
	agents := a.cfg.Agents
	missing, err := a.litellm.MissingModels(ctx, []string{
		agents.Eloise.Model, agents.Coverage.Model, agents.Triage.Model, agents.Chat.Model,
	})
	if err != nil {
		slog.Warn("litellm model check skipped", "error", err)
		return
	}
	if len(missing) > 0 {
		slog.Warn("models not served by litellm", "models", missing)
	}
}

// invalidatePersonas drops cached persona prompts so edits on disk are
// picked up on the next turn.
func (a *app) invalidatePersonas(ctx context.Context) {
	for _, id := range []agent.Identity{agent.Eloise, agent.Coverage, agent.Triage} {
		if err := a.personas.Invalidate(ctx, id); err != nil {
			slog.Warn("persona invalidate failed", "agent", id, "error", err)
		}
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
