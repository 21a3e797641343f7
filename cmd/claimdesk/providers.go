package main

import (
	"fmt"
	"log/slog"

	"github.com/Strob0t/ClaimDesk/internal/adapter/anthropic"
	"github.com/Strob0t/ClaimDesk/internal/adapter/openai"
	"github.com/Strob0t/ClaimDesk/internal/config"
	"github.com/Strob0t/ClaimDesk/internal/port/inference"
	"github.com/Strob0t/ClaimDesk/internal/resilience"
)

// newCollaborator builds the configured inference adapter behind a
// circuit breaker.
func newCollaborator(cfg *config.Config) (inference.Collaborator, error) {
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	breaker.OnStateChange(func(from, to resilience.State) {
		slog.Warn("inference breaker state changed", "provider", cfg.Inference.Provider, "from", from, "to", to)
	})

	switch cfg.Inference.Provider {
	case "openai":
		c := openai.NewClient(openai.Config{
			APIKey:    cfg.Inference.APIKey,
			BaseURL:   cfg.Inference.BaseURL,
			Model:     cfg.Agents.Eloise.Model,
			MaxTokens: cfg.Agents.Eloise.MaxTokens,
			Timeout:   cfg.Inference.Timeout,
		})
		c.SetBreaker(breaker)
		return c, nil
	case "anthropic":
		c := anthropic.NewClient(anthropic.Config{
			APIKey:    cfg.Inference.APIKey,
			BaseURL:   cfg.Inference.BaseURL,
			Model:     cfg.Agents.Eloise.Model,
			MaxTokens: cfg.Agents.Eloise.MaxTokens,
			Timeout:   cfg.Inference.Timeout,
		})
		c.SetBreaker(breaker)
		return c, nil
	default:
		return nil, fmt.Errorf("unknown inference provider %q", cfg.Inference.Provider)
	}
}
