package service

import (
	"context"
	"fmt"
	"strings"

	cdotel "github.com/Strob0t/ClaimDesk/internal/adapter/otel"
	"github.com/Strob0t/ClaimDesk/internal/config"
	"github.com/Strob0t/ClaimDesk/internal/domain"
	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
	"github.com/Strob0t/ClaimDesk/internal/port/inference"
)

const noResponse = "No response."

// ChatService answers single prompts without session state.
type ChatService struct {
	llm     inference.Collaborator
	agents  *config.Agents
	metrics *cdotel.Metrics
}

// NewChatService creates a ChatService.
func NewChatService(llm inference.Collaborator, agents *config.Agents) *ChatService {
	return &ChatService{llm: llm, agents: agents}
}

// SetMetrics attaches metric instruments.
func (s *ChatService) SetMetrics(m *cdotel.Metrics) {
	s.metrics = m
}

// Complete returns a one-shot completion for prompt. An inference failure
// yields the generic apology together with the error.
func (s *ChatService) Complete(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt is required", domain.ErrValidation)
	}
	model := s.agents.Chat
	resp, err := callCollaborator(ctx, s.llm, s.metrics, agent.Eloise, inference.Request{
		SystemPrompt: ChatPersona,
		Turns:        []inference.Message{{Role: inference.RoleUser, Text: prompt}},
		Model:        model.Model,
		Temperature:  &model.Temperature,
		MaxTokens:    model.MaxTokens,
	})
	if err != nil {
		return GenericApology, fmt.Errorf("chat: %w", err)
	}
	if resp.Text == "" {
		return noResponse, nil
	}
	return resp.Text, nil
}
