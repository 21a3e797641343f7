// Package openai implements the inference port on the OpenAI Responses API.
// Pointing BaseURL at a LiteLLM proxy routes calls through it.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/Strob0t/ClaimDesk/internal/domain"
	"github.com/Strob0t/ClaimDesk/internal/port/inference"
	"github.com/Strob0t/ClaimDesk/internal/resilience"
)

// Config configures the client.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client implements inference.Collaborator.
type Client struct {
	client  openaisdk.Client
	cfg     Config
	breaker *resilience.Breaker
}

var _ inference.Collaborator = (*Client)(nil)

// NewClient creates a client. Calls are not retried.
func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &Client{client: openaisdk.NewClient(opts...), cfg: cfg}
}

// SetBreaker attaches a circuit breaker to all calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Infer sends one Responses API request.
func (c *Client) Infer(ctx context.Context, req inference.Request) (inference.Response, error) {
	params := c.buildParams(req)

	var result *responses.Response
	call := func(ctx context.Context) error {
		r, err := c.client.Responses.New(ctx, params)
		if err != nil {
			return err
		}
		result = r
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Do(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return inference.Response{}, fmt.Errorf("openai infer: %w: %w", domain.ErrInferenceUnavailable, err)
	}
	return convertResponse(result), nil
}

func (c *Client) buildParams(req inference.Request) responses.ResponseNewParams {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: convertMessages(req.SystemPrompt, req.Turns),
		},
	}
	if maxTokens > 0 {
		params.MaxOutputTokens = openaisdk.Int(int64(maxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openaisdk.Float(*req.Temperature)
	}
	if len(req.Actions) > 0 {
		params.Tools = convertActions(req.Actions)
	}
	return params
}

func convertMessages(system string, turns []inference.Message) responses.ResponseInputParam {
	out := make(responses.ResponseInputParam, 0, len(turns)+1)
	if system != "" {
		out = append(out, responses.ResponseInputItemParamOfMessage(system, responses.EasyInputMessageRoleSystem))
	}
	for _, t := range turns {
		role := responses.EasyInputMessageRoleAssistant
		if t.Role == inference.RoleUser {
			role = responses.EasyInputMessageRoleUser
		}
		out = append(out, responses.ResponseInputItemParamOfMessage(t.Text, role))
	}
	return out
}

// Optional fields rule out strict mode, so schemas are sent as-is.
func convertActions(actions []inference.Action) []responses.ToolUnionParam {
	out := make([]responses.ToolUnionParam, len(actions))
	for i, a := range actions {
		params := a.Parameters
		if params == nil {
			params = map[string]any{"type": "object"}
		}
		out[i] = responses.ToolParamOfFunction(a.Name, params, false)
		if a.Description != "" {
			fn := out[i].OfFunction
			fn.Description = openaisdk.String(a.Description)
			out[i].OfFunction = fn
		}
	}
	return out
}

func convertResponse(r *responses.Response) inference.Response {
	if r == nil {
		return inference.Response{}
	}
	resp := inference.Response{Text: strings.TrimSpace(r.OutputText())}
	for _, item := range r.Output {
		if item.Type != "function_call" {
			continue
		}
		resp.Call = &inference.Call{Name: item.Name, Arguments: json.RawMessage(item.Arguments)}
		break
	}
	return resp
}
