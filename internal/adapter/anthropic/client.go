// Package anthropic implements the inference port on the Anthropic
// Messages API with tool use.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Strob0t/ClaimDesk/internal/domain"
	"github.com/Strob0t/ClaimDesk/internal/port/inference"
	"github.com/Strob0t/ClaimDesk/internal/resilience"
)

const defaultMaxTokens = 1024

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
	client  anthropicsdk.Client
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
	return &Client{client: anthropicsdk.NewClient(opts...), cfg: cfg}
}

// SetBreaker attaches a circuit breaker to all calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Infer sends one Messages API request.
func (c *Client) Infer(ctx context.Context, req inference.Request) (inference.Response, error) {
	params := c.buildParams(req)

	var msg *anthropicsdk.Message
	call := func(ctx context.Context) error {
		m, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return err
		}
		msg = m
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Do(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return inference.Response{}, fmt.Errorf("anthropic infer: %w: %w", domain.ErrInferenceUnavailable, err)
	}
	return convertResponse(msg), nil
}

func (c *Client) buildParams(req inference.Request) anthropicsdk.MessageNewParams {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  convertMessages(req.Turns),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropicsdk.Float(*req.Temperature)
	}
	if len(req.Actions) > 0 {
		params.Tools = convertActions(req.Actions)
	}
	return params
}

// convertMessages merges consecutive turns of the same role and opens the
// dialogue with a user message, as the Messages API requires.
func convertMessages(turns []inference.Message) []anthropicsdk.MessageParam {
	type merged struct {
		role inference.Role
		text []string
	}
	var groups []merged
	for _, t := range turns {
		role := t.Role
		if role != inference.RoleUser {
			role = inference.RoleAssistant
		}
		if n := len(groups); n > 0 && groups[n-1].role == role {
			groups[n-1].text = append(groups[n-1].text, t.Text)
			continue
		}
		groups = append(groups, merged{role: role, text: []string{t.Text}})
	}
	if len(groups) == 0 || groups[0].role != inference.RoleUser {
		groups = append([]merged{{role: inference.RoleUser, text: []string{"(conversation start)"}}}, groups...)
	}

	out := make([]anthropicsdk.MessageParam, 0, len(groups))
	for _, g := range groups {
		block := anthropicsdk.NewTextBlock(strings.Join(g.text, "\n\n"))
		if g.role == inference.RoleUser {
			out = append(out, anthropicsdk.NewUserMessage(block))
		} else {
			out = append(out, anthropicsdk.NewAssistantMessage(block))
		}
	}
	return out
}

func convertActions(actions []inference.Action) []anthropicsdk.ToolUnionParam {
	out := make([]anthropicsdk.ToolUnionParam, len(actions))
	for i, a := range actions {
		out[i] = anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        a.Name,
				Description: anthropicsdk.String(a.Description),
				InputSchema: anthropicsdk.ToolInputSchemaParam{
					Type:       "object",
					Properties: a.Parameters["properties"],
					Required:   requiredFields(a.Parameters),
				},
			},
		}
	}
	return out
}

func requiredFields(params map[string]any) []string {
	switch req := params["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func convertResponse(msg *anthropicsdk.Message) inference.Response {
	if msg == nil {
		return inference.Response{}
	}
	var (
		text []string
		resp inference.Response
	)
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			text = append(text, b.Text)
		case anthropicsdk.ToolUseBlock:
			if resp.Call != nil {
				continue
			}
			args, err := b.Input.MarshalJSON()
			if err != nil {
				args = []byte("{}")
			}
			resp.Call = &inference.Call{Name: b.Name, Arguments: json.RawMessage(args)}
		}
	}
	resp.Text = strings.TrimSpace(strings.Join(text, ""))
	return resp
}
