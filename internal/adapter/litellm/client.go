// Package litellm provides an HTTP client for the LiteLLM Proxy admin API.
// ClaimDesk uses it to report proxy health and to check that the models
// configured for each agent are routed by the proxy.
package litellm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/Strob0t/ClaimDesk/internal/resilience"
)

// Model represents a configured model in LiteLLM.
type Model struct {
	ModelName string            `json:"model_name"`
	Provider  string            `json:"litellm_provider,omitempty"`
	ModelID   string            `json:"model_id,omitempty"`
	ModelInfo map[string]any    `json:"model_info,omitempty"`
	Params    map[string]string `json:"litellm_params,omitempty"`
}

// HealthReport is the proxy's view of its model endpoints.
type HealthReport struct {
	HealthyEndpoints   []ModelHealth `json:"healthy_endpoints"`
	UnhealthyEndpoints []ModelHealth `json:"unhealthy_endpoints"`
	HealthyCount       int           `json:"healthy_count"`
	UnhealthyCount     int           `json:"unhealthy_count"`
}

// ModelHealth represents the health of a single model endpoint.
type ModelHealth struct {
	Model   string `json:"model"`
	APIBase string `json:"api_base,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client talks to the LiteLLM Proxy admin API.
type Client struct {
	baseURL    string
	masterKey  string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a new LiteLLM admin client.
func NewClient(baseURL, masterKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		masterKey: masterKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// ListModels returns all configured models from LiteLLM.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/model/info")
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	var result struct {
		Data []Model `json:"data"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("unmarshal models: %w", err)
	}
	return result.Data, nil
}

// MissingModels returns the names in wanted that the proxy does not route.
func (c *Client) MissingModels(ctx context.Context, wanted []string) ([]string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	known := make([]string, 0, len(models))
	for i := range models {
		known = append(known, models[i].ModelName)
	}
	var missing []string
	for _, w := range wanted {
		if !slices.Contains(known, w) && !slices.Contains(missing, w) {
			missing = append(missing, w)
		}
	}
	return missing, nil
}

// Health checks if LiteLLM is healthy.
func (c *Client) Health(ctx context.Context) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodGet, "/health/liveliness")
	return err == nil, err
}

// HealthDetailed returns per-endpoint health from the proxy.
func (c *Client) HealthDetailed(ctx context.Context) (*HealthReport, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/health")
	if err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	var report HealthReport
	if err := json.Unmarshal(resp, &report); err != nil {
		return nil, fmt.Errorf("unmarshal health: %w", err)
	}
	if report.HealthyCount == 0 {
		report.HealthyCount = len(report.HealthyEndpoints)
	}
	if report.UnhealthyCount == 0 {
		report.UnhealthyCount = len(report.UnhealthyEndpoints)
	}
	return &report, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	var result []byte
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if c.masterKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.masterKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("litellm API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
