package litellm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/ClaimDesk/internal/adapter/litellm"
)

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health/liveliness" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`"I'm alive!"`))
	}))
	defer srv.Close()

	ok, err := litellm.NewClient(srv.URL, "").Health(context.Background())
	if !ok || err != nil {
		t.Fatalf("Health = %v, %v", ok, err)
	}
}

func TestHealthDetailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"healthy_endpoints": []map[string]string{
				{"model": "gpt-4o", "api_base": "https://api.openai.com"},
				{"model": "gpt-3.5-turbo", "api_base": "https://api.openai.com"},
			},
			"unhealthy_endpoints": []map[string]string{
				{"model": "claude-sonnet-4-20250514", "error": "ConnectionError"},
			},
		})
	}))
	defer srv.Close()

	client := litellm.NewClient(srv.URL, "test-key")
	report, err := client.HealthDetailed(context.Background())
	if err != nil {
		t.Fatalf("HealthDetailed failed: %v", err)
	}

	if report.HealthyCount != 2 {
		t.Errorf("expected 2 healthy, got %d", report.HealthyCount)
	}
	if report.UnhealthyCount != 1 {
		t.Errorf("expected 1 unhealthy, got %d", report.UnhealthyCount)
	}
	if report.UnhealthyEndpoints[0].Error != "ConnectionError" {
		t.Errorf("expected ConnectionError, got %q", report.UnhealthyEndpoints[0].Error)
	}
}

func TestHealthDetailedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"down"}`))
	}))
	defer srv.Close()

	client := litellm.NewClient(srv.URL, "test-key")
	if _, err := client.HealthDetailed(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
}
