package agent

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Strob0t/ClaimDesk/internal/domain"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Identity
	}{
		{"User", User},
		{"You", User},
		{"eloise", Eloise},
		{"Chris_Coverage", Coverage},
		{"Coverage", Coverage},
		{" Triage ", Triage},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseUnknown(t *testing.T) {
	_, err := Parse("Bob")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestIsSpecialist(t *testing.T) {
	if !Coverage.IsSpecialist() || !Triage.IsSpecialist() {
		t.Fatal("coverage and triage must be specialists")
	}
	if Eloise.IsSpecialist() || User.IsSpecialist() {
		t.Fatal("eloise and user must not be specialists")
	}
}

func TestPromptName(t *testing.T) {
	if got := Coverage.PromptName(); got != "chris_coverage" {
		t.Errorf("expected chris_coverage, got %s", got)
	}
	if got := Eloise.PromptName(); got != "eloise" {
		t.Errorf("expected eloise, got %s", got)
	}
}

func TestUnmarshalJSONAlias(t *testing.T) {
	var v struct {
		From Identity `json:"from"`
	}
	if err := json.Unmarshal([]byte(`{"from":"Chris_Coverage"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.From != Coverage {
		t.Fatalf("expected Coverage, got %s", v.From)
	}

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"from":"Coverage"}` {
		t.Fatalf("unexpected encoding %s", out)
	}
}
