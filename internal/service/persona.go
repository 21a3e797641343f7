package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/ClaimDesk/internal/config"
	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
	"github.com/Strob0t/ClaimDesk/internal/port/cache"
)

// ChatPersona is the system prompt of one-shot chat completions.
const ChatPersona = "You are Eloise, a helpful AI agent."

var defaultPersonas = map[agent.Identity]string{
	agent.Eloise:   "You are Eloise, a friendly claims intake agent for insurance.",
	agent.Coverage: "You are Chris_Coverage, an AI claims assessment agent.",
	agent.Triage:   "You are Triage, the AI agent for emergency claims response.",
}

// PersonaService loads persona prompts from <dir>/<name>.txt. Loaded
// prompts are cached and concurrent loads of one persona share a read.
type PersonaService struct {
	cfg   *config.Prompts
	cache cache.Cache
	group singleflight.Group
}

// NewPersonaService creates a PersonaService. A nil cache disables caching.
func NewPersonaService(cfg *config.Prompts, c cache.Cache) *PersonaService {
	if c == nil {
		c = cache.Nop{}
	}
	return &PersonaService{cfg: cfg, cache: c}
}

// Persona returns the prompt of an agent. It never fails: an unreadable
// or empty file yields the built-in default.
func (s *PersonaService) Persona(ctx context.Context, id agent.Identity) string {
	key := personaKey(id)
	if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return string(b)
	}

	v, _, _ := s.group.Do(key, func() (any, error) {
		text, err := s.read(id)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				slog.WarnContext(ctx, "persona prompt unreadable, using default", "agent", id, "error", err)
			}
			text = defaultPersonas[id]
		}
		if err := s.cache.Set(ctx, key, []byte(text), s.cfg.CacheTTL); err != nil {
			slog.WarnContext(ctx, "persona cache set failed", "agent", id, "error", err)
		}
		return text, nil
	})
	return v.(string)
}

// Invalidate drops a cached persona so the next call re-reads the file.
func (s *PersonaService) Invalidate(ctx context.Context, id agent.Identity) error {
	return s.cache.Delete(ctx, personaKey(id))
}

func (s *PersonaService) read(id agent.Identity) (string, error) {
	path := filepath.Join(s.cfg.Dir, id.PromptName()+".txt")
	data, err := os.ReadFile(path) //nolint:gosec // G304: fixed file names under the configured prompt dir
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("persona %s: %s is empty", id, path)
	}
	return text, nil
}

func personaKey(id agent.Identity) string {
	return "persona:" + id.PromptName()
}
