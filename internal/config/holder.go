package config

import (
	"fmt"
	"log/slog"
	"sync"
)

// Holder provides concurrency-safe access to a Config that can be
// reloaded from its YAML file.
type Holder struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
}

// NewHolder wraps an already-loaded config.
func NewHolder(cfg *Config, path string) *Holder {
	return &Holder{cfg: cfg, path: path}
}

// Get returns the current config. Callers must not mutate it.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Reload re-reads YAML and ENV. On failure the previous config is kept.
func (h *Holder) Reload() error {
	cfg, err := LoadFrom(h.path)
	if err != nil {
		return fmt.Errorf("reload %s: %w", h.path, err)
	}
	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
	slog.Info("config reloaded", "path", h.path, "log_level", cfg.Logging.Level)
	return nil
}
