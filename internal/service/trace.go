package service

import (
	"fmt"

	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
)

// Trace collects human-readable diagnostics for a turn. A disabled trace
// records nothing.
type Trace struct {
	enabled bool
	lines   []string
}

// NewTrace returns a trace that records only when enabled.
func NewTrace(enabled bool) *Trace {
	return &Trace{enabled: enabled}
}

// Addf records a line attributed to an agent, e.g. "[Eloise] ...".
func (t *Trace) Addf(who agent.Identity, format string, args ...any) {
	if t == nil || !t.enabled {
		return
	}
	t.lines = append(t.lines, fmt.Sprintf("[%s] ", who)+fmt.Sprintf(format, args...))
}

// Extend appends lines recorded elsewhere.
func (t *Trace) Extend(lines []string) {
	if t == nil || !t.enabled {
		return
	}
	t.lines = append(t.lines, lines...)
}

// Lines returns the recorded lines; nil when disabled.
func (t *Trace) Lines() []string {
	if t == nil || !t.enabled {
		return nil
	}
	return append([]string(nil), t.lines...)
}
