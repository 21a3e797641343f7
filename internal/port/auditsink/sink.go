// Package auditsink defines the port for write-only mirrors of the audit
// log. Turns never read back from a sink.
package auditsink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Strob0t/ClaimDesk/internal/domain/audit"
)

// Sink receives the entries appended during one turn.
type Sink interface {
	Name() string
	Publish(ctx context.Context, sessionID string, entries []audit.Entry) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Name() string                                         { return "nop" }
func (Nop) Publish(context.Context, string, []audit.Entry) error { return nil }

// Fanout publishes to every sink in order and joins their errors. One
// failing sink does not stop the others.
type Fanout []Sink

// Name lists the member sinks.
func (f Fanout) Name() string {
	names := make([]string, len(f))
	for i, s := range f {
		names[i] = s.Name()
	}
	return "fanout(" + strings.Join(names, ",") + ")"
}

// Publish forwards entries to all sinks.
func (f Fanout) Publish(ctx context.Context, sessionID string, entries []audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	var errs []error
	for _, s := range f {
		if err := s.Publish(ctx, sessionID, entries); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
