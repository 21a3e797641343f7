package auditsink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
	"github.com/Strob0t/ClaimDesk/internal/domain/audit"
	"github.com/Strob0t/ClaimDesk/internal/domain/payload"
)

type recordingSink struct {
	name string
	err  error
	got  []audit.Entry
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Publish(_ context.Context, _ string, entries []audit.Entry) error {
	r.got = append(r.got, entries...)
	return r.err
}

func TestFanoutPublishesToAll(t *testing.T) {
	e, err := audit.NewEntry(agent.Eloise, agent.Triage, time.Now(), 1, "TRIAGE_CALL", payload.Fields{"summary": "fire"})
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("broker down")
	a := &recordingSink{name: "nats", err: boom}
	b := &recordingSink{name: "postgres"}

	f := Fanout{a, b}
	err = f.Publish(context.Background(), "sess-1", []audit.Entry{e})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("every sink should receive the entries: %d, %d", len(a.got), len(b.got))
	}
	if f.Name() != "fanout(nats,postgres)" {
		t.Errorf("Name = %q", f.Name())
	}
}

func TestFanoutSkipsEmpty(t *testing.T) {
	a := &recordingSink{name: "nats", err: errors.New("unused")}
	if err := (Fanout{a}).Publish(context.Background(), "sess-1", nil); err != nil {
		t.Fatalf("empty publish should be a no-op, got %v", err)
	}
}
