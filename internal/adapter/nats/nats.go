// Package nats mirrors audit entries to NATS JetStream.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/ClaimDesk/internal/config"
	"github.com/Strob0t/ClaimDesk/internal/domain/audit"
)

// Envelope is the message body of one published audit entry.
type Envelope struct {
	SessionID string      `json:"session_id"`
	Entry     audit.Entry `json:"entry"`
}

// Handler processes one received envelope.
type Handler func(ctx context.Context, subject string, env Envelope) error

// Publisher implements auditsink.Sink using NATS JetStream.
type Publisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string
	prefix string
}

// Connect establishes a connection to NATS and ensures the audit stream exists.
func Connect(ctx context.Context, cfg *config.NATS) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("claimdesk"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.SubjectPrefix + ".>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", cfg.URL, "stream", cfg.Stream)
	return &Publisher{nc: nc, js: js, stream: cfg.Stream, prefix: cfg.SubjectPrefix}, nil
}

// Name implements auditsink.Sink.
func (p *Publisher) Name() string { return "nats" }

// Subject returns the subject an entry is published on,
// e.g. claims.audit.eloise.triage.
func (p *Publisher) Subject(e *audit.Entry) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, strings.ToLower(e.From.String()), strings.ToLower(e.To.String()))
}

// Publish sends every entry as its own message. The entry id doubles as
// the JetStream message id so a retried publish is de-duplicated.
func (p *Publisher) Publish(ctx context.Context, sessionID string, entries []audit.Entry) error {
	for i := range entries {
		e := &entries[i]
		data, err := json.Marshal(Envelope{SessionID: sessionID, Entry: *e})
		if err != nil {
			return fmt.Errorf("encode entry %s: %w", e.ID, err)
		}
		subject := p.Subject(e)
		if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(e.ID)); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
	}
	return nil
}

// Subscribe delivers entries published on subject (wildcards allowed)
// until the returned stop function is called.
func (p *Publisher) Subscribe(ctx context.Context, subject string, handler Handler) (func(), error) {
	consumer, err := p.js.CreateOrUpdateConsumer(ctx, p.stream, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data(), &env); err != nil {
			slog.Error("audit message undecodable", "subject", msg.Subject(), "error", err)
			if termErr := msg.Term(); termErr != nil {
				slog.Error("nats term failed", "error", termErr)
			}
			return
		}
		if err := handler(ctx, msg.Subject(), env); err != nil {
			slog.Error("audit handler failed", "subject", msg.Subject(), "error", err)
			if nakErr := msg.Nak(); nakErr != nil {
				slog.Error("nats nak failed", "error", nakErr)
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// Ping reports whether the connection is usable.
func (p *Publisher) Ping(ctx context.Context) error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats status %s", p.nc.Status())
	}
	if _, err := p.js.Stream(ctx, p.stream); err != nil {
		return fmt.Errorf("nats stream %s: %w", p.stream, err)
	}
	return nil
}

// Close drains and shuts down the NATS connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}
