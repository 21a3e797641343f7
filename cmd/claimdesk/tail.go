package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	cdnats "github.com/Strob0t/ClaimDesk/internal/adapter/nats"
	"github.com/Strob0t/ClaimDesk/internal/config"
	"github.com/Strob0t/ClaimDesk/internal/logger"
)

// runTail prints audit envelopes published on the NATS mirror, one JSON
// object per line. The optional first argument narrows the subject.
func runTail(args []string) error {
	subjectArg := ""
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		subjectArg, args = args[0], args[1:]
	}
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, _, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pub, err := cdnats.Connect(ctx, &cfg.NATS)
	if err != nil {
		return err
	}
	defer func() { _ = pub.Close() }()

	subject := cfg.NATS.SubjectPrefix + ".>"
	if subjectArg != "" {
		subject = subjectArg
	}

	enc := json.NewEncoder(os.Stdout)
	cancel, err := pub.Subscribe(ctx, subject, func(_ context.Context, subj string, env cdnats.Envelope) error {
		return enc.Encode(struct {
			Subject string `json:"subject"`
			cdnats.Envelope
		}{subj, env})
	})
	if err != nil {
		return err
	}
	defer cancel()

	slog.Info("tailing audit entries", "subject", subject)
	<-ctx.Done()
	return nil
}
