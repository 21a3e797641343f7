package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Strob0t/ClaimDesk/internal/config"
	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
	"github.com/Strob0t/ClaimDesk/internal/domain/conversation"
	"github.com/Strob0t/ClaimDesk/internal/logger"
	"github.com/Strob0t/ClaimDesk/internal/service"
)

// runChat drives the saga in-process, one line per user turn. Session
// state is carried between turns as an API client would.
func runChat(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, _, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// Keep routine logs out of the conversation.
	if flags.LogLevel == nil {
		cfg.Logging.Level = "warn"
	}
	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	interactive := term.IsTerminal(int(os.Stdin.Fd())) //nolint:gosec // fd fits in int
	return chatLoop(ctx, a.saga, os.Stdin, os.Stdout, interactive)
}

func chatLoop(ctx context.Context, saga *service.SagaService, in io.Reader, out io.Writer, interactive bool) error {
	if interactive {
		fmt.Fprintln(out, "Ctrl-D to quit.")
		fmt.Fprintf(out, "Eloise: %s\n", conversation.DefaultGreeting)
	}

	var st service.SessionState
	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			break
		}
		msg := strings.TrimSpace(scanner.Text())
		if msg == "" {
			continue
		}

		next, err := saga.Run(ctx, service.Submission{
			SessionID:    st.SessionID,
			Message:      msg,
			Conversation: st.Conversation,
			Log:          st.Log,
		})
		if next == nil {
			return fmt.Errorf("turn: %w", err)
		}
		if err != nil {
			slog.WarnContext(ctx, "turn recovered", "error", err)
		}
		st = *next
		for _, t := range st.Replies {
			fmt.Fprintf(out, "%s: %s\n", speakerName(t.Speaker), t.Text)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}

func speakerName(id agent.Identity) string {
	if id == agent.Coverage {
		return "Chris"
	}
	return id.String()
}
