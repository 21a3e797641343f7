// Command claimdesk runs the claims assistant: the HTTP service, audit
// migrations and a terminal chat session.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printHelp()
			return
		}
		fmt.Fprintln(os.Stderr, "claimdesk:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return runServe(args)
	case "migrate":
		return runMigrate(args)
	case "chat":
		return runChat(args)
	case "tail":
		return runTail(args)
	case "help":
		printHelp()
		return nil
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: claimdesk [command] [options]

Commands:
  serve              Run the HTTP service (default)
  migrate up         Apply audit archive migrations
  migrate down [n]   Roll back n migrations (default 1)
  migrate version    Print the current migration version
  chat               Talk to Eloise in the terminal
  tail [subject]     Print audit entries as they are published to NATS
  help               Show this help message

Options:
  -c, --config PATH   YAML config (default claimdesk.yaml)
  -p, --port PORT     HTTP port
  --log-level LEVEL   debug | info | warn | error
  --dsn DSN           PostgreSQL DSN
  --nats-url URL      NATS URL
  --provider NAME     openai | anthropic
  --prompts-dir DIR   persona prompt directory
`)
}
