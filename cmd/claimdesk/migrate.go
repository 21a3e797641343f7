package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/Strob0t/ClaimDesk/internal/adapter/postgres"
	"github.com/Strob0t/ClaimDesk/internal/config"
)

// runMigrate dispatches migrate subcommands (up, down, version).
func runMigrate(args []string) error {
	if len(args) == 0 {
		printHelp()
		return fmt.Errorf("migrate: missing subcommand")
	}
	sub, rest := args[0], args[1:]

	steps := 1
	if sub == "down" && len(rest) > 0 && rest[0] != "" && rest[0][0] != '-' {
		n, err := strconv.Atoi(rest[0])
		if err != nil || n < 1 {
			return fmt.Errorf("migrate down: invalid step count %q", rest[0])
		}
		steps, rest = n, rest[1:]
	}

	flags, err := config.ParseFlags(rest)
	if err != nil {
		return err
	}
	cfg, _, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()
	switch sub {
	case "up":
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return err
		}
	case "down":
		if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, steps); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("migrate: unknown subcommand %s", sub)
	}

	v, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "migration version %d\n", v)
	return nil
}
