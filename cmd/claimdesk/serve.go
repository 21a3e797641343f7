package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	cdhttp "github.com/Strob0t/ClaimDesk/internal/adapter/http"
	cdmcp "github.com/Strob0t/ClaimDesk/internal/adapter/mcp"
	cdotel "github.com/Strob0t/ClaimDesk/internal/adapter/otel"
	"github.com/Strob0t/ClaimDesk/internal/adapter/ristretto"
	"github.com/Strob0t/ClaimDesk/internal/adapter/tiered"
	"github.com/Strob0t/ClaimDesk/internal/config"
	"github.com/Strob0t/ClaimDesk/internal/logger"
	"github.com/Strob0t/ClaimDesk/internal/middleware"
	"github.com/Strob0t/ClaimDesk/internal/port/a2a"
	"github.com/Strob0t/ClaimDesk/internal/port/cache"
)

const shutdownTimeout = 10 * time.Second

func runServe(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"provider", cfg.Inference.Provider,
		"audit_sinks", cfg.Audit.Sinks,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	shutdownOtel, err := cdotel.Init(ctx, cdotel.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		ServiceName:    cfg.Logging.Service,
		ServiceVersion: version,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOtel(sctx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}()
	metrics, err := cdotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Services ---
	a, err := newApp(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer a.Close()

	holder := config.NewHolder(cfg, cfgPath)
	go watchReload(ctx, holder, a)

	// --- HTTP ---
	handlers := &cdhttp.Handlers{
		Saga:         a.saga,
		Orchestrator: a.orchestrator,
		Specialists:  a.specialists,
		Chat:         a.chat,
		Registry:     a.registry,
		LiteLLM:      a.litellm,
		Probes:       make(map[string]cdhttp.Probe),
		Version:      version,
		BodyLimit:    cfg.Server.BodyLimit,
	}
	if a.archive != nil {
		handlers.Archive = a.archive
		handlers.Probes["postgres"] = a.archive.Ping
	}
	if a.nats != nil {
		handlers.Probes["nats"] = a.nats.Ping
	}
	if a.litellm != nil {
		handlers.Probes["litellm"] = func(ctx context.Context) error {
			ok, err := a.litellm.Health(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("litellm unhealthy")
			}
			return nil
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(cdhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cdhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cdotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(cdhttp.SecurityHeaders)
	if cfg.Server.RateLimitRPS > 0 {
		rl := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
		rl.StartCleanup(ctx, time.Minute, 10*time.Minute)
		r.Use(rl.Handler)
	}
	if cfg.Server.IdempotencyTTL > 0 {
		replays, closeReplays, err := newReplayStore(ctx, cfg, a)
		if err != nil {
			return err
		}
		defer closeReplays()
		r.Use(middleware.Idempotency(replays, cfg.Server.IdempotencyTTL))
	}

	cdhttp.MountRoutes(r, handlers)

	if cfg.A2A.Enabled {
		a2a.NewHandler(cfg.A2A.BaseURL, version, a.registry, a.specialists).MountRoutes(r)
		slog.Info("a2a endpoints enabled", "base_url", cfg.A2A.BaseURL)
	}
	if cfg.MCP.Enabled {
		mcpSrv, err := cdmcp.NewServer(&cfg.MCP, a.registry, a.specialists)
		if err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
		r.Handle(cdmcp.Path, mcpSrv.Handler())
		slog.Info("mcp server enabled", "path", cdmcp.Path)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newReplayStore keeps Idempotency-Key replays in process, shared through
// a NATS KV bucket when the NATS mirror is connected.
func newReplayStore(ctx context.Context, cfg *config.Config, a *app) (cache.Cache, func(), error) {
	l1, err := ristretto.New(cfg.Server.IdempotencyMaxBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("idempotency cache: %w", err)
	}
	if a.nats == nil {
		return l1, l1.Close, nil
	}
	l2, err := a.nats.KeyValue(ctx, cfg.NATS.ReplayBucket, cfg.Server.IdempotencyTTL)
	if err != nil {
		l1.Close()
		return nil, nil, fmt.Errorf("idempotency store: %w", err)
	}
	return tiered.New(l1, l2, cfg.Server.IdempotencyTTL), l1.Close, nil
}

// watchReload re-reads the config on SIGHUP. Only the log level and the
// persona prompts take effect without a restart.
func watchReload(ctx context.Context, holder *config.Holder, a *app) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := holder.Reload(); err != nil {
				slog.Error("config reload failed", "error", err)
				continue
			}
			logger.SetLevel(holder.Get().Logging.Level)
			a.invalidatePersonas(ctx)
		}
	}
}
