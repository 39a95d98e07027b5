package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/pm-advisor/internal/advisor"
	"github.com/ashureev/pm-advisor/internal/api"
	"github.com/ashureev/pm-advisor/internal/backend"
	"github.com/ashureev/pm-advisor/internal/config"
	"github.com/ashureev/pm-advisor/internal/docfetch"
	"github.com/ashureev/pm-advisor/internal/llm"
	"github.com/ashureev/pm-advisor/internal/middleware"
	"github.com/ashureev/pm-advisor/internal/store"
	"github.com/ashureev/pm-advisor/internal/telemetry"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), logger)
		},
	}
}

func runServe(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger.Info("Starting server",
		"port", cfg.Port,
		"llm_provider", cfg.LLM.Provider,
		"conversation_store", cfg.Store.Backend,
		"backend_configured", cfg.Backend.URL != "",
	)

	repo, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Error("Failed to close conversation store", "error", closeErr)
		}
	}()
	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("conversation store health check: %w", err)
	}
	logger.Info("Conversation store ready", "backend", cfg.Store.Backend)

	observers := llm.MultiObserver{llm.NewLogObserver(logger)}
	var advisorMetrics advisor.Metrics
	var metrics *telemetry.Metrics
	if cfg.MetricsEnabled {
		metrics, err = telemetry.New(ctx, "pm-advisor")
		if err != nil {
			return fmt.Errorf("initialize metrics: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := metrics.Shutdown(shutdownCtx); err != nil {
				logger.Error("Failed to shut down metrics", "error", err)
			}
		}()
		observers = append(observers, metrics)
		advisorMetrics = metrics
	}

	completer, err := llm.New(ctx, cfg.LLM, observers)
	if err != nil {
		return fmt.Errorf("initialize llm provider: %w", err)
	}

	exchanges, err := advisor.NewExchangeLogger(cfg.ExchangeLog, logger)
	if err != nil {
		return fmt.Errorf("initialize exchange log: %w", err)
	}
	defer func() {
		if err := exchanges.Close(); err != nil {
			logger.Error("Failed to close exchange log", "error", err)
		}
	}()

	svc := advisor.New(advisor.Deps{
		LLM:       completer,
		Profiles:  llm.ProfilesFromConfig(cfg.LLM),
		Store:     repo,
		Documents: docfetch.New(cfg.FetchTimeout, logger),
		Tasks:     backend.New(cfg.Backend.URL, cfg.Backend.AuthToken, cfg.FetchTimeout, logger),
		Exchanges: exchanges,
		Metrics:   advisorMetrics,
		Logger:    logger,
	})

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.BodyLimit(cfg.MaxRequestBodySize))

	handler := api.NewHandler(svc, logger)
	if cfg.RateLimit.Enabled() {
		handler.SetRateLimit(middleware.NewRateLimiter(ctx, cfg.RateLimit.Requests, cfg.RateLimit.Window).Middleware)
	}
	handler.RegisterRoutes(r)
	api.NewHealthHandler(repo).RegisterHealth(r)
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	// Model calls can take most of LLM_TIMEOUT, so writes get extra headroom.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(r, "pm-advisor"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.LLM.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped successfully")
	return nil
}
