package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"financeai/internal/auth"
	"financeai/internal/backend"
	"financeai/internal/cache"
	"financeai/internal/config"
	apphttp "financeai/internal/http"
	"financeai/internal/insights"
	"financeai/internal/insights/gateway"
	"financeai/internal/insights/gemini"
	"financeai/internal/log"
	"financeai/internal/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	data, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		return err
	}
	defer func() {
		if err := data.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize insight generator", log.FieldError, err, log.FieldProvider, cfg.InsightsProvider)
		return err
	}
	pipeline := insights.NewPipeline(gen, logger)

	insightSvc := services.NewInsightService(data.Store, pipeline, services.InsightOptions{
		CacheTTL:    cfg.InsightsCacheTTL,
		AutoRefresh: cfg.InsightsAutoRefresh,
	}, logger)
	unwatch, err := insightSvc.Watch(ctx, data.Notifier)
	if err != nil {
		return err
	}
	defer unwatch()

	cacheManager := cache.NewManager(logger)
	if c := insightSvc.Cache(); c != nil {
		cacheManager.Register(c)
	}
	cacheManager.StartCleanup(5 * time.Minute)
	defer cacheManager.Stop()

	var ready []apphttp.ReadinessCheck
	for _, c := range data.Checks {
		ready = append(ready, apphttp.ReadinessCheck{Name: c.Name, Check: c.Check})
	}

	srv := apphttp.NewServer(":"+cfg.Port,
		auth.NewVerifier(cfg.SupabaseJWTSecret),
		apphttp.Services{
			Ledger:    services.NewLedgerService(data.Store, data.Notifier, logger),
			Dashboard: services.NewDashboardService(data.Store, logger),
			Insights:  insightSvc,
		},
		apphttp.Options{
			RateLimitPerMin: cfg.RateLimitPerMin,
			AllowedOrigins:  cfg.AllowedOrigins,
			Readiness:       ready,
		},
		logger)
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting financeai server",
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			log.FieldProvider, cfg.InsightsProvider,
			log.FieldModel, cfg.Model())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if data.Run != nil {
		g.Go(func() error {
			if err := data.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Change feed stopped", log.FieldError, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// newGenerator builds the configured text generator. The gemini SDK call
// has no client-level timeout, so a non-zero INSIGHTS_TIMEOUT is applied per
// request.
func newGenerator(ctx context.Context, cfg *config.Config) (insights.Generator, error) {
	switch cfg.InsightsProvider {
	case "gemini":
		client, err := gemini.New(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.Model()})
		if err != nil {
			return nil, err
		}
		timeout := cfg.InsightsTimeout
		if timeout == 0 {
			return client, nil
		}
		return insights.GeneratorFunc(func(ctx context.Context, p insights.Payload) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return client.Generate(ctx, p)
		}), nil
	default:
		client, err := gateway.New(gateway.Config{
			BaseURL: cfg.AIGatewayURL,
			APIKey:  cfg.AIGatewayAPIKey,
			Model:   cfg.Model(),
			Timeout: cfg.InsightsTimeout,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
