// Command orato is the speech-coaching backend server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/orato-ai/orato/internal/analysis"
	"github.com/orato-ai/orato/internal/coach"
	"github.com/orato-ai/orato/internal/config"
	"github.com/orato-ai/orato/internal/events"
	"github.com/orato-ai/orato/internal/feedback"
	"github.com/orato-ai/orato/internal/health"
	"github.com/orato-ai/orato/internal/httpapi"
	"github.com/orato-ai/orato/internal/observe"
	"github.com/orato-ai/orato/internal/resilience"
	"github.com/orato-ai/orato/internal/session"
	"github.com/orato-ai/orato/internal/store"
	"github.com/orato-ai/orato/pkg/provider/llm"
	"github.com/orato-ai/orato/pkg/provider/llm/anyllm"
	"github.com/orato-ai/orato/pkg/provider/llm/mock"
	oaillm "github.com/orato-ai/orato/pkg/provider/llm/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "orato: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "orato: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("orato starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry first so every subsystem records into the real providers.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "orato",
	})
	if err != nil {
		slog.Error("failed to init telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	provider, err := buildProvider(cfg, reg)
	if err != nil {
		slog.Error("failed to build LLM provider", "err", err)
		return 1
	}

	st, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to build store", "err", err)
		return 1
	}
	defer closeStore()

	registry := session.NewRegistry(session.RegistryConfig{
		TTL:                cfg.Session.TTL,
		MaxTranscriptWords: cfg.Session.MaxTranscriptWords,
	})

	coachOpts := []coach.Option{
		coach.WithTimeout(cfg.Coach.RequestTimeout),
		coach.WithTemperature(cfg.Coach.Temperature),
		coach.WithMaxTokens(cfg.Coach.MaxTokens),
	}
	if cfg.Coach.JournalPath != "" {
		coachOpts = append(coachOpts, coach.WithJournal(feedback.NewJournal(cfg.Coach.JournalPath)))
	}

	publisher := events.New(&events.Config{
		Enabled: cfg.Events.Enabled,
		Brokers: cfg.Events.Brokers,
		Topic:   cfg.Events.Topic,
	})
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Warn("event publisher close error", "err", err)
		}
	}()

	healthHandler := health.New(healthCheckers(st, provider)...)

	server := httpapi.New(httpapi.Deps{
		Registry:  registry,
		Coach:     coach.New(provider, coachOpts...),
		Analyzer:  analysis.New(provider, analysis.WithTimeout(cfg.Coach.RequestTimeout)),
		Store:     st,
		Publisher: publisher,
		Metrics:   observe.DefaultMetrics(),
		Health:    healthHandler,
	}, httpapi.WithAllowedOrigins(cfg.Server.AllowedOrigins))

	apiServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("api server listening", "addr", apiServer.Addr)
		var err error
		if cfg.Server.TLS != nil {
			err = apiServer.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = apiServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	if cfg.Server.MetricsAddr != "" {
		g.Go(func() error {
			slog.Info("metrics server listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		return registry.RunJanitor(gctx, cfg.Session.JanitorInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		var errs []error
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if cfg.Server.MetricsAddr != "" {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	slog.Info("server ready")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// registerBuiltinProviders wires all built-in LLM provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// The OpenAI provider uses the official client for full parameter
	// support; everything else goes through the universal adapter.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"gemini", "anthropic", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// mock always answers with a canned response; useful for local frontend work.
	reg.RegisterLLM("mock", func(entry config.ProviderEntry) (llm.Provider, error) {
		return &mock.Provider{
			CompleteResponse: &llm.CompletionResponse{Content: "{}"},
		}, nil
	})
}

// buildProvider creates the configured primary LLM provider and, when
// fallbacks are listed, wraps the chain in circuit-breaker failover.
func buildProvider(cfg *config.Config, reg *config.Registry) (llm.Provider, error) {
	if cfg.Provider.Name == "" {
		slog.Warn("no LLM provider configured, feedback degrades to stats tier")
		return nil, nil
	}

	primary, err := reg.CreateLLM(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("create provider %q: %w", cfg.Provider.Name, err)
	}
	slog.Info("provider created", "name", cfg.Provider.Name, "model", cfg.Provider.Model)

	if len(cfg.Provider.Fallbacks) == 0 {
		return primary, nil
	}

	group := resilience.NewLLMFallback(primary, resilience.FallbackConfig{})
	for _, entry := range cfg.Provider.Fallbacks {
		fb, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create fallback provider %q: %w", entry.Name, err)
		}
		group.AddFallback(fb)
		slog.Info("fallback provider created", "name", entry.Name, "model", entry.Model)
	}
	return group, nil
}

// buildStore creates the transcription store named in the config. The
// returned close function is a no-op for the in-memory backend.
func buildStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		slog.Info("transcription store ready", "backend", "postgres")
		return pg, pool.Close, nil

	default:
		slog.Info("transcription store ready", "backend", "memory")
		return store.NewMemStore(), func() {}, nil
	}
}

// healthCheckers builds readiness checks for the configured dependencies.
func healthCheckers(st store.Store, provider llm.Provider) []health.Checker {
	checkers := []health.Checker{
		{
			Name: "store",
			Check: func(ctx context.Context) error {
				_, err := st.List(ctx, store.ListOptions{Page: 1, Limit: 1})
				return err
			},
		},
	}
	if provider != nil {
		checkers = append(checkers, health.Checker{
			Name: "provider",
			Check: func(context.Context) error {
				// The provider is constructed eagerly; being present is the
				// readiness signal. Probing the model on every check would
				// burn quota.
				return nil
			},
		})
	}
	return checkers
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
