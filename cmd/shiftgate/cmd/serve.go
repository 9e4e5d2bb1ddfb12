package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/shiftgate/shiftgate/internal/adapter/inbound/http"
	"github.com/shiftgate/shiftgate/internal/adapter/outbound/memory"
	"github.com/shiftgate/shiftgate/internal/adapter/outbound/postgres"
	"github.com/shiftgate/shiftgate/internal/adapter/outbound/sqlite"
	"github.com/shiftgate/shiftgate/internal/config"
	"github.com/shiftgate/shiftgate/internal/domain/breaks"
	"github.com/shiftgate/shiftgate/internal/domain/notify"
	"github.com/shiftgate/shiftgate/internal/domain/override"
	"github.com/shiftgate/shiftgate/internal/domain/policy"
	"github.com/shiftgate/shiftgate/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the ShiftGate HTTP server.

The store backend is selected via store.backend in the config file:

  memory     volatile, for development and tests
  sqlite     embedded single-node persistence (default)
  postgres   shared persistence for multi-node deployments

Examples:
  # Start with config file settings
  shiftgate serve

  # Start with a specific config file
  shiftgate --config /path/to/config.yaml serve

  # Start in development mode (memory-friendly defaults, debug logging)
  shiftgate serve --dev`,
	RunE: runServe,
}

var devMode bool

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging, ephemeral sqlite)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override dev mode from CLI flag, then re-apply dev defaults.
	if devMode {
		cfg.DevMode = true
		cfg.SetDevDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	logger.Debug("log level configured", "level", cfg.Server.LogLevel, "effective", logLevel.String())

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("shiftgate stopped")
	return nil
}

// storeSet bundles one store per persisted aggregate, all backed by the same
// backend.
type storeSet struct {
	restrictions  policy.RestrictionStore
	breakPolicies policy.BreakPolicyStore
	overrides     override.Store
	breakEntries  breaks.Store
	close         func()
}

// openStores creates the store set for the configured backend.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storeSet, error) {
	switch cfg.Store.Backend {
	case "memory":
		logger.Info("store backend: memory")
		return &storeSet{
			restrictions:  memory.NewRestrictionStore(),
			breakPolicies: memory.NewBreakPolicyStore(),
			overrides:     memory.NewOverrideStore(),
			breakEntries:  memory.NewBreakEntryStore(),
			close:         func() {},
		}, nil

	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		logger.Info("store backend: sqlite", "path", cfg.Store.SQLitePath)
		return &storeSet{
			restrictions:  sqlite.NewRestrictionStore(db),
			breakPolicies: sqlite.NewBreakPolicyStore(db),
			overrides:     sqlite.NewOverrideStore(db),
			breakEntries:  sqlite.NewBreakEntryStore(db),
			close:         func() { _ = db.Close() },
		}, nil

	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
		}
		logger.Info("store backend: postgres")
		return &storeSet{
			restrictions:  postgres.NewRestrictionStore(pool),
			breakPolicies: postgres.NewBreakPolicyStore(pool),
			overrides:     postgres.NewOverrideStore(pool),
			breakEntries:  postgres.NewBreakEntryStore(pool),
			close:         pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
}

// run wires all components together and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	startTime := time.Now().UTC()

	if cfg.DevMode {
		logger.Warn("development mode enabled, do not use in production")
	}

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.close()

	// The directory is in-memory in all backends: team membership is owned by
	// the surrounding HR system and synced in at runtime, not persisted here.
	directory := memory.NewDirectory()

	// Notifications are fire-and-forget through a bounded queue.
	notifier := notify.NewAsyncNotifier(
		notify.NewLogSink(logger),
		logger,
		notify.WithQueueSize(cfg.Notify.QueueSize),
		notify.WithSendTimeout(cfg.SendTimeoutDuration()),
	)
	notifier.Start()
	defer notifier.Stop()

	resolver := service.NewResolverService(stores.restrictions, stores.breakPolicies, directory, logger)

	validation, err := service.NewValidationService(resolver, logger,
		service.WithDecisionCacheSize(cfg.Overrides.DecisionCacheSize),
	)
	if err != nil {
		return fmt.Errorf("failed to create validation service: %w", err)
	}

	overrides := service.NewOverrideService(stores.overrides, resolver, directory, notifier, logger,
		service.WithConsumptionWindow(cfg.ConsumptionWindowDuration()),
	)

	breakSvc := service.NewBreakService(stores.breakEntries, resolver, notifier, logger)

	admin, err := service.NewPolicyAdminService(stores.restrictions, stores.breakPolicies, directory, logger)
	if err != nil {
		return fmt.Errorf("failed to create policy admin service: %w", err)
	}

	metrics := http.NewMetrics(prometheus.DefaultRegisterer)
	http.RegisterNotifyDrops(prometheus.DefaultRegisterer, notifier.Dropped)

	apiHandler := http.NewAPIHandler(
		http.WithValidationService(validation),
		http.WithOverrideService(overrides),
		http.WithBreakService(breakSvc),
		http.WithPolicyAdminService(admin),
		http.WithResolverService(resolver),
		http.WithMetrics(metrics),
		http.WithLogger(logger),
		http.WithVersion(Version),
	)

	server := &stdhttp.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           apiHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("shiftgate starting",
			"version", Version,
			"http_addr", cfg.Server.HTTPAddr,
			"store_backend", cfg.Store.Backend,
			"dev_mode", cfg.DevMode,
			"consumption_window", cfg.ConsumptionWindowDuration().String(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeoutDuration().String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeoutDuration())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	logger.Debug("server stopped", "uptime", time.Since(startTime).String())
	return nil
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
