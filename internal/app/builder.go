package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/recordsync/internal/app/storage"
	"github.com/stacklok/recordsync/internal/config"
	"github.com/stacklok/recordsync/internal/notify"
	"github.com/stacklok/recordsync/internal/remote"
	"github.com/stacklok/recordsync/internal/retry"
	"github.com/stacklok/recordsync/internal/store"
	recordsync "github.com/stacklok/recordsync/internal/sync"
	"github.com/stacklok/recordsync/internal/sync/coordinator"
	"github.com/stacklok/recordsync/internal/sync/state"
	"github.com/stacklok/recordsync/internal/telemetry"
	"github.com/stacklok/recordsync/internal/worker"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	storeWorkerName = "recordsync-store"
)

// SyncAppOptions is a function that configures the sync app builder
type SyncAppOptions func(*syncAppConfig) error

// syncAppConfig collects the builder options.
// It supports dependency injection for testing while providing sensible defaults for production
type syncAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	database       remote.Database
	storageFactory storage.Factory
	coordOpts      []coordinator.Option

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...SyncAppOptions) (*syncAppConfig, error) {
	cfg := &syncAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	return cfg, nil
}

// NewSyncApp creates the application from the given options
func NewSyncApp(
	ctx context.Context,
	opts ...SyncAppOptions,
) (*SyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if cfg.database == nil {
		cfg.database, err = buildRemoteDatabase(cfg.config)
		if err != nil {
			return nil, fmt.Errorf("failed to build remote client: %w", err)
		}
	}

	if cfg.storageFactory == nil {
		cfg.storageFactory, err = storage.NewStorageFactory(cfg.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	// Ensure cleanup happens on error
	var cleanupNeeded = true
	defer func() {
		if cleanupNeeded {
			cfg.storageFactory.Cleanup()
		}
	}()

	stateService, err := cfg.storageFactory.CreateStateService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create state service: %w", err)
	}

	syncMetrics, err := telemetry.NewSyncMetrics(cfg.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}

	engine, err := buildEngine(cfg, syncMetrics)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync engine: %w", err)
	}

	syncCoordinator := buildCoordinator(cfg, engine, stateService, syncMetrics)

	httpServer, err := buildHTTPServer(ctx, cfg, syncCoordinator, engine, stateService)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	// Cleanup is now handled by the app, not in defer
	cleanupNeeded = false

	appCtx, cancel := context.WithCancel(ctx)
	return &SyncApp{
		config: cfg.config,
		components: &AppComponents{
			SyncCoordinator: syncCoordinator,
			Engine:          engine,
			StateService:    stateService,
			Storage:         cfg.storageFactory,
		},
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		parts := strings.SplitN(addr, ":", 2)
		if len(parts) != 2 || parts[1] == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		host, port := parts[0], parts[1]
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithDatabase allows injecting the remote database (for testing)
func WithDatabase(db remote.Database) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.database = db
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithCoordinatorOptions passes extra options to the coordinator
func WithCoordinatorOptions(opts ...coordinator.Option) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.coordOpts = append(cfg.coordOpts, opts...)
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for sync and HTTP metrics
func WithMeterProvider(mp metric.MeterProvider) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for fetches and HTTP requests
func WithTracerProvider(tp trace.TracerProvider) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves h on /metrics
func WithMetricsHandler(h http.Handler) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// buildRemoteDatabase creates the HTTP client for the configured remote service
func buildRemoteDatabase(cfg *config.Config) (*remote.Client, error) {
	token, err := cfg.Remote.GetToken()
	if err != nil {
		return nil, err
	}

	return remote.NewClient(cfg.Remote.Endpoint, cfg.Remote.GetScope(),
		remote.WithToken(token),
		remote.WithTimeout(cfg.Remote.GetTimeout()),
		remote.WithRateLimit(cfg.Remote.RateLimit, cfg.Remote.Burst),
		remote.WithLogger(slog.Default()),
	)
}

// buildEngine builds the serialized store worker, the targets and the engine
func buildEngine(b *syncAppConfig, syncMetrics *telemetry.SyncMetrics) (*recordsync.Engine, error) {
	slog.Info("Initializing sync engine", "record_types", b.config.RecordTypeNames())

	db := b.storageFactory.Store()
	w := worker.New(
		worker.WithName(storeWorkerName),
		worker.WithInit(db.Open),
		worker.WithShutdown(db.Close),
		worker.WithLogger(slog.Default()),
	)

	fetcherOpts := []recordsync.FetcherOption{
		recordsync.WithPageSize(b.config.Sync.GetPageSize()),
		recordsync.WithRetryPolicy(retry.NewClassifier(
			retry.WithDefaultDelay(b.config.Sync.GetRetryDelay()),
		)),
		recordsync.WithSyncMetrics(syncMetrics),
	}
	if b.tracerProvider != nil {
		fetcherOpts = append(fetcherOpts, recordsync.WithTracerProvider(b.tracerProvider))
	}

	return recordsync.NewEngine(b.database, b.storageFactory.CreateTargets(),
		recordsync.WithWorker(w),
		recordsync.WithFetcherOptions(fetcherOpts...),
	)
}

// buildCoordinator builds the sync coordinator on top of the engine
func buildCoordinator(
	b *syncAppConfig,
	engine *recordsync.Engine,
	stateService state.RecordTypeStateService,
	syncMetrics *telemetry.SyncMetrics,
) coordinator.Coordinator {
	opts := []coordinator.Option{
		coordinator.WithPollInterval(b.config.Sync.GetPollInterval()),
		coordinator.WithSubscriptionRetry(b.config.Sync.SubscriptionAttempts, 0),
		coordinator.WithSyncMetrics(syncMetrics),
		coordinator.WithRecordCounter(storeRecordCounter(engine.Worker(), b.storageFactory.Store())),
	}
	if source, ok := b.database.(coordinator.ServerInfoSource); ok {
		opts = append(opts, coordinator.WithServerInfo(source))
	}
	opts = append(opts, b.coordOpts...)

	return coordinator.New(engine, stateService, opts...)
}

// storeRecordCounter counts stored records on the store worker
func storeRecordCounter(w *worker.Worker, db *store.DB) coordinator.RecordCounter {
	return func(ctx context.Context, recordType string) (int, error) {
		var (
			n        int
			countErr error
		)
		if err := w.Submit(ctx, func() { n, countErr = db.Count(ctx, recordType) }); err != nil {
			return 0, err
		}
		return n, countErr
	}
}

// buildHTTPServer builds the notification server with router and middleware
func buildHTTPServer(
	_ context.Context,
	b *syncAppConfig,
	trigger notify.Trigger,
	engine *recordsync.Engine,
	stateService state.RecordTypeStateService,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			notify.LoggingMiddleware,
		}
	}

	// Metrics and tracing go first to capture every request
	var telemetryMiddlewares []func(http.Handler) http.Handler
	if b.meterProvider != nil {
		httpMetrics, err := telemetry.NewHTTPMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
		}
		telemetryMiddlewares = append(telemetryMiddlewares, httpMetrics.Middleware)
		slog.Info("HTTP metrics middleware enabled")
	}
	if b.tracerProvider != nil {
		telemetryMiddlewares = append(telemetryMiddlewares, telemetry.TracingMiddleware(b.tracerProvider))
	}
	middlewares := append(telemetryMiddlewares, b.middlewares...)

	subscriptions := make(map[string]string)
	for _, rt := range engine.RecordTypes() {
		subscriptions[engine.SubscriptionID(rt)] = rt
	}

	serverOpts := []notify.ServerOption{
		notify.WithMiddlewares(middlewares...),
		notify.WithStatusService(stateService),
		notify.WithSubscriptions(subscriptions),
	}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, notify.WithMetricsHandler(b.metricsHandler))
	}
	router := notify.NewServer(trigger, serverOpts...)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
