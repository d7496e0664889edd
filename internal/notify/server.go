// Package notify provides the HTTP receiver for change notifications sent by
// the remote record service, plus health, status and metrics endpoints.
package notify

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/recordsync/internal/logging"
	"github.com/stacklok/recordsync/internal/sync/state"
)

// Trigger requests a sync of a record type. The coordinator implements it.
type Trigger interface {
	Trigger(recordType string) error
}

// ServerOption configures the notification server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	metricsHandler http.Handler
	statusSvc      state.RecordTypeStateService
	subscriptions  map[string]string
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithMetricsHandler serves h on /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// WithStatusService serves the persisted sync statuses on /v1/status
func WithStatusService(svc state.RecordTypeStateService) ServerOption {
	return func(cfg *serverConfig) {
		cfg.statusSvc = svc
	}
}

// WithSubscriptions maps subscription IDs to record types, so notifications
// that only carry a subscription ID can be routed
func WithSubscriptions(subscriptions map[string]string) ServerOption {
	return func(cfg *serverConfig) {
		cfg.subscriptions = subscriptions
	}
}

// NewServer creates and configures the HTTP router for trigger
func NewServer(trigger Trigger, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	h := &handlers{
		trigger:       trigger,
		statusSvc:     cfg.statusSvc,
		subscriptions: cfg.subscriptions,
	}

	r.Get("/health", h.health)
	r.Get("/version", h.version)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/notifications", h.notification)
		if cfg.statusSvc != nil {
			r.Get("/status", h.listStatus)
			r.Get("/status/{recordType}", h.getStatus)
		}
	})
	if cfg.metricsHandler != nil {
		r.Handle("/metrics", cfg.metricsHandler)
	}

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logging.FromContext(r.Context()).Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
