package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lin-gate/lingate/internal/service"
)

// maxRequestBytes caps how much of an endpoint request body is buffered.
const maxRequestBytes = 16 << 20

// Interceptor is the pipeline the transport hands endpoint requests to.
// *service.InterceptService implements it.
type Interceptor interface {
	Handle(ctx context.Context, path string, body []byte) *service.Exchange
}

// Transport is the inbound adapter that serves the endpoint-facing intercept
// route plus the operational and admin surfaces on one listener.
type Transport struct {
	interceptor   Interceptor
	server        *http.Server
	addr          string
	interceptPath string
	adminHandler  http.Handler
	healthChecker *HealthChecker
	registry      *prometheus.Registry
	metrics       *Metrics
	logger        *slog.Logger
}

// Option is a functional option for configuring Transport.
type Option func(*Transport)

// WithAddr sets the listen address. Default is "0.0.0.0:8080".
func WithAddr(addr string) Option {
	return func(t *Transport) { t.addr = addr }
}

// WithInterceptPath sets the endpoint-facing route.
// Default is "/public-interface.php".
func WithInterceptPath(path string) Option {
	return func(t *Transport) { t.interceptPath = path }
}

// WithLogger sets the transport logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// WithAdminHandler mounts the admin API under /admin/.
func WithAdminHandler(h http.Handler) Option {
	return func(t *Transport) { t.adminHandler = h }
}

// WithHealthChecker sets the /health endpoint implementation.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(t *Transport) { t.healthChecker = hc }
}

// NewTransport creates the transport. The Prometheus registry and metrics are
// created here so the caller can hand Metrics() to the pipeline before Start.
func NewTransport(interceptor Interceptor, opts ...Option) *Transport {
	t := &Transport{
		interceptor:   interceptor,
		addr:          "0.0.0.0:8080",
		interceptPath: "/public-interface.php",
		logger:        slog.Default(),
		registry:      prometheus.NewRegistry(),
	}
	t.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	t.metrics = NewMetrics(t.registry)

	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Metrics returns the transport's metrics set for wiring into the pipeline.
func (t *Transport) Metrics() *Metrics {
	return t.metrics
}

// Handler builds the full route table wrapped in the middleware chain.
func (t *Transport) Handler() http.Handler {
	mux := http.NewServeMux()

	if t.adminHandler != nil {
		mux.Handle("/admin/api/", t.adminHandler)
	}
	if t.healthChecker != nil {
		mux.Handle("GET /health", t.healthChecker.Handler())
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{
		Registry: t.registry,
	}))
	mux.Handle("GET /favicon.ico", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("GET /{$}", t.handleStatus)
	mux.HandleFunc("POST "+t.interceptPath, t.handleIntercept)

	var handler http.Handler = mux
	handler = RequestIDMiddleware(t.logger)(handler)
	handler = MetricsMiddleware(t.metrics)(handler)
	return handler
}

// handleStatus serves the root status probe the endpoints poll.
func (t *Transport) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message": "lingate proxy",
		"status":  "running",
	})
}

// handleIntercept reads the endpoint request and hands it to the pipeline.
// The pipeline never fails: it always produces a status and body.
func (t *Transport) handleIntercept(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		LoggerFromContext(r.Context()).Warn("request body read failed", "error", err)
		http.Error(w, `{"error":"failed to read request body"}`, http.StatusBadRequest)
		return
	}

	ex := t.interceptor.Handle(r.Context(), r.URL.Path, body)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ex.Status)
	_, _ = w.Write(ex.Body)
}

// Start begins serving. It blocks until the context is cancelled or the
// listener fails, then shuts down gracefully.
func (t *Transport) Start(ctx context.Context) error {
	t.server = &http.Server{
		Addr:              t.addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("starting HTTP server", "addr", t.addr)
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

func (t *Transport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}
	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *Transport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}
