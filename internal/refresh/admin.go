package refresh

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jkaninda/okapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Admin serves the runner's health and metrics endpoints while the
// refresh loop runs. Readiness reflects the most recent cycle.
type Admin struct {
	runner   *Runner
	registry *prometheus.Registry
	logger   *slog.Logger
	addr     string

	okapi  *okapi.Okapi
	server *http.Server
}

// NewAdmin creates the admin endpoint for a runner. A nil registry
// disables the metrics route.
func NewAdmin(runner *Runner, registry *prometheus.Registry, addr string, logger *slog.Logger) *Admin {
	return &Admin{
		runner:   runner,
		registry: registry,
		logger:   logger,
		addr:     addr,
		okapi:    okapi.New(),
	}
}

type healthResponse struct {
	Status string `json:"status"`
}

// Start launches the HTTP server and blocks until it exits.
func (a *Admin) Start(ctx context.Context) error {
	a.okapi.Get("/healthz", a.handleLiveness)
	a.okapi.Get("/readyz", a.handleReadiness)
	if a.registry != nil {
		a.okapi.HandleStd("GET", "/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}).ServeHTTP)
	}

	a.server = &http.Server{
		Addr:              a.addr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	a.logger.Info("admin endpoint starting", slog.String("addr", a.addr))
	return a.okapi.StartServer(a.server)
}

// Stop gracefully shuts down the HTTP server.
func (a *Admin) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	a.logger.Info("admin endpoint stopping")
	return a.okapi.Shutdown(a.server)
}

func (a *Admin) handleLiveness(c *okapi.Context) error {
	return c.OK(&healthResponse{Status: "ok"})
}

func (a *Admin) handleReadiness(c *okapi.Context) error {
	if a.runner.Healthy() {
		return c.OK(&healthResponse{Status: "ok"})
	}
	return c.JSON(http.StatusServiceUnavailable, &healthResponse{Status: "refresh failing"})
}
