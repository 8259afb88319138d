package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tphakala/pushcore/internal/logging"
)

const (
	metricsPath = "/metrics"

	// ShutdownTimeout bounds graceful shutdown of the endpoint.
	ShutdownTimeout = 5 * time.Second
)

// Endpoint serves the metrics of one Metrics instance.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
	log           *slog.Logger
}

// NewEndpoint creates an endpoint listening on listenAddress.
func NewEndpoint(listenAddress string, metrics *Metrics, logger *slog.Logger) *Endpoint {
	return &Endpoint{
		listenAddress: listenAddress,
		metrics:       metrics,
		log:           logging.OrDiscard(logger),
	}
}

// Handler returns the endpoint's routes.
func (e *Endpoint) Handler() http.Handler {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)
	return mux
}

// Start runs the HTTP server until quitChan is closed. Both the server and
// the shutdown watcher are tracked by wg.
func (e *Endpoint) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) {
	e.server = &http.Server{
		Addr:              e.listenAddress,
		Handler:           e.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Go(func() {
		e.log.Info("metrics endpoint starting", "address", e.listenAddress)
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("metrics HTTP server error", "error", err)
		}
	})

	wg.Go(func() {
		e.gracefulShutdown(quitChan)
	})
}

// gracefulShutdown waits for the quit signal and shuts down the server gracefully.
func (e *Endpoint) gracefulShutdown(quitChan <-chan struct{}) {
	<-quitChan
	e.log.Debug("stopping metrics endpoint")
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		e.log.Error("metrics endpoint shutdown error", "error", err)
	}
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
