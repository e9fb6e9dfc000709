package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"chainvote/pkg/election"
	"chainvote/pkg/utils"
)

// startMetrics serves /metrics on the configured address. Called with a.mu
// held.
func (a *App) startMetrics() error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		election.NewCollector(a.poller),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	listener, err := net.Listen("tcp", a.config.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.config.Metrics.Addr, err)
	}

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	a.metricsAddr = listener.Addr().String()

	utils.SafeGo(a.logger, func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server stopped", zap.Error(err))
		}
	})
	a.logger.Info("Serving metrics", zap.String("addr", a.metricsAddr))

	a.cleanup = append(a.cleanup, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("stopping metrics server: %w", err)
		}
		return nil
	})
	return nil
}

// MetricsAddr returns the address /metrics is served on, or "" when
// metrics are disabled
func (a *App) MetricsAddr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metricsAddr
}
