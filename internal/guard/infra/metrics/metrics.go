// Package metrics exports guard decisions as Prometheus counters.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haukened/tubeguard/internal/guard/common/log"
	"github.com/haukened/tubeguard/internal/guard/domain"
)

const (
	verdictAllow = "allow"
	verdictBlock = "block"
)

// Metrics holds the guard's Prometheus collectors on a private registry.
type Metrics struct {
	Decisions      *prometheus.CounterVec
	BridgeFailures prometheus.Counter

	registry *prometheus.Registry
}

// New registers the guard collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tubeguard_decisions_total",
				Help: "Guard decisions by detection layer and verdict",
			},
			[]string{"layer", "verdict"},
		),
		BridgeFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tubeguard_bridge_failures_total",
				Help: "Native interceptor starts without a usable bridge payload",
			},
		),
		registry: reg,
	}
}

// Record counts one decision. A nil receiver is a no-op.
func (m *Metrics) Record(layer domain.Layer, blocked bool) {
	if m == nil {
		return
	}
	verdict := verdictAllow
	if blocked {
		verdict = verdictBlock
	}
	m.Decisions.WithLabelValues(layer.String(), verdict).Inc()
}

// BridgeFailure counts a missing or malformed bridge payload.
func (m *Metrics) BridgeFailure() {
	if m == nil {
		return
	}
	m.BridgeFailures.Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info(map[string]any{"addr": addr}, "metrics listener started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
