package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const metricsReadHeaderTimeout = 5 * time.Second

// metrics bundles the Prometheus collectors hllctl exposes. It is
// deliberately kept out of package hll: the core sketch stays
// dependency-light, and only the CLI's update/estimate/merge commands wire
// observability around it.
type metrics struct {
	registry    *prometheus.Registry
	updates     prometheus.Counter
	promotions  *prometheus.CounterVec
	merges      *prometheus.CounterVec
	lastEstimate prometheus.Gauge
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		updates: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "hllctl",
			Name:      "updates_total",
			Help:      "Number of items applied to a sketch.",
		}),
		promotions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "hllctl",
			Name:      "mode_promotions_total",
			Help:      "Number of mode promotions observed, by transition.",
		}, []string{"transition"}),
		merges: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "hllctl",
			Name:      "merges_total",
			Help:      "Number of union operations performed, by kind.",
		}, []string{"kind"}),
		lastEstimate: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "hllctl",
			Name:      "last_estimate",
			Help:      "Most recent cardinality estimate produced by this process.",
		}),
	}
	return m
}

// serve starts a local /metrics HTTP server on addr and blocks until ctx is
// canceled. If addr is empty, serve is a no-op.
func (m *metrics) serve(ctx context.Context, log zerolog.Logger, addr string) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("metrics server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsReadHeaderTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
