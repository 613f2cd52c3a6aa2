// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"svckeeper/internal/logger"
)

// Label values.
const (
	ResultStopped = "stopped"
	ResultFailed  = "failed"

	PhaseSweep = "sweep"
	PhaseCycle = "cycle"
)

// Package-level collectors, registered via Register.
var (
	regOK atomic.Bool

	cycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "svckeeper",
			Subsystem: "engine",
			Name:      "cycles_total",
			Help:      "Number of reconciliation cycles run.",
		},
	)
	cycleErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "svckeeper",
			Subsystem: "engine",
			Name:      "cycle_errors_total",
			Help:      "Number of cycles aborted by a host query or targets file error.",
		},
	)
	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "svckeeper",
			Subsystem: "engine",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one reconciliation cycle.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	driftDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "svckeeper",
			Subsystem: "engine",
			Name:      "drift_detected_total",
			Help:      "Number of running to non-running transitions observed.",
		},
	)
	stopAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svckeeper",
			Subsystem: "engine",
			Name:      "stop_attempts_total",
			Help:      "Number of stop attempts by result.",
		}, []string{"result"},
	)
	disqualified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svckeeper",
			Subsystem: "engine",
			Name:      "disqualified_total",
			Help:      "Number of services removed from the targets file after a failed stop.",
		}, []string{"phase"},
	)
	targets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "svckeeper",
			Subsystem: "engine",
			Name:      "targets",
			Help:      "Number of services in the targets file at the start of the last cycle.",
		},
	)
)

// Register registers all collectors with r. Calls after a success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{cycles, cycleErrors, cycleDuration, driftDetected, stopAttempts, disqualified, targets}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register succeeds.

func IncCycle() {
	if regOK.Load() {
		cycles.Inc()
	}
}

func IncCycleError() {
	if regOK.Load() {
		cycleErrors.Inc()
	}
}

func ObserveCycleDuration(d time.Duration) {
	if regOK.Load() {
		cycleDuration.Observe(d.Seconds())
	}
}

func AddDrift(n int) {
	if regOK.Load() {
		driftDetected.Add(float64(n))
	}
}

func IncStopAttempt(result string) {
	if regOK.Load() {
		stopAttempts.WithLabelValues(result).Inc()
	}
}

func IncDisqualified(phase string) {
	if regOK.Load() {
		disqualified.WithLabelValues(phase).Inc()
	}
}

func SetTargets(n int) {
	if regOK.Load() {
		targets.Set(float64(n))
	}
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	log := logger.WithComponent("metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", addr).Msg("Metrics endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
