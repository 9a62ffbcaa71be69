// Package metrics exposes solver and fitter activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics holds the collectors for response solves and fits. A nil
// *PrometheusMetrics is valid and records nothing.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	solvesTotal    *prometheus.CounterVec   // Solves by strategy and outcome
	solveDuration  *prometheus.HistogramVec // Sweep wall time by strategy
	fallbacksTotal prometheus.Counter       // Primary strategy failures recovered by the secondary
	singularTotal  prometheus.Counter       // Sweeps aborted on a singular system

	fitsTotal      *prometheus.CounterVec // Fits by outcome
	fitEvaluations prometheus.Histogram   // Objective evaluations per fit
	fitDuration    prometheus.Histogram   // Fit wall time
}

// NewPrometheusMetrics registers every collector on a fresh registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,
		solvesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tonewood_solves_total",
				Help: "Frequency response solves by strategy and outcome",
			},
			[]string{"strategy", "outcome"}, // outcome: ok, error
		),
		solveDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tonewood_solve_duration_seconds",
				Help:    "Wall time of one frequency sweep",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"strategy"},
		),
		fallbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tonewood_solve_fallbacks_total",
			Help: "Solves answered by the secondary strategy after the primary failed",
		}),
		singularTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tonewood_singular_systems_total",
			Help: "Sweeps aborted because the coupled system was singular",
		}),
		fitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tonewood_fits_total",
				Help: "Parameter fits by outcome",
			},
			[]string{"outcome"}, // outcome: completed, no_result, failed
		),
		fitEvaluations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tonewood_fit_evaluations",
			Help:    "Objective evaluations spent per fit",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}),
		fitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tonewood_fit_duration_seconds",
			Help:    "Wall time of one parameter fit",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (pm *PrometheusMetrics) Handler() http.Handler {
	if pm == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	if pm == nil {
		return nil
	}
	return pm.registry
}

func (pm *PrometheusMetrics) RecordSolve(strategy string, elapsed time.Duration, err error) {
	if pm == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	pm.solvesTotal.WithLabelValues(strategy, outcome).Inc()
	pm.solveDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

func (pm *PrometheusMetrics) RecordFallback() {
	if pm == nil {
		return
	}
	pm.fallbacksTotal.Inc()
}

func (pm *PrometheusMetrics) RecordSingular() {
	if pm == nil {
		return
	}
	pm.singularTotal.Inc()
}

// RecordFit counts a finished fit. evaluations is ignored for outcomes other
// than "completed".
func (pm *PrometheusMetrics) RecordFit(outcome string, evaluations int, elapsed time.Duration) {
	if pm == nil {
		return
	}
	pm.fitsTotal.WithLabelValues(outcome).Inc()
	pm.fitDuration.Observe(elapsed.Seconds())
	if outcome == FitCompleted {
		pm.fitEvaluations.Observe(float64(evaluations))
	}
}

// Fit outcomes.
const (
	FitCompleted = "completed"
	FitNoResult  = "no_result"
	FitFailed    = "failed"
)
