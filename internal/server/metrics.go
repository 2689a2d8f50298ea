package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ppiankov/mathfoundry/internal/model"
)

const metricsNamespace = "mathfoundry"

// Verification outcomes
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeAbstain = "abstain"
)

// Metrics holds the Prometheus collectors for the HTTP surface.
// Each instance owns its registry so servers built in tests never collide.
type Metrics struct {
	Registry *prometheus.Registry

	VerifyTotal     *prometheus.CounterVec   // outcome
	VerifyCoverage  prometheus.Histogram     // coverage_ratio of every verified answer
	SearchTotal     *prometheus.CounterVec   // result = hit | miss
	RequestDuration *prometheus.HistogramVec // method, route, status
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		VerifyTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "verify_total",
				Help:      "Verified answers by outcome",
			},
			[]string{"outcome"},
		),
		VerifyCoverage: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "verify_coverage_ratio",
				Help:      "Share of claims that survived verification",
				Buckets:   []float64{0, 0.25, 0.5, 0.75, 0.85, 1},
			},
		),
		SearchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "search_total",
				Help:      "Searches by whether any candidate was returned",
			},
			[]string{"result"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	m.Registry.MustRegister(
		m.VerifyTotal,
		m.VerifyCoverage,
		m.SearchTotal,
		m.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveVerification records one verification report
func (m *Metrics) ObserveVerification(report model.VerificationReport) {
	m.VerifyTotal.WithLabelValues(VerifyOutcome(report)).Inc()
	m.VerifyCoverage.Observe(report.CoverageRatio)
}

// ObserveSearch records whether a search returned anything
func (m *Metrics) ObserveSearch(results int) {
	if results > 0 {
		m.SearchTotal.WithLabelValues("hit").Inc()
		return
	}
	m.SearchTotal.WithLabelValues("miss").Inc()
}

// VerifyOutcome buckets a report for the verify counter.
// Abstention wins over invalid claims.
func VerifyOutcome(report model.VerificationReport) string {
	switch {
	case report.MustAbstain:
		return OutcomeAbstain
	case report.OK:
		return OutcomeOK
	default:
		return OutcomeInvalid
	}
}
