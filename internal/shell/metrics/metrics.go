// Package metrics exposes deploy pipeline metrics to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deploy outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var stageBuckets = []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200}

// Recorder records deploy outcomes, stage durations and in-flight pipelines.
type Recorder struct {
	results  *prometheus.CounterVec
	stages   *prometheus.HistogramVec
	inFlight prometheus.Gauge
	gatherer prometheus.Gatherer
}

// New creates a Recorder registered on reg. A nil reg uses a private
// registry, which keeps tests independent of the global one.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Recorder{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "launchpad",
			Subsystem: "deployer",
			Name:      "deploy_results_total",
			Help:      "Number of finished deploy pipelines by outcome",
		}, []string{"outcome"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "launchpad",
			Subsystem: "deployer",
			Name:      "stage_duration_seconds",
			Help:      "Duration of deploy pipeline stages",
			Buckets:   stageBuckets,
		}, []string{"stage"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "launchpad",
			Subsystem: "deployer",
			Name:      "deploys_in_flight",
			Help:      "Number of deploy pipelines currently running",
		}),
		gatherer: reg,
	}

	r.results = register(reg, r.results)
	r.stages = register(reg, r.stages)
	r.inFlight = register(reg, r.inFlight)
	return r
}

// ObserveStage records the duration of one pipeline stage.
func (r *Recorder) ObserveStage(stage string, took time.Duration) {
	r.stages.With(prometheus.Labels{"stage": stage}).Observe(took.Seconds())
}

// DeployStarted marks a pipeline as in flight.
func (r *Recorder) DeployStarted() {
	r.inFlight.Inc()
}

// DeployFinished records the outcome of an in-flight pipeline.
func (r *Recorder) DeployFinished(success bool) {
	r.inFlight.Dec()
	outcome := OutcomeFailure
	if success {
		outcome = OutcomeSuccess
	}
	r.results.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// register adds c to reg, reusing the existing collector when an identical
// one is already registered.
func register[C prometheus.Collector](reg *prometheus.Registry, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
