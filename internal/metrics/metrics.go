// Package metrics exposes pipeline counters and histograms.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// Recorder receives pipeline observations.
type Recorder interface {
	ObserveStage(stage model.StageID, d time.Duration, err error)
	IncExecution(action model.Action, state model.ExecutionState)
	IncCRSResolution(source string, defaulted, repaired bool)
	IncRepair(ok bool)
}

// Noop implements Recorder without emitting anything.
type Noop struct{}

func (Noop) ObserveStage(model.StageID, time.Duration, error) {}
func (Noop) IncExecution(model.Action, model.ExecutionState) {}
func (Noop) IncCRSResolution(string, bool, bool) {}
func (Noop) IncRepair(bool) {}

// Prom implements Recorder backed by Prometheus collectors.
type Prom struct {
	stageDuration *prometheus.HistogramVec
	executions    *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
	repairs       *prometheus.CounterVec
}

// NewProm creates the collectors and registers them with reg. A nil reg
// means prometheus.DefaultRegisterer.
func NewProm(namespace string, reg prometheus.Registerer) *Prom {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prom{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration by stage and outcome",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300},
		}, []string{"stage", "outcome"}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Finished executions by action and final state",
		}, []string{"action", "state"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crs_resolutions_total",
			Help:      "CRS resolutions by attribute source and whether the default was used",
		}, []string{"source", "defaulted", "repaired"}),
		repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crs_repairs_total",
			Help:      "CRS repair attempts by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(p.stageDuration, p.executions, p.resolutions, p.repairs)
	return p
}

func (p *Prom) ObserveStage(stage model.StageID, d time.Duration, err error) {
	p.stageDuration.WithLabelValues(string(stage), outcome(err == nil)).Observe(d.Seconds())
}

func (p *Prom) IncExecution(action model.Action, state model.ExecutionState) {
	p.executions.WithLabelValues(string(action), string(state)).Inc()
}

// IncCRSResolution counts one resolution. The source label is reduced to
// its attribute name so that variable names do not explode cardinality.
func (p *Prom) IncCRSResolution(source string, defaulted, repaired bool) {
	p.resolutions.WithLabelValues(sourceLabel(source), boolLabel(defaulted), boolLabel(repaired)).Inc()
}

func (p *Prom) IncRepair(ok bool) {
	p.repairs.WithLabelValues(outcome(ok)).Inc()
}

// Handler returns an HTTP handler for /metrics serving g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func sourceLabel(source string) string {
	if source == "" {
		return "none"
	}
	for i := len(source) - 1; i >= 0; i-- {
		if source[i] == ':' {
			if source[:i] == "global" {
				return source
			}
			return "var:" + source[i+1:]
		}
	}
	return source
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
