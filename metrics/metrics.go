// Package metrics collects phase durations and row counts of a tabbench run
// in a Prometheus registry and writes them in the text exposition format,
// ready for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/darianmavgo/tabbench/engines"
	"github.com/prometheus/client_golang/prometheus"
)

// Row count kinds.
const (
	KindScanned   = "scanned"
	KindExported  = "exported"
	KindConverted = "converted"
	KindIngested  = "ingested"
	KindGenerated = "generated"
)

// Recorder owns the registry of one run.
type Recorder struct {
	reg *prometheus.Registry

	phaseDuration *prometheus.SummaryVec // tabbench_phase_duration_seconds
	rows          *prometheus.CounterVec // tabbench_rows_total
	unavailable   *prometheus.CounterVec // tabbench_engine_unavailable_total
}

// New registers the tabbench collectors in a fresh registry.
func New() (*Recorder, error) {
	reg := prometheus.NewRegistry()

	phaseDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "tabbench_phase_duration_seconds",
			Help:       "Duration of each engine phase in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"engine", "phase"},
	)
	rows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabbench_rows_total",
			Help: "Rows handled per engine and kind (scanned, exported, converted, ...).",
		},
		[]string{"engine", "kind"},
	)
	unavailable := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabbench_engine_unavailable_total",
			Help: "Engine runs skipped because a capability was missing.",
		},
		[]string{"engine"},
	)

	for _, c := range []prometheus.Collector{phaseDuration, rows, unavailable} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register collector: %w", err)
		}
	}
	return &Recorder{reg: reg, phaseDuration: phaseDuration, rows: rows, unavailable: unavailable}, nil
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// ObservePhase records one phase duration.
func (r *Recorder) ObservePhase(engine, phase string, d time.Duration) {
	r.phaseDuration.WithLabelValues(engine, phase).Observe(d.Seconds())
}

// AddRows adds n rows of kind for engine.
func (r *Recorder) AddRows(engine, kind string, n int64) {
	r.rows.WithLabelValues(engine, kind).Add(float64(n))
}

// ObserveResult records the timings and row counts of an engine result.
func (r *Recorder) ObserveResult(res *engines.Result) {
	if res.Status == engines.StatusUnavailable {
		r.unavailable.WithLabelValues(res.Engine).Inc()
		return
	}
	for _, t := range res.Timings {
		r.ObservePhase(res.Engine, t.Phase, t.Elapsed)
	}
	r.AddRows(res.Engine, KindScanned, res.RowCount)
	r.AddRows(res.Engine, KindExported, res.ExportedRows)
}

// WriteTextfile writes the registry to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
