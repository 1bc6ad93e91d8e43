// Package metrics records batch counters on a private registry and writes
// them in the node-exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Recorder struct {
	Registry *prometheus.Registry

	candidates *prometheus.CounterVec
	skips      *prometheus.CounterVec
	sends      *prometheus.CounterVec
	regime     *prometheus.GaugeVec
	losses     prometheus.Gauge
	duration   prometheus.Histogram
	lastRun    prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		Registry: prometheus.NewRegistry(),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_candidates_total",
			Help: "Assets evaluated per outcome.",
		}, []string{"outcome"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_skips_total",
			Help: "Assets or candidates dropped per reason.",
		}, []string{"reason"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_sends_total",
			Help: "Notification attempts per result.",
		}, []string{"result"}),
		regime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scanner_regime_score",
			Help: "Latest regime score per direction.",
		}, []string{"direction"}),
		losses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_consecutive_losses",
			Help: "Consecutive losing trades at the end of the trade log.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_batch_duration_seconds",
			Help:    "Wall time of one batch.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_last_run_timestamp_seconds",
			Help: "Unix time of the last finished batch.",
		}),
	}
	r.Registry.MustRegister(r.candidates, r.skips, r.sends, r.regime, r.losses, r.duration, r.lastRun)
	return r
}

func (r *Recorder) Candidate(outcome string) { r.candidates.WithLabelValues(outcome).Inc() }

func (r *Recorder) Skip(reason string) { r.skips.WithLabelValues(reason).Inc() }

func (r *Recorder) Sends(ok, failed int) {
	r.sends.WithLabelValues("ok").Add(float64(ok))
	r.sends.WithLabelValues("failed").Add(float64(failed))
}

func (r *Recorder) Regime(long, short int) {
	r.regime.WithLabelValues("long").Set(float64(long))
	r.regime.WithLabelValues("short").Set(float64(short))
}

func (r *Recorder) ConsecutiveLosses(n int) { r.losses.Set(float64(n)) }

func (r *Recorder) Batch(started, finished time.Time) {
	r.duration.Observe(finished.Sub(started).Seconds())
	r.lastRun.Set(float64(finished.Unix()))
}

// WriteTextfile writes all metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}
