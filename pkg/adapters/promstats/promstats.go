// Package promstats records batch statistics as Prometheus metrics and
// writes them in the node-exporter textfile format.
package promstats

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/user/mp4mcap/pkg/ports"
)

const namespace = "mp4mcap"

// Stats holds the metrics of one batch run.
type Stats struct {
	path     string
	registry *prometheus.Registry

	Jobs           *prometheus.CounterVec // status: ok or failed
	Frames         *prometheus.CounterVec // topic
	SkippedPackets *prometheus.CounterVec // topic
	Bytes          *prometheus.CounterVec // topic
	JobDuration    prometheus.Histogram
	LastRun        prometheus.Gauge
}

// New creates metrics on a private registry. Flush writes them to path.
func New(path string) *Stats {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Stats{
		path:     path,
		registry: reg,

		Jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Conversion jobs by outcome",
		}, []string{"status"}),
		Frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_written_total",
			Help:      "Compressed frames written to MCAP files",
		}, []string{"topic"}),
		SkippedPackets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_skipped_total",
			Help:      "Demuxed packets skipped for having no payload",
		}, []string{"topic"}),
		Bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_bytes_total",
			Help:      "Compressed payload bytes written",
		}, []string{"topic"}),
		JobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of one conversion job",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}),
		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last flush",
		}),
	}
}

// Registry exposes the underlying registry.
func (s *Stats) Registry() *prometheus.Registry {
	return s.registry
}

// ObserveJob records one job outcome.
func (s *Stats) ObserveJob(o ports.JobOutcome) {
	status := "ok"
	if o.Failed {
		status = "failed"
	}
	s.Jobs.WithLabelValues(status).Inc()
	s.Frames.WithLabelValues(o.Topic).Add(float64(o.Frames))
	s.SkippedPackets.WithLabelValues(o.Topic).Add(float64(o.SkippedPackets))
	s.Bytes.WithLabelValues(o.Topic).Add(float64(o.Bytes))
	s.JobDuration.Observe(o.Duration.Seconds())
}

// Flush writes every metric to the textfile at path.
func (s *Stats) Flush() error {
	s.LastRun.SetToCurrentTime()
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(s.path, s.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// Noop discards observations.
type Noop struct{}

func (Noop) ObserveJob(ports.JobOutcome) {}
func (Noop) Flush() error                { return nil }

var (
	_ ports.Metrics = (*Stats)(nil)
	_ ports.Metrics = Noop{}
)
