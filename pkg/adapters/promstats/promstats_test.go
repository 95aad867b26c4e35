package promstats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/mp4mcap/pkg/ports"
)

func TestStats_ObserveJob(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "mp4mcap.prom"))

	s.ObserveJob(ports.JobOutcome{Topic: "/video/h264", Frames: 10, SkippedPackets: 1, Bytes: 2048, Duration: time.Second})
	s.ObserveJob(ports.JobOutcome{Topic: "/video/h264", Frames: 5, Duration: 2 * time.Second})
	s.ObserveJob(ports.JobOutcome{Topic: "/video/h264", Failed: true})

	families, err := s.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "/" + lp.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				values[key] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				values[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}

	tests := map[string]float64{
		"mp4mcap_jobs_total/ok":                     2,
		"mp4mcap_jobs_total/failed":                 1,
		"mp4mcap_frames_written_total//video/h264":  15,
		"mp4mcap_packets_skipped_total//video/h264": 1,
		"mp4mcap_payload_bytes_total//video/h264":   2048,
		"mp4mcap_job_duration_seconds":              3,
	}
	for key, want := range tests {
		if got := values[key]; got != want {
			t.Errorf("%s: expected %v, got %v", key, want, got)
		}
	}
}

func TestStats_Flush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics", "mp4mcap.prom")
	s := New(path)
	s.ObserveJob(ports.JobOutcome{Topic: "/cam", Frames: 3, Duration: time.Millisecond})

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`mp4mcap_frames_written_total{topic="/cam"} 3`,
		`mp4mcap_jobs_total{status="ok"} 1`,
		"mp4mcap_job_duration_seconds_count 1",
		"mp4mcap_last_run_timestamp_seconds",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in metrics file:\n%s", want, text)
		}
	}
}

func TestNoop(t *testing.T) {
	var m ports.Metrics = Noop{}
	m.ObserveJob(ports.JobOutcome{})
	if err := m.Flush(); err != nil {
		t.Errorf("Flush failed: %v", err)
	}
}
