package mocks

import (
	"sync"

	"github.com/user/mp4mcap/pkg/ports"
)

// Progress records progress updates.
type Progress struct {
	Description string
	Total       int
	Added       int
	Finished    bool
}

func (m *Progress) Add(n int) { m.Added += n }
func (m *Progress) Finish()   { m.Finished = true }

// ProgressFactory records every Progress it creates.
type ProgressFactory struct {
	mu   sync.Mutex
	Bars []*Progress
}

func (m *ProgressFactory) New(description string, total int) ports.Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Progress{Description: description, Total: total}
	m.Bars = append(m.Bars, p)
	return p
}

// Metrics records job outcomes.
type Metrics struct {
	mu       sync.Mutex
	Outcomes []ports.JobOutcome
	Flushes  int

	FlushFunc func() error
}

func (m *Metrics) ObserveJob(outcome ports.JobOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outcomes = append(m.Outcomes, outcome)
}

func (m *Metrics) Flush() error {
	m.mu.Lock()
	m.Flushes++
	m.mu.Unlock()
	if m.FlushFunc != nil {
		return m.FlushFunc()
	}
	return nil
}

var (
	_ ports.Progress        = (*Progress)(nil)
	_ ports.ProgressFactory = (*ProgressFactory)(nil)
	_ ports.Metrics         = (*Metrics)(nil)
)
