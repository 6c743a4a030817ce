// Package tracker records per-backend execution metrics.
package tracker

import (
	"context"
	"sync"
	"time"

	"ai-junction/internal/models"
)

// HistorySize is how many recent execution times are kept per backend.
const HistorySize = 100

// Tracker records dispatch outcomes. Metrics reports ok=false for a backend
// with no recorded executions.
type Tracker interface {
	Track(ctx context.Context, id string, elapsed time.Duration, success bool) error
	Metrics(ctx context.Context, id string) (metrics models.PerformanceMetrics, ok bool, err error)
}

// summarize computes the reported metrics. times are in seconds.
func summarize(total, successful int64, times []float64) models.PerformanceMetrics {
	m := models.PerformanceMetrics{TotalExecutions: total}
	if total > 0 {
		m.SuccessRate = float64(successful) / float64(total)
	}
	if len(times) > 0 {
		var sum float64
		for _, t := range times {
			sum += t
		}
		m.AverageExecutionTime = sum / float64(len(times))
	}
	return m
}

type record struct {
	total      int64
	successful int64
	times      []float64
}

// MemoryTracker keeps metrics in process memory.
type MemoryTracker struct {
	mu      sync.Mutex
	records map[string]*record
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{records: make(map[string]*record)}
}

func (m *MemoryTracker) Track(_ context.Context, id string, elapsed time.Duration, success bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		r = &record{}
		m.records[id] = r
	}
	r.total++
	if success {
		r.successful++
	}
	r.times = append(r.times, elapsed.Seconds())
	if len(r.times) > HistorySize {
		r.times = append([]float64(nil), r.times[len(r.times)-HistorySize:]...)
	}
	return nil
}

func (m *MemoryTracker) Metrics(_ context.Context, id string) (models.PerformanceMetrics, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return models.PerformanceMetrics{}, false, nil
	}
	return summarize(r.total, r.successful, r.times), true, nil
}
