// Package audit stores one document per dispatch outcome.
package audit

import (
	"context"
	"time"
)

// Record describes a single routed request.
type Record struct {
	RequestID   string    `json:"request_id"`
	BackendID   string    `json:"backend_id,omitempty"`
	BackendType string    `json:"backend_type,omitempty"`
	Intent      string    `json:"intent,omitempty"`
	Keywords    []string  `json:"keywords,omitempty"`
	Outcome     string    `json:"outcome"`
	ErrorCode   string    `json:"error_code,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	Timestamp   time.Time `json:"@timestamp"`
}

type Sink interface {
	Record(ctx context.Context, rec Record) error
}

// NoopSink discards records.
type NoopSink struct{}

func (NoopSink) Record(context.Context, Record) error { return nil }
