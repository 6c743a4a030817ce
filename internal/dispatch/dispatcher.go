// Package dispatch routes an analyzed request to the selected backend,
// holding one lazily established connection per backend id.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"ai-junction/internal/adapters"
	apperrors "ai-junction/internal/common/errors"
	httpclient "ai-junction/internal/common/http"
	"ai-junction/internal/common/logger"
	"ai-junction/internal/common/metrics"
	"ai-junction/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const DefaultTimeout = 30 * time.Second

type Config struct {
	// Timeout bounds every dispatch, including connection establishment.
	Timeout time.Duration
	Tracer  trace.Tracer
}

// connection is the live handle cached per backend id.
type connection struct {
	backendType models.BackendType
	endpoint    string
	adapter     adapters.Adapter
}

type handlerFunc func(ctx context.Context, conn *connection, d models.BackendDescriptor, req models.AnalyzedRequest) (any, error)

type Dispatcher struct {
	modules  *adapters.Registry
	remote   *httpclient.Client
	logger   logger.Logger
	tracer   trace.Tracer
	timeout  time.Duration
	handlers map[models.BackendType]handlerFunc

	mu      sync.Mutex
	conns   map[string]*connection
	removed map[string]struct{}
	group   singleflight.Group
}

func New(cfg Config, modules *adapters.Registry, remote *httpclient.Client, log logger.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("ai-junction/dispatch")
	}
	if remote == nil {
		remote = httpclient.NewClient(0)
	}
	if modules == nil {
		modules = adapters.NewRegistry()
	}

	d := &Dispatcher{
		modules: modules,
		remote:  remote,
		logger:  log.WithFields(map[string]interface{}{"component": "dispatcher"}),
		tracer:  cfg.Tracer,
		timeout: cfg.Timeout,
		conns:   make(map[string]*connection),
		removed: make(map[string]struct{}),
	}
	d.handlers = map[models.BackendType]handlerFunc{
		models.BackendTypeAPI:      d.callRemote,
		models.BackendTypeBot:      callProcessInput,
		models.BackendTypeLocalAI:  callGenerateResponse,
		models.BackendTypeCustomAI: callExecute,
	}
	return d
}

// Dispatch sends req to the backend described by desc and returns its raw result.
func (d *Dispatcher) Dispatch(ctx context.Context, desc models.BackendDescriptor, req models.AnalyzedRequest) (any, error) {
	handler, ok := d.handlers[desc.Type]
	if !ok {
		err := apperrors.NewUnsupportedTypeError(string(desc.Type))
		d.logger.Error("Unsupported AI type", map[string]interface{}{
			"id":   desc.ID,
			"type": string(desc.Type),
		})
		metrics.DispatchTotal.WithLabelValues(string(desc.Type), string(err.Code)).Inc()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ctx, span := d.tracer.Start(ctx, "dispatch", trace.WithAttributes(
		attribute.String("backend.id", desc.ID),
		attribute.String("backend.type", string(desc.Type)),
	))
	defer span.End()

	start := time.Now()
	result, err := d.dispatch(ctx, handler, desc, req)
	duration := time.Since(start)

	metrics.DispatchDuration.WithLabelValues(string(desc.Type)).Observe(duration.Seconds())

	fields := map[string]interface{}{
		"id":          desc.ID,
		"type":        string(desc.Type),
		"duration_ms": duration.Milliseconds(),
	}

	if err != nil {
		stdErr := apperrors.AsStandard(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stdErr.Code))
		metrics.DispatchTotal.WithLabelValues(string(desc.Type), string(stdErr.Code)).Inc()

		fields["error_code"] = string(stdErr.Code)
		fields["details"] = stdErr.Details
		d.logger.WithError(err).Error("Dispatch failed", fields)
		return nil, stdErr
	}

	metrics.DispatchTotal.WithLabelValues(string(desc.Type), metrics.OutcomeSuccess).Inc()
	d.logger.Info("Dispatch completed", fields)
	return result, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, handler handlerFunc, desc models.BackendDescriptor, req models.AnalyzedRequest) (any, error) {
	conn, err := d.connection(ctx, desc)
	if err == nil && conn.backendType != desc.Type {
		// The backend's type was updated since first use.
		d.logger.Info("Backend type changed, re-establishing connection", map[string]interface{}{
			"id":       desc.ID,
			"cached":   string(conn.backendType),
			"expected": string(desc.Type),
		})
		d.drop(desc.ID, conn)
		conn, err = d.connection(ctx, desc)
		if err == nil && conn.backendType != desc.Type {
			err = fmt.Errorf("connection is %s, backend is %s", conn.backendType, desc.Type)
		}
	}
	if err != nil {
		return nil, d.normalize(ctx, desc.ID, err)
	}

	result, err := handler(ctx, conn, desc, req)
	if err != nil {
		return nil, d.normalize(ctx, desc.ID, err)
	}
	return result, nil
}

func (d *Dispatcher) normalize(ctx context.Context, id string, err error) error {
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewDispatchTimeoutError(id, err)
	}
	stdErr = apperrors.NewDispatchFailedError(id, err)
	stdErr.Retryable = adapters.IsTransient(err)
	return stdErr
}

// Evict drops the cached connection for id and refuses future dispatches to it.
// Dispatches already holding the connection run to completion.
func (d *Dispatcher) Evict(id string) {
	d.mu.Lock()
	_, had := d.conns[id]
	delete(d.conns, id)
	d.removed[id] = struct{}{}
	active := len(d.conns)
	d.mu.Unlock()

	metrics.ConnectionsActive.Set(float64(active))
	if had {
		d.logger.Info("Connection evicted", map[string]interface{}{"id": id})
	}
}

// Connected reports whether a live connection is cached for id.
func (d *Dispatcher) Connected(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.conns[id]
	return ok
}

// ActiveConnections returns the number of cached connections.
func (d *Dispatcher) ActiveConnections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// Close releases every cached adapter that holds resources.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	conns := d.conns
	d.conns = make(map[string]*connection)
	d.mu.Unlock()

	metrics.ConnectionsActive.Set(0)

	var errs []error
	for id, conn := range conns {
		closer, ok := conn.adapter.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			d.logger.Warn("Failed to close adapter", map[string]interface{}{
				"id":    id,
				"error": err.Error(),
			})
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func callProcessInput(ctx context.Context, conn *connection, _ models.BackendDescriptor, req models.AnalyzedRequest) (any, error) {
	return conn.adapter.ProcessInput(ctx, req)
}

func callGenerateResponse(ctx context.Context, conn *connection, _ models.BackendDescriptor, req models.AnalyzedRequest) (any, error) {
	return conn.adapter.GenerateResponse(ctx, req)
}

func callExecute(ctx context.Context, conn *connection, _ models.BackendDescriptor, req models.AnalyzedRequest) (any, error) {
	return conn.adapter.Execute(ctx, req)
}
