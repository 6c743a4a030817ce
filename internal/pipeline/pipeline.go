// Package pipeline runs one request through analysis, selection, dispatch
// and output formatting.
package pipeline

import (
	"context"
	"strings"
	"time"

	"ai-junction/internal/analyzer"
	"ai-junction/internal/audit"
	apperrors "ai-junction/internal/common/errors"
	"ai-junction/internal/common/logger"
	"ai-junction/internal/common/metrics"
	"ai-junction/internal/common/observability"
	"ai-junction/internal/models"
	"ai-junction/internal/selector"
	"ai-junction/internal/tracker"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Lister interface {
	List(ctx context.Context) ([]models.BackendDescriptor, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, desc models.BackendDescriptor, req models.AnalyzedRequest) (any, error)
}

type Formatter interface {
	Process(ctx context.Context, raw any, kind string) (models.Envelope, error)
}

// Deps are the collaborators of a Pipeline. Tracker, Audit and
// Observability are optional.
type Deps struct {
	Analyzer      analyzer.Analyzer
	Registry      Lister
	Selector      *selector.Selector
	Dispatcher    Dispatcher
	Output        Formatter
	Tracker       tracker.Tracker
	Audit         audit.Sink
	Observability *observability.Observability
}

type Pipeline struct {
	deps   Deps
	logger logger.Logger
	newID  func() string
	now    func() time.Time
}

func New(deps Deps, log logger.Logger) *Pipeline {
	if deps.Audit == nil {
		deps.Audit = audit.NoopSink{}
	}
	if deps.Selector == nil {
		deps.Selector = selector.New(log)
	}
	return &Pipeline{
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": "pipeline"}),
		newID:  func() string { return uuid.New().String() },
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Process routes input to the best backend and formats its answer as kind.
// Every failure is returned as a *errors.StandardError.
func (p *Pipeline) Process(ctx context.Context, input, kind string) (models.Envelope, error) {
	requestID := p.newID()
	start := time.Now()

	ctx, span := p.deps.Observability.StartSpan(ctx, "pipeline.process",
		attribute.String("request.id", requestID),
		attribute.String("output.kind", kind),
	)
	defer span.End()

	rec := audit.Record{RequestID: requestID, Timestamp: p.now()}
	envelope, err := p.run(ctx, input, kind, &rec)

	elapsed := time.Since(start)
	rec.DurationMs = elapsed.Milliseconds()
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
		rec.ErrorCode = string(apperrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, rec.ErrorCode)
	}
	rec.Outcome = outcome

	p.deps.Observability.RecordRequest(ctx, outcome)
	p.deps.Observability.RecordRequestDuration(ctx, elapsed, outcome)

	if auditErr := p.deps.Audit.Record(ctx, rec); auditErr != nil {
		p.logger.Warn("Failed to record dispatch audit", map[string]interface{}{
			"request_id": requestID,
			"error":      auditErr.Error(),
		})
	}

	if err != nil {
		return models.Envelope{}, apperrors.AsStandard(err)
	}
	return envelope, nil
}

func (p *Pipeline) run(ctx context.Context, input, kind string, rec *audit.Record) (models.Envelope, error) {
	if strings.TrimSpace(input) == "" {
		return models.Envelope{}, apperrors.NewInvalidInputError("input is required")
	}

	stage := time.Now()
	req, err := p.deps.Analyzer.Analyze(ctx, input)
	if err != nil {
		return models.Envelope{}, err
	}
	p.deps.Observability.RecordStage(ctx, "analyze", time.Since(stage))
	rec.Intent = req.Intent
	rec.Keywords = req.Keywords

	backends, err := p.deps.Registry.List(ctx)
	if err != nil {
		return models.Envelope{}, err
	}

	chosen, err := p.deps.Selector.Select(backends, req)
	if err != nil {
		metrics.SelectionTotal.WithLabelValues(string(apperrors.CodeOf(err))).Inc()
		return models.Envelope{}, err
	}
	metrics.SelectionTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	rec.BackendID = chosen.ID
	rec.BackendType = string(chosen.Type)

	stage = time.Now()
	raw, err := p.deps.Dispatcher.Dispatch(ctx, *chosen, req)
	elapsed := time.Since(stage)
	p.deps.Observability.RecordStage(ctx, "dispatch", elapsed)
	p.track(ctx, chosen.ID, elapsed, err == nil)
	if err != nil {
		return models.Envelope{}, err
	}

	stage = time.Now()
	envelope, err := p.deps.Output.Process(ctx, raw, kind)
	if err != nil {
		return models.Envelope{}, err
	}
	p.deps.Observability.RecordStage(ctx, "output", time.Since(stage))

	p.logger.Info("Request processed", map[string]interface{}{
		"request_id": rec.RequestID,
		"backend_id": chosen.ID,
		"type":       envelope.Type,
	})
	return envelope, nil
}

func (p *Pipeline) track(ctx context.Context, id string, elapsed time.Duration, success bool) {
	if p.deps.Tracker == nil {
		return
	}
	if err := p.deps.Tracker.Track(ctx, id, elapsed, success); err != nil {
		p.logger.Warn("Failed to track performance", map[string]interface{}{
			"id":    id,
			"error": err.Error(),
		})
	}
}
