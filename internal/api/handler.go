// Package api exposes the router over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"ai-junction/internal/analyzer"
	apperrors "ai-junction/internal/common/errors"
	"ai-junction/internal/common/logger"
	"ai-junction/internal/models"
	"ai-junction/internal/selector"
	"ai-junction/internal/tracker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

type Processor interface {
	Process(ctx context.Context, input, kind string) (models.Envelope, error)
}

type Registry interface {
	Add(ctx context.Context, in models.NewDescriptor) (models.BackendDescriptor, error)
	Update(ctx context.Context, id string, patch models.DescriptorPatch) (models.BackendDescriptor, error)
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.BackendDescriptor, error)
	Get(ctx context.Context, id string) (models.BackendDescriptor, error)
}

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type Config struct {
	MaxInputLength int
}

// Deps are the collaborators of a Handler. Analyzer, Selector, Tracker and
// Limiter are optional.
type Deps struct {
	Pipeline Processor
	Registry Registry
	Analyzer analyzer.Analyzer
	Selector *selector.Selector
	Tracker  tracker.Tracker
	Limiter  Limiter
	Checks   []Check
}

type Handler struct {
	config    Config
	pipeline  Processor
	registry  Registry
	analyzer  analyzer.Analyzer
	selector  *selector.Selector
	tracker   tracker.Tracker
	limiter   Limiter
	checks    []Check
	responder *apperrors.ErrorResponder
	logger    logger.Logger
}

func NewHandler(cfg Config, deps Deps, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"component": "api"})
	return &Handler{
		config:    cfg,
		pipeline:  deps.Pipeline,
		registry:  deps.Registry,
		analyzer:  deps.Analyzer,
		selector:  deps.Selector,
		tracker:   deps.Tracker,
		limiter:   deps.Limiter,
		checks:    deps.Checks,
		responder: apperrors.NewErrorResponder(log),
		logger:    log,
	}
}

// Routes returns the full HTTP surface. Probes and metrics bypass the rate limiter.
func (h *Handler) Routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /process_input", h.processInput)
	api.HandleFunc("POST /add_ai", h.addAI)
	api.HandleFunc("GET /ai_manager", h.listAIs)
	api.HandleFunc("GET /ai_manager/{id}", h.getAI)
	api.HandleFunc("PUT /ai_manager/{id}", h.updateAI)
	api.HandleFunc("DELETE /ai_manager/{id}", h.removeAI)
	api.HandleFunc("GET /ai_manager/{id}/metrics", h.aiMetrics)
	api.HandleFunc("POST /debug/rank", h.rank)

	root := http.NewServeMux()
	root.HandleFunc("GET /health", h.health)
	root.HandleFunc("GET /ready", h.ready)
	root.Handle("GET /metrics", promhttp.Handler())
	root.Handle("/", h.rateLimit(api))

	return h.recoverer(h.accessLog(root))
}

// ==========================
// Request routing
// ==========================

func (h *Handler) processInput(w http.ResponseWriter, r *http.Request) {
	var body models.ProcessInputRequest
	if err := decode(r, &body); err != nil {
		h.responder.Respond(w, r, err)
		return
	}
	if body.Input == "" {
		h.responder.Respond(w, r, apperrors.NewInvalidInputError("input is required"))
		return
	}
	if h.config.MaxInputLength > 0 && utf8.RuneCountInString(body.Input) > h.config.MaxInputLength {
		h.responder.Respond(w, r, apperrors.NewInvalidInputError(
			fmt.Sprintf("input exceeds maximum length of %d characters", h.config.MaxInputLength)))
		return
	}
	kind := body.Type
	if kind == "" {
		kind = models.OutputText
	}

	envelope, err := h.pipeline.Process(r.Context(), body.Input, kind)
	if err != nil {
		h.responder.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope)
}

type rankRequest struct {
	Input string `json:"input"`
}

type rankResponse struct {
	Request    models.AnalyzedRequest `json:"request"`
	Candidates []selector.Candidate   `json:"candidates"`
}

// rank shows how every backend scores for an input without dispatching.
func (h *Handler) rank(w http.ResponseWriter, r *http.Request) {
	if h.analyzer == nil || h.selector == nil {
		http.NotFound(w, r)
		return
	}

	var body rankRequest
	if err := decode(r, &body); err != nil {
		h.responder.Respond(w, r, err)
		return
	}

	req, err := h.analyzer.Analyze(r.Context(), body.Input)
	if err != nil {
		h.responder.Respond(w, r, err)
		return
	}
	backends, err := h.registry.List(r.Context())
	if err != nil {
		h.responder.Respond(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rankResponse{
		Request:    req,
		Candidates: h.selector.Ranked(backends, req),
	})
}

// ==========================
// Registry management
// ==========================

// addRequest accepts the connection map as either "config" or "connection_config".
type addRequest struct {
	Name             string                 `json:"name"`
	Type             models.BackendType     `json:"type"`
	Description      string                 `json:"description"`
	PerformanceScore float64                `json:"performance_score"`
	Config           map[string]interface{} `json:"config"`
	ConnectionConfig map[string]interface{} `json:"connection_config"`
}

type updateRequest struct {
	Name             *string                `json:"name"`
	Type             *models.BackendType    `json:"type"`
	Description      *string                `json:"description"`
	PerformanceScore *float64               `json:"performance_score"`
	Config           map[string]interface{} `json:"config"`
	ConnectionConfig map[string]interface{} `json:"connection_config"`
}

type messageResponse struct {
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

func (h *Handler) addAI(w http.ResponseWriter, r *http.Request) {
	var body addRequest
	if err := decode(r, &body); err != nil {
		h.responder.Respond(w, r, err)
		return
	}
	if body.Name == "" {
		h.responder.Respond(w, r, apperrors.NewInvalidInputError("name is required"))
		return
	}

	d, err := h.registry.Add(r.Context(), models.NewDescriptor{
		Name:             body.Name,
		Type:             body.Type,
		Description:      body.Description,
		PerformanceScore: body.PerformanceScore,
		ConnectionConfig: mergeConfig(body.Config, body.ConnectionConfig),
	})
	if err != nil {
		h.responder.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{ID: d.ID, Message: "AI added successfully"})
}

func (h *Handler) listAIs(w http.ResponseWriter, r *http.Request) {
	backends, err := h.registry.List(r.Context())
	if err != nil {
		h.responder.Respond(w, r, err)
		return
	}
	if backends == nil {
		backends = []models.BackendDescriptor{}
	}
	writeJSON(w, http.StatusOK, backends)
}

func (h *Handler) getAI(w http.ResponseWriter, r *http.Request) {
	d, err := h.registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.responder.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) updateAI(w http.ResponseWriter, r *http.Request) {
	var body updateRequest
	if err := decode(r, &body); err != nil {
		h.responder.Respond(w, r, err)
		return
	}

	_, err := h.registry.Update(r.Context(), r.PathValue("id"), models.DescriptorPatch{
		Name:             body.Name,
		Type:             body.Type,
		Description:      body.Description,
		PerformanceScore: body.PerformanceScore,
		ConnectionConfig: mergeConfig(body.Config, body.ConnectionConfig),
	})
	if err != nil {
		h.responder.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "AI updated successfully"})
}

func (h *Handler) removeAI(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Remove(r.Context(), r.PathValue("id")); err != nil {
		h.responder.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "AI removed successfully"})
}

func (h *Handler) aiMetrics(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.registry.Get(r.Context(), id); err != nil {
		h.responder.Respond(w, r, err)
		return
	}
	if h.tracker == nil {
		writeJSON(w, http.StatusOK, models.PerformanceMetrics{})
		return
	}

	m, _, err := h.tracker.Metrics(r.Context(), id)
	if err != nil {
		h.responder.Respond(w, r, apperrors.NewInternalError(err))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ==========================
// Probes
// ==========================

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failing := map[string]string{}
	for _, c := range h.checks {
		if err := c.Fn(ctx); err != nil {
			failing[c.Name] = err.Error()
		}
	}

	if len(failing) > 0 {
		h.logger.Warn("Readiness check failed", map[string]interface{}{"failing": failing})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not ready",
			"checks": failing,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// ==========================
// Helpers
// ==========================

func decode(r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.NewInvalidInputError(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// mergeConfig lets connection_config override keys given under config.
func mergeConfig(config, connection map[string]interface{}) map[string]interface{} {
	if config == nil {
		return connection
	}
	if connection == nil {
		return config
	}
	merged := make(map[string]interface{}, len(config)+len(connection))
	for k, v := range config {
		merged[k] = v
	}
	for k, v := range connection {
		merged[k] = v
	}
	return merged
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
