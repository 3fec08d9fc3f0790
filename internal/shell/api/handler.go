// Package api serves the local dcg JSON API used by "dcg serve".
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/artpar/dcg/internal/core/domain"
	"github.com/artpar/dcg/internal/core/stats"
	"github.com/artpar/dcg/internal/engine"
	"github.com/artpar/dcg/internal/shell/api/openapi"
	"github.com/artpar/dcg/internal/shell/docker"
)

// Service is the deployment manager as seen by the API.
type Service interface {
	List(ctx context.Context) ([]domain.DeploymentView, error)
	Add(ctx context.Context, name, dir string, start bool) (*domain.Deployment, error)
	Remove(ctx context.Context, name string, stop bool) (*domain.Deployment, error)
	Status(ctx context.Context, name string, detailed bool) (*domain.StatusReport, error)
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
	Update(ctx context.Context, name string, opts engine.UpdateOptions) (engine.UpdateOutcome, error)
	StartAll(ctx context.Context) (engine.BulkResult, error)
	StopAll(ctx context.Context) (engine.BulkResult, error)
	Statistics(ctx context.Context) (stats.Stats, error)
	History(ctx context.Context, name string, limit int) ([]domain.Event, error)
	Ping(ctx context.Context) error
}

var _ Service = (*engine.Manager)(nil)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	service Service
	logger  *slog.Logger
	openapi *openapi.Generator
}

// NewHandler creates a new API handler.
func NewHandler(s Service, l *slog.Logger, version string) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{
		service: s,
		logger:  l.With("component", "api"),
		openapi: newDocument(version),
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoveryMiddleware(h.logger))
	r.Use(loggingMiddleware(h.logger))

	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", h.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/openapi.json", h.openapi.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()

	// Bulk actions are registered before /{name}/... so "actions" is not
	// taken as a deployment name.
	v1.HandleFunc("/deployments/actions/start-all", h.handleStartAll).Methods(http.MethodPost)
	v1.HandleFunc("/deployments/actions/stop-all", h.handleStopAll).Methods(http.MethodPost)

	v1.HandleFunc("/deployments", h.handleListDeployments).Methods(http.MethodGet)
	v1.HandleFunc("/deployments", h.handleAddDeployment).Methods(http.MethodPost)
	v1.HandleFunc("/deployments/{name}", h.handleGetDeployment).Methods(http.MethodGet)
	v1.HandleFunc("/deployments/{name}", h.handleRemoveDeployment).Methods(http.MethodDelete)
	v1.HandleFunc("/deployments/{name}/start", h.handleStart).Methods(http.MethodPost)
	v1.HandleFunc("/deployments/{name}/stop", h.handleStop).Methods(http.MethodPost)
	v1.HandleFunc("/deployments/{name}/restart", h.handleRestart).Methods(http.MethodPost)
	v1.HandleFunc("/deployments/{name}/update", h.handleUpdate).Methods(http.MethodPost)

	v1.HandleFunc("/stats", h.handleStats).Methods(http.MethodGet)
	v1.HandleFunc("/history", h.handleHistory).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed on "+r.URL.Path)
	})

	return r
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"registry": "ok"}

	if err := h.service.Ping(r.Context()); err != nil {
		checks["docker"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["docker"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Deployment Handlers
// =============================================================================

func (h *Handler) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if views == nil {
		views = []domain.DeploymentView{}
	}
	h.writeJSON(w, http.StatusOK, DeploymentListResponse{Deployments: views})
}

func (h *Handler) handleAddDeployment(w http.ResponseWriter, r *http.Request) {
	var req AddDeploymentRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	d, err := h.service.Add(r.Context(), req.Name, req.FilePath, req.Start)
	if d == nil {
		h.writeServiceError(w, err)
		return
	}

	resp := AddDeploymentResponse{Deployment: *d, Started: req.Start && err == nil}
	if err != nil {
		resp.StartError = err.Error()
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	detailed, err := boolQuery(r, "detailed")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	report, err := h.service.Status(r.Context(), mux.Vars(r)["name"], detailed)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleRemoveDeployment(w http.ResponseWriter, r *http.Request) {
	stop, err := boolQuery(r, "stop")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	d, err := h.service.Remove(r.Context(), mux.Vars(r)["name"], stop)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, RemoveDeploymentResponse{Deployment: *d, Stopped: stop})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "start", h.service.Start, "Deployment %s started.")
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "stop", h.service.Stop, "Deployment %s stopped.")
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "restart", h.service.Restart, "Deployment %s restarted.")
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, string) error, message string) {
	name := mux.Vars(r)["name"]
	if err := fn(r.Context(), name); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ActionResponse{
		Deployment: name,
		Action:     action,
		Message:    fmt.Sprintf(message, name),
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateDeploymentRequest
	if err := decodeBody(r, &req, true); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	name := mux.Vars(r)["name"]
	outcome, err := h.service.Update(r.Context(), name, engine.UpdateOptions{Start: req.Start, Restart: req.Restart})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ActionResponse{
		Deployment: name,
		Action:     "update",
		Outcome:    string(outcome),
		Message:    outcome.Message(name),
	})
}

// =============================================================================
// Bulk Handlers
// =============================================================================

func (h *Handler) handleStartAll(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.service.StartAll)
}

func (h *Handler) handleStopAll(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.service.StopAll)
}

// bulk replies 200 when every deployment succeeded and 207 otherwise.
func (h *Handler) bulk(w http.ResponseWriter, r *http.Request, fn func(context.Context) (engine.BulkResult, error)) {
	result, err := fn(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := BulkResponse{Action: result.Action, Results: make([]BulkItem, 0, len(result.Results))}
	for _, res := range result.Results {
		item := BulkItem{Name: res.Name, OK: res.Succeeded()}
		if res.Err != nil {
			item.Error = res.Err.Error()
			resp.Failed++
		}
		resp.Results = append(resp.Results, item)
	}

	status := http.StatusOK
	if resp.Failed > 0 {
		status = http.StatusMultiStatus
	}
	h.writeJSON(w, status, resp)
}

// =============================================================================
// Query Handlers
// =============================================================================

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Statistics(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if key := r.URL.Query().Get("key"); key != "" {
		value, err := st.Lookup(key)
		if err != nil {
			h.writeError(w, http.StatusNotFound, "unknown_statistic", err.Error())
			return
		}
		h.writeJSON(w, http.StatusOK, stats.Entry{Key: key, Value: value})
		return
	}

	h.writeJSON(w, http.StatusOK, StatsResponse{Statistics: st})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "validation_error", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	events, err := h.service.History(r.Context(), r.URL.Query().Get("deployment"), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	h.writeJSON(w, http.StatusOK, HistoryResponse{Events: events})
}

// =============================================================================
// Response Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// writeServiceError maps manager errors to HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	h.writeError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrDeploymentNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrComposeFileNotFound):
		return http.StatusNotFound, "compose_file_not_found"
	case errors.Is(err, domain.ErrDeploymentExists):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidPath),
		errors.Is(err, domain.ErrConflictingFlags):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, engine.ErrHistoryDisabled):
		return http.StatusNotImplemented, "history_disabled"
	case docker.IsUnavailable(err):
		return http.StatusServiceUnavailable, "docker_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeBody reads a JSON body. With optional set an empty body is accepted.
func decodeBody(r *http.Request, v interface{}, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON: %v", err)
	}
	return nil
}

func boolQuery(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false", name)
	}
	return v, nil
}
