// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	service "github.com/parleyai/quorum/internal/app"
	"github.com/parleyai/quorum/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle
// keeps the handler layer loosely coupled to implementations in other
// packages.
type Dependencies interface {
	// Submit registers a job and queues it for background execution.
	Submit(ctx context.Context, req model.SubmitRequest) (*model.ConsensusJob, error)

	// GetResult returns the current snapshot of a job.
	GetResult(ctx context.Context, id string) (*model.ConsensusJob, error)

	// Cancel aborts a non-terminal job.
	Cancel(ctx context.Context, id string) error
}

// Server wires HTTP routes for the consensus API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	submitHandler *SubmitHandler
	resultHandler *ResultHandler
	cancelHandler *CancelHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		submitHandler: NewSubmitHandler(deps),
		resultHandler: NewResultHandler(deps),
		cancelHandler: NewCancelHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/consensus/submit", MetricsMiddleware(s.submitHandler.HandleSubmit, "submit"))
	mux.HandleFunc("/consensus/result/", MetricsMiddleware(s.resultHandler.HandleGetResult, "result"))
	// Alias kept for clients that poll status and result separately.
	mux.HandleFunc("/consensus/status/", MetricsMiddleware(s.resultHandler.HandleGetResult, "status"))
	mux.HandleFunc("/consensus/cancel/", MetricsMiddleware(s.cancelHandler.HandleCancel, "cancel"))
}

// submitRequest mirrors the request schema for POST /consensus/submit.
type submitRequest struct {
	Prompt              string   `json:"prompt"`
	TaskType            string   `json:"task_type,omitempty"`
	Strategy            string   `json:"strategy,omitempty"`
	Priority            string   `json:"priority,omitempty"`
	ConfidenceThreshold float64  `json:"confidence_threshold,omitempty"`
	Models              []string `json:"models,omitempty"`
	TenantID            string   `json:"tenant_id,omitempty"`
	IdempotencyKey      string   `json:"idempotency_key,omitempty"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

type modelResultResponse struct {
	Model      string  `json:"model"`
	Response   string  `json:"response"`
	Score      float64 `json:"score,omitempty"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
	TokensUsed int     `json:"tokens_used,omitempty"`
	LatencyMs  int64   `json:"latency_ms,omitempty"`
}

type consensusResponse struct {
	Response           string   `json:"response"`
	Score              float64  `json:"score,omitempty"`
	Confidence         float64  `json:"confidence"`
	Strategy           string   `json:"strategy"`
	ContributingModels []string `json:"participating_models"`
}

// jobResponse is the polling shape for GET /consensus/result/{id}.
type jobResponse struct {
	RequestID   string                `json:"request_id"`
	Status      string                `json:"status"`
	Strategy    string                `json:"strategy"`
	TaskType    string                `json:"task_type"`
	Priority    string                `json:"priority"`
	Results     []modelResultResponse `json:"results,omitempty"`
	Consensus   *consensusResponse    `json:"consensus,omitempty"`
	Warning     string                `json:"warning,omitempty"`
	Error       string                `json:"error,omitempty"`
	CreatedAt   string                `json:"created_at"`
	CompletedAt string                `json:"completed_at,omitempty"`
}

// toJobResponse converts a domain job to its wire shape.
func toJobResponse(job *model.ConsensusJob) jobResponse {
	resp := jobResponse{
		RequestID: job.ID,
		Status:    string(job.Status),
		Strategy:  string(job.Strategy),
		TaskType:  string(job.TaskType),
		Priority:  string(job.Priority),
		Warning:   job.Warning,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
	}
	if !job.CompletedAt.IsZero() {
		resp.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	for _, r := range job.Results {
		resp.Results = append(resp.Results, modelResultResponse{
			Model:      r.Model,
			Response:   r.Response,
			Score:      r.Score,
			Confidence: r.Confidence,
			Reasoning:  r.Reasoning,
			TokensUsed: r.TokensUsed,
			LatencyMs:  r.LatencyMs,
		})
	}
	if job.Consensus != nil {
		resp.Consensus = &consensusResponse{
			Response:           job.Consensus.Response,
			Score:              job.Consensus.Score,
			Confidence:         job.Consensus.Confidence,
			Strategy:           string(job.Consensus.Strategy),
			ContributingModels: job.Consensus.ContributingModels,
		}
	}
	return resp
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates facade sentinels into HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidPrompt),
		errors.Is(err, service.ErrUnknownStrategy),
		errors.Is(err, service.ErrUnknownTaskType),
		errors.Is(err, service.ErrUnknownPriority),
		errors.Is(err, service.ErrInvalidThreshold):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrJobTerminal):
		writeError(w, http.StatusConflict, "terminal", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
