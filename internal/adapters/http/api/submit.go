// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/parleyai/quorum/internal/domain/model"
)

// SubmitHandler handles consensus submission requests.
type SubmitHandler struct {
	deps Dependencies
}

// NewSubmitHandler creates a new submit handler.
func NewSubmitHandler(deps Dependencies) *SubmitHandler {
	return &SubmitHandler{deps: deps}
}

// HandleSubmit handles POST /consensus/submit requests.
func (h *SubmitHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing prompt")))
		return
	}

	job, err := h.deps.Submit(r.Context(), model.SubmitRequest{
		Prompt:              req.Prompt,
		TaskType:            model.TaskType(req.TaskType),
		Strategy:            model.Strategy(req.Strategy),
		Priority:            model.Priority(req.Priority),
		ConfidenceThreshold: req.ConfidenceThreshold,
		Models:              req.Models,
		TenantID:            req.TenantID,
		IdempotencyKey:      req.IdempotencyKey,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// A duplicate submission answers with the original job, which may
	// already be terminal.
	writeJSON(w, http.StatusAccepted, submitResponse{
		RequestID: job.ID,
		Status:    string(job.Status),
	})
}
