// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
)

// CancelHandler handles job cancellation requests.
type CancelHandler struct {
	deps Dependencies
}

// NewCancelHandler creates a new cancel handler.
func NewCancelHandler(deps Dependencies) *CancelHandler {
	return &CancelHandler{deps: deps}
}

// HandleCancel handles DELETE /consensus/cancel/{request_id} requests.
func (h *CancelHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	const op = "api.cancel"
	if r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	id := pathTail(r.URL.Path)
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	if err := h.deps.Cancel(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{RequestID: id, Status: "cancelled"})
}
