// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strings"
)

// ResultHandler handles job polling requests.
type ResultHandler struct {
	deps Dependencies
}

// NewResultHandler creates a new result handler.
func NewResultHandler(deps Dependencies) *ResultHandler {
	return &ResultHandler{deps: deps}
}

// HandleGetResult handles GET /consensus/result/{request_id} and its
// /consensus/status/ alias.
func (h *ResultHandler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_result"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := pathTail(r.URL.Path)
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	job, err := h.deps.GetResult(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// pathTail extracts the final path segment, rejecting nested paths.
func pathTail(path string) string {
	path = strings.TrimSuffix(path, "/")
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	tail := path[idx+1:]
	if tail == "result" || tail == "status" || tail == "cancel" {
		return ""
	}
	return tail
}
