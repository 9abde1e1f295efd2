package alerts

import (
	"net/http"
	"time"

	"github.com/good-yellow-bee/logalert/internal/logsource"
	"github.com/good-yellow-bee/logalert/internal/models"
)

// EvaluateResponse is the result of one evaluation pass.
type EvaluateResponse struct {
	Evaluated int                  `json:"evaluated"`
	Events    []*models.AlertEvent `json:"events"`
}

// Evaluate runs one pass over the posted records. The body is a JSON array
// of log records or an object holding it under "logs" or "data"; records
// are normalized the same way as fetched logs.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	logs, err := logsource.Decode(r.Body, time.Now())
	if err != nil {
		if isBodyTooLarge(err) {
			jsonError(w, r, http.StatusRequestEntityTooLarge, errCodeBadRequest, "request body too large")
			return
		}
		jsonError(w, r, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if err := ValidateEvaluateSize(len(logs)); err != nil {
		jsonError(w, r, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	events := h.engine.Evaluate(r.Context(), logs)
	if events == nil {
		events = []*models.AlertEvent{}
	}
	jsonOK(w, r, EvaluateResponse{Evaluated: len(logs), Events: events})
}

// Events returns the most recently fired events, newest first.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, r, h.engine.RecentEvents())
}
