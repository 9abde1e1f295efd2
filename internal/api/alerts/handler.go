// Package alerts serves the alert rule, evaluation and recent-event endpoints.
package alerts

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/logalert/internal/alerting"
	"github.com/good-yellow-bee/logalert/internal/api/middleware"
	"github.com/good-yellow-bee/logalert/internal/models"
)

// Response helpers
type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
type dataResponse struct {
	Data any `json:"data"`
}

const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeInternalError    = "INTERNAL_ERROR"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log := middleware.Log(r.Context())
		log.Warn().Err(err).Msg("json encode error")
	}
}

func jsonError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, r, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func jsonOK(w http.ResponseWriter, r *http.Request, data any) {
	writeJSON(w, r, http.StatusOK, dataResponse{Data: data})
}

func jsonCreated(w http.ResponseWriter, r *http.Request, data any) {
	writeJSON(w, r, http.StatusCreated, dataResponse{Data: data})
}

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// RuleResponse is a rule with its last fire time.
type RuleResponse struct {
	*models.AlertRule
	LastFiredAt *time.Time `json:"lastFiredAt,omitempty"`
}

// SetEnabledRequest is the body of PUT /rules/{id}/enabled.
type SetEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// Handler handles rule, evaluate and event endpoints.
type Handler struct {
	engine  *alerting.Engine
	maxBody int64
}

// NewHandler creates a handler on engine. maxBody limits request bodies.
func NewHandler(engine *alerting.Engine, maxBody int64) *Handler {
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	return &Handler{engine: engine, maxBody: maxBody}
}

func (h *Handler) toResponse(r *http.Request, rule *models.AlertRule) *RuleResponse {
	resp := &RuleResponse{AlertRule: rule}
	if last, ok := h.engine.LastFired(r.Context(), rule.ID); ok {
		resp.LastFiredAt = &last
	}
	return resp
}

// List returns all rules in insertion order.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rules := h.engine.Rules().List(r.Context())

	resp := make([]*RuleResponse, len(rules))
	for i, rule := range rules {
		resp[i] = h.toResponse(r, rule)
	}
	jsonOK(w, r, resp)
}

// Create adds a rule. Missing fields take their defaults.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req models.RuleInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, r, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if err := ValidateRuleInput(&req); err != nil {
		jsonError(w, r, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	rule, err := h.engine.Rules().Add(r.Context(), req)
	if err != nil {
		log := middleware.Log(r.Context())
		log.Error().Err(err).Msg("create rule")
		jsonError(w, r, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonCreated(w, r, h.toResponse(r, rule))
}

// GetByID returns a single rule.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.engine.Rules().Get(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		jsonError(w, r, http.StatusNotFound, errCodeNotFound, "rule not found")
		return
	}
	jsonOK(w, r, h.toResponse(r, rule))
}

// Delete removes a rule. Deleting an unknown id succeeds.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.RemoveRule(r.Context(), chi.URLParam(r, "id")); err != nil {
		log := middleware.Log(r.Context())
		log.Error().Err(err).Msg("delete rule")
		jsonError(w, r, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	jsonNoContent(w)
}

// SetEnabled enables or disables a rule.
func (h *Handler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, r, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if req.Enabled == nil {
		jsonError(w, r, http.StatusBadRequest, errCodeValidationFailed, "enabled is required")
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if _, ok := h.engine.Rules().Get(ctx, id); !ok {
		jsonError(w, r, http.StatusNotFound, errCodeNotFound, "rule not found")
		return
	}

	if err := h.engine.Rules().SetEnabled(ctx, id, *req.Enabled); err != nil {
		log := middleware.Log(ctx)
		log.Error().Err(err).Str("rule_id", id).Msg("set rule enabled")
		jsonError(w, r, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	rule, ok := h.engine.Rules().Get(ctx, id)
	if !ok {
		jsonError(w, r, http.StatusNotFound, errCodeNotFound, "rule not found")
		return
	}
	jsonOK(w, r, h.toResponse(r, rule))
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
