package api

import (
	"encoding/json"
	"net/http"
)

// Response is the envelope for every non-health API body.
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Error is the error half of the envelope. Status is the HTTP status and is
// not serialized.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

// Error codes for router-level failures. Handler packages define their own.
const (
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

var (
	ErrNotFound         = &Error{Code: ErrCodeNotFound, Message: "route not found", Status: http.StatusNotFound}
	ErrMethodNotAllowed = &Error{Code: ErrCodeMethodNotAllowed, Message: "method not allowed on this route", Status: http.StatusMethodNotAllowed}
)

func writeEnvelope(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// JSON writes data inside the envelope with the given status.
func JSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, Response{Data: data})
}

// JSONError writes err inside the envelope using its status.
func JSONError(w http.ResponseWriter, err *Error) {
	writeEnvelope(w, err.Status, Response{Error: err})
}
