// Package api provides the HTTP surface of the konditional daemon:
// evaluation for clients and snapshot control-plane operations for
// operators. Handlers never mutate registry state on a decode failure;
// the last-known-good snapshot stays installed.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/TimurManjosov/konditional/codec"
)

// ErrorCode is a machine-readable error code for API responses.
type ErrorCode string

const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalidJSON  ErrorCode = "INVALID_JSON"
)

// ErrorResponse is the structured error body of every failed request.
type ErrorResponse struct {
	Error   string    `json:"error"`
	Message string    `json:"message"`
	Code    ErrorCode `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
	})
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// writeParseError maps a codec failure onto a 400 with the typed parse
// error kind as the code.
func writeParseError(w http.ResponseWriter, err error) {
	var pe *codec.ParseError
	if errors.As(err, &pe) {
		writeError(w, http.StatusBadRequest, ErrorCode(pe.Kind), pe.Error())
		return
	}
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
}
