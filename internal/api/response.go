package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Error codes
const (
	codeBadRequest    = "BAD_REQUEST"
	codeInvalidJSON   = "INVALID_JSON"
	codeValidation    = "VALIDATION_FAILED"
	codeNotFound      = "NOT_FOUND"
	codeAlreadyExists = "ALREADY_EXISTS"
	codeUnauthorized  = "UNAUTHORIZED"
	codeRateLimited   = "RATE_LIMIT_EXCEEDED"
	codeInternal      = "INTERNAL_ERROR"
)

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: timestamp()},
	})
}

func respondList(w http.ResponseWriter, data any, total int) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Total: total, Timestamp: timestamp()},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIResponse{
		Error: &APIError{Code: code, Message: message},
		Meta:  &APIMeta{Timestamp: timestamp()},
	})
}

// respondErr maps an engine error to a status code. Unexpected errors are
// logged and reported without detail.
func respondErr(w http.ResponseWriter, log *slog.Logger, err error) {
	apiErr := &APIError{Code: codeInternal, Message: "internal error"}
	status := http.StatusInternalServerError

	var verr *errors.ValidationError
	switch {
	case errors.As(err, &verr):
		status, apiErr = http.StatusBadRequest, &APIError{Code: codeValidation, Message: verr.Message, Field: verr.Field}
	case errors.Is(err, errors.ErrInvalidInput):
		status, apiErr = http.StatusBadRequest, &APIError{Code: codeBadRequest, Message: err.Error()}
	case errors.Is(err, errors.ErrNotFound):
		status, apiErr = http.StatusNotFound, &APIError{Code: codeNotFound, Message: err.Error()}
	case errors.Is(err, errors.ErrAlreadyExists):
		status, apiErr = http.StatusConflict, &APIError{Code: codeAlreadyExists, Message: err.Error()}
	default:
		log.Error("request failed", "error", err)
	}
	writeJSON(w, status, APIResponse{Error: apiErr, Meta: &APIMeta{Timestamp: timestamp()}})
}

// decodeJSON reads a request body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidJSON, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}
