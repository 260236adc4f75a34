package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged server-side with its technical detail and request id,
// then rendered to the client as the user-friendly message from core.MapError.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/pricelist/internal/core"
	"github.com/JonMunkholm/pricelist/internal/logging"
	"github.com/JonMunkholm/pricelist/internal/sheet"
)

var (
	// errInvalidRequest marks malformed input: bad JSON, ids, or form values.
	errInvalidRequest = errors.New("invalid request")
	errRateLimited    = errors.New("rate limit exceeded")
	errNoFile         = errors.New("no file provided")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

func newErrorResponse(err error) ErrorResponse {
	msg := core.MapError(err)
	return ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
}

// statusFor picks the HTTP status for err. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidRequest), errors.Is(err, errNoFile), errors.Is(err, sheet.ErrEmptyFile):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidRule), errors.Is(err, core.ErrInvalidTemplate):
		return http.StatusBadRequest
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, sheet.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, sheet.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateTemplate), errors.Is(err, core.ErrSupplierBusy):
		return http.StatusConflict
	case errors.Is(err, core.ErrShapeMismatch), errors.Is(err, core.ErrBlockingIssues):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyIngests):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	// Decoder failures (invalid csv/xlsx) and mapping mistakes are the client's.
	switch core.MapError(err).Code {
	case "FILE003", "FILE004", "VAL003", "VAL004", "VAL006":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError logs err with request context and writes the mapped message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := newErrorResponse(err)
	logRequestError(r, status, err, resp.Code)
	writeJSON(w, r, status, resp)
}

// logRequestError logs server faults at error level and client faults at warn.
func logRequestError(r *http.Request, status int, err error, code string) {
	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
