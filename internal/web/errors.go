package web

// errors.go turns pipeline errors into JSON responses.
//
// Every error is logged server-side with its technical detail and mapped
// with core.MapError to an operator-facing message and a stable code. The
// status code is derived from the error itself, so handlers only pass the
// error along.

import (
	"context"
	"errors"
	"net/http"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`

	// RowErrors lists the rows that blocked a commit.
	RowErrors []core.RowError `json:"row_errors,omitempty"`
}

// respondError logs err and writes the mapped response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= 500 && status != http.StatusBadGateway && status != http.StatusServiceUnavailable {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var rowErrs *core.RowErrors
	if errors.As(err, &rowErrs) {
		resp.RowErrors = rowErrs.Errors
	}
	writeJSON(w, status, resp)
}

// respondBadRequest rejects a malformed request before the pipeline runs.
func respondBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   message,
		Message: message,
		Code:    "REQ000",
	})
}

// statusFor picks the HTTP status of err.
func statusFor(err error) int {
	var (
		authErr *core.AuthError
		apiErr  *core.APIError
	)
	switch {
	case errors.Is(err, core.ErrEventNotFound), errors.Is(err, core.ErrImportLogNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrImportInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrBlockingRowErrors), errors.Is(err, core.ErrMalformedSource):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrCredentialsMissing), errors.Is(err, core.ErrEventNotLinked):
		return http.StatusPreconditionFailed
	case errors.As(err, &authErr):
		return http.StatusBadGateway
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == 0 {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	switch core.MapError(err).Code {
	case "SRC002", "SRC003", "SRC004":
		return http.StatusUnprocessableEntity
	case "SRC005":
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}
