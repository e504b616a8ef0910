package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	runtimedebug "runtime/debug"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/logging"
)

type apiResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

type errorResponse struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors"`
	Success    bool     `json:"success"`
	Stack      string   `json:"stack,omitempty"`
}

func respondData(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	respondJSON(ctx, w, status, apiResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

// respondError writes the error envelope. Errors without a kind become a 500
// carrying the error's own message. With debug set the envelope includes the
// stack of the goroutine that reported the error.
func respondError(ctx context.Context, w http.ResponseWriter, err error, debug bool) {
	resp := errorResponse{
		StatusCode: http.StatusInternalServerError,
		Message:    "internal server error",
		Errors:     []string{},
	}

	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		resp.StatusCode = appErr.Status()
		resp.Message = appErr.Message
		if len(appErr.Details) > 0 {
			resp.Errors = appErr.Details
		}
	case err != nil && err.Error() != "":
		resp.Message = err.Error()
	}

	if debug {
		resp.Stack = string(runtimedebug.Stack())
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		logging.FromContext(ctx).Error("request failed", "status", resp.StatusCode, "error", err)
	}

	respondJSON(ctx, w, resp.StatusCode, resp)
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	w.WriteHeader(http.StatusMethodNotAllowed)
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		logging.FromContext(ctx).Warn("request returned client error", "status", status)
	}
}
