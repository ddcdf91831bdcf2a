package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, common.ErrPayloadTooLarge), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrDuplicateRecord), errors.Is(err, common.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, common.ErrContentUnavailable):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage hides the cause of server-side failures.
func clientMessage(code int, err error, fallback string) string {
	if code >= http.StatusInternalServerError {
		return "Internal server error"
	}
	if fallback != "" {
		return fallback
	}
	return err.Error()
}

// writeError logs err and answers with its mapped status. Messages of 5xx
// responses never reach the client.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, message string) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error(ctx, "request failed", "error", err)
	} else {
		h.logger.Debug(ctx, "request rejected", "status", code, "error", err)
	}
	writeJSON(w, code, messageResponse{Message: clientMessage(code, err, message)})
}
