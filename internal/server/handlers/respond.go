package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/gophauth/internal/server/auth"
	"github.com/iudanet/gophauth/pkg/api"
)

// maxBodySize limits JSON request bodies
const maxBodySize = 1 << 20

// sendJSON writes data as a JSON response
func sendJSON(logger *slog.Logger, w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError writes an ErrorResponse
func sendError(logger *slog.Logger, w http.ResponseWriter, kind auth.Kind, message string, statusCode int) {
	sendJSON(logger, w, api.ErrorResponse{ErrorKind: kind.String(), Message: message}, statusCode)
}

// sendServiceError maps an auth.Service error to a status code and error body
func sendServiceError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	var e *auth.Error
	if !errors.As(err, &e) {
		logger.ErrorContext(ctx, "unexpected service error", slog.Any("error", err))
		sendError(logger, w, auth.KindDependency, auth.GenericMessage, http.StatusInternalServerError)
		return
	}

	sendError(logger, w, e.Kind, e.Message, statusFor(e))
}

func statusFor(e *auth.Error) int {
	switch e.Kind {
	case auth.KindValidation:
		if errors.Is(e, auth.ErrDuplicateEmail) {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case auth.KindAuth:
		return http.StatusUnauthorized
	case auth.KindNotFound:
		return http.StatusBadRequest
	case auth.KindDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into v and answers 400 on failure
func decodeJSON(logger *slog.Logger, w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.WarnContext(r.Context(), "failed to decode request body", slog.Any("error", err))
		sendError(logger, w, auth.KindValidation, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
