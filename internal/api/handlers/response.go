package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/delivevent/marketplace/backend/internal/infrastructure/observability"
	apperrors "github.com/delivevent/marketplace/backend/pkg/errors"
)

const maxBodyBytes = 64 << 10

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithHint reports a refused action together with a message the
// client can show inline next to the offending field.
func respondWithHint(w http.ResponseWriter, statusCode int, message, hint string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
		"hint":  hint,
	})
}

func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	message := err.Error()

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		message = "internal server error"
	}
	respondWithError(w, status, message)
}

// decodeJSON reads a bounded JSON body into dest. An empty body leaves dest untouched.
func decodeJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return nil
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.NewValidationError("invalid request body")
	}
	return nil
}

// markDegraded keeps a response built around a failed dependency out of shared caches.
func markDegraded(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}
