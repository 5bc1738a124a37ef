package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/granaapp/grana-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parseAt resolves the optional ?at=RFC3339 query parameter. Analytics
// endpoints treat "now" as an explicit input; absent the parameter, the
// server clock wins.
func parseAt(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("at")
	if v == "" {
		return time.Now(), nil
	}
	at, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, &domain.ErrValidation{Field: "at", Message: "must be an RFC3339 timestamp"}
	}
	return at, nil
}

func parseDays(r *http.Request, fallback int) int {
	v := r.URL.Query().Get("days")
	if v == "" {
		return fallback
	}
	days, err := strconv.Atoi(v)
	if err != nil || days <= 0 {
		return fallback
	}
	return days
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var constraint *domain.ErrConstraint
	var importFormat *domain.ErrImportFormat
	var unauthorized *domain.ErrUnauthorized
	var conflict *domain.ErrConflict
	var persistence *domain.ErrPersistence

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &importFormat):
		logger.Debug("import rejected", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &constraint):
		logger.Debug("constraint violation", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &persistence):
		logger.Error("persistence backend failure", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "persistence backend unavailable")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
