package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/granaapp/grana-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Backup & Notifications Handlers
// ============================================================

func exportHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/data/export")
		defer span.End()
		writeJSON(w, http.StatusOK, svc.Export(ctx, time.Now()))
	}
}

func importHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/data/import")
		defer span.End()

		raw, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unable to read request body")
			return
		}

		if err := svc.Import(ctx, raw, time.Now()); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "imported"})
	}
}

func resetHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/data/reset")
		defer span.End()

		if err := svc.Reset(ctx, time.Now()); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	}
}

func listNotificationsHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/notifications")
		defer span.End()
		writeJSON(w, http.StatusOK, svc.Notifications(ctx))
	}
}

func markNotificationReadHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/notifications/{notificationId}/read")
		defer span.End()

		id := chi.URLParam(r, "notificationId")
		span.SetAttributes(attribute.String("notification.id", id))

		if err := svc.MarkNotificationRead(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
	}
}
