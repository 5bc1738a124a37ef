package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/granaapp/grana-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Budgets Handlers
// ============================================================

func listBudgetsHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budgets")
		defer span.End()

		at, err := parseAt(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, svc.BudgetStatuses(ctx, at))
	}
}

func getBudgetStatusHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budgets/{categoryId}")
		defer span.End()

		categoryID := chi.URLParam(r, "categoryId")
		span.SetAttributes(attribute.String("category.id", categoryID))

		at, err := parseAt(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		status, err := svc.BudgetStatus(ctx, categoryID, at)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func setBudgetHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/budgets/{categoryId}")
		defer span.End()

		categoryID := chi.URLParam(r, "categoryId")
		span.SetAttributes(attribute.String("category.id", categoryID))

		var req struct {
			Limit float64 `json:"limit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.SetBudget(ctx, categoryID, req.Limit, time.Now()); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		status, err := svc.BudgetStatus(ctx, categoryID, time.Now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}
