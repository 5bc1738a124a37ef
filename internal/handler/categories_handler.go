package handler

import (
	"encoding/json"
	"net/http"

	"github.com/granaapp/grana-go/internal/domain"
	"github.com/granaapp/grana-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Categories Handlers
// ============================================================

func listCategoriesHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/categories")
		defer span.End()
		writeJSON(w, http.StatusOK, svc.ListCategories(ctx))
	}
}

func createCategoryHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/categories")
		defer span.End()

		var draft domain.CategoryDraft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		category, err := svc.AddCategory(ctx, draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, category)
	}
}

func updateCategoryHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/categories/{categoryId}")
		defer span.End()

		id := chi.URLParam(r, "categoryId")
		span.SetAttributes(attribute.String("category.id", id))

		var draft domain.CategoryDraft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		category, err := svc.UpdateCategory(ctx, id, draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, category)
	}
}

func deleteCategoryHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/categories/{categoryId}")
		defer span.End()

		id := chi.URLParam(r, "categoryId")
		span.SetAttributes(attribute.String("category.id", id))

		if err := svc.RemoveCategory(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
