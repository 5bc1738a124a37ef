package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/granaapp/grana-go/internal/domain"
	"github.com/granaapp/grana-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Goals & Achievements Handlers
// ============================================================

func listGoalsHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/goals")
		defer span.End()
		writeJSON(w, http.StatusOK, svc.ListGoals(ctx))
	}
}

func createGoalHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/goals")
		defer span.End()

		var draft domain.GoalDraft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		goal, err := svc.AddGoal(ctx, draft, time.Now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, goal)
	}
}

func fundGoalHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/goals/{goalId}/fund")
		defer span.End()

		id := chi.URLParam(r, "goalId")
		span.SetAttributes(attribute.String("goal.id", id))

		var req struct {
			Amount float64 `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		goal, err := svc.FundGoal(ctx, id, req.Amount, time.Now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, goal)
	}
}

func deleteGoalHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/goals/{goalId}")
		defer span.End()

		id := chi.URLParam(r, "goalId")
		span.SetAttributes(attribute.String("goal.id", id))

		if err := svc.RemoveGoal(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listAchievementsHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/achievements")
		defer span.End()
		writeJSON(w, http.StatusOK, svc.ListAchievements(ctx))
	}
}
