package handler

import (
	"net/http"

	"github.com/granaapp/grana-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Analytics Handlers
// ============================================================
//
// Each endpoint accepts ?at=RFC3339 to pin "now"; the default is the
// server clock.

func analyticsHealthHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/health")
		defer span.End()

		at, err := parseAt(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, svc.Health(ctx, at))
	}
}

func analyticsForecastHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/forecast")
		defer span.End()

		at, err := parseAt(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, svc.ExpenseForecast(ctx, at))
	}
}

func analyticsBreakdownHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/breakdown")
		defer span.End()

		at, err := parseAt(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, svc.Breakdown(ctx, at))
	}
}

func analyticsDailyFlowHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/daily-flow")
		defer span.End()

		at, err := parseAt(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		days := parseDays(r, 7)
		writeJSON(w, http.StatusOK, svc.DailyFlow(ctx, days, at))
	}
}

func analyticsTotalsHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/totals")
		defer span.End()

		at, err := parseAt(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, svc.Totals(ctx, at))
	}
}

func suggestionsHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/suggestions")
		defer span.End()

		description := r.URL.Query().Get("description")
		writeJSON(w, http.StatusOK, svc.Suggest(ctx, description))
	}
}
