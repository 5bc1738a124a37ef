package handler

import (
	"net/http"
	"time"

	"github.com/granaapp/grana-go/internal/infra/observability"
	"github.com/granaapp/grana-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
//
// Profile, onboarding and PIN routes stay open so a locked user can still
// unlock; everything financial sits behind UnlockMiddleware.
func NewRouter(svc *service.Finance, metrics *observability.Metrics, logger *zap.Logger, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Profile and lock management are never behind the lock.
		r.Get("/profile", getProfileHandler(svc, logger))
		r.Put("/profile", updateProfileHandler(svc, logger))
		r.Post("/profile/onboarding", onboardingHandler(svc, logger))
		r.Put("/profile/pin", setPINHandler(svc, logger))
		r.Post("/profile/pin/verify", verifyPINHandler(svc, logger))

		r.Get("/stats/engine", engineStatsHandler(svc, logger))

		// Financial routes.
		r.Group(func(r chi.Router) {
			r.Use(UnlockMiddleware(svc, logger))

			r.Get("/accounts", listAccountsHandler(svc, logger))
			r.Post("/accounts", createAccountHandler(svc, logger))
			r.Put("/accounts/{accountId}", updateAccountHandler(svc, logger))
			r.Delete("/accounts/{accountId}", deleteAccountHandler(svc, logger))
			r.Get("/accounts/{accountId}/balance", getBalanceHandler(svc, logger))

			r.Get("/categories", listCategoriesHandler(svc, logger))
			r.Post("/categories", createCategoryHandler(svc, logger))
			r.Put("/categories/{categoryId}", updateCategoryHandler(svc, logger))
			r.Delete("/categories/{categoryId}", deleteCategoryHandler(svc, logger))

			r.Get("/transactions", listTransactionsHandler(svc, logger))
			r.Post("/transactions", createTransactionHandler(svc, logger))
			r.Put("/transactions/{transactionId}", updateTransactionHandler(svc, logger))
			r.Delete("/transactions/{transactionId}", deleteTransactionHandler(svc, logger))
			r.Get("/recurring/due", recurringDueHandler(svc, logger))

			r.Get("/budgets", listBudgetsHandler(svc, logger))
			r.Get("/budgets/{categoryId}", getBudgetStatusHandler(svc, logger))
			r.Put("/budgets/{categoryId}", setBudgetHandler(svc, logger))

			r.Get("/goals", listGoalsHandler(svc, logger))
			r.Post("/goals", createGoalHandler(svc, logger))
			r.Post("/goals/{goalId}/fund", fundGoalHandler(svc, logger))
			r.Delete("/goals/{goalId}", deleteGoalHandler(svc, logger))

			r.Get("/achievements", listAchievementsHandler(svc, logger))

			r.Get("/analytics/health", analyticsHealthHandler(svc, logger))
			r.Get("/analytics/forecast", analyticsForecastHandler(svc, logger))
			r.Get("/analytics/breakdown", analyticsBreakdownHandler(svc, logger))
			r.Get("/analytics/daily-flow", analyticsDailyFlowHandler(svc, logger))
			r.Get("/analytics/totals", analyticsTotalsHandler(svc, logger))

			r.Get("/suggestions", suggestionsHandler(svc, logger))

			r.Get("/notifications", listNotificationsHandler(svc, logger))
			r.Post("/notifications/{notificationId}/read", markNotificationReadHandler(svc, logger))

			r.Get("/data/export", exportHandler(svc, logger))
			r.Post("/data/import", importHandler(svc, logger))
			r.Post("/data/reset", resetHandler(svc, logger))
		})
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(svc *service.Finance) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := svc.EngineStats(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "healthy",
			"checked_at": time.Now().Format(time.RFC3339),
			"mutations":  stats.MutationsTotal,
			"error_rate": stats.ErrorRate,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func engineStatsHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/stats/engine")
		defer span.End()
		writeJSON(w, http.StatusOK, svc.EngineStats(ctx))
	}
}
