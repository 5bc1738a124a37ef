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
// Accounts Handlers
// ============================================================

func listAccountsHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts")
		defer span.End()
		writeJSON(w, http.StatusOK, svc.ListAccounts(ctx))
	}
}

func createAccountHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts")
		defer span.End()

		var draft domain.AccountDraft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		account, err := svc.AddAccount(ctx, draft, time.Now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, account)
	}
}

func updateAccountHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/accounts/{accountId}")
		defer span.End()

		id := chi.URLParam(r, "accountId")
		span.SetAttributes(attribute.String("account.id", id))

		var draft domain.AccountDraft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		account, err := svc.UpdateAccount(ctx, id, draft, time.Now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func deleteAccountHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/accounts/{accountId}")
		defer span.End()

		id := chi.URLParam(r, "accountId")
		span.SetAttributes(attribute.String("account.id", id))

		if err := svc.RemoveAccount(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getBalanceHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}/balance")
		defer span.End()

		id := chi.URLParam(r, "accountId")
		span.SetAttributes(attribute.String("account.id", id))

		for _, account := range svc.ListAccounts(ctx) {
			if account.ID == id {
				writeJSON(w, http.StatusOK, map[string]any{
					"account_id": account.ID,
					"balance":    account.Balance,
					"type":       account.Kind,
				})
				return
			}
		}
		handleServiceError(w, &domain.ErrNotFound{Resource: "account", ID: id}, logger)
	}
}
