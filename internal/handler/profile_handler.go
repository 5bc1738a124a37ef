package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/granaapp/grana-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Profile & Privacy Lock Handlers
// ============================================================

func getProfileHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/profile")
		defer span.End()

		profile := svc.Profile(ctx)
		writeJSON(w, http.StatusOK, map[string]any{
			"name":                profile.Name,
			"avatar":              profile.Avatar,
			"onboardingCompleted": profile.OnboardingCompleted,
			"hasPin":              svc.PINRequired(),
		})
	}
}

func updateProfileHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/profile")
		defer span.End()

		var req struct {
			Name   string `json:"name"`
			Avatar string `json:"avatar"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		profile, err := svc.UpdateProfile(ctx, req.Name, req.Avatar)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func onboardingHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/profile/onboarding")
		defer span.End()

		var req struct {
			Name           string  `json:"name"`
			OpeningBalance float64 `json:"openingBalance"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.CompleteOnboarding(ctx, req.Name, req.OpeningBalance, time.Now()); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
	}
}

func setPINHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/profile/pin")
		defer span.End()

		var req struct {
			PIN string `json:"pin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.SetPIN(ctx, req.PIN); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"hasPin": req.PIN != ""})
	}
}

func verifyPINHandler(svc *service.Finance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/profile/pin/verify")
		defer span.End()

		var req struct {
			PIN string `json:"pin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		token, err := svc.VerifyPIN(ctx, req.PIN, time.Now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"unlockToken": token})
	}
}
