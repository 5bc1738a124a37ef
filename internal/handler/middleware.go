package handler

import (
	"net/http"
	"strings"

	"github.com/granaapp/grana-go/internal/service"
	"go.uber.org/zap"
)

// UnlockMiddleware enforces the privacy lock. While no PIN is set the
// middleware is transparent; once the profile carries a PIN, financial
// routes require a Bearer unlock token from POST /v1/profile/pin/verify.
func UnlockMiddleware(svc *service.Finance, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !svc.PINRequired() {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("lock: missing unlock token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "unlock token required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("lock: malformed authorization header",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "malformed authorization header")
				return
			}

			if err := svc.ValidateUnlockToken(parts[1]); err != nil {
				logger.Warn("lock: invalid or expired unlock token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
