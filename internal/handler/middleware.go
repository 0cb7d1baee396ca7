package handler

import (
	"context"
	"net/http"

	"github.com/buildbyprohor/studio-api/internal/domain"
	"github.com/buildbyprohor/studio-api/internal/session"

	"go.uber.org/zap"
)

type contextKey string

const principalKey contextKey = "principal"

// RequireSession rejects requests with no signed-in principal and
// injects the principal into the request context.
func RequireSession(sessions *session.Manager, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := sessions.State()
			if st.User == nil {
				logger.Warn("session: no principal",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "sign-in required")
				return
			}
			ctx := context.WithValue(r.Context(), principalKey, st.User)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RejectBanned blocks requests while the account is banned or the
// durable ban marker is still set.
func RejectBanned(sessions *session.Manager, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := sessions.State()
			if st.IsBanned || st.BanMarked {
				uid := ""
				if st.User != nil {
					uid = st.User.UserID
				}
				handleServiceError(w, &domain.ErrBanned{UserID: uid}, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin allows only a signed-in administrator through.
func RequireAdmin(sessions *session.Manager, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := sessions.State()
			if st.User == nil {
				writeError(w, http.StatusUnauthorized, "sign-in required")
				return
			}
			if !st.IsAdmin {
				logger.Warn("admin route denied",
					zap.String("user_id", st.User.UserID),
					zap.String("path", r.URL.Path),
				)
				handleServiceError(w, &domain.ErrForbidden{Action: "admin access"}, logger)
				return
			}
			ctx := context.WithValue(r.Context(), principalKey, st.User)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext extracts the authenticated principal injected by
// RequireSession or RequireAdmin.
func PrincipalFromContext(ctx context.Context) *domain.Principal {
	p, _ := ctx.Value(principalKey).(*domain.Principal)
	return p
}
