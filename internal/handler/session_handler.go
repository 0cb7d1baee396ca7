package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/buildbyprohor/studio-api/internal/domain"
	"github.com/buildbyprohor/studio-api/internal/identity"
	"github.com/buildbyprohor/studio-api/internal/session"

	"go.uber.org/zap"
)

// signInHandler handles POST /v1/session. A request with an idToken
// signs in a verified principal; one without signs in a guest.
func signInHandler(hub *identity.Hub, sessions *session.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDToken string `json:"idToken"`
		}
		// An empty body is a guest sign-in.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.IDToken == "" {
			hub.SignInAnonymous()
		} else if _, err := hub.SignIn(req.IDToken); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, sessions.State())
	}
}

// sessionHandler handles GET /v1/session.
func sessionHandler(sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sessions.State())
	}
}

// signOutHandler handles DELETE /v1/session. The durable ban marker
// survives sign-out.
func signOutHandler(hub *identity.Hub, sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hub.SignOut()
		writeJSON(w, http.StatusOK, sessions.State())
	}
}

// sessionStreamHandler handles GET /v1/session/stream: an SSE feed of
// session snapshots, starting with the current one.
func sessionStreamHandler(sessions *session.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streamSSE(w, r, logger, func(ctx context.Context, emit func(v any)) (func(), error) {
			return sessions.OnChange(func(st domain.SessionState) {
				emit(st)
			}), nil
		})
	}
}

// banAckHandler handles POST /v1/session/ban-ack: the explicit
// acknowledgment that clears the durable ban marker.
func banAckHandler(sessions *session.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.AcknowledgeBan(); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, sessions.State())
	}
}
