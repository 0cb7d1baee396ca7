package handler

import (
	"net/http"

	"github.com/buildbyprohor/studio-api/internal/session"
	"github.com/buildbyprohor/studio-api/internal/ticket"

	"go.uber.org/zap"
)

// submitTicketHandler handles POST /v1/tickets. A session is optional:
// signed-out and anonymous visitors file guest tickets.
func submitTicketHandler(tickets *ticket.Service, sessions *session.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Topic    string            `json:"topic"`
			FormData map[string]string `json:"formData"`
		}
		if !decodeBody(w, r, &req) {
			return
		}

		id, err := tickets.Submit(r.Context(), sessions.State().User, req.Topic, req.FormData)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"ticketId": id})
	}
}
