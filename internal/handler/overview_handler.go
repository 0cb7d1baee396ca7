package handler

import (
	"net/http"

	"github.com/buildbyprohor/studio-api/internal/conversation"
	"github.com/buildbyprohor/studio-api/internal/ticket"
	"github.com/buildbyprohor/studio-api/internal/user"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type overviewResponse struct {
	Users       int `json:"users"`
	Chats       int `json:"chats"`
	OpenTickets int `json:"openTickets"`
}

// overviewHandler handles GET /v1/admin/overview: the dashboard
// headline counts, fetched concurrently.
func overviewHandler(lists *conversation.ListStore, tickets *ticket.Service, users *user.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp overviewResponse

		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			n, err := users.Count(ctx)
			resp.Users = n
			return err
		})
		g.Go(func() error {
			n, err := lists.CountAll(ctx)
			resp.Chats = n
			return err
		})
		g.Go(func() error {
			n, err := tickets.CountOpen(ctx)
			resp.OpenTickets = n
			return err
		})
		if err := g.Wait(); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
