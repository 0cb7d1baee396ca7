package handler

import (
	"net/http"
	"time"

	"github.com/buildbyprohor/studio-api/internal/conversation"
	"github.com/buildbyprohor/studio-api/internal/identity"
	"github.com/buildbyprohor/studio-api/internal/infra/observability"
	"github.com/buildbyprohor/studio-api/internal/remote"
	"github.com/buildbyprohor/studio-api/internal/session"
	"github.com/buildbyprohor/studio-api/internal/ticket"
	"github.com/buildbyprohor/studio-api/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter creates the HTTP router with all routes and middleware.
// The API fronts a browser client, so every live view is exposed as an
// SSE stream next to its mutating endpoints.
func NewRouter(
	hub *identity.Hub,
	sessions *session.Manager,
	chats *conversation.Store,
	lists *conversation.ListStore,
	tickets *ticket.Service,
	users *user.Service,
	store remote.Store,
	metrics *observability.Metrics,
	allowedOrigins []string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Session lifecycle (public)
		r.Post("/session", signInHandler(hub, sessions, logger))
		r.Get("/session", sessionHandler(sessions))
		r.Delete("/session", signOutHandler(hub, sessions))
		r.Get("/session/stream", sessionStreamHandler(sessions, logger))
		r.Post("/session/ban-ack", banAckHandler(sessions, logger))

		// Support tickets (session optional)
		r.Post("/tickets", submitTicketHandler(tickets, sessions, logger))

		// Signed-in, non-banned routes
		r.Group(func(r chi.Router) {
			r.Use(RequireSession(sessions, logger))
			r.Use(RejectBanned(sessions, logger))

			r.Get("/chats", listChatsHandler(lists, logger))
			r.Post("/chats", createChatHandler(lists, logger))
			r.Get("/chats/{chatId}", chatStreamHandler(chats, logger))
			r.Post("/chats/{chatId}/intake", intakeHandler(chats, logger))
			r.Post("/chats/{chatId}/messages", sendMessageHandler(chats, logger))

			r.Get("/me", getMeHandler(users, logger))
			r.Put("/me", updateMeHandler(users, logger))
			r.Post("/me/setup", setupMeHandler(users, logger))
			r.Post("/me/picture", pictureHandler(users, logger))
		})

		// Administrator routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin(sessions, logger))

			r.Get("/chats", adminChatsHandler(lists, logger))
			r.Get("/chats/{ownerId}/{chatId}", adminChatStreamHandler(chats, logger))
			r.Post("/chats/{ownerId}/{chatId}/messages", adminSendMessageHandler(chats, logger))

			r.Get("/tickets", adminTicketsHandler(tickets, logger))
			r.Put("/tickets/{id}/status", ticketStatusHandler(tickets, logger))

			r.Get("/users", adminUsersHandler(users, logger))
			r.Put("/users/{uid}", adminUserUpdateHandler(users, logger))

			r.Get("/overview", overviewHandler(lists, tickets, users, logger))
			r.Get("/metrics/session", sessionMetricsHandler(metrics))
		})
	})

	return r
}

func healthzHandler(store remote.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		_, err := store.Read(r.Context(), "health-check")
		latency := time.Since(start).Milliseconds()

		status := "healthy"
		code := http.StatusOK
		if err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"status":     status,
			"latency_ms": latency,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
