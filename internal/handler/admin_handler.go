package handler

import (
	"context"
	"net/http"

	"github.com/buildbyprohor/studio-api/internal/conversation"
	"github.com/buildbyprohor/studio-api/internal/domain"
	"github.com/buildbyprohor/studio-api/internal/infra/observability"
	"github.com/buildbyprohor/studio-api/internal/ticket"
	"github.com/buildbyprohor/studio-api/internal/user"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// adminChatsHandler handles GET /v1/admin/chats: an SSE feed of every
// owner's conversation summaries with resolved emails.
func adminChatsHandler(lists *conversation.ListStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streamSSE(w, r, logger, func(ctx context.Context, emit func(v any)) (func(), error) {
			return lists.WatchAll(ctx, func(summaries []domain.ConversationSummary) {
				emit(summaries)
			}, nil)
		})
	}
}

// adminChatStreamHandler handles GET /v1/admin/chats/{ownerId}/{chatId}.
func adminChatStreamHandler(chats *conversation.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := chi.URLParam(r, "ownerId")
		chatID := chi.URLParam(r, "chatId")
		streamSSE(w, r, logger, func(ctx context.Context, emit func(v any)) (func(), error) {
			return chats.Watch(ctx, ownerID, chatID, func(c domain.Conversation) {
				emit(c)
			}, nil)
		})
	}
}

// adminSendMessageHandler handles POST /v1/admin/chats/{ownerId}/{chatId}/messages,
// always with the admin sender role.
func adminSendMessageHandler(chats *conversation.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := chi.URLParam(r, "ownerId")
		chatID := chi.URLParam(r, "chatId")

		var req struct {
			Body string `json:"body"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := chats.SendText(r.Context(), ownerID, chatID, req.Body, domain.SenderAdmin); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
	}
}

// adminTicketsHandler handles GET /v1/admin/tickets: an SSE feed of
// all support tickets, newest first.
func adminTicketsHandler(tickets *ticket.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streamSSE(w, r, logger, func(ctx context.Context, emit func(v any)) (func(), error) {
			return tickets.Watch(ctx, func(ts []domain.Ticket) {
				emit(ts)
			}, nil)
		})
	}
}

// ticketStatusHandler handles PUT /v1/admin/tickets/{id}/status.
func ticketStatusHandler(tickets *ticket.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req struct {
			Status string `json:"status"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := tickets.SetStatus(r.Context(), id, domain.TicketStatus(req.Status)); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
	}
}

// adminUsersHandler handles GET /v1/admin/users: an SSE feed of the
// user directory.
func adminUsersHandler(users *user.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streamSSE(w, r, logger, func(ctx context.Context, emit func(v any)) (func(), error) {
			return users.WatchDirectory(ctx, func(records []user.Record) {
				emit(records)
			}, nil)
		})
	}
}

// sessionMetricsHandler handles GET /v1/admin/metrics/session.
func sessionMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetSessionSnapshot())
	}
}

// adminUserUpdateHandler handles PUT /v1/admin/users/{uid}, including
// ban and un-ban through the status field.
func adminUserUpdateHandler(users *user.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := chi.URLParam(r, "uid")

		var updates map[string]any
		if !decodeBody(w, r, &updates) {
			return
		}
		if len(updates) == 0 {
			writeError(w, http.StatusBadRequest, "no fields to update")
			return
		}
		if err := users.AdminUpdate(r.Context(), uid, updates); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}
