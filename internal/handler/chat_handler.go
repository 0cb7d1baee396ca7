package handler

import (
	"context"
	"net/http"

	"github.com/buildbyprohor/studio-api/internal/conversation"
	"github.com/buildbyprohor/studio-api/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// listChatsHandler handles GET /v1/chats: an SSE feed of the signed-in
// owner's conversation summaries, most recent first.
func listChatsHandler(lists *conversation.ListStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		streamSSE(w, r, logger, func(ctx context.Context, emit func(v any)) (func(), error) {
			return lists.WatchOwner(ctx, p.UserID, func(summaries []domain.ConversationSummary) {
				emit(summaries)
			}, nil)
		})
	}
}

// createChatHandler handles POST /v1/chats.
func createChatHandler(lists *conversation.ListStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		id, err := lists.Create(r.Context(), p.UserID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"chatId": id})
	}
}

// chatStreamHandler handles GET /v1/chats/{chatId}: an SSE feed of
// normalized conversation snapshots.
func chatStreamHandler(chats *conversation.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		chatID := chi.URLParam(r, "chatId")
		streamSSE(w, r, logger, func(ctx context.Context, emit func(v any)) (func(), error) {
			return chats.Watch(ctx, p.UserID, chatID, func(c domain.Conversation) {
				emit(c)
			}, nil)
		})
	}
}

// intakeHandler handles POST /v1/chats/{chatId}/intake.
func intakeHandler(chats *conversation.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		chatID := chi.URLParam(r, "chatId")

		var form domain.IntakeForm
		if !decodeBody(w, r, &form) {
			return
		}
		if err := chats.SubmitIntake(r.Context(), p.UserID, chatID, &form); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "submitted"})
	}
}

// sendMessageHandler handles POST /v1/chats/{chatId}/messages, always
// with the user sender role.
func sendMessageHandler(chats *conversation.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		chatID := chi.URLParam(r, "chatId")

		var req struct {
			Body string `json:"body"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := chats.SendText(r.Context(), p.UserID, chatID, req.Body, domain.SenderUser); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
	}
}
