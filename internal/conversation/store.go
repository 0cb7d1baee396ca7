package conversation

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/buildbyprohor/studio-api/internal/domain"
	"github.com/buildbyprohor/studio-api/internal/infra/observability"
	"github.com/buildbyprohor/studio-api/internal/remote"

	"go.uber.org/zap"
)

const chatRoot = "Build_Chat"

func chatPath(ownerID, chatID string) string {
	return remote.Join(chatRoot, ownerID, chatID)
}

func messagesPath(ownerID, chatID string) string {
	return remote.Join(chatRoot, ownerID, chatID, "messages")
}

// Store is the live view of single conversations plus their two write
// operations.
type Store struct {
	store   remote.Store
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewStore creates a conversation store.
func NewStore(store remote.Store, metrics *observability.Metrics, logger *zap.Logger) *Store {
	return &Store{store: store, metrics: metrics, logger: logger}
}

// Get reads one conversation snapshot.
func (s *Store) Get(ctx context.Context, ownerID, chatID string) (domain.Conversation, error) {
	raw, err := s.store.Read(ctx, chatPath(ownerID, chatID))
	if err != nil {
		s.metrics.IncrExternalError("store")
		return domain.Conversation{}, &domain.ErrExternalService{Service: "store", Err: err}
	}
	if raw == nil {
		return domain.Conversation{}, &domain.ErrNotFound{Resource: "conversation", ID: chatID}
	}
	return Normalize(ownerID, chatID, raw), nil
}

// Watch subscribes to one conversation. Every emitted snapshot is
// re-normalized from scratch; onChange receives the result.
func (s *Store) Watch(ctx context.Context, ownerID, chatID string, onChange func(domain.Conversation), onError func(error)) (remote.Unsubscribe, error) {
	path := chatPath(ownerID, chatID)
	return s.store.Subscribe(ctx, path, func(raw json.RawMessage) {
		s.metrics.IncrSubscribeEvent("conversation")
		conv := Normalize(ownerID, chatID, raw)
		s.metrics.AddMessagesNormalized(len(conv.Messages))
		onChange(conv)
	}, func(err error) {
		s.metrics.IncrSubscribeError("conversation")
		s.logger.Error("conversation: subscription error",
			zap.String("owner_id", ownerID),
			zap.String("chat_id", chatID),
			zap.Error(err),
		)
		if onError != nil {
			onError(err)
		}
	})
}

// SubmitIntake validates the intake form and appends it as the
// conversation's structured first message, then touches lastUpdated.
// Validation failures reject the submission before any write happens.
func (s *Store) SubmitIntake(ctx context.Context, ownerID, chatID string, form *domain.IntakeForm) error {
	if err := form.Validate(); err != nil {
		return err
	}
	return s.append(ctx, ownerID, chatID, map[string]any{
		"sender":    domain.SenderUser,
		"type":      domain.MessageForm,
		"content":   form,
		"timestamp": remote.ServerTimestamp(),
	})
}

// SendText appends a free-text message from the given sender. An empty
// or whitespace-only body is a no-op.
func (s *Store) SendText(ctx context.Context, ownerID, chatID, body string, sender domain.Sender) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	return s.append(ctx, ownerID, chatID, map[string]any{
		"sender":    sender,
		"type":      domain.MessageText,
		"content":   body,
		"timestamp": remote.ServerTimestamp(),
	})
}

// append writes a new message record, then touches the conversation's
// lastUpdated. A failed touch leaves a correct message with a stale
// sort key; that degraded state is logged and not retried.
func (s *Store) append(ctx context.Context, ownerID, chatID string, message map[string]any) error {
	msgPath := messagesPath(ownerID, chatID)
	msgID := s.store.Push(msgPath)

	if err := s.store.Write(ctx, remote.Join(msgPath, msgID), message); err != nil {
		s.metrics.IncrExternalError("store")
		return &domain.ErrExternalService{Service: "store", Err: err}
	}

	if err := s.store.Patch(ctx, chatPath(ownerID, chatID), map[string]any{
		"lastUpdated": remote.ServerTimestamp(),
	}); err != nil {
		s.metrics.IncrExternalError("store")
		s.logger.Warn("conversation: message written but lastUpdated touch failed",
			zap.String("owner_id", ownerID),
			zap.String("chat_id", chatID),
			zap.String("message_id", msgID),
			zap.Error(err),
		)
	}
	return nil
}
