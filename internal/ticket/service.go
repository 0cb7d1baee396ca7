// Package ticket implements support-ticket submission and triage.
package ticket

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/buildbyprohor/studio-api/internal/domain"
	"github.com/buildbyprohor/studio-api/internal/infra/observability"
	"github.com/buildbyprohor/studio-api/internal/remote"

	"go.uber.org/zap"
)

const ticketsRoot = "Kinbo_SupportCenter/tickets"

// guestUserID marks tickets submitted without a session.
const guestUserID = "guest"

// noEmail is stored when neither the session nor the form carries one.
const noEmail = "N/A"

// TopicFields maps each support topic to its required form fields.
var TopicFields = map[string][]string{
	"Account/Login Problem": {"email", "subject", "description"},
	"Account Ban Appeal":    {"emailOrId", "appealReason"},
	"Security Issue":        {"email", "subject", "details"},
	"Others":                {"email", "subject", "question"},
}

// Service submits and triages support tickets.
type Service struct {
	store   remote.Store
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewService creates a ticket service.
func NewService(store remote.Store, metrics *observability.Metrics, logger *zap.Logger) *Service {
	return &Service{store: store, metrics: metrics, logger: logger}
}

// Submit validates the topic and its required fields, then writes a new
// open ticket. A nil principal submits as guest.
func (s *Service) Submit(ctx context.Context, principal *domain.Principal, topic string, formData map[string]string) (string, error) {
	required, ok := TopicFields[topic]
	if !ok {
		return "", &domain.ErrValidation{Field: "topic", Message: "unknown support topic: " + topic}
	}
	for _, field := range required {
		if formData[field] == "" {
			return "", &domain.ErrValidation{Field: field, Message: "is required"}
		}
	}

	userID := guestUserID
	email := formData["email"]
	if principal != nil {
		userID = principal.UserID
		if principal.Email != "" {
			email = principal.Email
		}
	}
	if email == "" {
		email = noEmail
	}

	id := s.store.Push(ticketsRoot)
	record := map[string]any{
		"topic":     topic,
		"formData":  formData,
		"status":    domain.TicketOpen,
		"createdAt": remote.ServerTimestamp(),
		"userId":    userID,
		"userEmail": email,
	}
	if err := s.store.Write(ctx, remote.Join(ticketsRoot, id), record); err != nil {
		s.metrics.IncrExternalError("store")
		return "", &domain.ErrExternalService{Service: "store", Err: err}
	}

	s.logger.Info("ticket submitted",
		zap.String("ticket_id", id),
		zap.String("topic", topic),
		zap.String("user_id", userID),
	)
	return id, nil
}

// SetStatus moves a ticket between open and closed.
func (s *Service) SetStatus(ctx context.Context, id string, status domain.TicketStatus) error {
	if status != domain.TicketOpen && status != domain.TicketClosed {
		return &domain.ErrValidation{Field: "status", Message: "must be open or closed"}
	}

	raw, err := s.store.Read(ctx, remote.Join(ticketsRoot, id))
	if err != nil {
		s.metrics.IncrExternalError("store")
		return &domain.ErrExternalService{Service: "store", Err: err}
	}
	if raw == nil {
		return &domain.ErrNotFound{Resource: "ticket", ID: id}
	}

	if err := s.store.Patch(ctx, remote.Join(ticketsRoot, id), map[string]any{
		"status": status,
	}); err != nil {
		s.metrics.IncrExternalError("store")
		return &domain.ErrExternalService{Service: "store", Err: err}
	}
	return nil
}

// List reads all tickets, newest first.
func (s *Service) List(ctx context.Context) ([]domain.Ticket, error) {
	raw, err := s.store.Read(ctx, ticketsRoot)
	if err != nil {
		s.metrics.IncrExternalError("store")
		return nil, &domain.ErrExternalService{Service: "store", Err: err}
	}
	return normalizeTickets(raw), nil
}

// Watch subscribes to the ticket tree for the admin triage view.
func (s *Service) Watch(ctx context.Context, onChange func([]domain.Ticket), onError func(error)) (remote.Unsubscribe, error) {
	return s.store.Subscribe(ctx, ticketsRoot, func(raw json.RawMessage) {
		s.metrics.IncrSubscribeEvent("tickets")
		onChange(normalizeTickets(raw))
	}, func(err error) {
		s.metrics.IncrSubscribeError("tickets")
		s.logger.Error("ticket: subscription error", zap.Error(err))
		if onError != nil {
			onError(err)
		}
	})
}

// CountOpen returns the number of open tickets.
func (s *Service) CountOpen(ctx context.Context) (int, error) {
	tickets, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range tickets {
		if t.Status == domain.TicketOpen {
			n++
		}
	}
	return n, nil
}

// normalizeTickets flattens the keyed record into a slice sorted newest
// first, skipping unparseable entries.
func normalizeTickets(raw json.RawMessage) []domain.Ticket {
	tickets := []domain.Ticket{}
	var records map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &records); err != nil {
			return tickets
		}
	}

	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var rec struct {
			Topic     string              `json:"topic"`
			FormData  map[string]string   `json:"formData"`
			Status    domain.TicketStatus `json:"status"`
			CreatedAt int64               `json:"createdAt"`
			UserID    string              `json:"userId"`
			UserEmail string              `json:"userEmail"`
		}
		if err := json.Unmarshal(records[k], &rec); err != nil {
			continue
		}
		tickets = append(tickets, domain.Ticket{
			ID:        k,
			UserID:    rec.UserID,
			UserEmail: rec.UserEmail,
			Topic:     rec.Topic,
			FormData:  rec.FormData,
			Status:    rec.Status,
			CreatedAt: rec.CreatedAt,
		})
	}

	sort.SliceStable(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt > tickets[j].CreatedAt
	})
	return tickets
}
