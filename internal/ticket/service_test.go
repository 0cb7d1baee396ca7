package ticket

import (
	"context"
	"errors"
	"testing"

	"github.com/buildbyprohor/studio-api/internal/domain"
	"github.com/buildbyprohor/studio-api/internal/infra/observability"
	"github.com/buildbyprohor/studio-api/internal/remote"

	"go.uber.org/zap"
)

// patchCountingStore counts status-changing patches.
type patchCountingStore struct {
	*remote.Memory
	patches int
}

func (p *patchCountingStore) Patch(ctx context.Context, path string, fields map[string]any) error {
	p.patches++
	return p.Memory.Patch(ctx, path, fields)
}

func newTestService() (*Service, *patchCountingStore) {
	store := &patchCountingStore{Memory: remote.NewMemory()}
	return NewService(store, observability.NewMetrics(), zap.NewNop()), store
}

func TestSubmit_SignedInUser(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	principal := &domain.Principal{UserID: "u1", Email: "ada@example.com"}
	id, err := s.Submit(ctx, principal, "Account/Login Problem", map[string]string{
		"email":       "other@example.com",
		"subject":     "Unable to login",
		"description": "Password reset loops forever.",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	tickets, _ := s.List(ctx)
	if len(tickets) != 1 {
		t.Fatalf("expected 1 ticket, got %d", len(tickets))
	}
	tk := tickets[0]
	if tk.ID != id || tk.UserID != "u1" {
		t.Errorf("unexpected ticket identity: %+v", tk)
	}
	if tk.UserEmail != "ada@example.com" {
		t.Errorf("session email should win over the form email, got %q", tk.UserEmail)
	}
	if tk.Status != domain.TicketOpen {
		t.Errorf("expected new ticket open, got %q", tk.Status)
	}
	if tk.CreatedAt == 0 {
		t.Error("expected server-assigned createdAt")
	}
}

func TestSubmit_GuestFallsBackToFormEmail(t *testing.T) {
	s, _ := newTestService()

	_, err := s.Submit(context.Background(), nil, "Others", map[string]string{
		"email":    "guest@example.com",
		"subject":  "Pricing",
		"question": "Do you build blogs?",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	tickets, _ := s.List(context.Background())
	if tickets[0].UserID != "guest" {
		t.Errorf("expected guest user id, got %q", tickets[0].UserID)
	}
	if tickets[0].UserEmail != "guest@example.com" {
		t.Errorf("expected form email, got %q", tickets[0].UserEmail)
	}
}

func TestSubmit_BanAppealWithoutEmailStoresPlaceholder(t *testing.T) {
	s, _ := newTestService()

	// The ban appeal topic has no email field at all.
	_, err := s.Submit(context.Background(), nil, "Account Ban Appeal", map[string]string{
		"emailOrId":    "u1",
		"appealReason": "I believe this was a mistake.",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	tickets, _ := s.List(context.Background())
	if tickets[0].UserEmail != "N/A" {
		t.Errorf("expected N/A placeholder, got %q", tickets[0].UserEmail)
	}
}

func TestSubmit_RejectsUnknownTopic(t *testing.T) {
	s, _ := newTestService()

	_, err := s.Submit(context.Background(), nil, "Nonsense", map[string]string{"email": "x"})
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSubmit_RejectsMissingRequiredField(t *testing.T) {
	s, _ := newTestService()

	_, err := s.Submit(context.Background(), nil, "Security Issue", map[string]string{
		"email":   "x@example.com",
		"subject": "Suspicious activity",
		// details missing
	})
	if err == nil {
		t.Fatal("expected validation error for missing field")
	}
}

func TestSetStatus_CloseThenReopen(t *testing.T) {
	s, store := newTestService()
	ctx := context.Background()

	id, err := s.Submit(ctx, nil, "Others", map[string]string{
		"email": "x@example.com", "subject": "q", "question": "?",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	patchesBefore := store.patches
	if err := s.SetStatus(ctx, id, domain.TicketClosed); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := s.SetStatus(ctx, id, domain.TicketOpen); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}

	tickets, _ := s.List(ctx)
	if tickets[0].Status != domain.TicketOpen {
		t.Errorf("expected final status open, got %q", tickets[0].Status)
	}
	if got := store.patches - patchesBefore; got != 2 {
		t.Errorf("expected exactly 2 status writes, got %d", got)
	}
}

func TestSetStatus_UnknownTicket(t *testing.T) {
	s, _ := newTestService()

	err := s.SetStatus(context.Background(), "missing", domain.TicketClosed)
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCountOpen(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	a, _ := s.Submit(ctx, nil, "Others", map[string]string{"email": "a@x.com", "subject": "s", "question": "q"})
	s.Submit(ctx, nil, "Others", map[string]string{"email": "b@x.com", "subject": "s", "question": "q"})
	s.SetStatus(ctx, a, domain.TicketClosed)

	n, err := s.CountOpen(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 open ticket, got %d", n)
	}
}
