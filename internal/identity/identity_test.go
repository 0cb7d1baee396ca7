package identity

import (
	"testing"
	"time"

	"github.com/buildbyprohor/studio-api/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims IDClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func TestHub_SignInValidToken(t *testing.T) {
	h := NewHub(testSecret, zap.NewNop())

	tok := signToken(t, testSecret, IDClaims{
		Email: "ada@example.com",
		Name:  "Ada",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	p, err := h.SignIn(tok)
	if err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if p.UserID != "u1" || p.Email != "ada@example.com" {
		t.Errorf("unexpected principal: %+v", p)
	}
	if h.Current() == nil {
		t.Error("expected current principal after sign-in")
	}
}

func TestHub_SignInRejectsWrongSecret(t *testing.T) {
	h := NewHub(testSecret, zap.NewNop())

	tok := signToken(t, "other-secret", IDClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	})

	if _, err := h.SignIn(tok); err == nil {
		t.Fatal("expected error for token signed with wrong secret")
	}
}

func TestHub_SignInRejectsExpiredToken(t *testing.T) {
	h := NewHub(testSecret, zap.NewNop())

	tok := signToken(t, testSecret, IDClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	if _, err := h.SignIn(tok); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestHub_SignInRejectsMissingSubject(t *testing.T) {
	h := NewHub(testSecret, zap.NewNop())

	tok := signToken(t, testSecret, IDClaims{Email: "x@example.com"})

	if _, err := h.SignIn(tok); err == nil {
		t.Fatal("expected error for token without subject")
	}
}

func TestHub_OnChangeReplaysCurrentState(t *testing.T) {
	h := NewHub(testSecret, zap.NewNop())
	h.SignInAnonymous()

	var replayed *domain.Principal
	calls := 0
	unsub := h.OnChange(func(p *domain.Principal) {
		replayed = p
		calls++
	})
	defer unsub()

	if calls != 1 {
		t.Fatalf("expected immediate replay, got %d calls", calls)
	}
	if replayed == nil || !replayed.Anonymous {
		t.Errorf("expected anonymous principal replayed, got %+v", replayed)
	}
}

func TestHub_SignOutNotifiesListeners(t *testing.T) {
	h := NewHub(testSecret, zap.NewNop())
	h.SignInAnonymous()

	var last *domain.Principal
	unsub := h.OnChange(func(p *domain.Principal) { last = p })
	defer unsub()

	h.SignOut()
	if last != nil {
		t.Errorf("expected nil principal after sign-out, got %+v", last)
	}
	if h.Current() != nil {
		t.Error("expected no current principal after sign-out")
	}
}

func TestHub_UnsubscribedListenerNotCalled(t *testing.T) {
	h := NewHub(testSecret, zap.NewNop())

	calls := 0
	unsub := h.OnChange(func(*domain.Principal) { calls++ })
	unsub()

	h.SignInAnonymous()
	if calls != 1 {
		t.Errorf("expected only the replay call, got %d", calls)
	}
}
