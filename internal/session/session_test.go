package session

import (
	"context"
	"testing"
	"time"

	"github.com/buildbyprohor/studio-api/internal/domain"
	"github.com/buildbyprohor/studio-api/internal/identity"
	"github.com/buildbyprohor/studio-api/internal/infra/observability"
	"github.com/buildbyprohor/studio-api/internal/remote"
	"github.com/buildbyprohor/studio-api/internal/session/banmark"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func newTestManager(t *testing.T) (*Manager, *remote.Memory, *identity.Hub) {
	t.Helper()

	store := remote.NewMemory()
	hub := identity.NewHub(testSecret, zap.NewNop())
	marks, err := banmark.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open ban marker store: %v", err)
	}
	t.Cleanup(func() { marks.Close() })

	m := NewManager(store, hub, marks, observability.NewMetrics(), zap.NewNop())
	m.Start(context.Background())
	t.Cleanup(m.Stop)
	return m, store, hub
}

func signInAs(t *testing.T, hub *identity.Hub, uid string) {
	t.Helper()

	claims := identity.IDClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	if _, err := hub.SignIn(tok); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
}

func TestManager_AdminFlagRequiresLiteralTrue(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  bool
	}{
		{"boolean true", true, true},
		{"boolean false", false, false},
		{"string true", "true", false},
		{"number one", 1, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, store, hub := newTestManager(t)
			ctx := context.Background()

			if err := store.Write(ctx, "Administrators/Profile/u1/stutus", tc.value); err != nil {
				t.Fatalf("write failed: %v", err)
			}
			signInAs(t, hub, "u1")

			if got := m.State().IsAdmin; got != tc.want {
				t.Errorf("expected isAdmin=%v for %v, got %v", tc.want, tc.value, got)
			}
		})
	}
}

func TestManager_AdminFlagAbsentIsFalse(t *testing.T) {
	m, _, hub := newTestManager(t)
	signInAs(t, hub, "u1")

	st := m.State()
	if st.IsAdmin {
		t.Error("expected isAdmin=false for absent flag record")
	}
	if st.Resolving {
		t.Error("expected resolving cleared after both flags delivered")
	}
}

func TestManager_BannedRequiresLiteralFalse(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  bool
	}{
		{"boolean false", false, true},
		{"boolean true", true, false},
		{"string false", "false", false},
		{"string active", "active", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, store, hub := newTestManager(t)
			ctx := context.Background()

			if err := store.Write(ctx, "Users/u1/status", tc.value); err != nil {
				t.Fatalf("write failed: %v", err)
			}
			signInAs(t, hub, "u1")

			st := m.State()
			if tc.want {
				// A banned sign-in forces sign-out; the marker remains.
				if st.User != nil {
					t.Error("expected forced sign-out for banned user")
				}
				if !st.BanMarked {
					t.Error("expected durable ban marker after ban")
				}
			} else if st.IsBanned {
				t.Errorf("expected isBanned=false for %v", tc.value)
			}
		})
	}
}

func TestManager_LiveBanForcesSignOutAndKeepsMarker(t *testing.T) {
	m, store, hub := newTestManager(t)
	ctx := context.Background()

	store.Write(ctx, "Users/u1/status", "active")
	signInAs(t, hub, "u1")
	if m.State().User == nil {
		t.Fatal("expected live session before ban")
	}

	// Admin flips the status to the banned encoding.
	store.Write(ctx, "Users/u1/status", false)

	st := m.State()
	if st.User != nil {
		t.Error("expected forced sign-out on live ban")
	}
	if !st.BanMarked {
		t.Error("expected ban marker to survive the forced sign-out")
	}
}

func TestManager_SignOutDoesNotClearMarker(t *testing.T) {
	m, store, hub := newTestManager(t)
	ctx := context.Background()

	store.Write(ctx, "Users/u1/status", false)
	signInAs(t, hub, "u1") // banned immediately, marker written

	hub.SignOut()
	if !m.State().BanMarked {
		t.Error("expected marker to persist across plain sign-out")
	}
}

func TestManager_AcknowledgeBanClearsMarker(t *testing.T) {
	m, store, hub := newTestManager(t)
	ctx := context.Background()

	store.Write(ctx, "Users/u1/status", false)
	signInAs(t, hub, "u1")

	if err := m.AcknowledgeBan(); err != nil {
		t.Fatalf("acknowledge failed: %v", err)
	}
	if m.State().BanMarked {
		t.Error("expected marker cleared after acknowledgment")
	}
}

func TestManager_UnbanWhileSignedInClearsMarker(t *testing.T) {
	m, store, hub := newTestManager(t)
	ctx := context.Background()

	store.Write(ctx, "Users/u1/status", false)
	signInAs(t, hub, "u1") // marked and signed out

	store.Write(ctx, "Users/u1/status", "active")
	signInAs(t, hub, "u1") // live un-ban check clears the marker

	st := m.State()
	if st.User == nil {
		t.Fatal("expected live session after un-ban")
	}
	if st.BanMarked || st.IsBanned {
		t.Errorf("expected clean state after un-ban, got %+v", st)
	}
}

func TestManager_FlagsDoNotLeakAcrossUsers(t *testing.T) {
	m, store, hub := newTestManager(t)
	ctx := context.Background()

	store.Write(ctx, "Administrators/Profile/u1/stutus", true)
	signInAs(t, hub, "u1")
	if !m.State().IsAdmin {
		t.Fatal("expected u1 to be admin")
	}

	signInAs(t, hub, "u2")
	if m.State().IsAdmin {
		t.Error("expected admin flag reset for new user")
	}

	// A late change to u1's flag must not affect u2's session.
	store.Write(ctx, "Administrators/Profile/u1/stutus", false)
	store.Write(ctx, "Administrators/Profile/u1/stutus", true)
	if m.State().IsAdmin {
		t.Error("stale subscription leaked across identity change")
	}
}

func TestManager_OnChangeReplaysState(t *testing.T) {
	m, _, hub := newTestManager(t)
	signInAs(t, hub, "u1")

	calls := 0
	unsub := m.OnChange(func(domain.SessionState) { calls++ })
	defer unsub()

	if calls != 1 {
		t.Errorf("expected immediate replay, got %d calls", calls)
	}
}
