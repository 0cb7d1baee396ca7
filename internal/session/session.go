// Package session composes the identity stream with the two per-user
// realtime flags (administrator, banned) into one observable session
// state. It owns the derived-subscription lifecycle: every identity
// transition disposes the previous user's listeners before any new ones
// are attached, so flags can never leak across users.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/buildbyprohor/studio-api/internal/domain"
	"github.com/buildbyprohor/studio-api/internal/identity"
	"github.com/buildbyprohor/studio-api/internal/infra/observability"
	"github.com/buildbyprohor/studio-api/internal/remote"
	"github.com/buildbyprohor/studio-api/internal/session/banmark"

	"go.uber.org/zap"
)

// adminFlagPath addresses the administrator flag record. The "stutus"
// segment is a long-standing typo in the stored schema; existing data
// depends on it.
func adminFlagPath(userID string) string {
	return remote.Join("Administrators/Profile", userID, "stutus")
}

func userStatusPath(userID string) string {
	return remote.Join("Users", userID, "status")
}

// isAdminFlag reports whether a raw flag snapshot grants administrator
// rights: the record must exist and hold the literal boolean true.
func isAdminFlag(raw json.RawMessage) bool {
	return string(raw) == "true"
}

// Manager tracks the process session state and fans transitions out to
// listeners. Construct one per process and share it.
type Manager struct {
	store    remote.Store
	identity *identity.Hub
	marks    *banmark.Store
	metrics  *observability.Metrics
	logger   *zap.Logger

	ctx context.Context

	mu            sync.Mutex
	state         domain.SessionState
	adminResolved bool
	banResolved   bool
	adminUnsub    remote.Unsubscribe
	banUnsub      remote.Unsubscribe
	stopIdentity  func()
	listeners     map[int]func(domain.SessionState)
	nextID        int
}

// NewManager creates a session manager. Call Start before use.
func NewManager(store remote.Store, hub *identity.Hub, marks *banmark.Store, metrics *observability.Metrics, logger *zap.Logger) *Manager {
	return &Manager{
		store:     store,
		identity:  hub,
		marks:     marks,
		metrics:   metrics,
		logger:    logger,
		listeners: make(map[int]func(domain.SessionState)),
	}
}

// Start attaches to the identity stream. The current identity is
// replayed immediately, so the state is populated when Start returns.
func (m *Manager) Start(ctx context.Context) {
	m.ctx = ctx
	m.stopIdentity = m.identity.OnChange(m.onIdentity)
}

// Stop detaches from the identity stream and disposes any derived
// subscriptions.
func (m *Manager) Stop() {
	if m.stopIdentity != nil {
		m.stopIdentity()
		m.stopIdentity = nil
	}

	m.mu.Lock()
	adminUnsub, banUnsub := m.adminUnsub, m.banUnsub
	m.adminUnsub, m.banUnsub = nil, nil
	m.mu.Unlock()

	if adminUnsub != nil {
		adminUnsub()
	}
	if banUnsub != nil {
		banUnsub()
	}
}

// State returns the current session state.
func (m *Manager) State() domain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnChange registers a listener for session transitions. The current
// state is replayed before OnChange returns.
func (m *Manager) OnChange(fn func(domain.SessionState)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	st := m.state
	m.mu.Unlock()

	fn(st)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// AcknowledgeBan clears the durable ban marker. This is the only path
// that clears it besides a live un-ban; plain sign-out never does.
func (m *Manager) AcknowledgeBan() error {
	m.mu.Lock()
	user := m.state.User
	m.mu.Unlock()

	var err error
	if user != nil {
		err = m.marks.Clear(user.UserID)
	} else {
		err = m.marks.ClearAll()
	}
	if err != nil {
		return err
	}

	m.metrics.IncrSessionTransition("ban_acknowledged")
	m.logger.Info("session: ban marker acknowledged")

	m.mu.Lock()
	m.state.BanMarked = false
	st := m.state
	m.mu.Unlock()
	m.notify(st)
	return nil
}

// onIdentity handles an identity transition: tear down the previous
// user's flag subscriptions, reset the state, then attach fresh
// subscriptions for the new user.
func (m *Manager) onIdentity(p *domain.Principal) {
	m.mu.Lock()
	adminUnsub, banUnsub := m.adminUnsub, m.banUnsub
	m.adminUnsub, m.banUnsub = nil, nil
	m.adminResolved, m.banResolved = false, false
	m.state = domain.SessionState{User: p, Resolving: p != nil}
	m.state.BanMarked = m.markerFor(p)
	st := m.state
	m.mu.Unlock()

	// Dispose before resubscribe: the old listeners must be gone before
	// any new ones attach.
	if adminUnsub != nil {
		adminUnsub()
	}
	if banUnsub != nil {
		banUnsub()
	}

	if p != nil {
		m.metrics.IncrSessionTransition("sign_in")
	} else {
		m.metrics.IncrSessionTransition("sign_out")
	}
	m.notify(st)

	if p == nil {
		return
	}
	uid := p.UserID

	au, err := m.store.Subscribe(m.ctx, adminFlagPath(uid), func(raw json.RawMessage) {
		m.onAdminSnapshot(uid, raw)
	}, func(err error) {
		m.onAdminError(uid, err)
	})
	if err != nil {
		m.onAdminError(uid, err)
	}

	bu, err := m.store.Subscribe(m.ctx, userStatusPath(uid), func(raw json.RawMessage) {
		m.onStatusSnapshot(uid, raw)
	}, func(err error) {
		m.onStatusError(uid, err)
	})
	if err != nil {
		m.onStatusError(uid, err)
	}

	m.mu.Lock()
	if m.state.User == nil || m.state.User.UserID != uid {
		// Identity changed while subscribing; these listeners are stale.
		m.mu.Unlock()
		if au != nil {
			au()
		}
		if bu != nil {
			bu()
		}
		return
	}
	m.adminUnsub, m.banUnsub = au, bu
	m.mu.Unlock()
}

func (m *Manager) onAdminSnapshot(uid string, raw json.RawMessage) {
	m.metrics.IncrSubscribeEvent("admin_flag")

	m.mu.Lock()
	if !m.currentLocked(uid) {
		m.mu.Unlock()
		return
	}
	m.state.IsAdmin = isAdminFlag(raw)
	m.adminResolved = true
	m.recomputeResolvingLocked()
	st := m.state
	m.mu.Unlock()
	m.notify(st)
}

func (m *Manager) onAdminError(uid string, err error) {
	m.metrics.IncrSubscribeError("admin_flag")
	m.logger.Error("session: admin flag subscription error", zap.String("user_id", uid), zap.Error(err))

	m.mu.Lock()
	if !m.currentLocked(uid) {
		m.mu.Unlock()
		return
	}
	m.state.IsAdmin = false // fail closed
	m.adminResolved = true
	m.recomputeResolvingLocked()
	st := m.state
	m.mu.Unlock()
	m.notify(st)
}

func (m *Manager) onStatusSnapshot(uid string, raw json.RawMessage) {
	m.metrics.IncrSubscribeEvent("user_status")
	banned := domain.IsBannedStatus(raw)

	m.mu.Lock()
	if !m.currentLocked(uid) {
		m.mu.Unlock()
		return
	}
	m.state.IsBanned = banned
	m.state.BanMarked = banned
	m.banResolved = true
	m.recomputeResolvingLocked()
	st := m.state
	m.mu.Unlock()

	if banned {
		m.logger.Warn("session: account banned, forcing sign-out", zap.String("user_id", uid))
		m.metrics.IncrSessionTransition("ban_detected")
		if err := m.marks.Mark(uid); err != nil {
			m.logger.Error("session: failed to persist ban marker", zap.Error(err))
		}
		m.notify(st)
		m.identity.SignOut()
		return
	}

	// Un-banned while signed in: the durable marker no longer applies.
	if err := m.marks.Clear(uid); err != nil {
		m.logger.Error("session: failed to clear ban marker", zap.Error(err))
	}
	m.notify(st)
}

func (m *Manager) onStatusError(uid string, err error) {
	m.metrics.IncrSubscribeError("user_status")
	m.logger.Error("session: user status subscription error", zap.String("user_id", uid), zap.Error(err))

	m.mu.Lock()
	if !m.currentLocked(uid) {
		m.mu.Unlock()
		return
	}
	m.state.IsBanned = false // fail closed, marker untouched
	m.banResolved = true
	m.recomputeResolvingLocked()
	st := m.state
	m.mu.Unlock()
	m.notify(st)
}

// currentLocked reports whether uid is still the signed-in user.
// Caller holds the lock.
func (m *Manager) currentLocked(uid string) bool {
	return m.state.User != nil && m.state.User.UserID == uid
}

func (m *Manager) recomputeResolvingLocked() {
	m.state.Resolving = !(m.adminResolved && m.banResolved)
}

func (m *Manager) markerFor(p *domain.Principal) bool {
	var marked bool
	var err error
	if p != nil {
		marked, err = m.marks.IsMarked(p.UserID)
	} else {
		marked, err = m.marks.Any()
	}
	if err != nil {
		m.logger.Error("session: failed to read ban marker", zap.Error(err))
		return false
	}
	return marked
}

func (m *Manager) notify(st domain.SessionState) {
	m.mu.Lock()
	fns := make([]func(domain.SessionState), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
