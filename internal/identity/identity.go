// Package identity verifies sign-in tokens and tracks the process-wide
// identity state. Listeners registered with OnChange receive the
// current principal immediately and again on every later transition.
package identity

import (
	"fmt"
	"sync"

	"github.com/buildbyprohor/studio-api/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IDClaims are the claims carried by an identity-provider ID token.
type IDClaims struct {
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Picture   string `json:"picture,omitempty"`
	Anonymous bool   `json:"anonymous,omitempty"`
	jwt.RegisteredClaims
}

// Hub holds the current principal and fans identity transitions out to
// listeners.
type Hub struct {
	secret []byte
	logger *zap.Logger

	mu        sync.Mutex
	current   *domain.Principal
	listeners map[int]func(*domain.Principal)
	nextID    int
}

// NewHub creates an identity hub verifying HS256 ID tokens with secret.
func NewHub(secret string, logger *zap.Logger) *Hub {
	return &Hub{
		secret:    []byte(secret),
		logger:    logger,
		listeners: make(map[int]func(*domain.Principal)),
	}
}

// VerifyToken parses and validates an ID token, returning the principal
// it asserts.
func (h *Hub) VerifyToken(tokenString string) (*domain.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &IDClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return h.secret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*IDClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "token missing subject"}
	}

	return &domain.Principal{
		UserID:      claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
		Anonymous:   claims.Anonymous,
	}, nil
}

// SignIn verifies the token and makes its principal current.
func (h *Hub) SignIn(tokenString string) (*domain.Principal, error) {
	p, err := h.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}
	h.logger.Info("identity: signed in",
		zap.String("user_id", p.UserID),
		zap.Bool("anonymous", p.Anonymous),
	)
	h.setCurrent(p)
	return p, nil
}

// SignInAnonymous creates a guest principal and makes it current.
func (h *Hub) SignInAnonymous() *domain.Principal {
	p := &domain.Principal{
		UserID:    "anon-" + uuid.NewString(),
		Anonymous: true,
	}
	h.logger.Info("identity: anonymous sign-in", zap.String("user_id", p.UserID))
	h.setCurrent(p)
	return p
}

// SignOut clears the current principal.
func (h *Hub) SignOut() {
	h.logger.Info("identity: signed out")
	h.setCurrent(nil)
}

// Current returns the current principal, nil when signed out.
func (h *Hub) Current() *domain.Principal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// OnChange registers a listener for identity transitions. The current
// state is replayed to the listener before OnChange returns.
func (h *Hub) OnChange(fn func(*domain.Principal)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	current := h.current
	h.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) setCurrent(p *domain.Principal) {
	h.mu.Lock()
	h.current = p
	fns := make([]func(*domain.Principal), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}
