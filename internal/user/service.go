// Package user manages the Users directory: profile setup, owner and
// administrator edits, and the live directory view.
package user

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/buildbyprohor/studio-api/internal/domain"
	"github.com/buildbyprohor/studio-api/internal/infra/observability"
	"github.com/buildbyprohor/studio-api/internal/remote"

	"go.uber.org/zap"
)

const usersRoot = "Users"

// Record is a directory row: a profile plus its owner's id.
type Record struct {
	UID string `json:"uid"`
	domain.UserProfile
}

// OwnerUpdate carries the fields a user may edit on their own profile.
// Date of birth and country are fixed at setup.
type OwnerUpdate struct {
	Name    string `json:"name"`
	Bio     string `json:"bio"`
	Number  string `json:"number"`
	Address string `json:"address"`
}

// Service manages user profiles.
type Service struct {
	store    remote.Store
	cooldown time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a user service. cooldown throttles owner edits;
// zero disables the throttle.
func NewService(store remote.Store, cooldown time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		cooldown: cooldown,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Get reads one profile.
func (s *Service) Get(ctx context.Context, uid string) (*domain.UserProfile, error) {
	raw, err := s.store.Read(ctx, remote.Join(usersRoot, uid))
	if err != nil {
		s.metrics.IncrExternalError("store")
		return nil, &domain.ErrExternalService{Service: "store", Err: err}
	}
	if raw == nil {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: uid}
	}

	var profile domain.UserProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: uid}
	}
	return &profile, nil
}

// Setup creates the profile record at first sign-in. All identity
// fields are required; lastChange starts at zero so the first edit is
// allowed immediately, and the account starts active.
func (s *Service) Setup(ctx context.Context, uid string, profile *domain.UserProfile) error {
	required := map[string]string{
		"name":        profile.Name,
		"bio":         profile.Bio,
		"number":      profile.Number,
		"dateOfBirth": profile.DateOfBirth,
		"address":     profile.Address,
		"country":     profile.Country,
	}
	for field, v := range required {
		if v == "" {
			return &domain.ErrValidation{Field: field, Message: "is required"}
		}
	}

	existing, err := s.store.Read(ctx, remote.Join(usersRoot, uid))
	if err != nil {
		s.metrics.IncrExternalError("store")
		return &domain.ErrExternalService{Service: "store", Err: err}
	}
	if existing != nil {
		return &domain.ErrConflict{Message: "profile already exists"}
	}

	profile.LastChange = 0
	profile.Status = json.RawMessage(`"active"`)
	profile.CreatedAt = s.now().Format(time.RFC3339)
	if profile.DeviceInfo == nil {
		profile.DeviceInfo = &domain.DeviceInfo{OS: "Unknown", Browser: "Unknown", UserAgent: "Unknown"}
	}

	if err := s.store.Write(ctx, remote.Join(usersRoot, uid), profile); err != nil {
		s.metrics.IncrExternalError("store")
		return &domain.ErrExternalService{Service: "store", Err: err}
	}
	s.logger.Info("profile created", zap.String("user_id", uid))
	return nil
}

// UpdateOwn applies an owner's edit to the editable subset of their
// profile, subject to the edit cooldown.
func (s *Service) UpdateOwn(ctx context.Context, uid string, update *OwnerUpdate) error {
	profile, err := s.Get(ctx, uid)
	if err != nil {
		return err
	}

	if s.cooldown > 0 {
		elapsed := s.now().Sub(time.UnixMilli(profile.LastChange))
		if elapsed < s.cooldown {
			return &domain.ErrEditCooldown{Remaining: (s.cooldown - elapsed).Round(time.Second).String()}
		}
	}

	fields := map[string]any{
		"name":       update.Name,
		"bio":        update.Bio,
		"number":     update.Number,
		"address":    update.Address,
		"lastChange": s.now().UnixMilli(),
	}
	if err := s.store.Patch(ctx, remote.Join(usersRoot, uid), fields); err != nil {
		s.metrics.IncrExternalError("store")
		return &domain.ErrExternalService{Service: "store", Err: err}
	}
	return nil
}

// SetPicture replaces the stored profile picture. The value is the
// encoded data URL produced by the image tool; the edit does not count
// against the cooldown.
func (s *Service) SetPicture(ctx context.Context, uid, dataURL string) error {
	if _, err := s.Get(ctx, uid); err != nil {
		return err
	}
	fields := map[string]any{"picBase64": dataURL}
	if err := s.store.Patch(ctx, remote.Join(usersRoot, uid), fields); err != nil {
		s.metrics.IncrExternalError("store")
		return &domain.ErrExternalService{Service: "store", Err: err}
	}
	return nil
}

// AdminUpdate applies an administrator's edit. Any profile field may
// change; a string status is coerced to the stored boolean encoding,
// where anything other than "true" or "active" bans the account.
func (s *Service) AdminUpdate(ctx context.Context, uid string, updates map[string]any) error {
	if _, err := s.Get(ctx, uid); err != nil {
		return err
	}

	delete(updates, "uid")
	if v, ok := updates["status"].(string); ok {
		updates["status"] = v == "true" || v == "active"
	}

	if err := s.store.Patch(ctx, remote.Join(usersRoot, uid), updates); err != nil {
		s.metrics.IncrExternalError("store")
		return &domain.ErrExternalService{Service: "store", Err: err}
	}
	s.logger.Info("profile updated by admin", zap.String("user_id", uid))
	return nil
}

// List reads the whole directory, sorted by uid.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	raw, err := s.store.Read(ctx, usersRoot)
	if err != nil {
		s.metrics.IncrExternalError("store")
		return nil, &domain.ErrExternalService{Service: "store", Err: err}
	}
	return normalizeDirectory(raw), nil
}

// WatchDirectory subscribes to the directory for the admin view.
func (s *Service) WatchDirectory(ctx context.Context, onChange func([]Record), onError func(error)) (remote.Unsubscribe, error) {
	return s.store.Subscribe(ctx, usersRoot, func(raw json.RawMessage) {
		s.metrics.IncrSubscribeEvent("users")
		onChange(normalizeDirectory(raw))
	}, func(err error) {
		s.metrics.IncrSubscribeError("users")
		s.logger.Error("user: directory subscription error", zap.Error(err))
		if onError != nil {
			onError(err)
		}
	})
}

// Count returns the number of user records.
func (s *Service) Count(ctx context.Context) (int, error) {
	records, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func normalizeDirectory(raw json.RawMessage) []Record {
	records := []Record{}
	var users map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &users); err != nil {
			return records
		}
	}

	uids := make([]string, 0, len(users))
	for uid := range users {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	for _, uid := range uids {
		var profile domain.UserProfile
		if err := json.Unmarshal(users[uid], &profile); err != nil {
			continue
		}
		records = append(records, Record{UID: uid, UserProfile: profile})
	}
	return records
}
