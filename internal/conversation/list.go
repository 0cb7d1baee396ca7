package conversation

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/buildbyprohor/studio-api/internal/domain"
	"github.com/buildbyprohor/studio-api/internal/infra/cache"
	"github.com/buildbyprohor/studio-api/internal/infra/observability"
	"github.com/buildbyprohor/studio-api/internal/remote"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const usersRoot = "Users"

// ListStore produces live, recency-ordered conversation lists for a
// single owner or, for administrators, across all owners.
type ListStore struct {
	store      remote.Store
	emailCache *cache.InMemory[map[string]string]
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewListStore creates a conversation list store. emailCache holds the
// admin view's owner-id→email lookup between rebuilds.
func NewListStore(store remote.Store, emailCache *cache.InMemory[map[string]string], metrics *observability.Metrics, logger *zap.Logger) *ListStore {
	return &ListStore{
		store:      store,
		emailCache: emailCache,
		metrics:    metrics,
		logger:     logger,
	}
}

// WatchOwner subscribes to one owner's conversations. Every emission
// maps the children into summaries sorted most-recent first.
func (l *ListStore) WatchOwner(ctx context.Context, ownerID string, onChange func([]domain.ConversationSummary), onError func(error)) (remote.Unsubscribe, error) {
	return l.store.Subscribe(ctx, remote.Join(chatRoot, ownerID), func(raw json.RawMessage) {
		l.metrics.IncrSubscribeEvent("conversation_list")
		onChange(l.ownerSummaries(ownerID, raw))
	}, func(err error) {
		l.metrics.IncrSubscribeError("conversation_list")
		l.logger.Error("conversation list: subscription error",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
		if onError != nil {
			onError(err)
		}
	})
}

// WatchAll subscribes to the whole conversation forest for the admin
// view. The owner-id→email lookup and the subscribe attach run
// concurrently; snapshots delivered before the lookup resolves fall
// back to the unknown-email placeholder and are re-emitted once it
// lands.
func (l *ListStore) WatchAll(ctx context.Context, onChange func([]domain.ConversationSummary), onError func(error)) (remote.Unsubscribe, error) {
	var (
		mu      sync.Mutex // guards emails / lastRaw
		emitMu  sync.Mutex // serializes onChange
		emails  = map[string]string{}
		lastRaw json.RawMessage
		haveRaw bool
		unsub   remote.Unsubscribe
	)

	// Every emission reads the freshest map, so whichever of the two
	// goroutines finishes last leaves resolved emails in place.
	emit := func(raw json.RawMessage) {
		emitMu.Lock()
		defer emitMu.Unlock()
		mu.Lock()
		m := emails
		mu.Unlock()
		onChange(l.allSummaries(raw, m))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := l.emailLookup(gctx)
		if err != nil {
			// Degraded view: summaries keep the placeholder email.
			l.logger.Error("conversation list: failed to resolve user emails", zap.Error(err))
			return nil
		}
		mu.Lock()
		emails = m
		raw, ok := lastRaw, haveRaw
		mu.Unlock()
		if ok {
			emit(raw)
		}
		return nil
	})
	g.Go(func() error {
		u, err := l.store.Subscribe(ctx, chatRoot, func(raw json.RawMessage) {
			l.metrics.IncrSubscribeEvent("conversation_forest")
			mu.Lock()
			lastRaw, haveRaw = raw, true
			mu.Unlock()
			emit(raw)
		}, func(err error) {
			l.metrics.IncrSubscribeError("conversation_forest")
			l.logger.Error("conversation list: forest subscription error", zap.Error(err))
			if onError != nil {
				onError(err)
			}
		})
		if err != nil {
			return err
		}
		unsub = u
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return unsub, nil
}

// Create starts a new conversation for ownerID and returns its id. The
// created date and time are captured at call time; lastUpdated is
// server-assigned.
func (l *ListStore) Create(ctx context.Context, ownerID string) (string, error) {
	now := time.Now()

	// Snapshot the owner's picture so the admin list can show it even
	// if the profile changes later. Best effort.
	var userPhoto string
	if raw, err := l.store.Read(ctx, remote.Join(usersRoot, ownerID, "picBase64")); err == nil && raw != nil {
		_ = json.Unmarshal(raw, &userPhoto)
	}

	ownerPath := remote.Join(chatRoot, ownerID)
	chatID := l.store.Push(ownerPath)

	record := map[string]any{
		"date":        now.Format("2006-01-02"),
		"time":        now.Format("15:04"),
		"lastUpdated": remote.ServerTimestamp(),
		"userPhoto":   userPhoto,
	}
	if err := l.store.Write(ctx, remote.Join(ownerPath, chatID), record); err != nil {
		l.metrics.IncrExternalError("store")
		return "", &domain.ErrExternalService{Service: "store", Err: err}
	}

	l.logger.Info("conversation created",
		zap.String("owner_id", ownerID),
		zap.String("chat_id", chatID),
	)
	return chatID, nil
}

// CountAll returns the total number of conversations across owners.
func (l *ListStore) CountAll(ctx context.Context) (int, error) {
	raw, err := l.store.Read(ctx, chatRoot)
	if err != nil {
		return 0, &domain.ErrExternalService{Service: "store", Err: err}
	}
	var forest map[string]map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &forest); err != nil {
			return 0, nil
		}
	}
	n := 0
	for _, chats := range forest {
		n += len(chats)
	}
	return n, nil
}

func (l *ListStore) ownerSummaries(ownerID string, raw json.RawMessage) []domain.ConversationSummary {
	summaries := []domain.ConversationSummary{}
	var chats map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &chats); err != nil {
			return summaries
		}
	}

	ids := sortedKeys(chats)
	for _, id := range ids {
		summaries = append(summaries, Summarize(Normalize(ownerID, id, chats[id])))
	}
	SortSummaries(summaries)
	return summaries
}

func (l *ListStore) allSummaries(raw json.RawMessage, emails map[string]string) []domain.ConversationSummary {
	summaries := []domain.ConversationSummary{}
	var forest map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &forest); err != nil {
			return summaries
		}
	}

	for _, ownerID := range sortedKeys(forest) {
		var chats map[string]json.RawMessage
		if err := json.Unmarshal(forest[ownerID], &chats); err != nil {
			continue
		}
		email, ok := emails[ownerID]
		if !ok || email == "" {
			email = UnknownEmail
		}
		for _, id := range sortedKeys(chats) {
			s := Summarize(Normalize(ownerID, id, chats[id]))
			s.OwnerEmail = email
			summaries = append(summaries, s)
		}
	}
	SortSummaries(summaries)
	return summaries
}

// emailLookup builds the owner-id→email map from a one-time read of the
// user directory, cached between admin list attaches.
func (l *ListStore) emailLookup(ctx context.Context) (map[string]string, error) {
	const cacheKey = "user_emails"
	if cached, ok := l.emailCache.Get(cacheKey); ok {
		l.metrics.IncrCacheHit("user_emails")
		return cached, nil
	}
	l.metrics.IncrCacheMiss("user_emails")

	raw, err := l.store.Read(ctx, usersRoot)
	if err != nil {
		return nil, err
	}

	lookup := map[string]string{}
	var users map[string]struct {
		Email string `json:"email"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &users); err != nil {
			return lookup, nil
		}
	}
	for uid, u := range users {
		lookup[uid] = u.Email
	}

	l.emailCache.Set(cacheKey, lookup)
	return lookup, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Store-generated keys sort lexicographically in creation order.
	sort.Strings(keys)
	return keys
}
