package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store used for local development and tests.
// It keeps the whole tree as decoded JSON values and fans snapshots out
// to subscribers synchronously after every mutation.
type Memory struct {
	// Clock resolves server-timestamp sentinels. Tests may replace it.
	Clock func() time.Time

	mu      sync.Mutex
	root    map[string]any
	subs    map[int]*memorySub
	nextSub int
	pushIDs pushIDGenerator
}

type memorySub struct {
	path     string
	onChange func(json.RawMessage)
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		Clock: time.Now,
		root:  make(map[string]any),
		subs:  make(map[int]*memorySub),
	}
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Read returns the subtree at path, or nil when nothing exists there.
func (m *Memory) Read(_ context.Context, path string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.valueAt(path)
	if !ok {
		return nil, nil
	}
	return json.Marshal(v)
}

// Write replaces the subtree at path. Writing nil deletes it.
func (m *Memory) Write(ctx context.Context, path string, value any) error {
	decoded, err := m.decode(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.setAt(path, decoded)
	snapshots := m.snapshotsFor(path)
	m.mu.Unlock()

	m.deliver(snapshots)
	return nil
}

// Patch updates the named children at path, leaving siblings intact.
func (m *Memory) Patch(ctx context.Context, path string, fields map[string]any) error {
	decoded := make(map[string]any, len(fields))
	for k, v := range fields {
		dv, err := m.decode(v)
		if err != nil {
			return err
		}
		decoded[k] = dv
	}

	m.mu.Lock()
	for k, v := range decoded {
		m.setAt(Join(path, k), v)
	}
	snapshots := m.snapshotsFor(path)
	m.mu.Unlock()

	m.deliver(snapshots)
	return nil
}

// Delete removes the subtree at path.
func (m *Memory) Delete(ctx context.Context, path string) error {
	return m.Write(ctx, path, nil)
}

// Push returns a fresh child key for path.
func (m *Memory) Push(string) string {
	return m.pushIDs.next(m.Clock())
}

// Subscribe registers a listener for the subtree at path. The current
// snapshot is delivered before Subscribe returns.
func (m *Memory) Subscribe(_ context.Context, path string, onChange func(json.RawMessage), _ func(error)) (Unsubscribe, error) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = &memorySub{path: path, onChange: onChange}
	v, ok := m.valueAt(path)
	m.mu.Unlock()

	if ok {
		raw, _ := json.Marshal(v)
		onChange(raw)
	} else {
		onChange(nil)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}, nil
}

// decode canonicalizes a value through JSON and resolves
// server-timestamp sentinels with the store clock.
func (m *Memory) decode(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return m.resolveSentinels(decoded), nil
}

func (m *Memory) resolveSentinels(v any) any {
	if isServerTimestamp(v) {
		return float64(m.Clock().UnixMilli())
	}
	if obj, ok := v.(map[string]any); ok {
		for k, child := range obj {
			obj[k] = m.resolveSentinels(child)
		}
	}
	return v
}

func (m *Memory) valueAt(path string) (any, bool) {
	var cur any = m.root
	for _, seg := range splitPath(path) {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setAt writes value at path, creating intermediate objects and pruning
// the branch when the write empties it. Caller holds the lock.
func (m *Memory) setAt(path string, value any) {
	segs := splitPath(path)
	if len(segs) == 0 {
		if obj, ok := value.(map[string]any); ok {
			m.root = obj
		} else {
			m.root = make(map[string]any)
		}
		return
	}
	setIn(m.root, segs, value)
}

func setIn(obj map[string]any, segs []string, value any) {
	key := segs[0]
	if len(segs) == 1 {
		if value == nil {
			delete(obj, key)
		} else {
			obj[key] = value
		}
		return
	}

	child, ok := obj[key].(map[string]any)
	if !ok {
		if value == nil {
			return
		}
		child = make(map[string]any)
		obj[key] = child
	}
	setIn(child, segs[1:], value)
	if len(child) == 0 {
		delete(obj, key)
	}
}

type pendingSnapshot struct {
	onChange func(json.RawMessage)
	data     json.RawMessage
}

// snapshotsFor collects the post-mutation snapshots owed to subscribers
// whose path overlaps the changed one. Caller holds the lock.
func (m *Memory) snapshotsFor(changed string) []pendingSnapshot {
	var out []pendingSnapshot
	for _, sub := range m.subs {
		if !pathsOverlap(sub.path, changed) {
			continue
		}
		var raw json.RawMessage
		if v, ok := m.valueAt(sub.path); ok {
			raw, _ = json.Marshal(v)
		}
		out = append(out, pendingSnapshot{onChange: sub.onChange, data: raw})
	}
	return out
}

func (m *Memory) deliver(snapshots []pendingSnapshot) {
	for _, s := range snapshots {
		s.onChange(s.data)
	}
}

// pathsOverlap reports whether one path is an ancestor of (or equal to)
// the other.
func pathsOverlap(a, b string) bool {
	a, b = strings.Trim(a, "/"), strings.Trim(b, "/")
	if a == "" || b == "" {
		return true
	}
	return a == b ||
		strings.HasPrefix(b, a+"/") ||
		strings.HasPrefix(a, b+"/")
}
