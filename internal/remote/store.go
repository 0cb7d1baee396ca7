// Package remote abstracts the realtime JSON tree the application state
// lives in. The production implementation talks to Firebase Realtime
// Database over REST and SSE; an in-process implementation backs local
// development and tests.
package remote

import (
	"context"
	"encoding/json"
	"strings"
)

// Unsubscribe detaches a listener registered with Subscribe. Calling it
// more than once is safe.
type Unsubscribe func()

// Store is a path-addressed JSON tree with live subscriptions.
//
// Paths are slash-separated, e.g. "Build_Chat/uid123/chat456". Read
// returns nil when nothing exists at the path. Subscribe delivers the
// current snapshot immediately and then again after every change under
// the path, until unsubscribed; onError reports stream faults without
// tearing the subscription down.
type Store interface {
	Read(ctx context.Context, path string) (json.RawMessage, error)
	Write(ctx context.Context, path string, value any) error
	Patch(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	Push(path string) string
	Subscribe(ctx context.Context, path string, onChange func(json.RawMessage), onError func(error)) (Unsubscribe, error)
}

// ServerTimestamp returns the sentinel value the database replaces with
// its own clock at write time. Stored timestamps are resolved this way
// so ordering never depends on client clocks.
func ServerTimestamp() map[string]string {
	return map[string]string{".sv": "timestamp"}
}

// isServerTimestamp reports whether a decoded JSON value is the
// server-timestamp sentinel.
func isServerTimestamp(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	sv, ok := m[".sv"]
	return ok && sv == "timestamp"
}

// Join builds a slash path from segments, dropping empties.
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s = strings.Trim(s, "/"); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}
