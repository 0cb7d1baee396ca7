package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/buildbyprohor/studio-api/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("firebase")

// Firebase is a Store backed by the Firebase Realtime Database REST
// API. One-shot operations go through the shared HTTP client with the
// circuit breaker and retry policy; subscriptions hold a long-lived SSE
// stream on a client without a timeout.
type Firebase struct {
	httpClient   *http.Client
	streamClient *http.Client
	baseURL      string
	authToken    string
	cb           *gobreaker.CircuitBreaker
	cfg          resilience.Config
	bulkhead     *resilience.Bulkhead
	logger       *zap.Logger
	pushIDs      pushIDGenerator
}

// NewFirebase creates a Firebase-backed store.
func NewFirebase(httpClient *http.Client, baseURL, authToken string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Firebase {
	return &Firebase{
		httpClient:   httpClient,
		streamClient: &http.Client{}, // streams must outlive any request timeout
		baseURL:      strings.TrimRight(baseURL, "/"),
		authToken:    authToken,
		cb:           cb,
		cfg:          cfg,
		bulkhead:     resilience.NewBulkhead(cfg.MaxConcurrency),
		logger:       logger,
	}
}

func (f *Firebase) url(path string) string {
	u := fmt.Sprintf("%s/%s.json", f.baseURL, strings.Trim(path, "/"))
	if f.authToken != "" {
		u += "?auth=" + f.authToken
	}
	return u
}

// doRequest executes a single REST call against the database.
func (f *Firebase) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if err := f.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer f.bulkhead.Release()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, f.url(path), reader)
	if err != nil {
		f.logger.Error("firebase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.logger.Error("firebase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		f.logger.Error("firebase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Warn("firebase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return nil, fmt.Errorf("firebase returned status %d: %s", resp.StatusCode, string(respBody))
	}

	f.logger.Debug("firebase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return respBody, nil
}

// Read fetches the subtree at path. A stored null becomes a nil slice.
func (f *Firebase) Read(ctx context.Context, path string) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "Firebase.Read")
	defer span.End()
	span.SetAttributes(attribute.String("db.path", path))

	var result json.RawMessage
	_, err := f.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, f.cfg, func() error {
			body, err := f.doRequest(ctx, http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			if isJSONNull(body) {
				result = nil
			} else {
				result = body
			}
			return nil
		})
	})
	return result, err
}

// Write replaces the subtree at path. A nil value deletes it.
func (f *Firebase) Write(ctx context.Context, path string, value any) error {
	ctx, span := tracer.Start(ctx, "Firebase.Write")
	defer span.End()
	span.SetAttributes(attribute.String("db.path", path))

	if value == nil {
		return f.Delete(ctx, path)
	}
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}

	_, err = f.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, f.cfg, func() error {
			_, err := f.doRequest(ctx, http.MethodPut, path, body)
			return err
		})
	})
	return err
}

// Patch updates the named children at path, leaving siblings intact.
func (f *Firebase) Patch(ctx context.Context, path string, fields map[string]any) error {
	ctx, span := tracer.Start(ctx, "Firebase.Patch")
	defer span.End()
	span.SetAttributes(attribute.String("db.path", path))

	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	_, err = f.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, f.cfg, func() error {
			_, err := f.doRequest(ctx, http.MethodPatch, path, body)
			return err
		})
	})
	return err
}

// Delete removes the subtree at path.
func (f *Firebase) Delete(ctx context.Context, path string) error {
	_, err := f.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, f.cfg, func() error {
			_, err := f.doRequest(ctx, http.MethodDelete, path, nil)
			return err
		})
	})
	return err
}

// Push returns a fresh child key for path. Keys are generated locally,
// matching the database's own push-key format, so no round trip is
// needed before writing.
func (f *Firebase) Push(string) string {
	return f.pushIDs.next(time.Now())
}

// streamEvent is the payload of a put or patch SSE frame.
type streamEvent struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// Subscribe opens an SSE stream for the subtree at path and keeps a
// local materialization of it. Every put or patch frame updates the
// local tree and delivers a full snapshot to onChange. The stream
// reconnects with backoff until unsubscribed.
func (f *Firebase) Subscribe(ctx context.Context, path string, onChange func(json.RawMessage), onError func(error)) (Unsubscribe, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	go f.streamLoop(streamCtx, path, onChange, onError)

	var once sync.Once
	return func() {
		once.Do(cancel)
	}, nil
}

func (f *Firebase) streamLoop(ctx context.Context, path string, onChange func(json.RawMessage), onError func(error)) {
	backoff := f.cfg.InitialBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	const maxBackoff = 30 * time.Second

	for {
		err := f.streamOnce(ctx, path, onChange)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			f.logger.Warn("firebase: stream interrupted",
				zap.String("path", path),
				zap.Error(err),
			)
			if onError != nil {
				onError(err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// streamOnce holds one SSE connection open, applying frames to a local
// tree until the stream ends.
func (f *Firebase) streamOnce(ctx context.Context, path string, onChange func(json.RawMessage)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url(path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := f.streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("firebase stream returned status %d: %s", resp.StatusCode, string(body))
	}

	f.logger.Debug("firebase: stream connected", zap.String("path", path))

	var tree any
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var eventName, eventData string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := f.applyFrame(eventName, eventData, &tree, onChange); err != nil {
				return err
			}
			eventName, eventData = "", ""
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			eventData = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("firebase stream closed")
}

func (f *Firebase) applyFrame(event, data string, tree *any, onChange func(json.RawMessage)) error {
	switch event {
	case "put", "patch":
		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("decode stream event: %w", err)
		}
		var value any
		if len(ev.Data) > 0 && !isJSONNull(ev.Data) {
			if err := json.Unmarshal(ev.Data, &value); err != nil {
				return fmt.Errorf("decode stream data: %w", err)
			}
		}
		if event == "put" {
			*tree = applyPut(*tree, splitPath(ev.Path), value)
		} else {
			*tree = applyPatch(*tree, splitPath(ev.Path), value)
		}
		raw, err := json.Marshal(*tree)
		if err != nil {
			return err
		}
		if *tree == nil {
			raw = nil
		}
		onChange(raw)
		return nil
	case "keep-alive", "":
		return nil
	case "cancel":
		return fmt.Errorf("firebase stream cancelled")
	case "auth_revoked":
		return fmt.Errorf("firebase stream credential expired")
	default:
		f.logger.Debug("firebase: ignoring stream event", zap.String("event", event))
		return nil
	}
}

// applyPut replaces the subtree at segs within tree.
func applyPut(tree any, segs []string, value any) any {
	if len(segs) == 0 {
		return value
	}
	obj, ok := tree.(map[string]any)
	if !ok {
		if value == nil {
			return tree
		}
		obj = make(map[string]any)
	}
	child := applyPut(obj[segs[0]], segs[1:], value)
	if child == nil {
		delete(obj, segs[0])
	} else {
		obj[segs[0]] = child
	}
	if len(obj) == 0 {
		return nil
	}
	return obj
}

// applyPatch merges the children of value into the subtree at segs.
func applyPatch(tree any, segs []string, value any) any {
	fields, ok := value.(map[string]any)
	if !ok {
		return applyPut(tree, segs, value)
	}
	for k, v := range fields {
		tree = applyPut(tree, append(append([]string{}, segs...), k), v)
	}
	return tree
}

func isJSONNull(b []byte) bool {
	return len(bytes.TrimSpace(b)) == 0 || bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}
