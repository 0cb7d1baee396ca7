package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buildbyprohor/studio-api/internal/infra/resilience"

	"go.uber.org/zap"
)

func testConfig() resilience.Config {
	return resilience.Config{
		MaxRetries:     1,
		InitialBackoff: 5 * time.Millisecond,
		MaxConcurrency: 4,
	}
}

func TestFirebase_ReadDecodesNullAsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users/u1.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte("null"))
	}))
	defer srv.Close()

	f := NewFirebase(srv.Client(), srv.URL, "", resilience.NewCircuitBreaker("test"), testConfig(), zap.NewNop())

	raw, err := f.Read(context.Background(), "Users/u1")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if raw != nil {
		t.Errorf("expected nil for null body, got %s", raw)
	}
}

func TestFirebase_WriteSendsPut(t *testing.T) {
	var gotMethod, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := NewFirebase(srv.Client(), srv.URL, "secret", resilience.NewCircuitBreaker("test"), testConfig(), zap.NewNop())

	if err := f.Write(context.Background(), "Users/u1", map[string]string{"name": "Ada"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("expected PUT, got %s", gotMethod)
	}
	if gotBody != `{"name":"Ada"}` {
		t.Errorf("unexpected body: %s", gotBody)
	}
}

func TestFirebase_AuthTokenAppended(t *testing.T) {
	f := NewFirebase(nil, "https://db.example.com/", "tok", nil, testConfig(), zap.NewNop())

	got := f.url("Users/u1")
	want := "https://db.example.com/Users/u1.json?auth=tok"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestApplyPut_RootAndNested(t *testing.T) {
	var tree any

	tree = applyPut(tree, nil, map[string]any{"a": "1"})
	tree = applyPut(tree, []string{"b", "c"}, "2")

	raw, _ := json.Marshal(tree)
	if string(raw) != `{"a":"1","b":{"c":"2"}}` {
		t.Errorf("unexpected tree: %s", raw)
	}
}

func TestApplyPut_NilDeletesAndPrunes(t *testing.T) {
	var tree any
	tree = applyPut(tree, []string{"a", "b"}, "1")
	tree = applyPut(tree, []string{"a", "b"}, nil)

	if tree != nil {
		raw, _ := json.Marshal(tree)
		t.Errorf("expected empty tree, got %s", raw)
	}
}

func TestApplyPatch_MergesChildren(t *testing.T) {
	var tree any
	tree = applyPut(tree, nil, map[string]any{"a": "1", "b": "2"})
	tree = applyPatch(tree, nil, map[string]any{"b": "3", "c": "4"})

	obj := tree.(map[string]any)
	if obj["a"] != "1" || obj["b"] != "3" || obj["c"] != "4" {
		t.Errorf("unexpected tree after patch: %v", obj)
	}
}

func TestFirebase_SubscribeAppliesStreamFrames(t *testing.T) {
	frames := "event: put\n" +
		`data: {"path":"/","data":{"m1":{"sender":"user"}}}` + "\n\n" +
		"event: keep-alive\ndata: null\n\n" +
		"event: patch\n" +
		`data: {"path":"/","data":{"m2":{"sender":"admin"}}}` + "\n\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("expected event-stream accept header")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(frames))
	}))
	defer srv.Close()

	f := NewFirebase(srv.Client(), srv.URL, "", resilience.NewCircuitBreaker("test"), testConfig(), zap.NewNop())

	snapshots := make(chan string, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	unsub, err := f.Subscribe(ctx, "Build_Chat/u1/c1", func(raw json.RawMessage) {
		snapshots <- string(raw)
	}, nil)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer unsub()

	waitFor := func() string {
		select {
		case s := <-snapshots:
			return s
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for snapshot")
			return ""
		}
	}

	first := waitFor()
	if first != `{"m1":{"sender":"user"}}` {
		t.Errorf("unexpected first snapshot: %s", first)
	}
	second := waitFor()
	var tree map[string]any
	if err := json.Unmarshal([]byte(second), &tree); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(tree) != 2 {
		t.Errorf("expected both messages after patch, got %s", second)
	}
}
