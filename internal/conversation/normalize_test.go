package conversation

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/buildbyprohor/studio-api/internal/domain"
)

func TestNormalize_SortsByTimestampAscending(t *testing.T) {
	raw := json.RawMessage(`{
		"lastUpdated": 300,
		"messages": {
			"kC": {"sender":"user","type":"text","content":"third","timestamp":300},
			"kA": {"sender":"user","type":"text","content":"first","timestamp":100},
			"kB": {"sender":"admin","type":"text","content":"second","timestamp":200}
		}
	}`)

	conv := Normalize("u1", "c1", raw)
	if len(conv.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(conv.Messages))
	}
	for i := 1; i < len(conv.Messages); i++ {
		if conv.Messages[i-1].Timestamp > conv.Messages[i].Timestamp {
			t.Errorf("messages not sorted at index %d", i)
		}
	}
	if string(conv.Messages[0].Content) != `"first"` {
		t.Errorf("unexpected first message: %s", conv.Messages[0].Content)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	raw := json.RawMessage(`{
		"messages": {
			"a": {"sender":"user","type":"text","content":"x","timestamp":2},
			"b": {"sender":"user","type":"text","content":"y","timestamp":1}
		}
	}`)

	first := Normalize("u1", "c1", raw)
	second := Normalize("u1", "c1", raw)
	if !reflect.DeepEqual(first, second) {
		t.Error("normalization is not deterministic")
	}
}

func TestNormalize_TimestampTiesKeepKeyOrder(t *testing.T) {
	raw := json.RawMessage(`{
		"messages": {
			"k2": {"sender":"user","type":"text","content":"later key","timestamp":100},
			"k1": {"sender":"user","type":"text","content":"earlier key","timestamp":100}
		}
	}`)

	conv := Normalize("u1", "c1", raw)
	if conv.Messages[0].ID != "k1" || conv.Messages[1].ID != "k2" {
		t.Errorf("expected key order for equal timestamps, got %s then %s",
			conv.Messages[0].ID, conv.Messages[1].ID)
	}
}

func TestNormalize_AbsentTreeYieldsEmptySequence(t *testing.T) {
	for _, raw := range []json.RawMessage{nil, json.RawMessage(`{}`), json.RawMessage(`{"date":"2026-01-01"}`)} {
		conv := Normalize("u1", "c1", raw)
		if conv.Messages == nil {
			t.Error("messages must be an empty slice, never nil")
		}
		if len(conv.Messages) != 0 {
			t.Errorf("expected no messages, got %d", len(conv.Messages))
		}
	}
}

func TestNormalize_SkipsMalformedRecord(t *testing.T) {
	raw := json.RawMessage(`{
		"messages": {
			"good": {"sender":"user","type":"text","content":"hi","timestamp":1},
			"bad": "not an object"
		}
	}`)

	conv := Normalize("u1", "c1", raw)
	if len(conv.Messages) != 1 || conv.Messages[0].ID != "good" {
		t.Errorf("expected only the well-formed message, got %+v", conv.Messages)
	}
}

func TestNormalize_IntakeCompleteIsMonotonic(t *testing.T) {
	withoutForm := json.RawMessage(`{
		"messages": {"a": {"sender":"user","type":"text","content":"hi","timestamp":1}}
	}`)
	if Normalize("u1", "c1", withoutForm).IntakeComplete {
		t.Error("expected intakeComplete=false before a form submission")
	}

	withForm := json.RawMessage(`{
		"messages": {
			"a": {"sender":"user","type":"form_submission","content":{"brandBusinessName":"Acme"},"timestamp":1},
			"b": {"sender":"admin","type":"text","content":"thanks","timestamp":2}
		}
	}`)
	conv := Normalize("u1", "c1", withForm)
	if !conv.IntakeComplete {
		t.Error("expected intakeComplete=true once a form submission exists")
	}

	// Later snapshots of the same append-only thread keep the flag.
	later := json.RawMessage(`{
		"messages": {
			"a": {"sender":"user","type":"form_submission","content":{"brandBusinessName":"Acme"},"timestamp":1},
			"b": {"sender":"admin","type":"text","content":"thanks","timestamp":2},
			"c": {"sender":"user","type":"text","content":"hello","timestamp":3}
		}
	}`)
	if !Normalize("u1", "c1", later).IntakeComplete {
		t.Error("intakeComplete must not revert on later snapshots")
	}
}

func TestDisplayTitle_FromFirstIntake(t *testing.T) {
	raw := json.RawMessage(`{
		"messages": {
			"b": {"sender":"user","type":"form_submission","content":{"brandBusinessName":"Second"},"timestamp":2},
			"a": {"sender":"user","type":"form_submission","content":{"brandBusinessName":"Acme"},"timestamp":1}
		}
	}`)

	if got := DisplayTitle(Normalize("u1", "c1", raw)); got != "Acme" {
		t.Errorf("expected title from first intake, got %q", got)
	}
}

func TestDisplayTitle_FallbackWithoutIntake(t *testing.T) {
	raw := json.RawMessage(`{
		"messages": {"a": {"sender":"user","type":"text","content":"hi","timestamp":1}}
	}`)

	if got := DisplayTitle(Normalize("u1", "c1", raw)); got != FallbackTitle {
		t.Errorf("expected fallback title, got %q", got)
	}
}

func TestSortSummaries_MostRecentFirst(t *testing.T) {
	summaries := []domain.ConversationSummary{
		{ID: "a", LastUpdated: 100},
		{ID: "b", LastUpdated: 300},
		{ID: "c", LastUpdated: 200},
	}

	SortSummaries(summaries)

	got := []int64{summaries[0].LastUpdated, summaries[1].LastUpdated, summaries[2].LastUpdated}
	want := []int64{300, 200, 100}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected order %v, got %v", want, got)
	}
}

func TestSortSummaries_StableForEqualTimestamps(t *testing.T) {
	summaries := []domain.ConversationSummary{
		{ID: "first", LastUpdated: 100},
		{ID: "second", LastUpdated: 100},
	}

	SortSummaries(summaries)
	if summaries[0].ID != "first" {
		t.Error("stable sort must preserve incoming order for ties")
	}
}
