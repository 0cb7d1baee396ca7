package remote

import (
	"testing"
	"time"
)

func TestPushID_Format(t *testing.T) {
	var g pushIDGenerator
	id := g.next(time.Now())

	if len(id) != 20 {
		t.Fatalf("expected 20-char id, got %d chars: %q", len(id), id)
	}
	for _, r := range id {
		found := false
		for _, c := range pushChars {
			if r == c {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("unexpected character %q in push id", r)
		}
	}
}

func TestPushID_OrderedAcrossMillis(t *testing.T) {
	var g pushIDGenerator
	base := time.Now()

	a := g.next(base)
	b := g.next(base.Add(time.Millisecond))
	if !(a < b) {
		t.Errorf("expected %q < %q", a, b)
	}
}

func TestPushID_MonotonicWithinSameMilli(t *testing.T) {
	var g pushIDGenerator
	now := time.Now()

	prev := g.next(now)
	for i := 0; i < 100; i++ {
		id := g.next(now)
		if !(prev < id) {
			t.Fatalf("expected %q < %q at iteration %d", prev, id, i)
		}
		prev = id
	}
}

func TestPushID_TimestampPrefixMatchesMillis(t *testing.T) {
	var g pushIDGenerator
	now := time.Now()

	a := g.next(now)
	b := g.next(now)
	if a[:8] != b[:8] {
		t.Errorf("same millisecond should share the timestamp prefix: %q vs %q", a[:8], b[:8])
	}
}
