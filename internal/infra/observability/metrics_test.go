package observability

import "testing"

func TestSessionSnapshotCountsTransitions(t *testing.T) {
	m := NewMetrics()

	m.IncrSessionTransition("sign_in")
	m.IncrSessionTransition("sign_in")
	m.IncrSessionTransition("sign_out")
	m.IncrSessionTransition("ban_detected")
	m.IncrCacheHit("user_emails")
	m.IncrCacheMiss("user_emails")
	m.IncrCacheMiss("user_emails")

	snap := m.GetSessionSnapshot()
	if snap.SignIns != 2 {
		t.Errorf("expected 2 sign-ins, got %v", snap.SignIns)
	}
	if snap.SignOuts != 1 {
		t.Errorf("expected 1 sign-out, got %v", snap.SignOuts)
	}
	if snap.BansDetected != 1 {
		t.Errorf("expected 1 ban detected, got %v", snap.BansDetected)
	}
	if snap.BansAcknowledged != 0 {
		t.Errorf("expected 0 bans acknowledged, got %v", snap.BansAcknowledged)
	}
	if snap.EmailCacheHits != 1 || snap.EmailCacheMisses != 2 {
		t.Errorf("unexpected cache counts: %+v", snap)
	}
}

func TestSnapshotIsolatedPerRegistry(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.IncrSessionTransition("sign_in")

	if got := b.GetSessionSnapshot().SignIns; got != 0 {
		t.Errorf("registries should be independent, got %v", got)
	}
}
