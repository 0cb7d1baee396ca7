package banmark

import "testing"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_MarkAndIsMarked(t *testing.T) {
	s := openTestStore(t)

	marked, err := s.IsMarked("u1")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if marked {
		t.Fatal("expected no marker before Mark")
	}

	if err := s.Mark("u1"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	marked, _ = s.IsMarked("u1")
	if !marked {
		t.Error("expected marker after Mark")
	}
}

func TestStore_MarkIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	if err := s.Mark("u1"); err != nil {
		t.Fatalf("first mark failed: %v", err)
	}
	if err := s.Mark("u1"); err != nil {
		t.Fatalf("second mark failed: %v", err)
	}
}

func TestStore_Clear(t *testing.T) {
	s := openTestStore(t)

	s.Mark("u1")
	if err := s.Clear("u1"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	marked, _ := s.IsMarked("u1")
	if marked {
		t.Error("expected no marker after Clear")
	}

	// clearing again is not an error
	if err := s.Clear("u1"); err != nil {
		t.Errorf("clear of absent marker failed: %v", err)
	}
}

func TestStore_Any(t *testing.T) {
	s := openTestStore(t)

	any, _ := s.Any()
	if any {
		t.Fatal("expected no markers in fresh store")
	}

	s.Mark("u1")
	any, _ = s.Any()
	if !any {
		t.Error("expected Any to report existing marker")
	}
}
