package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesDB(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nested", "history.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("DB file not created: %v", err)
	}
}

func TestAddAndRecent(t *testing.T) {
	s := tempStore(t)

	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	id, err := s.Add(&Record{
		SessionID:     "auth-fix",
		FeatureBranch: "para/auth-fix",
		BaseBranch:    "main",
		Strategy:      "squash",
		Result:        ResultCompleted,
		ConflictCount: 0,
		StartedAt:     started,
		FinishedAt:    started.Add(3 * time.Second),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive ID, got %d", id)
	}

	recs, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	r := recs[0]
	if r.SessionID != "auth-fix" {
		t.Errorf("session = %q, want %q", r.SessionID, "auth-fix")
	}
	if r.Result != ResultCompleted {
		t.Errorf("result = %q, want %q", r.Result, ResultCompleted)
	}
	if r.DurationMS != 3000 {
		t.Errorf("duration = %d, want 3000", r.DurationMS)
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	s := tempStore(t)

	for _, session := range []string{"one", "two", "three"} {
		if _, err := s.Add(&Record{
			SessionID:     session,
			FeatureBranch: "para/" + session,
			BaseBranch:    "main",
			Strategy:      "merge",
			Result:        ResultCompleted,
			StartedAt:     time.Now().UTC(),
		}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	recs, err := s.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].SessionID != "three" || recs[1].SessionID != "two" {
		t.Errorf("expected newest first (three, two), got (%s, %s)", recs[0].SessionID, recs[1].SessionID)
	}
}

func TestForSession(t *testing.T) {
	s := tempStore(t)

	s.Add(&Record{SessionID: "a", FeatureBranch: "para/a", BaseBranch: "main", Strategy: "squash", Result: ResultAborted, StartedAt: time.Now().UTC()})
	s.Add(&Record{SessionID: "b", FeatureBranch: "para/b", BaseBranch: "main", Strategy: "merge", Result: ResultCompleted, StartedAt: time.Now().UTC()})
	s.Add(&Record{SessionID: "a", FeatureBranch: "para/a", BaseBranch: "main", Strategy: "squash", Result: ResultCompleted, StartedAt: time.Now().UTC()})

	recs, err := s.ForSession("a")
	if err != nil {
		t.Fatalf("ForSession: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records for session a, got %d", len(recs))
	}
	if recs[0].Result != ResultCompleted {
		t.Errorf("expected newest record first, got result %q", recs[0].Result)
	}

	none, err := s.ForSession("missing")
	if err != nil {
		t.Fatalf("ForSession: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no records for unknown session, got %d", len(none))
	}
}

func TestAddFillsDuration(t *testing.T) {
	s := tempStore(t)

	started := time.Now().UTC().Add(-2 * time.Second)
	if _, err := s.Add(&Record{
		SessionID:     "timed",
		FeatureBranch: "para/timed",
		BaseBranch:    "main",
		Strategy:      "rebase",
		Result:        ResultFailed,
		StartedAt:     started,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	recs, _ := s.Recent(1)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].DurationMS <= 0 {
		t.Errorf("expected computed duration, got %d", recs[0].DurationMS)
	}
	if recs[0].FinishedAt.IsZero() {
		t.Error("expected FinishedAt to be filled in")
	}
}
