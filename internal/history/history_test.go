package history

import (
	"testing"
	"time"

	"github.com/fuaadabdullah/goblin-runtime/internal/model"
)

func TestAppendAndRecentOrdering(t *testing.T) {
	s := New(nil)
	base := time.Now()
	for i := 0; i < 3; i++ {
		s.Append(model.HistoryEntry{ID: string(rune('a' + i)), AgentID: "a1", Timestamp: base.Add(time.Duration(i) * time.Second)})
	}

	recent := s.Recent("a1", 10)
	if len(recent) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(recent))
	}
	if recent[0].ID != "c" || recent[2].ID != "a" {
		t.Fatalf("expected newest-first ordering, got %+v", recent)
	}
}

func TestRecentRespectsLimit(t *testing.T) {
	s := New(nil)
	for i := 0; i < 5; i++ {
		s.Append(model.HistoryEntry{ID: string(rune('a' + i)), AgentID: "a1"})
	}
	recent := s.Recent("a1", 2)
	if len(recent) != 2 {
		t.Fatalf("expected limit of 2 entries, got %d", len(recent))
	}
}

func TestRecentDoesNotLeakSharedSlice(t *testing.T) {
	s := New(nil)
	s.Append(model.HistoryEntry{ID: "a", AgentID: "a1", TaskText: "original"})

	got := s.Recent("a1", 10)
	got[0].TaskText = "mutated"

	again := s.Recent("a1", 10)
	if again[0].TaskText != "original" {
		t.Fatalf("expected store to be unaffected by mutation of a returned slice, got %q", again[0].TaskText)
	}
}

func TestAppendIsolatedByAgent(t *testing.T) {
	s := New(nil)
	s.Append(model.HistoryEntry{ID: "a", AgentID: "a1"})
	s.Append(model.HistoryEntry{ID: "b", AgentID: "a2"})

	if len(s.Recent("a1", 10)) != 1 || len(s.Recent("a2", 10)) != 1 {
		t.Fatalf("expected per-agent isolation")
	}
}
