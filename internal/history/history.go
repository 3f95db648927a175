// Package history is the append-only, per-agent task history store.
package history

import (
	"sync"

	"github.com/fuaadabdullah/goblin-runtime/internal/model"
)

// Sink receives every appended entry in addition to the in-memory store,
// for durable persistence. Implementations must not block Append for long.
type Sink interface {
	Persist(entry model.HistoryEntry)
}

// Store is an in-memory, mutex-guarded, append-only history keyed by agent
// id. Reads return a fresh slice of entry copies, so mutating a returned
// slice or its entries' fields does not change the store; an entry's KPIs
// map is not cloned and stays shared between the appender and all readers.
type Store struct {
	mu      sync.Mutex
	byAgent map[string][]model.HistoryEntry
	sink    Sink
}

// New builds an empty Store. sink may be nil.
func New(sink Sink) *Store {
	return &Store{byAgent: map[string][]model.HistoryEntry{}, sink: sink}
}

// Append records entry under its AgentID.
func (s *Store) Append(entry model.HistoryEntry) {
	s.mu.Lock()
	s.byAgent[entry.AgentID] = append(s.byAgent[entry.AgentID], entry)
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.Persist(entry)
	}
}

// Recent returns up to limit entries for agentID, newest first. limit <= 0
// defaults to 10.
func (s *Store) Recent(agentID string, limit int) []model.HistoryEntry {
	if limit <= 0 {
		limit = 10
	}

	s.mu.Lock()
	all := s.byAgent[agentID]
	n := len(all)
	start := n - limit
	if start < 0 {
		start = 0
	}
	window := make([]model.HistoryEntry, n-start)
	copy(window, all[start:])
	s.mu.Unlock()

	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	return window
}

// All returns every entry recorded for agentID, oldest first, independent
// of the internal slice.
func (s *Store) All(agentID string) []model.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.byAgent[agentID]
	out := make([]model.HistoryEntry, len(all))
	copy(out, all)
	return out
}
