package catalog

import (
	"sync/atomic"

	"github.com/fuaadabdullah/goblin-runtime/internal/model"
)

// Store holds a hot-swappable Catalog snapshot. Reads never block behind a
// reload: every accessor loads the current snapshot and reads from it, and
// Swap atomically installs a new one. This is what lets a Watcher's reload
// take effect without holding a lock across an in-flight request.
type Store struct {
	current atomic.Pointer[Catalog]
}

// NewStore wraps an already-loaded Catalog in a Store.
func NewStore(initial *Catalog) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

// Snapshot returns the Catalog currently in effect.
func (s *Store) Snapshot() *Catalog { return s.current.Load() }

// Swap installs cat as the current snapshot.
func (s *Store) Swap(cat *Catalog) { s.current.Store(cat) }

func (s *Store) Agents() map[string]model.Agent { return s.Snapshot().Agents() }

func (s *Store) Agent(id string) (model.Agent, bool) { return s.Snapshot().Agent(id) }

func (s *Store) Guilds() []model.Guild { return s.Snapshot().Guilds() }

func (s *Store) Tool(id string) (model.Tool, bool) { return s.Snapshot().Tool(id) }

func (s *Store) Tools() map[string]model.Tool { return s.Snapshot().Tools() }

func (s *Store) ScheduledTriggers() []model.ScheduledTrigger { return s.Snapshot().ScheduledTriggers() }

func (s *Store) Warnings() []string { return s.Snapshot().Warnings() }
