// Package costs implements the cost tracker: bounded-ring recording,
// filtered aggregation by provider/agent/guild, and CSV export.
package costs

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fuaadabdullah/goblin-runtime/internal/model"
	"github.com/fuaadabdullah/goblin-runtime/internal/pricing"
)

// MaxEntries bounds the tracker's retained entries; on overflow the oldest
// entry is dropped.
const MaxEntries = 10000

// Sink receives every recorded entry in addition to the in-memory ring, for
// durable persistence. Implementations must not block Record for long.
type Sink interface {
	Persist(entry model.CostEntry)
}

// Tracker records cost entries and serves filtered aggregate queries. All
// access is serialized through its methods.
type Tracker struct {
	mu      sync.Mutex
	entries []model.CostEntry
	pricing *pricing.Table
	sink    Sink
}

// New builds a Tracker against the given pricing table. sink may be nil.
func New(table *pricing.Table, sink Sink) *Tracker {
	if table == nil {
		table = pricing.Default()
	}
	return &Tracker{pricing: table, sink: sink}
}

// RecordParams describes one billed model call to be costed and stored.
type RecordParams struct {
	AgentID      string
	Guild        string
	Provider     string
	Model        string
	TaskText     string
	InputTokens  int
	OutputTokens int
	DurationMS   int64
	Success      bool
	Timestamp    time.Time
}

// Record costs params against the pricing table and appends the resulting
// entry, evicting the oldest entry if the ring is full.
func (t *Tracker) Record(p RecordParams) model.CostEntry {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}
	cost := t.pricing.Cost(p.Provider, p.Model, p.InputTokens, p.OutputTokens)
	entry := model.CostEntry{
		ID:       uuid.NewString(),
		AgentID:  p.AgentID,
		Guild:    p.Guild,
		Provider: p.Provider,
		Model:    p.Model,
		TaskText: p.TaskText,
		Tokens: model.TokenUsage{
			Input:  p.InputTokens,
			Output: p.OutputTokens,
			Total:  p.InputTokens + p.OutputTokens,
		},
		DurationMS: p.DurationMS,
		Success:    p.Success,
		CostUSD:    cost,
		Timestamp:  p.Timestamp,
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	if len(t.entries) > MaxEntries {
		excess := len(t.entries) - MaxEntries
		t.entries = t.entries[excess:]
	}
	t.mu.Unlock()

	if t.sink != nil {
		t.sink.Persist(entry)
	}
	return entry
}

// Aggregate summarizes cost/tasks/tokens for one grouping key.
type Aggregate struct {
	Cost   float64          `json:"cost"`
	Tasks  int              `json:"tasks"`
	Tokens model.TokenUsage `json:"tokens"`
}

func (a *Aggregate) add(entry model.CostEntry) {
	a.Cost += entry.CostUSD
	a.Tasks++
	a.Tokens.Input += entry.Tokens.Input
	a.Tokens.Output += entry.Tokens.Output
	a.Tokens.Total += entry.Tokens.Total
}

// SummaryParams filters the Summary query.
type SummaryParams struct {
	AgentID string
	Guild   string
	Limit   int
}

// Summary is the aggregate response shape for /api/costs/summary.
type Summary struct {
	TotalCost       float64               `json:"totalCost"`
	TotalTasks      int                   `json:"totalTasks"`
	AvgCostPerTask  float64               `json:"avgCostPerTask"`
	ByProvider      map[string]*Aggregate `json:"byProvider"`
	ByAgent         map[string]*Aggregate `json:"byAgent"`
	ByGuild         map[string]*Aggregate `json:"byGuild"`
	RecentEntries   []model.CostEntry     `json:"recentEntries"`
}

// Summary filters retained entries by AgentID/Guild (either empty matches
// all) and produces the full aggregate response. Sub-aggregates filter by
// the same criteria as the top-level totals.
func (t *Tracker) Summary(p SummaryParams) Summary {
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}

	t.mu.Lock()
	snapshot := make([]model.CostEntry, len(t.entries))
	copy(snapshot, t.entries)
	t.mu.Unlock()

	out := Summary{
		ByProvider: map[string]*Aggregate{},
		ByAgent:    map[string]*Aggregate{},
		ByGuild:    map[string]*Aggregate{},
	}

	var matched []model.CostEntry
	for _, entry := range snapshot {
		if p.AgentID != "" && entry.AgentID != p.AgentID {
			continue
		}
		if p.Guild != "" && entry.Guild != p.Guild {
			continue
		}
		matched = append(matched, entry)

		out.TotalCost += entry.CostUSD
		out.TotalTasks++

		byProvider(out.ByProvider, entry.Provider).add(entry)
		byProvider(out.ByAgent, entry.AgentID).add(entry)
		byProvider(out.ByGuild, entry.Guild).add(entry)
	}

	if out.TotalTasks > 0 {
		out.AvgCostPerTask = out.TotalCost / float64(out.TotalTasks)
	}

	start := len(matched) - limit
	if start < 0 {
		start = 0
	}
	recent := make([]model.CostEntry, len(matched)-start)
	copy(recent, matched[start:])
	// Newest first, matching history ordering.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	out.RecentEntries = recent

	return out
}

func byProvider(m map[string]*Aggregate, key string) *Aggregate {
	agg, ok := m[key]
	if !ok {
		agg = &Aggregate{}
		m[key] = agg
	}
	return agg
}

// All returns a snapshot of every retained entry, oldest first, for CSV
// export.
func (t *Tracker) All() []model.CostEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.CostEntry, len(t.entries))
	copy(out, t.entries)
	return out
}
