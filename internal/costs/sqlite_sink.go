package costs

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/fuaadabdullah/goblin-runtime/internal/model"
)

// SQLiteSink persists every recorded cost entry to a durable table so totals
// survive restarts when A8's persistence backend is selected. The in-memory
// ring in Tracker remains authoritative for live aggregate queries; this
// sink is write-only from the tracker's perspective.
type SQLiteSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLiteSink opens (creating if needed) a SQLite database at path and
// ensures the cost_entries table exists.
func OpenSQLiteSink(path string, logger *slog.Logger) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS cost_entries (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	guild TEXT NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	task TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	success INTEGER NOT NULL,
	cost_usd REAL NOT NULL,
	timestamp TEXT NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cost_entries: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteSink{db: db, logger: logger}, nil
}

// Persist writes entry to the durable table. Failures are logged, not
// surfaced: the caller's critical path (Tracker.Record) never blocks on
// disk I/O failures here.
func (s *SQLiteSink) Persist(entry model.CostEntry) {
	const stmt = `INSERT OR REPLACE INTO cost_entries
		(id, agent_id, guild, provider, model, task, input_tokens, output_tokens, duration_ms, success, cost_usd, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(stmt,
		entry.ID, entry.AgentID, entry.Guild, entry.Provider, entry.Model, entry.TaskText,
		entry.Tokens.Input, entry.Tokens.Output, entry.DurationMS, entry.Success, entry.CostUSD,
		entry.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	)
	if err != nil {
		s.logger.Warn("persist cost entry failed", "error", err, "entry_id", entry.ID)
	}
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
