package history

import (
	"database/sql"
	"encoding/json"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/fuaadabdullah/goblin-runtime/internal/model"
)

// SQLiteSink durably persists history entries to a local SQLite database.
// It never blocks or fails the in-memory Append path: write failures are
// logged and ignored.
type SQLiteSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLiteSink opens (creating if needed) a SQLite database at path and
// ensures its history_entries table exists.
func OpenSQLiteSink(path string, logger *slog.Logger) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	const schema = `
CREATE TABLE IF NOT EXISTS history_entries (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	task_text TEXT NOT NULL,
	reasoning TEXT,
	timestamp TEXT NOT NULL,
	kpis TEXT,
	succeeded INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteSink{db: db, logger: logger}, nil
}

// Persist writes entry, logging and swallowing any failure.
func (s *SQLiteSink) Persist(entry model.HistoryEntry) {
	kpis, err := json.Marshal(entry.KPIs)
	if err != nil {
		s.logger.Warn("marshaling history entry kpis failed", "error", err)
		return
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO history_entries (id, agent_id, task_text, reasoning, timestamp, kpis, succeeded) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.AgentID, entry.TaskText, entry.Reasoning, entry.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"), string(kpis), boolToInt(entry.Succeeded),
	)
	if err != nil {
		s.logger.Warn("persisting history entry failed", "error", err)
	}
}

// Close closes the underlying database handle.
func (s *SQLiteSink) Close() error { return s.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
