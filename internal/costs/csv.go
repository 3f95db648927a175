package costs

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/fuaadabdullah/goblin-runtime/internal/model"
)

var csvHeader = []string{
	"id", "agentId", "guild", "provider", "model", "task",
	"input_tokens", "output_tokens", "total_tokens",
	"duration_ms", "success", "cost", "timestamp",
}

// WriteCSV exports every retained entry as RFC-4180 CSV with the fixed
// header above.
func (t *Tracker) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, entry := range t.All() {
		if err := writer.Write(rowFor(entry)); err != nil {
			return err
		}
	}
	return writer.Error()
}

func rowFor(e model.CostEntry) []string {
	return []string{
		e.ID,
		e.AgentID,
		e.Guild,
		e.Provider,
		e.Model,
		e.TaskText,
		strconv.Itoa(e.Tokens.Input),
		strconv.Itoa(e.Tokens.Output),
		strconv.Itoa(e.Tokens.Total),
		strconv.FormatInt(e.DurationMS, 10),
		strconv.FormatBool(e.Success),
		strconv.FormatFloat(e.CostUSD, 'f', -1, 64),
		e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}
