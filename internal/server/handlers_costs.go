package server

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fuaadabdullah/goblin-runtime/internal/costs"
	"github.com/fuaadabdullah/goblin-runtime/internal/model"
)

func (s *Server) handleCostsSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	summary := s.costs.Summary(costs.SummaryParams{
		AgentID: clampQueryParam(r, "goblinId", 128),
		Guild:   clampQueryParam(r, "guildId", 128),
		Limit:   parseIntParam(r, "limit", 10),
	})
	jsonResponse(w, summary)
}

// apiCostBreakdown is the per-goblin/per-guild cost view: the matching
// entries' aggregate plus the individual entries that compose it.
type apiCostBreakdown struct {
	costs.Aggregate
	Entries []model.CostEntry `json:"entries"`
}

func (s *Server) handleCostsByGoblin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := pathTail(r, "/api/costs/goblin/")
	jsonResponse(w, breakdownFor(s.costs.All(), func(e model.CostEntry) bool { return e.AgentID == id }))
}

func (s *Server) handleCostsByGuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := pathTail(r, "/api/costs/guild/")
	jsonResponse(w, breakdownFor(s.costs.All(), func(e model.CostEntry) bool { return e.Guild == id }))
}

func breakdownFor(all []model.CostEntry, match func(model.CostEntry) bool) apiCostBreakdown {
	out := apiCostBreakdown{Entries: []model.CostEntry{}}
	for _, entry := range all {
		if !match(entry) {
			continue
		}
		out.Entries = append(out.Entries, entry)
		out.Cost += entry.CostUSD
		out.Tasks++
		out.Tokens.Input += entry.Tokens.Input
		out.Tokens.Output += entry.Tokens.Output
		out.Tokens.Total += entry.Tokens.Total
	}
	return out
}

var costsCSVHeader = []string{
	"id", "agentId", "guild", "provider", "model", "task",
	"input_tokens", "output_tokens", "total_tokens", "duration_ms", "success", "cost", "timestamp",
}

func (s *Server) handleCostsExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="costs.csv"`)

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(costsCSVHeader); err != nil {
		s.logger.Warn("writing cost export header failed", "error", err)
		return
	}

	for _, entry := range s.costs.All() {
		row := []string{
			entry.ID,
			entry.AgentID,
			entry.Guild,
			entry.Provider,
			entry.Model,
			entry.TaskText,
			strconv.Itoa(entry.Tokens.Input),
			strconv.Itoa(entry.Tokens.Output),
			strconv.Itoa(entry.Tokens.Total),
			strconv.FormatInt(entry.DurationMS, 10),
			strconv.FormatBool(entry.Success),
			fmt.Sprintf("%.6f", entry.CostUSD),
			entry.Timestamp.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			s.logger.Warn("writing cost export row failed", "error", err)
			return
		}
	}
}
