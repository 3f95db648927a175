// Package pricing holds the static per-(provider, model) cost table and the
// cost formula used by the cost tracker.
package pricing

import (
	"sort"
	"strings"
)

// Entry is one pricing row: rates in USD per 1,000 tokens, matched against a
// model string by longest-prefix.
type Entry struct {
	Provider       string
	ModelPrefix    string
	InputPer1KUSD  float64
	OutputPer1KUSD float64
}

// defaultEntries enumerates known pricing for the cloud providers this
// runtime ships bindings for (internal/llm), plus the local provider fixed
// at zero. Rates are illustrative list prices as of the runtime's release,
// expressed per 1,000 tokens per cost formula.
var defaultEntries = []Entry{
	{Provider: "anthropic", ModelPrefix: "claude-opus-4", InputPer1KUSD: 0.015, OutputPer1KUSD: 0.075},
	{Provider: "anthropic", ModelPrefix: "claude-sonnet-4", InputPer1KUSD: 0.003, OutputPer1KUSD: 0.015},
	{Provider: "anthropic", ModelPrefix: "claude-3-5-sonnet", InputPer1KUSD: 0.003, OutputPer1KUSD: 0.015},
	{Provider: "anthropic", ModelPrefix: "claude-3-5-haiku", InputPer1KUSD: 0.001, OutputPer1KUSD: 0.005},
	{Provider: "anthropic", ModelPrefix: "claude-3-opus", InputPer1KUSD: 0.015, OutputPer1KUSD: 0.075},
	{Provider: "anthropic", ModelPrefix: "claude-3-haiku", InputPer1KUSD: 0.00025, OutputPer1KUSD: 0.00125},
	{Provider: "openai", ModelPrefix: "gpt-4o-mini", InputPer1KUSD: 0.00015, OutputPer1KUSD: 0.0006},
	{Provider: "openai", ModelPrefix: "gpt-4o", InputPer1KUSD: 0.0025, OutputPer1KUSD: 0.01},
	{Provider: "openai", ModelPrefix: "gpt-4-turbo", InputPer1KUSD: 0.01, OutputPer1KUSD: 0.03},
	{Provider: "openai", ModelPrefix: "gpt-4", InputPer1KUSD: 0.03, OutputPer1KUSD: 0.06},
	{Provider: "openai", ModelPrefix: "gpt-3.5-turbo", InputPer1KUSD: 0.0005, OutputPer1KUSD: 0.0015},
	{Provider: "openai", ModelPrefix: "o1-mini", InputPer1KUSD: 0.003, OutputPer1KUSD: 0.012},
	{Provider: "openai", ModelPrefix: "o1", InputPer1KUSD: 0.015, OutputPer1KUSD: 0.06},
	{Provider: "gemini", ModelPrefix: "gemini-1.5-pro", InputPer1KUSD: 0.00125, OutputPer1KUSD: 0.005},
	{Provider: "gemini", ModelPrefix: "gemini-1.5-flash", InputPer1KUSD: 0.000075, OutputPer1KUSD: 0.0003},
	{Provider: "gemini", ModelPrefix: "gemini-2.0-flash", InputPer1KUSD: 0.0001, OutputPer1KUSD: 0.0004},
	{Provider: "bedrock", ModelPrefix: "anthropic.claude-3-5-sonnet", InputPer1KUSD: 0.003, OutputPer1KUSD: 0.015},
	{Provider: "bedrock", ModelPrefix: "anthropic.claude-3-haiku", InputPer1KUSD: 0.00025, OutputPer1KUSD: 0.00125},
	{Provider: "bedrock", ModelPrefix: "meta.llama3", InputPer1KUSD: 0.00065, OutputPer1KUSD: 0.00065},
	{Provider: "local", ModelPrefix: "", InputPer1KUSD: 0, OutputPer1KUSD: 0},
}

// Table is a pricing table indexed by provider, with each provider's entries
// sorted longest-prefix-first so lookup is a linear scan returning on the
// first match.
type Table struct {
	byProvider map[string][]Entry
}

// Default returns the runtime's built-in pricing table.
func Default() *Table {
	return New(defaultEntries)
}

// New builds a Table from an arbitrary entry list, e.g. loaded from
// configuration to override or extend the defaults.
func New(entries []Entry) *Table {
	t := &Table{byProvider: map[string][]Entry{}}
	for _, e := range entries {
		provider := strings.ToLower(e.Provider)
		t.byProvider[provider] = append(t.byProvider[provider], e)
	}
	for provider := range t.byProvider {
		rows := t.byProvider[provider]
		sort.SliceStable(rows, func(i, j int) bool {
			return len(rows[i].ModelPrefix) > len(rows[j].ModelPrefix)
		})
		t.byProvider[provider] = rows
	}
	return t
}

// Lookup finds the longest ModelPrefix entry matching model for provider. A
// miss returns nil rather than fabricating a cost for an unknown model.
func (t *Table) Lookup(provider, model string) *Entry {
	provider = strings.ToLower(strings.TrimSpace(provider))
	rows, ok := t.byProvider[provider]
	if !ok {
		return nil
	}
	for i := range rows {
		if strings.HasPrefix(model, rows[i].ModelPrefix) {
			entry := rows[i]
			return &entry
		}
	}
	return nil
}

// Cost computes input_tokens/1000*rate_i + output_tokens/1000*rate_o for the
// given provider/model and token counts. An unmatched (provider, model)
// costs zero.
func (t *Table) Cost(provider, model string, inputTokens, outputTokens int) float64 {
	entry := t.Lookup(provider, model)
	if entry == nil {
		return 0
	}
	return float64(inputTokens)/1000*entry.InputPer1KUSD + float64(outputTokens)/1000*entry.OutputPer1KUSD
}
