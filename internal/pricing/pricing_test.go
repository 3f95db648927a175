package pricing

import "testing"

func TestLookupLongestPrefix(t *testing.T) {
	table := New([]Entry{
		{Provider: "openai", ModelPrefix: "gpt-4o", InputPer1KUSD: 0.0025, OutputPer1KUSD: 0.01},
		{Provider: "openai", ModelPrefix: "gpt-4o-mini", InputPer1KUSD: 0.00015, OutputPer1KUSD: 0.0006},
	})

	entry := table.Lookup("openai", "gpt-4o-mini-2024")
	if entry == nil || entry.ModelPrefix != "gpt-4o-mini" {
		t.Fatalf("expected longest-prefix match gpt-4o-mini, got %+v", entry)
	}

	entry = table.Lookup("openai", "gpt-4o-2024")
	if entry == nil || entry.ModelPrefix != "gpt-4o" {
		t.Fatalf("expected gpt-4o match, got %+v", entry)
	}
}

func TestLookupUnknownIsZero(t *testing.T) {
	table := Default()
	entry := table.Lookup("unknownvendor", "made-up-model")
	if entry != nil {
		t.Fatalf("expected no match, got %+v", entry)
	}
	if cost := table.Cost("unknownvendor", "made-up-model", 1000, 1000); cost != 0 {
		t.Fatalf("expected zero cost for unknown model, got %v", cost)
	}
}

func TestCostFormula(t *testing.T) {
	table := New([]Entry{
		{Provider: "openai", ModelPrefix: "gpt-4", InputPer1KUSD: 0.03, OutputPer1KUSD: 0.06},
	})
	got := table.Cost("openai", "gpt-4", 1000, 1000)
	want := 1000.0/1000*0.03 + 1000.0/1000*0.06
	if got != want {
		t.Fatalf("Cost() = %v, want %v", got, want)
	}
}

func TestCostAggregationScenario(t *testing.T) {
	// scenario 4: (openai,gpt-4,1000/1000) + (gemini,gemini-1.5-pro,1000/1000) + (local,any,1000/1000)
	// totalling 0.09 + 0.001 + 0 = 0.091, against a fixture table matching that scenario's rates.
	table := New([]Entry{
		{Provider: "openai", ModelPrefix: "gpt-4", InputPer1KUSD: 0.03, OutputPer1KUSD: 0.06},
		{Provider: "gemini", ModelPrefix: "gemini-1.5-pro", InputPer1KUSD: 0.0005, OutputPer1KUSD: 0.0005},
		{Provider: "local", ModelPrefix: "", InputPer1KUSD: 0, OutputPer1KUSD: 0},
	})
	total := table.Cost("openai", "gpt-4", 1000, 1000) +
		table.Cost("gemini", "gemini-1.5-pro", 1000, 1000) +
		table.Cost("local", "any-model", 1000, 1000)

	const want = 0.091
	diff := total - want
	if diff < 0 {
		diff = -diff
	}
	if diff > 0.0001 {
		t.Fatalf("total = %v, want %v", total, want)
	}
}
