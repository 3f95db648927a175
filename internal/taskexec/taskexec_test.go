package taskexec

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/fuaadabdullah/goblin-runtime/internal/auditsink"
	"github.com/fuaadabdullah/goblin-runtime/internal/catalog"
	"github.com/fuaadabdullah/goblin-runtime/internal/costs"
	"github.com/fuaadabdullah/goblin-runtime/internal/goblinerr"
	"github.com/fuaadabdullah/goblin-runtime/internal/history"
	"github.com/fuaadabdullah/goblin-runtime/internal/llm"
	"github.com/fuaadabdullah/goblin-runtime/internal/model"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type fakeProvider struct {
	name     string
	response string
	err      error
}

func (f *fakeProvider) Name() string         { return f.name }
func (f *fakeProvider) DefaultModel() string { return "fake-model" }
func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	return f.response, f.err
}
func (f *fakeProvider) GenerateStream(ctx context.Context, prompt string, opts llm.GenerateOptions) (<-chan llm.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan llm.Chunk, 2)
	out <- llm.Chunk{Text: f.response}
	out <- llm.Chunk{Done: true, InputTokens: 4, OutputTokens: 2}
	close(out)
	return out, nil
}
func (f *fakeProvider) HealthCheck(ctx context.Context) bool { return true }

type noopCosts struct{ calls int }

func (n *noopCosts) Record(p costs.RecordParams) model.CostEntry {
	n.calls++
	return model.CostEntry{}
}

func buildCatalogFixture(t *testing.T) *catalog.Store {
	t.Helper()
	doc := `
guilds:
  - name: engineering
    charter: ships code
    toolbelt:
      - id: run-tests
        name: Run Tests
        summary: runs the test suite
        owner: builder
        command: "echo hello"
    members:
      - id: builder
        title: Builder
        brain:
          routers: [fake]
        tools:
          owned: [run-tests]
          selection_rules:
            - trigger: "run"
              tool: run-tests
`
	path := filepath.Join(t.TempDir(), "goblins.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	cat, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return catalog.NewStore(cat)
}

func TestRunAgentNotFound(t *testing.T) {
	cat := buildCatalogFixture(t)
	exec := &Executor{
		Catalog:  cat,
		Registry: llm.NewRegistry(&fakeProvider{name: "fake", response: "done"}),
		History:  history.New(nil),
		Costs:    &noopCosts{},
		Audit:    auditsink.New("", discardLogger(), 1),
		Logger:   discardLogger(),
	}
	_, err := exec.Run(context.Background(), model.TaskRequest{AgentID: "missing", TaskText: "do it"})
	if goblinerr.KindOf(err) != goblinerr.KindAgentNotFound {
		t.Fatalf("expected AgentNotFound, got %v", err)
	}
}

func TestRunDryRunDoesNotForkProcess(t *testing.T) {
	cat := buildCatalogFixture(t)
	exec := &Executor{
		Catalog:  cat,
		Registry: llm.NewRegistry(&fakeProvider{name: "fake", response: "EXECUTE_TOOL: run tests"}),
		History:  history.New(nil),
		Costs:    &noopCosts{},
		Audit:    auditsink.New("", discardLogger(), 1),
		Logger:   discardLogger(),
	}
	resp, err := exec.Run(context.Background(), model.TaskRequest{AgentID: "builder", TaskText: "run the tests", DryRun: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp.ToolExecutionResult == nil || resp.ToolExecutionResult.CombinedOutput != model.DryRunSentinel {
		t.Fatalf("expected dry-run sentinel output, got %+v", resp.ToolExecutionResult)
	}
}

func TestRunExecutesToolAndRecordsHistory(t *testing.T) {
	cat := buildCatalogFixture(t)
	hist := history.New(nil)
	exec := &Executor{
		Catalog:  cat,
		Registry: llm.NewRegistry(&fakeProvider{name: "fake", response: "EXECUTE_TOOL: run tests"}),
		History:  hist,
		Costs:    &noopCosts{},
		Audit:    auditsink.New("", discardLogger(), 1),
		Logger:   discardLogger(),
	}
	resp, err := exec.Run(context.Background(), model.TaskRequest{AgentID: "builder", TaskText: "run the tests"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp.ToolExecutionResult == nil || !resp.ToolExecutionResult.Succeeded {
		t.Fatalf("expected successful tool execution, got %+v", resp.ToolExecutionResult)
	}
	if len(hist.Recent("builder", 10)) != 1 {
		t.Fatalf("expected one history entry recorded")
	}
	if resp.KPIs["success"] != 1 {
		t.Fatalf("expected success KPI 1, got %v", resp.KPIs["success"])
	}
}

func TestRunStreamingEmitsChunksAndRecordsHistoryOnce(t *testing.T) {
	cat := buildCatalogFixture(t)
	hist := history.New(nil)
	costs := &noopCosts{}
	exec := &Executor{
		Catalog:  cat,
		Registry: llm.NewRegistry(&fakeProvider{name: "fake", response: "building now"}),
		History:  hist,
		Costs:    costs,
		Audit:    auditsink.New("", discardLogger(), 1),
		Logger:   discardLogger(),
	}

	var streamed string
	resp, err := exec.RunStreaming(context.Background(), model.TaskRequest{AgentID: "builder", TaskText: "describe status"}, func(c llm.Chunk) {
		streamed += c.Text
	})
	if err != nil {
		t.Fatalf("RunStreaming() error = %v", err)
	}
	if streamed != "building now" {
		t.Fatalf("expected chunk callback to see full text, got %q", streamed)
	}
	if resp.ModelReasoning != "building now" {
		t.Fatalf("expected ModelReasoning to match streamed text, got %q", resp.ModelReasoning)
	}
	if !resp.Succeeded {
		t.Fatalf("expected Succeeded=true")
	}
	if len(hist.Recent("builder", 10)) != 1 {
		t.Fatalf("expected exactly one history entry, streaming must not double-record")
	}
	if costs.calls != 1 {
		t.Fatalf("expected exactly one cost record, got %d", costs.calls)
	}
}

func TestRunNoProviderAvailableIsRecoveredNotFatal(t *testing.T) {
	cat := buildCatalogFixture(t)
	exec := &Executor{
		Catalog:  cat,
		Registry: llm.NewRegistry(),
		History:  history.New(nil),
		Costs:    &noopCosts{},
		Audit:    auditsink.New("", discardLogger(), 1),
		Logger:   discardLogger(),
	}
	resp, err := exec.Run(context.Background(), model.TaskRequest{AgentID: "builder", TaskText: "run the tests"})
	if err != nil {
		t.Fatalf("expected no Go error, task failure recovered into response, got %v", err)
	}
	if resp.Succeeded {
		t.Fatalf("expected Succeeded=false with no provider available")
	}
	if resp.ModelReasoning == "" {
		t.Fatalf("expected an error reasoning message")
	}
}
