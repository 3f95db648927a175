package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fuaadabdullah/goblin-runtime/internal/auditsink"
	"github.com/fuaadabdullah/goblin-runtime/internal/authn"
	"github.com/fuaadabdullah/goblin-runtime/internal/catalog"
	"github.com/fuaadabdullah/goblin-runtime/internal/costs"
	"github.com/fuaadabdullah/goblin-runtime/internal/history"
	"github.com/fuaadabdullah/goblin-runtime/internal/llm"
	"github.com/fuaadabdullah/goblin-runtime/internal/model"
	"github.com/fuaadabdullah/goblin-runtime/internal/taskexec"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider answers Generate/GenerateStream with a fixed canned string,
// without reaching any network.
type fakeProvider struct {
	reply string
	fail  bool
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	if p.fail {
		return "", context.DeadlineExceeded
	}
	return p.reply, nil
}

func (p *fakeProvider) GenerateStream(ctx context.Context, prompt string, opts llm.GenerateOptions) (<-chan llm.Chunk, error) {
	if p.fail {
		return nil, context.DeadlineExceeded
	}
	ch := make(chan llm.Chunk, 2)
	ch <- llm.Chunk{Text: p.reply}
	ch <- llm.Chunk{Done: true, InputTokens: 10, OutputTokens: 5}
	close(ch)
	return ch, nil
}

func (p *fakeProvider) HealthCheck(ctx context.Context) bool { return true }

func (p *fakeProvider) DefaultModel() string { return "fake-model" }

func testCatalogYAML() string {
	return `
guilds:
  - name: research
    charter: find things out
    toolbelt: []
    members:
      - id: scout
        title: Scout
        brain:
          routers: [fake]
        responsibilities: [explore]
        kpis: [duration_ms]
        tools:
          owned: []
          selection_rules: []
`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	tmp := t.TempDir() + "/goblins.yaml"
	if err := os.WriteFile(tmp, []byte(testCatalogYAML()), 0o644); err != nil {
		t.Fatalf("writing test catalog: %v", err)
	}
	loaded, err := catalog.Load(tmp)
	if err != nil {
		t.Fatalf("catalog.Load() error = %v", err)
	}
	cat := catalog.NewStore(loaded)

	registry := llm.NewRegistry(&fakeProvider{reply: "hello from scout"})
	hist := history.New(nil)
	tracker := costs.New(nil, nil)
	audit := auditsink.New("", discardLogger(), 1)
	executor := &taskexec.Executor{
		Catalog:  cat,
		Registry: registry,
		History:  hist,
		Costs:    tracker,
		Audit:    audit,
		Logger:   discardLogger(),
	}

	return New(Config{
		Catalog:        cat,
		Registry:       registry,
		Executor:       executor,
		History:        hist,
		Costs:          tracker,
		Auth:           authn.NewJWTService("", time.Hour),
		Creds:          authn.StaticCredentials{},
		Audit:          audit,
		Logger:         discardLogger(),
		DefaultAgentID: "scout",
		RateLimit:      -1,
	})
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp apiHealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "ok" || !resp.Initialized {
		t.Fatalf("unexpected health response: %+v", resp)
	}
}

func TestHandleGoblinsListsCatalog(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/goblins", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var agents []model.Agent
	if err := json.Unmarshal(rec.Body.Bytes(), &agents); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(agents) != 1 || agents[0].ID != "scout" {
		t.Fatalf("expected one agent scout, got %+v", agents)
	}
}

func TestHandleExecuteRunsTask(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(apiExecuteRequest{Goblin: "scout", Task: "map the area"})
	req := httptest.NewRequest(http.MethodPost, "/api/execute", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp model.TaskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Succeeded || resp.AgentID != "scout" {
		t.Fatalf("unexpected task response: %+v", resp)
	}
}

func TestHandleExecuteUnknownAgent(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(apiExecuteRequest{Goblin: "nobody", Task: "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/execute", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestHandleHistoryAndStats(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(apiExecuteRequest{Goblin: "scout", Task: "map the area"})
	req := httptest.NewRequest(http.MethodPost, "/api/execute", bytes.NewReader(body))
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	histReq := httptest.NewRequest(http.MethodGet, "/api/history/scout", nil)
	histRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(histRec, histReq)
	var entries []model.HistoryEntry
	if err := json.Unmarshal(histRec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decoding history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(entries))
	}

	statsReq := httptest.NewRequest(http.MethodGet, "/api/stats/scout", nil)
	statsRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(statsRec, statsReq)
	var stats apiStatsResponse
	if err := json.Unmarshal(statsRec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if stats.TotalTasks != 1 || stats.SuccessfulTasks != 1 || stats.SuccessRate != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestHandleLoginRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(apiLoginRequest{Username: "admin", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleOrchestrateParseAndExecute(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(apiOrchestrateRequest{Text: "scout: look around"})

	parseReq := httptest.NewRequest(http.MethodPost, "/api/orchestrate/parse", bytes.NewReader(body))
	parseRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(parseRec, parseReq)
	var parsed model.OrchestrationPlan
	if err := json.Unmarshal(parseRec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("decoding parsed plan: %v", err)
	}
	if parsed.Status != model.PlanPending {
		t.Fatalf("expected pending plan, got %s", parsed.Status)
	}

	execReq := httptest.NewRequest(http.MethodPost, "/api/orchestrate/execute", bytes.NewReader(body))
	execRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(execRec, execReq)
	var executed model.OrchestrationPlan
	if err := json.Unmarshal(execRec.Body.Bytes(), &executed); err != nil {
		t.Fatalf("decoding executed plan: %v", err)
	}
	if executed.Status != model.PlanCompleted {
		t.Fatalf("expected completed plan, got %s", executed.Status)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/orchestrate/plans/"+executed.ID, nil)
	getRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching plan, got %d", getRec.Code)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/orchestrate/plans", nil)
	listRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(listRec, listReq)
	var plans []model.OrchestrationPlan
	if err := json.Unmarshal(listRec.Body.Bytes(), &plans); err != nil {
		t.Fatalf("decoding plans list: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("expected 1 stored plan, got %d", len(plans))
	}
}

func TestHandleOrchestrateCancelUnknownPlan(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/orchestrate/cancel/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp apiCancelResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding cancel response: %v", err)
	}
	if resp.Success {
		t.Fatalf("expected Success=false for unknown plan")
	}
}

func TestHandleCostsSummaryAndExport(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(apiExecuteRequest{Goblin: "scout", Task: "map the area"})
	req := httptest.NewRequest(http.MethodPost, "/api/execute", bytes.NewReader(body))
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	summaryReq := httptest.NewRequest(http.MethodGet, "/api/costs/summary", nil)
	summaryRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(summaryRec, summaryReq)
	var summary costs.Summary
	if err := json.Unmarshal(summaryRec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if summary.TotalTasks != 1 {
		t.Fatalf("expected 1 total task, got %d", summary.TotalTasks)
	}

	exportReq := httptest.NewRequest(http.MethodGet, "/api/costs/export", nil)
	exportRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(exportRec, exportReq)
	if !strings.HasPrefix(exportRec.Body.String(), "id,agentId,guild") {
		t.Fatalf("expected CSV header, got %q", exportRec.Body.String()[:40])
	}
}

func TestAuthMiddlewareGatesAPIWhenEnabled(t *testing.T) {
	s := newTestServer(t)
	s.auth = authn.NewJWTService("secret", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/api/goblins", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	token, err := s.auth.Generate("admin")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	req2 := httptest.NewRequest(http.MethodGet, "/api/goblins", nil)
	req2.Header.Set("Authorization", "Bearer "+token)
	rec2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", rec2.Code)
	}
}

func TestRateLimiterRejectsOverBudget(t *testing.T) {
	limiter := newRateLimiter(1, time.Minute)
	if !limiter.allow("1.2.3.4") {
		t.Fatalf("expected first request to be allowed")
	}
	if limiter.allow("1.2.3.4") {
		t.Fatalf("expected second request within the window to be rejected")
	}
	if !limiter.allow("5.6.7.8") {
		t.Fatalf("expected a different key to have its own budget")
	}
}
