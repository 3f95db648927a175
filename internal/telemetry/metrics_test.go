package telemetry

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// newIsolatedMetrics builds a Metrics struct with plain (non-promauto)
// collectors so tests don't register against Prometheus's global default
// registry — NewMetrics itself is exercised only once, at process startup.
func newIsolatedMetrics() *Metrics {
	return &Metrics{
		TaskCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_goblin_tasks_total", Help: "test",
		}, []string{"goblin_id", "outcome"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "test_goblin_task_duration_seconds", Help: "test",
		}, []string{"goblin_id"}),
		ProviderRequestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_goblin_provider_requests_total", Help: "test",
		}, []string{"provider", "model", "status"}),
		ProviderRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "test_goblin_provider_request_duration_seconds", Help: "test",
		}, []string{"provider", "model"}),
		ProviderErrorCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_goblin_provider_errors_total", Help: "test",
		}, []string{"provider", "kind"}),
		ToolExecutionCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_goblin_tool_executions_total", Help: "test",
		}, []string{"tool_id", "status"}),
		ToolExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "test_goblin_tool_execution_duration_seconds", Help: "test",
		}, []string{"tool_id"}),
		CostUSDTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_goblin_cost_usd_total", Help: "test",
		}, []string{"goblin_id", "provider", "model"}),
		TokensUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_goblin_tokens_total", Help: "test",
		}, []string{"provider", "model", "direction"}),
		ContextWindowUse: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "test_goblin_context_window_tokens", Help: "test",
		}, []string{"provider", "model"}),
		OrchestrationPlansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_goblin_orchestration_plans_total", Help: "test",
		}, []string{"status"}),
		OrchestrationStepTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_goblin_orchestration_steps_total", Help: "test",
		}, []string{"outcome"}),
		HTTPRequestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_goblin_http_requests_total", Help: "test",
		}, []string{"method", "path", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "test_goblin_http_request_duration_seconds", Help: "test",
		}, []string{"method", "path", "status_code"}),
		WSConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "test_goblin_ws_connections", Help: "test",
		}, []string{"endpoint"}),
	}
}

func TestRecordTask(t *testing.T) {
	m := newIsolatedMetrics()
	m.RecordTask("scout", "success", 1.5)
	m.RecordTask("scout", "success", 2.0)
	m.RecordTask("scout", "failure", 0.5)

	if count := testutil.CollectAndCount(m.TaskCounter); count != 2 {
		t.Fatalf("expected 2 label combinations, got %d", count)
	}
	expected := `
		# HELP test_goblin_tasks_total test
		# TYPE test_goblin_tasks_total counter
		test_goblin_tasks_total{goblin_id="scout",outcome="failure"} 1
		test_goblin_tasks_total{goblin_id="scout",outcome="success"} 2
	`
	if err := testutil.CollectAndCompare(m.TaskCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metric value: %v", err)
	}
}

func TestRecordProviderRequestTracksTokensAndErrors(t *testing.T) {
	m := newIsolatedMetrics()
	m.RecordProviderRequest("anthropic", "claude-3", "success", 1.2, 100, 50)
	m.RecordProviderRequest("anthropic", "claude-3", "error", 0.1, 0, 0)
	m.RecordProviderError("anthropic", "timeout")

	if got := testutil.ToFloat64(m.ProviderRequestCounter.WithLabelValues("anthropic", "claude-3", "success")); got != 1 {
		t.Errorf("expected 1 success request, got %v", got)
	}
	if got := testutil.ToFloat64(m.TokensUsed.WithLabelValues("anthropic", "claude-3", "input")); got != 100 {
		t.Errorf("expected 100 input tokens, got %v", got)
	}
	if got := testutil.ToFloat64(m.TokensUsed.WithLabelValues("anthropic", "claude-3", "output")); got != 50 {
		t.Errorf("expected 50 output tokens, got %v", got)
	}
	if got := testutil.ToFloat64(m.ProviderErrorCounter.WithLabelValues("anthropic", "timeout")); got != 1 {
		t.Errorf("expected 1 provider error, got %v", got)
	}
}

func TestRecordToolExecutionAndCost(t *testing.T) {
	m := newIsolatedMetrics()
	m.RecordToolExecution("run-tests", "success", 2.5)
	m.RecordCost("builder", "anthropic", "claude-3", 0.012)
	m.RecordCost("builder", "anthropic", "claude-3", 0.008)

	if got := testutil.ToFloat64(m.ToolExecutionCounter.WithLabelValues("run-tests", "success")); got != 1 {
		t.Errorf("expected 1 tool execution, got %v", got)
	}
	if got := testutil.ToFloat64(m.CostUSDTotal.WithLabelValues("builder", "anthropic", "claude-3")); got < 0.0199 || got > 0.0201 {
		t.Errorf("expected accumulated cost ~0.02, got %v", got)
	}
}

func TestWSConnectionGauge(t *testing.T) {
	m := newIsolatedMetrics()
	m.WSConnectionOpened("/ws")
	m.WSConnectionOpened("/ws")
	m.WSConnectionClosed("/ws")

	if got := testutil.ToFloat64(m.WSConnections.WithLabelValues("/ws")); got != 1 {
		t.Errorf("expected 1 open connection, got %v", got)
	}
}

func TestRecordOrchestrationPlanAndStep(t *testing.T) {
	m := newIsolatedMetrics()
	m.RecordOrchestrationPlan("completed")
	m.RecordOrchestrationStep("success")
	m.RecordOrchestrationStep("failure")

	if got := testutil.ToFloat64(m.OrchestrationPlansTotal.WithLabelValues("completed")); got != 1 {
		t.Errorf("expected 1 completed plan, got %v", got)
	}
	if count := testutil.CollectAndCount(m.OrchestrationStepTotal); count != 2 {
		t.Errorf("expected 2 step outcomes, got %d", count)
	}
}
