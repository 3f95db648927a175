package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the set of Prometheus collectors exposed at /metrics,
// covering task execution, provider calls, cost, and orchestration.
type Metrics struct {
	TaskCounter  *prometheus.CounterVec
	TaskDuration *prometheus.HistogramVec

	ProviderRequestCounter  *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
	ProviderErrorCounter    *prometheus.CounterVec

	ToolExecutionCounter  *prometheus.CounterVec
	ToolExecutionDuration *prometheus.HistogramVec

	CostUSDTotal     *prometheus.CounterVec
	TokensUsed       *prometheus.CounterVec
	ContextWindowUse *prometheus.HistogramVec

	OrchestrationPlansTotal *prometheus.CounterVec
	OrchestrationStepTotal  *prometheus.CounterVec

	HTTPRequestCounter  *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	WSConnections *prometheus.GaugeVec
}

// NewMetrics registers every collector with Prometheus's default registry.
// Call once at startup and mount promhttp.Handler() to serve them.
func NewMetrics() *Metrics {
	return &Metrics{
		TaskCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goblin_tasks_total",
			Help: "Total tasks executed by goblin and outcome",
		}, []string{"goblin_id", "outcome"}),

		TaskDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "goblin_task_duration_seconds",
			Help:    "Task execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"goblin_id"}),

		ProviderRequestCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goblin_provider_requests_total",
			Help: "Total LLM provider requests by provider, model, and status",
		}, []string{"provider", "model", "status"}),

		ProviderRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "goblin_provider_request_duration_seconds",
			Help:    "LLM provider request latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),

		ProviderErrorCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goblin_provider_errors_total",
			Help: "Total LLM provider errors by provider and error kind",
		}, []string{"provider", "kind"}),

		ToolExecutionCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goblin_tool_executions_total",
			Help: "Total toolbelt invocations by tool and status",
		}, []string{"tool_id", "status"}),

		ToolExecutionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "goblin_tool_execution_duration_seconds",
			Help:    "Toolbelt invocation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"tool_id"}),

		CostUSDTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goblin_cost_usd_total",
			Help: "Estimated cost in USD by goblin, provider, and model",
		}, []string{"goblin_id", "provider", "model"}),

		TokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goblin_tokens_total",
			Help: "Tokens consumed by provider, model, and direction",
		}, []string{"provider", "model", "direction"}),

		ContextWindowUse: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "goblin_context_window_tokens",
			Help:    "Total tokens used per request, for context-window sizing",
			Buckets: []float64{1000, 4000, 8000, 16000, 32000, 64000, 128000},
		}, []string{"provider", "model"}),

		OrchestrationPlansTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goblin_orchestration_plans_total",
			Help: "Total orchestration plans by terminal status",
		}, []string{"status"}),

		OrchestrationStepTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goblin_orchestration_steps_total",
			Help: "Total orchestration steps by outcome",
		}, []string{"outcome"}),

		HTTPRequestCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goblin_http_requests_total",
			Help: "Total HTTP requests by method, path, and status code",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "goblin_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "path", "status_code"}),

		WSConnections: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "goblin_ws_connections",
			Help: "Current open WebSocket connections",
		}, []string{"endpoint"}),
	}
}

// RecordTask records a completed task's outcome and duration.
func (m *Metrics) RecordTask(goblinID, outcome string, durationSeconds float64) {
	m.TaskCounter.WithLabelValues(goblinID, outcome).Inc()
	m.TaskDuration.WithLabelValues(goblinID).Observe(durationSeconds)
}

// RecordProviderRequest records one LLM provider call.
func (m *Metrics) RecordProviderRequest(provider, model, status string, durationSeconds float64, inputTokens, outputTokens int) {
	m.ProviderRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if inputTokens > 0 {
		m.TokensUsed.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.TokensUsed.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
	if inputTokens+outputTokens > 0 {
		m.ContextWindowUse.WithLabelValues(provider, model).Observe(float64(inputTokens + outputTokens))
	}
}

// RecordProviderError increments the provider error counter.
func (m *Metrics) RecordProviderError(provider, kind string) {
	m.ProviderErrorCounter.WithLabelValues(provider, kind).Inc()
}

// RecordToolExecution records one toolbelt invocation.
func (m *Metrics) RecordToolExecution(toolID, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolID, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolID).Observe(durationSeconds)
}

// RecordCost adds to the running cost total for a goblin/provider/model.
func (m *Metrics) RecordCost(goblinID, provider, model string, costUSD float64) {
	m.CostUSDTotal.WithLabelValues(goblinID, provider, model).Add(costUSD)
}

// RecordOrchestrationPlan records a plan reaching a terminal status.
func (m *Metrics) RecordOrchestrationPlan(status string) {
	m.OrchestrationPlansTotal.WithLabelValues(status).Inc()
}

// RecordOrchestrationStep records one DAG step's outcome.
func (m *Metrics) RecordOrchestrationStep(outcome string) {
	m.OrchestrationStepTotal.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records one HTTP request/response cycle.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}

// WSConnectionOpened increments the open-connection gauge for endpoint.
func (m *Metrics) WSConnectionOpened(endpoint string) {
	m.WSConnections.WithLabelValues(endpoint).Inc()
}

// WSConnectionClosed decrements the open-connection gauge for endpoint.
func (m *Metrics) WSConnectionClosed(endpoint string) {
	m.WSConnections.WithLabelValues(endpoint).Dec()
}
