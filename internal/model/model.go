// Package model holds the data types shared across the runtime's
// components: the agent catalog, task requests/responses, history entries,
// orchestration plans, and cost entries.
package model

import "time"

// SelectionRule maps a trigger substring to a tool id. An empty ToolID means
// "no tool" for tasks matching Trigger.
type SelectionRule struct {
	Trigger string `yaml:"trigger" json:"trigger"`
	ToolID  string `yaml:"tool,omitempty" json:"tool,omitempty"`
	Note    string `yaml:"note,omitempty" json:"note,omitempty"`
}

// Brain carries an agent's provider preferences: an ordered list of
// provider identifiers to try first, plus a flag preferring the local
// provider when none of the ordered choices are available.
type Brain struct {
	Routers      []string `yaml:"routers,omitempty" json:"routers,omitempty"`
	PrefersLocal bool     `yaml:"prefers_local,omitempty" json:"prefersLocal,omitempty"`
}

// Agent is an immutable LLM persona: its identity, toolbelt, provider
// preferences, and trigger rules. Created at startup from the catalog,
// never mutated thereafter.
type Agent struct {
	ID               string          `yaml:"id" json:"id"`
	Title            string          `yaml:"title" json:"title"`
	Guild            string          `yaml:"-" json:"guild"`
	Responsibilities []string        `yaml:"responsibilities,omitempty" json:"responsibilities,omitempty"`
	KPIs             []string        `yaml:"kpis,omitempty" json:"kpis,omitempty"`
	Brain            Brain           `yaml:"brain" json:"brain"`
	OwnedTools       []string        `yaml:"owned" json:"ownedTools"`
	SelectionRules   []SelectionRule `yaml:"selection_rules,omitempty" json:"selectionRules,omitempty"`
}

// OwnsTool reports whether the agent's toolbelt includes toolID.
func (a *Agent) OwnsTool(toolID string) bool {
	for _, id := range a.OwnedTools {
		if id == toolID {
			return true
		}
	}
	return false
}

// Tool is one shell command a guild's toolbelt exposes, owned by a single
// agent within that guild.
type Tool struct {
	ID           string `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	HumanSummary string `yaml:"summary" json:"humanSummary"`
	OwnerAgentID string `yaml:"owner" json:"ownerAgentId"`
	Command      string `yaml:"command" json:"commandString"`
}

// Guild groups agents that share a toolbelt. Members holds agent ids; the
// full Agent records live in the catalog's agent index to avoid duplication.
type Guild struct {
	Name     string   `yaml:"name" json:"name"`
	Charter  string   `yaml:"charter" json:"charter"`
	Toolbelt []Tool   `yaml:"toolbelt,omitempty" json:"toolbelt,omitempty"`
	Members  []string `yaml:"members" json:"members"`
}

// ScheduledTrigger fires a named orchestration plan on a cron schedule,
// loaded alongside the catalog.
type ScheduledTrigger struct {
	Name              string `yaml:"name" json:"name"`
	CronExpr          string `yaml:"cron_expr" json:"cronExpr"`
	OrchestrationText string `yaml:"orchestration_text" json:"orchestrationText"`
	DefaultAgentID    string `yaml:"default_agent_id,omitempty" json:"defaultAgentId,omitempty"`
}

// TaskRequest is produced by the server on each /api/execute call.
type TaskRequest struct {
	AgentID  string            `json:"agentId"`
	TaskText string            `json:"task"`
	Context  map[string]string `json:"context,omitempty"`
	DryRun   bool              `json:"dryRun,omitempty"`
}

// ToolExecutionResult captures the outcome of one subprocess invocation, or
// is absent entirely when no tool was selected.
type ToolExecutionResult struct {
	ToolID         string `json:"toolId"`
	Command        string `json:"command"`
	CombinedOutput string `json:"combinedOutput"`
	ExitCode       int    `json:"exitCode"`
	Succeeded      bool   `json:"succeeded"`
}

// DryRunSentinel is the combined output recorded for a dry-run tool
// invocation.
const DryRunSentinel = "(dry-run)"

// TaskResponse is the result of one executed task, appended to history and
// returned to the caller.
type TaskResponse struct {
	AgentID             string               `json:"agentId"`
	TaskText            string               `json:"task"`
	ToolExecutionResult *ToolExecutionResult `json:"toolExecutionResult,omitempty"`
	ModelReasoning      string               `json:"modelReasoning"`
	Timestamp           time.Time            `json:"timestamp"`
	DurationMS          int64                `json:"durationMs"`
	Succeeded           bool                 `json:"succeeded"`
	KPIs                map[string]float64   `json:"kpis"`
}

// HistoryEntry is one append-only record of a completed task, scoped to a
// single agent.
type HistoryEntry struct {
	ID        string             `json:"id"`
	AgentID   string             `json:"agentId"`
	TaskText  string             `json:"task"`
	Reasoning string             `json:"reasoning"`
	Timestamp time.Time          `json:"timestamp"`
	KPIs      map[string]float64 `json:"kpis"`
	Succeeded bool               `json:"succeeded"`
}

// StepStatus is the lifecycle state of one orchestration step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
	StepCancelled StepStatus = "cancelled"
)

// ConditionOperator names the conditional-skip rule attached to a step.
type ConditionOperator string

const (
	IfSuccess  ConditionOperator = "IF_SUCCESS"
	IfFailure  ConditionOperator = "IF_FAILURE"
	IfContains ConditionOperator = "IF_CONTAINS"
)

// Condition gates whether a step runs once its dependencies reach a
// terminal state.
type Condition struct {
	Operator ConditionOperator `json:"operator"`
	Value    string            `json:"value,omitempty"`
}

// StepResult is recorded when a step reaches a terminal state.
type StepResult struct {
	Output       string `json:"output,omitempty"`
	DurationMS   int64  `json:"durationMs"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// OrchestrationStep is one unit of execution inside a plan, dispatched to a
// single agent with a single task string.
type OrchestrationStep struct {
	ID           string      `json:"id"`
	AgentID      string      `json:"agentId"`
	TaskText     string      `json:"task"`
	Dependencies []string    `json:"dependencies"`
	Condition    *Condition  `json:"condition,omitempty"`
	Status       StepStatus  `json:"status"`
	Result       *StepResult `json:"result,omitempty"`
}

// PlanStatus is the lifecycle state of an orchestration plan.
type PlanStatus string

const (
	PlanPending   PlanStatus = "pending"
	PlanRunning   PlanStatus = "running"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
	PlanCancelled PlanStatus = "cancelled"
)

// PlanMetadata carries scheduling-derived facts about a plan.
type PlanMetadata struct {
	ParallelBatches        int    `json:"parallelBatches"`
	EstimatedDurationLabel string `json:"estimatedDurationLabel,omitempty"`
}

// OrchestrationPlan is a DAG of steps produced by the parser and driven to
// completion by the scheduler.
type OrchestrationPlan struct {
	ID       string              `json:"id"`
	RawText  string              `json:"rawText"`
	Steps    []OrchestrationStep `json:"steps"`
	Status   PlanStatus          `json:"status"`
	Metadata PlanMetadata        `json:"metadata"`
}

// TokenUsage is the token accounting attached to one billed model call.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// CostEntry is one record of a billed model call, retained in a bounded
// ring by the cost tracker.
type CostEntry struct {
	ID         string     `json:"id"`
	AgentID    string     `json:"agentId"`
	Guild      string     `json:"guild"`
	Provider   string     `json:"provider"`
	Model      string     `json:"model"`
	TaskText   string     `json:"task"`
	Tokens     TokenUsage `json:"tokens"`
	DurationMS int64      `json:"durationMs"`
	Success    bool       `json:"success"`
	CostUSD    float64    `json:"costUsd"`
	Timestamp  time.Time  `json:"timestamp"`
}
