// Package taskexec drives one task through prompt building, provider
// invocation, tool selection, and optional subprocess execution.
package taskexec

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/fuaadabdullah/goblin-runtime/internal/auditsink"
	"github.com/fuaadabdullah/goblin-runtime/internal/catalog"
	"github.com/fuaadabdullah/goblin-runtime/internal/costs"
	"github.com/fuaadabdullah/goblin-runtime/internal/goblinerr"
	"github.com/fuaadabdullah/goblin-runtime/internal/history"
	"github.com/fuaadabdullah/goblin-runtime/internal/llm"
	"github.com/fuaadabdullah/goblin-runtime/internal/model"
	"github.com/fuaadabdullah/goblin-runtime/internal/promptbuilder"
	"github.com/fuaadabdullah/goblin-runtime/internal/telemetry"
	"github.com/fuaadabdullah/goblin-runtime/internal/toolselect"
)

// toolTimeout bounds how long a selected tool's subprocess may run before
// it is killed and reported as a tool timeout.
const toolTimeout = 120 * time.Second

// maxCapturedOutput bounds stdout+stderr capture per subprocess run.
const maxCapturedOutput = 1 << 20 // 1 MiB

// CostRecorder is the subset of the cost tracker the executor needs.
type CostRecorder interface {
	Record(params costs.RecordParams) model.CostEntry
}

// Executor runs tasks to completion against a catalog, a provider registry,
// a history store, and an audit sink. It is safe for concurrent use: each
// call to Run holds no executor-wide lock across provider calls or
// subprocess execution.
type Executor struct {
	Catalog  *catalog.Store
	Registry *llm.Registry
	History  *history.Store
	Costs    CostRecorder
	Audit    *auditsink.Sink
	Logger   *slog.Logger

	// Tracer and Metrics are optional; a nil value disables the
	// corresponding instrumentation without changing task outcomes.
	Tracer  *telemetry.Tracer
	Metrics *telemetry.Metrics
}

// Run executes req end-to-end and returns a TaskResponse. It never returns
// a Go error for a recoverable task failure: those are reported inside the
// response with Succeeded=false, per the local-recovery error design.
func (e *Executor) Run(ctx context.Context, req model.TaskRequest) (model.TaskResponse, error) {
	start := time.Now()

	agent, ok := e.Catalog.Agent(req.AgentID)
	if !ok {
		return model.TaskResponse{}, goblinerr.New(goblinerr.KindAgentNotFound, "unknown agent "+req.AgentID)
	}

	e.Audit.Send("taskexec", "task.started", map[string]any{"agentId": agent.ID})

	ctx, span := e.startTaskSpan(ctx, agent.ID)
	resp := e.run(ctx, agent, req, start)
	e.endTaskSpan(span, resp)

	e.History.Append(model.HistoryEntry{
		ID:        historyID(),
		AgentID:   agent.ID,
		TaskText:  req.TaskText,
		Reasoning: resp.ModelReasoning,
		Timestamp: resp.Timestamp,
		KPIs:      resp.KPIs,
		Succeeded: resp.Succeeded,
	})
	e.Audit.Send("taskexec", "task.completed", map[string]any{"agentId": agent.ID, "succeeded": resp.Succeeded})
	e.recordTaskMetric(agent.ID, resp)

	return resp, nil
}

// RunStreaming behaves like Run but drives the provider's streaming path,
// invoking onChunk for each piece of model output as it arrives. The
// returned TaskResponse's ModelReasoning is the concatenation of every
// chunk's Text, and history/cost/audit bookkeeping matches Run exactly.
func (e *Executor) RunStreaming(ctx context.Context, req model.TaskRequest, onChunk func(llm.Chunk)) (model.TaskResponse, error) {
	start := time.Now()

	agent, ok := e.Catalog.Agent(req.AgentID)
	if !ok {
		return model.TaskResponse{}, goblinerr.New(goblinerr.KindAgentNotFound, "unknown agent "+req.AgentID)
	}

	e.Audit.Send("taskexec", "task.started", map[string]any{"agentId": agent.ID})

	ctx, span := e.startTaskSpan(ctx, agent.ID)
	resp := e.runStreaming(ctx, agent, req, start, onChunk)
	e.endTaskSpan(span, resp)

	e.History.Append(model.HistoryEntry{
		ID:        historyID(),
		AgentID:   agent.ID,
		TaskText:  req.TaskText,
		Reasoning: resp.ModelReasoning,
		Timestamp: resp.Timestamp,
		KPIs:      resp.KPIs,
		Succeeded: resp.Succeeded,
	})
	e.Audit.Send("taskexec", "task.completed", map[string]any{"agentId": agent.ID, "succeeded": resp.Succeeded})
	e.recordTaskMetric(agent.ID, resp)

	return resp, nil
}

func (e *Executor) runStreaming(ctx context.Context, agent model.Agent, req model.TaskRequest, start time.Time, onChunk func(llm.Chunk)) model.TaskResponse {
	systemPrompt, userPrompt := promptbuilder.Build(agent, req.TaskText, req.Context)

	provider, ok := e.Registry.Select(llm.BrainPreferences{Routers: agent.Brain.Routers, PrefersLocal: agent.Brain.PrefersLocal})
	if !ok {
		return e.errorResponse(agent, req, start, goblinerr.New(goblinerr.KindNoProvider, "no provider available"))
	}

	genStart := time.Now()
	chunks, err := provider.GenerateStream(ctx, userPrompt, llm.GenerateOptions{SystemPrompt: systemPrompt})
	if err != nil {
		e.recordCost(agent, provider.Name(), provider.DefaultModel(), req.TaskText, 0, 0, time.Since(genStart), false)
		return e.errorResponse(agent, req, start, err)
	}

	var reasoning strings.Builder
	var inTok, outTok int
	for chunk := range chunks {
		if onChunk != nil {
			onChunk(chunk)
		}
		if chunk.Err != nil {
			e.recordCost(agent, provider.Name(), provider.DefaultModel(), req.TaskText, inTok, outTok, time.Since(genStart), false)
			return e.errorResponse(agent, req, start, chunk.Err)
		}
		reasoning.WriteString(chunk.Text)
		if chunk.Done {
			inTok, outTok = chunk.InputTokens, chunk.OutputTokens
		}
	}
	genDuration := time.Since(genStart)
	e.recordCost(agent, provider.Name(), provider.DefaultModel(), req.TaskText, inTok, outTok, genDuration, true)

	var toolResult *model.ToolExecutionResult
	if toolNeeded(reasoning.String(), req.TaskText) {
		toolResult = e.runTool(ctx, agent, req)
	}

	duration := time.Since(start)
	succeeded := toolResult == nil || toolResult.Succeeded
	kpis := buildKPIs(agent, duration, succeeded)

	return model.TaskResponse{
		AgentID:             agent.ID,
		TaskText:            req.TaskText,
		ToolExecutionResult: toolResult,
		ModelReasoning:      reasoning.String(),
		Timestamp:           time.Now(),
		DurationMS:          duration.Milliseconds(),
		Succeeded:           succeeded,
		KPIs:                kpis,
	}
}

func (e *Executor) run(ctx context.Context, agent model.Agent, req model.TaskRequest, start time.Time) model.TaskResponse {
	systemPrompt, userPrompt := promptbuilder.Build(agent, req.TaskText, req.Context)

	provider, ok := e.Registry.Select(llm.BrainPreferences{Routers: agent.Brain.Routers, PrefersLocal: agent.Brain.PrefersLocal})
	if !ok {
		return e.errorResponse(agent, req, start, goblinerr.New(goblinerr.KindNoProvider, "no provider available"))
	}

	genStart := time.Now()
	reasoning, err := provider.Generate(ctx, userPrompt, llm.GenerateOptions{SystemPrompt: systemPrompt})
	genDuration := time.Since(genStart)
	if err != nil {
		e.recordCost(agent, provider.Name(), provider.DefaultModel(), req.TaskText, 0, 0, genDuration, false)
		return e.errorResponse(agent, req, start, err)
	}
	e.recordCost(agent, provider.Name(), provider.DefaultModel(), req.TaskText, len(userPrompt)/4, len(reasoning)/4, genDuration, true)

	var toolResult *model.ToolExecutionResult
	if toolNeeded(reasoning, req.TaskText) {
		toolResult = e.runTool(ctx, agent, req)
	}

	duration := time.Since(start)
	succeeded := toolResult == nil || toolResult.Succeeded
	kpis := buildKPIs(agent, duration, succeeded)

	return model.TaskResponse{
		AgentID:             agent.ID,
		TaskText:            req.TaskText,
		ToolExecutionResult: toolResult,
		ModelReasoning:      reasoning,
		Timestamp:           time.Now(),
		DurationMS:          duration.Milliseconds(),
		Succeeded:           succeeded,
		KPIs:                kpis,
	}
}

func (e *Executor) errorResponse(agent model.Agent, req model.TaskRequest, start time.Time, err error) model.TaskResponse {
	duration := time.Since(start)
	return model.TaskResponse{
		AgentID:        agent.ID,
		TaskText:       req.TaskText,
		ModelReasoning: "Error: " + err.Error(),
		Timestamp:      time.Now(),
		DurationMS:     duration.Milliseconds(),
		Succeeded:      false,
		KPIs:           buildKPIs(agent, duration, false),
	}
}

func (e *Executor) recordCost(agent model.Agent, provider, modelName, taskText string, inTok, outTok int, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	if e.Metrics != nil {
		e.Metrics.RecordProviderRequest(provider, modelName, status, duration.Seconds(), inTok, outTok)
		if !success {
			e.Metrics.RecordProviderError(provider, "generate")
		}
	}
	if e.Costs == nil {
		return
	}
	entry := e.Costs.Record(costs.RecordParams{
		AgentID:      agent.ID,
		Guild:        agent.Guild,
		Provider:     provider,
		Model:        modelName,
		TaskText:     taskText,
		InputTokens:  inTok,
		OutputTokens: outTok,
		DurationMS:   duration.Milliseconds(),
		Success:      success,
		Timestamp:    time.Now(),
	})
	if e.Metrics != nil {
		e.Metrics.RecordCost(agent.ID, provider, modelName, entry.CostUSD)
	}
}

// startTaskSpan opens the task-execution span, a no-op if Tracer is unset.
func (e *Executor) startTaskSpan(ctx context.Context, agentID string) (context.Context, trace.Span) {
	if e.Tracer == nil {
		return ctx, nil
	}
	return e.Tracer.TraceTaskExecution(ctx, agentID)
}

// endTaskSpan records the task outcome on span and ends it.
func (e *Executor) endTaskSpan(span trace.Span, resp model.TaskResponse) {
	if span == nil {
		return
	}
	if !resp.Succeeded {
		e.Tracer.RecordError(span, goblinerr.New(goblinerr.KindTaskFailed, resp.ModelReasoning))
	}
	span.End()
}

func (e *Executor) recordTaskMetric(agentID string, resp model.TaskResponse) {
	if e.Metrics == nil {
		return
	}
	outcome := "success"
	if !resp.Succeeded {
		outcome = "failure"
	}
	e.Metrics.RecordTask(agentID, outcome, float64(resp.DurationMS)/1000)
}

// toolNeeded implements the tool-trigger heuristic: the EXECUTE_TOOL:
// marker in the model's output, or an action verb in the task text.
func toolNeeded(reasoning, taskText string) bool {
	if strings.Contains(reasoning, "EXECUTE_TOOL:") {
		return true
	}
	return toolselect.HasActionVerb(taskText)
}

func (e *Executor) runTool(ctx context.Context, agent model.Agent, req model.TaskRequest) *model.ToolExecutionResult {
	sel, err := toolselect.Select(agent, req.TaskText, e.Catalog.Tools())
	if err != nil {
		e.Logger.Warn("tool selection denied", "agent", agent.ID, "error", err)
		return nil
	}
	if sel.NoTool {
		return nil
	}

	e.Audit.Send("taskexec", "tool.invoked", map[string]any{"agentId": agent.ID, "toolId": sel.ToolID})

	if req.DryRun {
		return &model.ToolExecutionResult{
			ToolID:         sel.ToolID,
			Command:        sel.Command,
			CombinedOutput: model.DryRunSentinel,
			ExitCode:       0,
			Succeeded:      true,
		}
	}

	return e.execSubprocess(ctx, sel.ToolID, sel.Command)
}

func (e *Executor) execSubprocess(ctx context.Context, toolID, command string) *model.ToolExecutionResult {
	toolStart := time.Now()
	ctx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	var buf boundedBuffer
	buf.limit = maxCapturedOutput
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	exitCode := 0
	succeeded := err == nil

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			exitCode = -1
			buf.WriteString("\n[tool timed out after 120s]")
		} else if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	if e.Metrics != nil {
		status := "success"
		if !succeeded {
			status = "error"
		}
		e.Metrics.RecordToolExecution(toolID, status, time.Since(toolStart).Seconds())
	}

	return &model.ToolExecutionResult{
		ToolID:         toolID,
		Command:        command,
		CombinedOutput: buf.String(),
		ExitCode:       exitCode,
		Succeeded:      succeeded,
	}
}

// boundedBuffer caps how much output it retains, silently dropping bytes
// beyond limit rather than growing without bound.
type boundedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *boundedBuffer) WriteString(s string) { b.Write([]byte(s)) }

func (b *boundedBuffer) String() string { return b.buf.String() }

// buildKPIs fills in the fixed KPI set plus zero defaults for any
// agent-declared KPI name the runtime doesn't synthesize a value for.
func buildKPIs(agent model.Agent, duration time.Duration, success bool) map[string]float64 {
	kpis := map[string]float64{
		"duration_ms":            float64(duration.Milliseconds()),
		"success":                boolToFloat(success),
		"task_completion_time_s": duration.Seconds(),
	}
	for _, name := range agent.KPIs {
		if _, ok := kpis[name]; !ok {
			kpis[name] = 0
		}
	}
	return kpis
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func historyID() string { return uuid.NewString() }
