package orchestration

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fuaadabdullah/goblin-runtime/internal/model"
)

// TaskRunner is the subset of the task executor the scheduler needs to
// drive one orchestration step. model.TaskRequest/TaskResponse already
// match internal/taskexec.Executor.Run's signature, so that type satisfies
// this interface without either package importing the other.
type TaskRunner interface {
	Run(ctx context.Context, req model.TaskRequest) (model.TaskResponse, error)
}

// ProgressFunc is called after each step terminates, for optional push to
// clients. It must not block the scheduling loop for long.
type ProgressFunc func(plan *model.OrchestrationPlan, step model.OrchestrationStep)

// Scheduler drives one OrchestrationPlan to a terminal state using the
// topological, batched algorithm: each pass computes the set of
// dependency-satisfied steps, evaluates their conditions, and launches the
// eligible ones concurrently against TaskRunner.
type Scheduler struct {
	Runner   TaskRunner
	Progress ProgressFunc

	mu        sync.Mutex
	plan      *model.OrchestrationPlan
	cancelled bool
}

// NewScheduler builds a Scheduler bound to plan.
func NewScheduler(plan *model.OrchestrationPlan, runner TaskRunner, progress ProgressFunc) *Scheduler {
	return &Scheduler{plan: plan, Runner: runner, Progress: progress}
}

// Cancel flips the plan-local cancellation flag, checked at the top of
// every scheduling pass and before launching each step.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

func (s *Scheduler) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

type stepOutcome struct {
	index  int
	status model.StepStatus
	result model.StepResult
}

// Run drives the plan to a terminal status and returns it.
func (s *Scheduler) Run(ctx context.Context) *model.OrchestrationPlan {
	plan := s.plan
	plan.Status = model.PlanRunning

	outputs := make(map[string]string, len(plan.Steps))
	outcomes := make(chan stepOutcome, len(plan.Steps))
	inFlight := 0

	for {
		if s.isCancelled() {
			s.cancelAllNonTerminal(plan)
			if inFlight == 0 {
				plan.Status = model.PlanCancelled
				return plan
			}
			// Drain in-flight outcomes without launching new work, then exit.
			for inFlight > 0 {
				outcome := <-outcomes
				inFlight--
				s.applyOutcome(plan, outputs, outcome)
			}
			plan.Status = model.PlanCancelled
			return plan
		}

		ready := readySteps(plan)
		if len(ready) == 0 && inFlight == 0 {
			plan.Status = finalStatus(plan)
			return plan
		}

		for _, idx := range ready {
			step := &plan.Steps[idx]
			eligible, skip := evaluateCondition(*step, plan, outputs)
			if skip {
				step.Status = model.StepSkipped
				s.notify(plan, *step)
				continue
			}
			if !eligible {
				continue
			}
			if s.isCancelled() {
				break
			}
			step.Status = model.StepRunning
			inFlight++
			go s.runStep(ctx, plan.Steps[idx], idx, outcomes)
		}

		if inFlight == 0 {
			continue
		}
		outcome := <-outcomes
		inFlight--
		s.applyOutcome(plan, outputs, outcome)
	}
}

func (s *Scheduler) runStep(ctx context.Context, step model.OrchestrationStep, idx int, outcomes chan<- stepOutcome) {
	start := time.Now()
	resp, err := s.Runner.Run(ctx, model.TaskRequest{AgentID: step.AgentID, TaskText: step.TaskText})
	duration := time.Since(start).Milliseconds()

	if err != nil {
		outcomes <- stepOutcome{index: idx, status: model.StepFailed, result: model.StepResult{
			DurationMS:   duration,
			ErrorMessage: err.Error(),
		}}
		return
	}

	output := resp.ModelReasoning
	if resp.ToolExecutionResult != nil {
		output += resp.ToolExecutionResult.CombinedOutput
	}

	if !resp.Succeeded {
		outcomes <- stepOutcome{index: idx, status: model.StepFailed, result: model.StepResult{
			Output:       output,
			DurationMS:   duration,
			ErrorMessage: output,
		}}
		return
	}

	outcomes <- stepOutcome{index: idx, status: model.StepCompleted, result: model.StepResult{
		Output:     output,
		DurationMS: duration,
	}}
}

func (s *Scheduler) applyOutcome(plan *model.OrchestrationPlan, outputs map[string]string, outcome stepOutcome) {
	step := &plan.Steps[outcome.index]
	step.Status = outcome.status
	result := outcome.result
	step.Result = &result
	outputs[step.ID] = result.Output
	s.notify(plan, *step)
}

func (s *Scheduler) notify(plan *model.OrchestrationPlan, step model.OrchestrationStep) {
	if s.Progress != nil {
		s.Progress(plan, step)
	}
}

func (s *Scheduler) cancelAllNonTerminal(plan *model.OrchestrationPlan) {
	for i := range plan.Steps {
		if !isTerminal(plan.Steps[i].Status) {
			plan.Steps[i].Status = model.StepCancelled
		}
	}
}

func isTerminal(status model.StepStatus) bool {
	switch status {
	case model.StepCompleted, model.StepFailed, model.StepSkipped, model.StepCancelled:
		return true
	default:
		return false
	}
}

// readySteps returns the indices of steps that are pending with every
// dependency in a terminal state.
func readySteps(plan *model.OrchestrationPlan) []int {
	var ready []int
	for i, step := range plan.Steps {
		if step.Status != model.StepPending {
			continue
		}
		allTerminal := true
		for _, depID := range step.Dependencies {
			dep := findStep(plan, depID)
			if dep == nil || !isTerminal(dep.Status) {
				allTerminal = false
				break
			}
		}
		if allTerminal {
			ready = append(ready, i)
		}
	}
	return ready
}

func findStep(plan *model.OrchestrationPlan, id string) *model.OrchestrationStep {
	for i := range plan.Steps {
		if plan.Steps[i].ID == id {
			return &plan.Steps[i]
		}
	}
	return nil
}

// evaluateCondition reports whether a ready step is eligible to run now,
// or should instead be marked skipped.
func evaluateCondition(step model.OrchestrationStep, plan *model.OrchestrationPlan, outputs map[string]string) (eligible, skip bool) {
	if step.Condition == nil {
		return true, false
	}
	switch step.Condition.Operator {
	case model.IfSuccess:
		for _, depID := range step.Dependencies {
			dep := findStep(plan, depID)
			if dep == nil || dep.Status != model.StepCompleted {
				return false, true
			}
		}
		return true, false
	case model.IfFailure:
		for _, depID := range step.Dependencies {
			dep := findStep(plan, depID)
			if dep != nil && dep.Status == model.StepFailed {
				return true, false
			}
		}
		return false, true
	case model.IfContains:
		var combined strings.Builder
		for _, depID := range step.Dependencies {
			combined.WriteString(outputs[depID])
		}
		if strings.Contains(combined.String(), step.Condition.Value) {
			return true, false
		}
		return false, true
	}
	return true, false
}

// finalStatus computes the plan's terminal status once no step is ready
// and none is running: failed if any step failed, completed otherwise.
func finalStatus(plan *model.OrchestrationPlan) model.PlanStatus {
	for _, step := range plan.Steps {
		if step.Status == model.StepFailed {
			return model.PlanFailed
		}
	}
	return model.PlanCompleted
}
