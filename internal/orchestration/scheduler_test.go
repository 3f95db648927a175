package orchestration

import (
	"context"
	"errors"
	"testing"

	"github.com/fuaadabdullah/goblin-runtime/internal/model"
)

// scriptedRunner resolves a canned TaskResponse per agent id, defaulting to
// a successful response for any agent not explicitly scripted.
type scriptedRunner struct {
	outcomes map[string]model.TaskResponse
	errs     map[string]error
	calls    []string
}

func (r *scriptedRunner) Run(ctx context.Context, req model.TaskRequest) (model.TaskResponse, error) {
	r.calls = append(r.calls, req.AgentID)
	if err, ok := r.errs[req.AgentID]; ok {
		return model.TaskResponse{}, err
	}
	if resp, ok := r.outcomes[req.AgentID]; ok {
		return resp, nil
	}
	return model.TaskResponse{Succeeded: true, ModelReasoning: "ok"}, nil
}

func stepWith(id, agentID string, deps []string, cond *model.Condition) model.OrchestrationStep {
	return model.OrchestrationStep{
		ID:           id,
		AgentID:      agentID,
		TaskText:     "do work",
		Dependencies: deps,
		Condition:    cond,
		Status:       model.StepPending,
	}
}

func TestSchedulerRunsSequenceToCompletion(t *testing.T) {
	plan := &model.OrchestrationPlan{
		ID: "p1",
		Steps: []model.OrchestrationStep{
			stepWith("s1", "builder", nil, nil),
			stepWith("s2", "reviewer", []string{"s1"}, nil),
		},
		Status: model.PlanPending,
	}
	runner := &scriptedRunner{outcomes: map[string]model.TaskResponse{}}
	sched := NewScheduler(plan, runner, nil)
	result := sched.Run(context.Background())

	if result.Status != model.PlanCompleted {
		t.Fatalf("expected PlanCompleted, got %v", result.Status)
	}
	for _, step := range result.Steps {
		if step.Status != model.StepCompleted {
			t.Fatalf("expected all steps completed, got %+v", step)
		}
	}
}

func TestSchedulerIfSuccessSkipsAfterFailure(t *testing.T) {
	plan := &model.OrchestrationPlan{
		ID: "p1",
		Steps: []model.OrchestrationStep{
			stepWith("s1", "builder", nil, nil),
			stepWith("s2", "reviewer", []string{"s1"}, &model.Condition{Operator: model.IfSuccess}),
		},
		Status: model.PlanPending,
	}
	runner := &scriptedRunner{outcomes: map[string]model.TaskResponse{
		"builder": {Succeeded: false, ModelReasoning: "build failed"},
	}}
	sched := NewScheduler(plan, runner, nil)
	result := sched.Run(context.Background())

	if result.Steps[0].Status != model.StepFailed {
		t.Fatalf("expected s1 failed, got %v", result.Steps[0].Status)
	}
	if result.Steps[1].Status != model.StepSkipped {
		t.Fatalf("expected s2 skipped on IF_SUCCESS after failure, got %v", result.Steps[1].Status)
	}
	if result.Status != model.PlanFailed {
		t.Fatalf("expected PlanFailed, got %v", result.Status)
	}
}

func TestSchedulerIfFailureRunsOnlyAfterFailure(t *testing.T) {
	plan := &model.OrchestrationPlan{
		ID: "p1",
		Steps: []model.OrchestrationStep{
			stepWith("s1", "builder", nil, nil),
			stepWith("s2", "ops", []string{"s1"}, &model.Condition{Operator: model.IfFailure}),
		},
		Status: model.PlanPending,
	}
	runner := &scriptedRunner{outcomes: map[string]model.TaskResponse{
		"builder": {Succeeded: false, ModelReasoning: "build failed"},
	}}
	sched := NewScheduler(plan, runner, nil)
	result := sched.Run(context.Background())

	if result.Steps[1].Status != model.StepCompleted {
		t.Fatalf("expected s2 to run after dependency failure, got %v", result.Steps[1].Status)
	}
}

func TestSchedulerIfFailureSkippedAfterSuccess(t *testing.T) {
	plan := &model.OrchestrationPlan{
		ID: "p1",
		Steps: []model.OrchestrationStep{
			stepWith("s1", "builder", nil, nil),
			stepWith("s2", "ops", []string{"s1"}, &model.Condition{Operator: model.IfFailure}),
		},
		Status: model.PlanPending,
	}
	runner := &scriptedRunner{}
	sched := NewScheduler(plan, runner, nil)
	result := sched.Run(context.Background())

	if result.Steps[1].Status != model.StepSkipped {
		t.Fatalf("expected s2 skipped after dependency success, got %v", result.Steps[1].Status)
	}
	if result.Status != model.PlanCompleted {
		t.Fatalf("expected PlanCompleted, got %v", result.Status)
	}
}

func TestSchedulerIfContainsMatchesDependencyOutput(t *testing.T) {
	plan := &model.OrchestrationPlan{
		ID: "p1",
		Steps: []model.OrchestrationStep{
			stepWith("s1", "reviewer", nil, nil),
			stepWith("s2", "notifier", []string{"s1"}, &model.Condition{Operator: model.IfContains, Value: "LGTM"}),
		},
		Status: model.PlanPending,
	}
	runner := &scriptedRunner{outcomes: map[string]model.TaskResponse{
		"reviewer": {Succeeded: true, ModelReasoning: "looks good, LGTM"},
	}}
	sched := NewScheduler(plan, runner, nil)
	result := sched.Run(context.Background())

	if result.Steps[1].Status != model.StepCompleted {
		t.Fatalf("expected s2 to run when dependency output contains the match string, got %v", result.Steps[1].Status)
	}
}

func TestSchedulerIfContainsSkipsWhenAbsent(t *testing.T) {
	plan := &model.OrchestrationPlan{
		ID: "p1",
		Steps: []model.OrchestrationStep{
			stepWith("s1", "reviewer", nil, nil),
			stepWith("s2", "notifier", []string{"s1"}, &model.Condition{Operator: model.IfContains, Value: "LGTM"}),
		},
		Status: model.PlanPending,
	}
	runner := &scriptedRunner{outcomes: map[string]model.TaskResponse{
		"reviewer": {Succeeded: true, ModelReasoning: "needs changes"},
	}}
	sched := NewScheduler(plan, runner, nil)
	result := sched.Run(context.Background())

	if result.Steps[1].Status != model.StepSkipped {
		t.Fatalf("expected s2 skipped when dependency output lacks the match string, got %v", result.Steps[1].Status)
	}
}

func TestSchedulerUnconditionedStepRunsDespiteDependencyFailure(t *testing.T) {
	plan := &model.OrchestrationPlan{
		ID: "p1",
		Steps: []model.OrchestrationStep{
			stepWith("s1", "builder", nil, nil),
			stepWith("s2", "reviewer", []string{"s1"}, nil),
		},
		Status: model.PlanPending,
	}
	runner := &scriptedRunner{outcomes: map[string]model.TaskResponse{
		"builder": {Succeeded: false, ModelReasoning: "build failed"},
	}}
	sched := NewScheduler(plan, runner, nil)
	result := sched.Run(context.Background())

	if result.Steps[1].Status != model.StepCompleted {
		t.Fatalf("expected unconditioned dependent to run regardless of dependency failure, got %v", result.Steps[1].Status)
	}
	if result.Status != model.PlanFailed {
		t.Fatalf("expected PlanFailed because s1 failed, got %v", result.Status)
	}
}

func TestSchedulerRunnerErrorMarksStepFailed(t *testing.T) {
	plan := &model.OrchestrationPlan{
		ID:     "p1",
		Steps:  []model.OrchestrationStep{stepWith("s1", "builder", nil, nil)},
		Status: model.PlanPending,
	}
	runner := &scriptedRunner{errs: map[string]error{"builder": errors.New("boom")}}
	sched := NewScheduler(plan, runner, nil)
	result := sched.Run(context.Background())

	if result.Steps[0].Status != model.StepFailed {
		t.Fatalf("expected step failed on runner error, got %v", result.Steps[0].Status)
	}
	if result.Steps[0].Result == nil || result.Steps[0].Result.ErrorMessage != "boom" {
		t.Fatalf("expected error message recorded, got %+v", result.Steps[0].Result)
	}
}

func TestSchedulerCancelMarksNonTerminalStepsCancelled(t *testing.T) {
	plan := &model.OrchestrationPlan{
		ID: "p1",
		Steps: []model.OrchestrationStep{
			stepWith("s1", "builder", nil, nil),
			stepWith("s2", "reviewer", []string{"s1"}, nil),
		},
		Status: model.PlanPending,
	}
	runner := &scriptedRunner{}
	sched := NewScheduler(plan, runner, nil)
	sched.Cancel()
	result := sched.Run(context.Background())

	if result.Status != model.PlanCancelled {
		t.Fatalf("expected PlanCancelled, got %v", result.Status)
	}
	for _, step := range result.Steps {
		if step.Status != model.StepCancelled {
			t.Fatalf("expected all non-terminal steps cancelled, got %+v", step)
		}
	}
}
