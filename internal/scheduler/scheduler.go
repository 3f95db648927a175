// Package scheduler fires named orchestration plans on a cron schedule,
// loaded from the catalog's scheduled_triggers.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/fuaadabdullah/goblin-runtime/internal/auditsink"
	"github.com/fuaadabdullah/goblin-runtime/internal/model"
	"github.com/fuaadabdullah/goblin-runtime/internal/orchestration"
	"github.com/fuaadabdullah/goblin-runtime/internal/telemetry"
)

// planRunTimeout bounds how long one triggered orchestration plan may run
// before its context is cancelled.
const planRunTimeout = 15 * time.Minute

// Scheduler drives cron-scheduled orchestration plans against a TaskRunner,
// wrapping github.com/robfig/cron/v3's entry scheduler.
type Scheduler struct {
	cron   *cron.Cron
	runner orchestration.TaskRunner
	audit  *auditsink.Sink
	logger *slog.Logger

	tracer  *telemetry.Tracer
	metrics *telemetry.Metrics
}

// New builds a Scheduler. audit and logger may be nil; runner must not be.
func New(runner orchestration.TaskRunner, audit *auditsink.Sink, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron:   cron.New(cron.WithParser(parser)),
		runner: runner,
		audit:  audit,
		logger: logger,
	}
}

// WithTelemetry attaches optional tracing and metrics, returning s for
// chaining at construction time.
func (s *Scheduler) WithTelemetry(tracer *telemetry.Tracer, metrics *telemetry.Metrics) *Scheduler {
	s.tracer = tracer
	s.metrics = metrics
	return s
}

// Load registers one cron entry per trigger. A malformed cron expression on
// any trigger aborts the whole load and returns an error; callers should
// treat catalog loading and trigger loading as one atomic startup step.
func (s *Scheduler) Load(triggers []model.ScheduledTrigger) error {
	for _, trigger := range triggers {
		trigger := trigger
		if _, err := s.cron.AddFunc(trigger.CronExpr, func() { s.fire(trigger) }); err != nil {
			return fmt.Errorf("scheduling trigger %q: %w", trigger.Name, err)
		}
	}
	return nil
}

// sendAudit records an audit event if an audit sink is configured.
func (s *Scheduler) sendAudit(action string, fields map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Send("scheduler", action, fields)
}

// fire parses and runs one trigger's orchestration text to completion. It
// never panics or propagates an error to the cron runtime: parse and
// execution failures are logged and audited, not retried.
func (s *Scheduler) fire(trigger model.ScheduledTrigger) {
	s.logger.Info("scheduled trigger firing", "name", trigger.Name)
	s.sendAudit("trigger.fired", map[string]any{"name": trigger.Name})

	ctx := context.Background()
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, "scheduler.trigger", trace.SpanKindInternal)
		defer span.End()
	}

	plan, err := orchestration.Parse(trigger.OrchestrationText, trigger.DefaultAgentID)
	if err != nil {
		s.logger.Error("scheduled trigger parse failed", "name", trigger.Name, "error", err)
		s.sendAudit("trigger.parse_failed", map[string]any{"name": trigger.Name, "error": err.Error()})
		if span != nil {
			s.tracer.RecordError(span, err)
		}
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, planRunTimeout)
	defer cancel()

	result := orchestration.NewScheduler(plan, s.runner, nil).Run(runCtx)

	s.logger.Info("scheduled trigger completed", "name", trigger.Name, "status", result.Status)
	s.sendAudit("trigger.completed", map[string]any{"name": trigger.Name, "status": string(result.Status)})
	if s.metrics != nil {
		s.metrics.RecordOrchestrationPlan(string(result.Status))
	}
}

// Start begins firing scheduled triggers in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops firing new triggers and waits for in-flight ones to finish,
// returning a context that is done once that wait completes.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }
