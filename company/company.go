// Package company implements the work-plan orchestrator: a manager agent
// analyzes a task, lays out a plan assigning steps to registered agents,
// and a sequential state machine walks the plan, threading partial results
// between steps via |||tag markers parsed out of free-form model output.
package company

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/netmind-ai/autocompany/agent"
	"github.com/netmind-ai/autocompany/llm"
)

// Result is the artifact of one orchestration run.
type Result struct {
	RunID      string `json:"run_id"`
	Task       string `json:"task"`
	Analysis   string `json:"analysis"`
	Plan       *Plan  `json:"plan,omitempty"`
	History    string `json:"history,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Transcript string `json:"transcript"`

	// Unsolvable is set when task analysis declared the roster unable to
	// handle the task. A normal outcome, not an error: Plan, History and
	// Summary stay empty.
	Unsolvable bool `json:"unsolvable"`
}

// RecordStore persists finished runs. Implemented by persistence.Store.
type RecordStore interface {
	SaveRun(ctx context.Context, result *Result, status string) error
}

// Company owns a roster of agents and drives work plans over them.
type Company struct {
	roster    *agent.Roster
	manager   *Manager
	formatter *Formatter

	stepBudget int
	logger     *zap.Logger
	tracer     trace.Tracer
	metrics    Metrics
	store      RecordStore
}

// Option configures a Company.
type Option func(*Company)

// WithLogger sets the company logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Company) { c.logger = logger }
}

// WithStepBudget overrides DefaultStepBudget.
func WithStepBudget(budget int) Option {
	return func(c *Company) { c.stepBudget = budget }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(c *Company) { c.metrics = m }
}

// WithRecordStore persists every finished run.
func WithRecordStore(store RecordStore) Option {
	return func(c *Company) { c.store = store }
}

// WithManager replaces the default manager, e.g. to pin a model.
func WithManager(m *Manager) Option {
	return func(c *Company) { c.manager = m }
}

// WithFormatter replaces the default input formatter.
func WithFormatter(f *Formatter) Option {
	return func(c *Company) { c.formatter = f }
}

// New creates a company whose manager and formatter run on provider.
func New(provider llm.Provider, opts ...Option) *Company {
	c := &Company{
		roster:     agent.NewRoster(),
		stepBudget: DefaultStepBudget,
		logger:     zap.NewNop(),
		tracer:     otel.Tracer("autocompany/company"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.manager == nil {
		c.manager = NewManager(provider, WithManagerLogger(c.logger))
	}
	if c.formatter == nil {
		c.formatter = NewFormatter(provider, WithFormatterLogger(c.logger))
	}
	c.logger = c.logger.With(zap.String("component", "company"))
	return c
}

// Register adds agents to the roster.
func (c *Company) Register(agents ...agent.Agent) error {
	for _, a := range agents {
		if err := c.roster.Register(a); err != nil {
			return err
		}
	}
	c.logger.Info("roster updated", zap.Strings("employees", c.roster.SortedNames()))
	return nil
}

// Roster exposes the company's agent registry.
func (c *Company) Roster() *agent.Roster { return c.roster }

// Run analyzes the task, asks the manager for a work plan, executes it and
// summarizes the outcome.
func (c *Company) Run(ctx context.Context, userInput string) (*Result, error) {
	return c.run(ctx, userInput, nil)
}

// RunWithPlan is Run with a caller-supplied plan; plan creation is skipped.
func (c *Company) RunWithPlan(ctx context.Context, userInput string, plan *Plan) (*Result, error) {
	if plan == nil || plan.Len() == 0 {
		return nil, ErrEmptyPlan
	}
	return c.run(ctx, userInput, plan)
}

func (c *Company) run(ctx context.Context, userInput string, plan *Plan) (result *Result, err error) {
	runID := uuid.NewString()
	logger := c.logger.With(zap.String("run_id", runID))

	ctx, span := c.tracer.Start(ctx, "company.run",
		trace.WithAttributes(attribute.String("run.id", runID)))
	defer func() {
		if err != nil {
			c.recordOutcome(ctx, result, "failed")
		}
		span.End()
	}()

	result = &Result{RunID: runID, Task: userInput, Plan: plan}
	rosterInfo := c.roster.Describe()

	logger.Info("analyzing task", zap.Int("agents", c.roster.Len()))
	result.Analysis, err = c.manager.AnalyzeTask(ctx, userInput, rosterInfo)
	if err != nil {
		return result, fmt.Errorf("task analysis failed: %w", err)
	}

	if strings.Contains(result.Analysis, SignalCannotSolve) {
		// declared unsolvable: normal termination, no plan, no execution
		logger.Info("task declared unsolvable by analysis")
		result.Unsolvable = true
		result.Transcript = buildTranscript(result)
		c.recordOutcome(ctx, result, "unsolvable")
		return result, nil
	}

	if result.Plan == nil {
		logger.Info("creating work plan")
		planText, perr := c.manager.CreateWorkPlan(ctx, result.Analysis, rosterInfo)
		if perr != nil {
			return result, fmt.Errorf("plan creation failed: %w", perr)
		}
		result.Plan, err = ParsePlan(planText)
		if err != nil {
			return result, err
		}
	}
	logger.Info("executing work plan", zap.Strings("steps", result.Plan.Names()))

	exec := &executor{
		roster:    c.roster,
		manager:   c.manager,
		formatter: c.formatter,
		budget:    c.stepBudget,
		logger:    logger,
		tracer:    c.tracer,
		metrics:   c.metrics,
	}
	result.History, err = exec.execute(ctx, result.Plan, NewFormatHistory(), userInput)
	if err != nil {
		return result, err
	}

	result.Summary, err = c.manager.Summarize(ctx, result.History)
	if err != nil {
		return result, fmt.Errorf("final summary failed: %w", err)
	}

	result.Transcript = buildTranscript(result)
	logger.Info("run complete", zap.Int("transcript_bytes", len(result.Transcript)))
	c.recordOutcome(ctx, result, "completed")
	return result, nil
}

func (c *Company) recordOutcome(ctx context.Context, result *Result, status string) {
	if c.metrics != nil {
		c.metrics.RecordRunOutcome(status)
	}
	if c.store != nil && result != nil {
		if err := c.store.SaveRun(ctx, result, status); err != nil {
			c.logger.Warn("failed to persist run", zap.Error(err))
		}
	}
}

func buildTranscript(r *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Task\n%s\n\n## Analysis\n%s\n", r.Task, r.Analysis)
	if r.History != "" {
		fmt.Fprintf(&b, "\n## Working History\n%s\n", r.History)
	}
	if r.Summary != "" {
		fmt.Fprintf(&b, "\n## Summary\n%s\n", r.Summary)
	}
	return b.String()
}
