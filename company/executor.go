package company

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/netmind-ai/autocompany/agent"
)

// ErrorStop is the sentinel state the walk enters when the step summary
// selects an employee outside the plan.
const ErrorStop = "error-stop"

// DefaultStepBudget bounds the total number of transitions in one run. The
// summarizer is free to revisit nodes, so without a budget a run could walk
// forever.
const DefaultStepBudget = 64

// Metrics is the subset of the metrics collector the orchestrator records
// to. A nil Metrics disables recording.
type Metrics interface {
	RecordPlanStep(agentName, status string)
	RecordRunOutcome(status string)
}

// executionState is the per-run mutable state of the plan walk. Created at
// the start of a walk, mutated once per iteration, discarded at the end;
// its final workingHistory is the returned artifact.
type executionState struct {
	currentPoint   string
	workingHistory strings.Builder
	currentContent string
}

func (s *executionState) appendHistory(name, content string) {
	fmt.Fprintf(&s.workingHistory, "%s: %s\n\n", name, content)
}

// executor walks a plan node by node: format input, invoke the node's
// agent, and ask the manager which node comes next.
type executor struct {
	roster    *agent.Roster
	manager   *Manager
	formatter *Formatter
	budget    int
	logger    *zap.Logger
	tracer    trace.Tracer
	metrics   Metrics
}

func (e *executor) recordStep(name, status string) {
	if e.metrics != nil {
		e.metrics.RecordPlanStep(name, status)
	}
}

// execute runs the state machine and returns the working history. States
// are the plan's node names plus ErrorStop; the walk starts at the plan's
// start node and terminates at the end node (success) or ErrorStop
// (failure).
func (e *executor) execute(ctx context.Context, plan *Plan, history *FormatHistory, initialContent string) (string, error) {
	state := &executionState{
		currentPoint:   plan.Start().Name,
		currentContent: initialContent,
	}

	for step := 1; ; step++ {
		if step > e.budget {
			return "", fmt.Errorf("%w: %d transitions", ErrStepBudgetExceeded, e.budget)
		}
		node, ok := plan.Node(state.currentPoint)
		if !ok {
			// unreachable while transitions are validated, kept as a guard
			return "", fmt.Errorf("%w: %q", ErrInvalidNextAgent, state.currentPoint)
		}

		done, err := e.executeStep(ctx, plan, node, state, history, step)
		if err != nil {
			return "", err
		}
		if done {
			return state.workingHistory.String(), nil
		}
	}
}

func (e *executor) executeStep(ctx context.Context, plan *Plan, node *PlanNode, state *executionState, history *FormatHistory, step int) (done bool, err error) {
	ctx, span := e.tracer.Start(ctx, "company.step", trace.WithAttributes(
		attribute.String("agent.name", node.Name),
		attribute.String("node.position", string(node.Position)),
		attribute.Int("step.index", step),
	))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger := e.logger.With(zap.String("node", node.Name), zap.Int("step", step))
	logger.Info("executing plan step", zap.String("position", string(node.Position)))

	worker, ok := e.roster.Get(node.Name)
	if !ok {
		e.recordStep(node.Name, "missing_agent")
		return false, fmt.Errorf("%w: %q", ErrAgentNotRegistered, node.Name)
	}

	params, err := e.formatter.Format(ctx, history,
		stepContent(node.SubTask, state.currentContent),
		worker.Info().InputSchema,
	)
	if err != nil {
		e.recordStep(node.Name, "format_failed")
		return false, err
	}

	out, err := worker.Execute(ctx, params)
	if err != nil {
		e.recordStep(node.Name, "failed")
		return false, fmt.Errorf("step %q failed: %w", node.Name, err)
	}
	// lazy fragment streams must be fully drained before proceeding
	response, err := out.Text(ctx)
	if err != nil {
		e.recordStep(node.Name, "failed")
		return false, fmt.Errorf("step %q output drain failed: %w", node.Name, err)
	}

	if node.Position == PositionEnd {
		state.appendHistory(node.Name, response)
		e.recordStep(node.Name, "completed")
		logger.Info("plan finished")
		return true, nil
	}

	summary, err := e.manager.SummarizeStep(ctx,
		state.workingHistory.String(), response,
		e.roster.DescribeSubset(node.Next),
	)
	if err != nil {
		e.recordStep(node.Name, "failed")
		return false, fmt.Errorf("step summary for %q failed: %w", node.Name, err)
	}
	state.appendHistory(node.Name, summary)

	nextName, err := parseNameRecord(ExtractMarker(MarkerNextEmployee, summary))
	if err != nil {
		state.currentPoint = ErrorStop
		e.recordStep(node.Name, "error_stop")
		return false, fmt.Errorf("%w: unreadable next-employee payload: %v", ErrInvalidNextAgent, err)
	}
	if _, ok := plan.Node(nextName); !ok {
		state.currentPoint = ErrorStop
		e.recordStep(node.Name, "error_stop")
		return false, fmt.Errorf("%w: %q", ErrInvalidNextAgent, nextName)
	}

	state.currentPoint = nextName
	state.currentContent = response + "\n\n" + ExtractMarker(MarkerNextStep, summary)
	e.recordStep(node.Name, "completed")
	logger.Info("step complete", zap.String("next", nextName))
	return false, nil
}

// stepContent is the free text handed to the input formatter: the node's
// sub-task plus whatever the previous step passed along.
func stepContent(subTask, current string) string {
	return fmt.Sprintf("The sub-task of this step:\n%s\n\nThe working content:\n%s", subTask, current)
}
