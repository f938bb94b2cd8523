package company_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netmind-ai/autocompany/agent"
	"github.com/netmind-ai/autocompany/company"
	"github.com/netmind-ai/autocompany/llm"
	"github.com/netmind-ai/autocompany/testutil/mocks"
	"github.com/netmind-ai/autocompany/types"
)

// callRecorder tracks which worker agents ran, in order.
type callRecorder struct {
	mu    sync.Mutex
	names []string
}

func (r *callRecorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}

func (r *callRecorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.names...)
}

func worker(name, response string, rec *callRecorder) agent.Agent {
	return &agent.Func{
		Meta: types.AgentInfo{
			Name:        name,
			Description: name + " handles its step",
			InputSchema: types.ToolSchema{
				Name:       name,
				Parameters: types.ObjectSchema(map[string]string{"content": "the work content"}, "content"),
			},
		},
		Fn: func(ctx context.Context, params map[string]any) (*agent.Output, error) {
			rec.record(name)
			return agent.NewTextOutput(response), nil
		},
	}
}

// formatterToolCall makes Completion (used only by the input formatter)
// answer with a tool call echoing the request content, leaving the scripted
// response sequence to the manager's streaming calls.
func formatterToolCall(m *mocks.MockProvider) *mocks.MockProvider {
	return m.WithCompletionFunc(func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		content := req.Messages[len(req.Messages)-1].Content
		args, _ := json.Marshal(map[string]string{"content": content})
		return &llm.ChatResponse{
			Choices: []llm.ChatChoice{{Message: types.Message{
				Role:      types.RoleAssistant,
				ToolCalls: []types.ToolCall{{ID: "call_1", Name: req.ToolChoice, Arguments: args}},
			}}},
		}, nil
	})
}

func stepSummarySelecting(next string) string {
	return fmt.Sprintf(`The step went well.
|||next-step
Task target: carry the result forward.
|||next-step
|||next-employee
{"name": %q}
|||next-employee`, next)
}

func singlePlan(t *testing.T, name string) *company.Plan {
	t.Helper()
	plan, err := company.BuildPlan([]company.PlanStep{{Name: name, SubTask: "do everything"}})
	require.NoError(t, err)
	return plan
}

func TestRunUnsolvableShortCircuits(t *testing.T) {
	t.Parallel()

	rec := &callRecorder{}
	mock := formatterToolCall(mocks.NewMockProvider().WithResponseSequence(
		"The roster lacks the needed skills. NO-WE-CAN-NOT",
	))
	c := company.New(mock)
	require.NoError(t, c.Register(worker("solver", "unused", rec)))

	res, err := c.Run(context.Background(), "translate an ancient manuscript")
	require.NoError(t, err) // declared unsolvable is a normal outcome

	assert.True(t, res.Unsolvable)
	assert.Nil(t, res.Plan)
	assert.Empty(t, res.History)
	assert.Empty(t, rec.calls())
	// only the analysis call went out: no plan request, no execution
	assert.Equal(t, 1, mock.CallCount())
	assert.Contains(t, res.Transcript, "NO-WE-CAN-NOT")
	assert.NotEmpty(t, res.RunID)
}

func TestRunWithSingleNodePlan(t *testing.T) {
	t.Parallel()

	rec := &callRecorder{}
	mock := formatterToolCall(mocks.NewMockProvider().WithResponseSequence(
		"Looks doable. YES-WE-CAN",
		"Final summary: solved.",
	))
	c := company.New(mock)
	require.NoError(t, c.Register(worker("solver", "the answer is 42", rec)))

	res, err := c.RunWithPlan(context.Background(), "solve it", singlePlan(t, "solver"))
	require.NoError(t, err)

	// the agent ran exactly once and the summarizer was never consulted:
	// 2 streaming calls (analysis + final summary) and 1 formatter call
	assert.Equal(t, []string{"solver"}, rec.calls())
	assert.Equal(t, 3, mock.CallCount())
	assert.Equal(t, "solver: the answer is 42\n\n", res.History)
	assert.Equal(t, "Final summary: solved.", res.Summary)
	assert.False(t, res.Unsolvable)
}

func TestRunCreatesAndExecutesPlan(t *testing.T) {
	t.Parallel()

	planText := `I will use the solver first, then the checker.
|||working-plan
[
    {"name": "solver", "sub_task": "solve the equation"},
    {"name": "checker", "sub_task": "verify the solution"}
]
|||working-plan`

	rec := &callRecorder{}
	mock := formatterToolCall(mocks.NewMockProvider().WithResponseSequence(
		"We have the right people. YES-WE-CAN",
		planText,
		stepSummarySelecting("checker"),
		"Final summary: x = 1, verified.",
	))
	c := company.New(mock)
	require.NoError(t, c.Register(
		worker("solver", "solved: x = 1", rec),
		worker("checker", "verified: correct", rec),
	))

	res, err := c.Run(context.Background(), "solve x + 1 = 2")
	require.NoError(t, err)

	require.NotNil(t, res.Plan)
	assert.Equal(t, []string{"solver", "checker"}, res.Plan.Names())
	assert.Equal(t, []string{"solver", "checker"}, rec.calls())

	// per-step summary and terminal output both landed in the history
	assert.Contains(t, res.History, "solver: The step went well.")
	assert.Contains(t, res.History, "checker: verified: correct")
	assert.Equal(t, "Final summary: x = 1, verified.", res.Summary)
	assert.Contains(t, res.Transcript, "## Working History")
	assert.Contains(t, res.Transcript, "## Summary")
}

func TestRunThreadsNextStepIntoFollowingAgent(t *testing.T) {
	t.Parallel()

	var formatterInputs []string
	rec := &callRecorder{}
	mock := mocks.NewMockProvider().WithResponseSequence(
		"YES-WE-CAN",
		stepSummarySelecting("checker"),
		"done",
	).WithCompletionFunc(func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		content := req.Messages[len(req.Messages)-1].Content
		formatterInputs = append(formatterInputs, content)
		args, _ := json.Marshal(map[string]string{"content": content})
		return &llm.ChatResponse{
			Choices: []llm.ChatChoice{{Message: types.Message{
				Role:      types.RoleAssistant,
				ToolCalls: []types.ToolCall{{ID: "c", Name: req.ToolChoice, Arguments: args}},
			}}},
		}, nil
	})

	plan, err := company.BuildPlan([]company.PlanStep{
		{Name: "solver", SubTask: "solve"},
		{Name: "checker", SubTask: "check"},
	})
	require.NoError(t, err)

	c := company.New(mock)
	require.NoError(t, c.Register(
		worker("solver", "solved: x = 1", rec),
		worker("checker", "ok", rec),
	))

	_, err = c.RunWithPlan(context.Background(), "solve x + 1 = 2", plan)
	require.NoError(t, err)

	require.Len(t, formatterInputs, 2)
	// the second step received the previous response plus the next-step payload
	assert.Contains(t, formatterInputs[1], "solved: x = 1")
	assert.Contains(t, formatterInputs[1], "carry the result forward")
}

func TestRunHallucinatedNextEmployeeStops(t *testing.T) {
	t.Parallel()

	rec := &callRecorder{}
	mock := formatterToolCall(mocks.NewMockProvider().WithResponseSequence(
		"YES-WE-CAN",
		stepSummarySelecting("ghost-employee"),
	))

	plan, err := company.BuildPlan([]company.PlanStep{
		{Name: "solver", SubTask: "solve"},
		{Name: "checker", SubTask: "check"},
	})
	require.NoError(t, err)

	c := company.New(mock)
	require.NoError(t, c.Register(
		worker("solver", "solved", rec),
		worker("checker", "never reached", rec),
	))

	_, err = c.RunWithPlan(context.Background(), "task", plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, company.ErrInvalidNextAgent)
	// no further agent ran after the bad selection
	assert.Equal(t, []string{"solver"}, rec.calls())
}

func TestRunUnregisteredAgentFails(t *testing.T) {
	t.Parallel()

	mock := formatterToolCall(mocks.NewMockProvider().WithResponseSequence("YES-WE-CAN"))
	c := company.New(mock)

	_, err := c.RunWithPlan(context.Background(), "task", singlePlan(t, "phantom"))
	require.Error(t, err)
	assert.ErrorIs(t, err, company.ErrAgentNotRegistered)
}

func TestRunStepBudgetBoundsLoops(t *testing.T) {
	t.Parallel()

	rec := &callRecorder{}
	// every step summary sends the walk back to the solver
	mock := formatterToolCall(mocks.NewMockProvider().
		WithResponseSequence("YES-WE-CAN").
		WithResponse(stepSummarySelecting("solver")))

	plan, err := company.BuildPlan([]company.PlanStep{
		{Name: "solver", SubTask: "solve"},
		{Name: "checker", SubTask: "check"},
	})
	require.NoError(t, err)

	c := company.New(mock, company.WithStepBudget(3))
	require.NoError(t, c.Register(
		worker("solver", "solved", rec),
		worker("checker", "ok", rec),
	))

	_, err = c.RunWithPlan(context.Background(), "task", plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, company.ErrStepBudgetExceeded)
	assert.Len(t, rec.calls(), 3)
}

func TestRunFormatterExhaustionFails(t *testing.T) {
	t.Parallel()

	rec := &callRecorder{}
	// Completion never returns a tool call, so formatting can never succeed
	mock := mocks.NewMockProvider().WithResponseSequence("YES-WE-CAN").
		WithCompletionFunc(func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
			return &llm.ChatResponse{
				Choices: []llm.ChatChoice{{Message: types.NewAssistantMessage("just prose")}},
			}, nil
		})

	c := company.New(mock)
	require.NoError(t, c.Register(worker("solver", "unused", rec)))

	_, err := c.RunWithPlan(context.Background(), "task", singlePlan(t, "solver"))
	require.Error(t, err)
	assert.ErrorIs(t, err, company.ErrFormatFailed)
	assert.Empty(t, rec.calls())
}

func TestRunWithPlanRejectsNilPlan(t *testing.T) {
	t.Parallel()

	c := company.New(mocks.NewMockProvider())
	_, err := c.RunWithPlan(context.Background(), "task", nil)
	assert.ErrorIs(t, err, company.ErrEmptyPlan)
}

func TestManagerDynamicSelect(t *testing.T) {
	t.Parallel()

	mock := mocks.NewMockProvider().WithResponse(
		"The solver fits best.\n|||select-agent\n{\"name\": \"solver\"}\n|||select-agent")
	m := company.NewManager(mock)

	name, err := m.DynamicSelect(context.Background(), "solve x+1=2", "Employee: solver\nDuty: math")
	require.NoError(t, err)
	assert.Equal(t, "solver", name)
}

func TestManagerDynamicSelectRejectsMissingMarker(t *testing.T) {
	t.Parallel()

	m := company.NewManager(mocks.NewMockProvider().WithResponse("no marker here"))
	_, err := m.DynamicSelect(context.Background(), "task", "roster")
	assert.Error(t, err)
}

func TestRunFailsOnMidStreamProviderError(t *testing.T) {
	t.Parallel()

	rec := &callRecorder{}
	mock := formatterToolCall(mocks.NewMockProvider().WithStreamFunc(
		func(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
			ch := make(chan llm.StreamChunk, 2)
			ch <- llm.StreamChunk{Delta: types.Message{Role: types.RoleAssistant, Content: "partial analysis YES-WE"}}
			ch <- llm.StreamChunk{Err: types.NewError(types.ErrUpstreamError, "connection reset")}
			close(ch)
			return ch, nil
		}))
	c := company.New(mock)
	require.NoError(t, c.Register(worker("solver", "unused", rec)))

	// the truncated stream must fail the run, not feed partial text onward
	_, err := c.Run(context.Background(), "solve x + 1 = 2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Empty(t, rec.calls())
}
