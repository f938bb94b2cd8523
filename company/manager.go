package company

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/netmind-ai/autocompany/agent"
	"github.com/netmind-ai/autocompany/llm"
	"github.com/netmind-ai/autocompany/types"
)

// Manager bundles the five prompt-bound roles the orchestrator consults:
// task analysis, plan creation, step summary, final summary and dynamic
// agent selection. Each role is a streaming PromptAgent; callers receive
// fully drained text.
type Manager struct {
	taskAnalysis  *agent.PromptAgent
	planCreate    *agent.PromptAgent
	stepSummary   *agent.PromptAgent
	finalSummary  *agent.PromptAgent
	dynamicSelect *agent.PromptAgent
	logger        *zap.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	model  string
	logger *zap.Logger
}

// WithManagerModel overrides the provider's default model for every role.
func WithManagerModel(model string) ManagerOption {
	return func(c *managerConfig) { c.model = model }
}

// WithManagerLogger sets the manager logger.
func WithManagerLogger(logger *zap.Logger) ManagerOption {
	return func(c *managerConfig) { c.logger = logger }
}

// NewManager builds the manager roles on top of a provider.
func NewManager(provider llm.Provider, opts ...ManagerOption) *Manager {
	cfg := managerConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	role := func(name string, template []types.Message) *agent.PromptAgent {
		options := []agent.PromptOption{
			agent.WithStreaming(),
			agent.WithLogger(cfg.logger),
		}
		if cfg.model != "" {
			options = append(options, agent.WithModel(cfg.model))
		}
		return agent.NewPromptAgent(
			types.AgentInfo{Name: name},
			template, provider, options...,
		)
	}

	return &Manager{
		taskAnalysis:  role("manager_task_analysis", taskAnalysisTemplate),
		planCreate:    role("manager_plan_create", planCreateTemplate),
		stepSummary:   role("manager_step_summary", stepSummaryTemplate),
		finalSummary:  role("manager_final_summary", finalSummaryTemplate),
		dynamicSelect: role("manager_dynamic_select", dynamicSelectTemplate),
		logger:        cfg.logger.With(zap.String("component", "manager")),
	}
}

func (m *Manager) ask(ctx context.Context, a *agent.PromptAgent, params map[string]any) (string, error) {
	out, err := a.Execute(ctx, params)
	if err != nil {
		return "", err
	}
	return out.Text(ctx)
}

// AnalyzeTask judges whether the roster can handle the task. The returned
// text carries a capability signal (SignalCanSolve or SignalCannotSolve).
func (m *Manager) AnalyzeTask(ctx context.Context, userInput, agentsInfo string) (string, error) {
	return m.ask(ctx, m.taskAnalysis, map[string]any{
		"user_input":  userInput,
		"agents_info": agentsInfo,
	})
}

// CreateWorkPlan produces the raw plan text containing the working-plan
// marker, ready for ParsePlan.
func (m *Manager) CreateWorkPlan(ctx context.Context, taskAnalysis, agentsInfo string) (string, error) {
	return m.ask(ctx, m.planCreate, map[string]any{
		"task_analysis": taskAnalysis,
		"agents_info":   agentsInfo,
	})
}

// SummarizeStep summarizes progress after one step and selects the next
// employee. The returned text carries the next-step and next-employee
// markers.
func (m *Manager) SummarizeStep(ctx context.Context, workingHistory, currentResponse, nextListInfo string) (string, error) {
	return m.ask(ctx, m.stepSummary, map[string]any{
		"working_history":  workingHistory,
		"current_response": currentResponse,
		"next_list_info":   nextListInfo,
	})
}

// Summarize condenses the full working history into the final answer text.
func (m *Manager) Summarize(ctx context.Context, solvingHistory string) (string, error) {
	return m.ask(ctx, m.finalSummary, map[string]any{
		"solving_history": solvingHistory,
	})
}

// DynamicSelect picks one agent for a raw user input, for non-plan routing.
// It returns the selected agent name parsed from the select-agent marker.
func (m *Manager) DynamicSelect(ctx context.Context, userInput, agentsInfo string) (string, error) {
	text, err := m.ask(ctx, m.dynamicSelect, map[string]any{
		"user_input":  userInput,
		"agents_info": agentsInfo,
	})
	if err != nil {
		return "", err
	}
	name, err := parseNameRecord(ExtractMarker(MarkerSelectAgent, text))
	if err != nil {
		return "", fmt.Errorf("select-agent payload: %w", err)
	}
	return name, nil
}

// parseNameRecord decodes a {"name": ...} payload after backslash repair.
func parseNameRecord(payload string) (string, error) {
	if payload == "" {
		return "", fmt.Errorf("empty payload")
	}
	var record struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(RepairBackslashes(payload)), &record); err != nil {
		return "", err
	}
	if record.Name == "" {
		return "", fmt.Errorf("payload has no name field")
	}
	return record.Name, nil
}
