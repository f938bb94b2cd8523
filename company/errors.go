package company

import "errors"

// Fatal orchestration errors. All of them abort the run.
var (
	// ErrAgentNotRegistered means the plan referenced an agent name that was
	// never added to the roster. A configuration error, never retried.
	ErrAgentNotRegistered = errors.New("agent not registered")

	// ErrEmptyPlan means the parsed work plan contained no steps.
	ErrEmptyPlan = errors.New("work plan is empty")

	// ErrPlanParse wraps any failure to decode the working-plan payload.
	ErrPlanParse = errors.New("work plan parse failed")

	// ErrInvalidNextAgent means the step summary selected an employee that
	// does not exist in the plan. The walk transitions to ErrorStop.
	ErrInvalidNextAgent = errors.New("next employee is not in the work plan")

	// ErrStepBudgetExceeded means the walk did not terminate within the
	// configured step budget.
	ErrStepBudgetExceeded = errors.New("step budget exceeded")

	// ErrFormatFailed means input formatting failed on every attempt.
	ErrFormatFailed = errors.New("input formatting failed")
)
