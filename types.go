package depender

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidroman0O/depender/store"
)

// Step is a named unit of work with declared dependencies and a single
// cached result.
//
// The Runner only ever calls Execute on a step whose IsExecuted reports false,
// and stores whatever Execute returns as the step's result. Implementations
// usually embed BaseStep for the bookkeeping.
type Step interface {
	// Identifier returns the step's unique, immutable identifier
	Identifier() string

	// Dependencies returns the identifiers of the steps that must run first,
	// in the order they should be resolved
	Dependencies() []string

	// Execute performs the step's work. The context gives access to the
	// runner, its stack and the logger.
	Execute(ctx *StepContext) (any, error)

	// IsExecuted reports whether Execute has completed successfully. The
	// Runner calls it under its registry lock, so it must not call back into
	// the Runner.
	IsExecuted() bool

	// Value returns the result of the last execution, nil before that
	Value() any
}

// StepContext is handed to a step when it executes.
type StepContext struct {
	// GoContext is the context the run was started with
	GoContext context.Context
	// Runner is the runner executing the step
	Runner *Runner
	// Step is the step being executed
	Step Step
	// Logger is the runner's logger
	Logger Logger
}

// Stack returns the runner's shared stack.
func (c *StepContext) Stack() *store.KVStore {
	return c.Runner.Stack()
}

// Get reads a value from the shared stack.
func (c *StepContext) Get(key string) (any, error) {
	return c.Runner.GetStack(key)
}

// Set writes a value to the shared stack.
func (c *StepContext) Set(key string, value any) {
	c.Runner.AddValueToStack(key, value)
}

// StepRunnerFunc is the core function type for executing a step.
type StepRunnerFunc func(ctx *StepContext) (any, error)

// StepMiddleware wraps step execution. It only sees real executions: a step
// that already ran is answered from the cache without entering the chain.
type StepMiddleware func(next StepRunnerFunc) StepRunnerFunc

// RunnerOption is a function that configures a Runner
type RunnerOption func(*Runner)

// Logger provides a simple interface for runner logging
type Logger interface {
	// Debug logs a message at debug level
	Debug(format string, args ...interface{})

	// Info logs a message at info level
	Info(format string, args ...interface{})

	// Warn logs a message at warning level
	Warn(format string, args ...interface{})

	// Error logs a message at error level
	Error(format string, args ...interface{})
}

// StepFactory builds a Step from its serializable definition.
type StepFactory func(def StepDef) (Step, error)

// StepDef is a serializable representation of a Step. Kind names the factory
// registered with RegisterStepFactory.
type StepDef struct {
	// ID is the step identifier.
	ID string `json:"id" yaml:"id" toml:"id"`
	// Kind selects the registered factory.
	Kind string `json:"kind" yaml:"kind" toml:"kind"`
	// Dependencies lists the identifiers this step depends on.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty" toml:"dependencies,omitempty"`
	// Params are handed to the factory untouched.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty" toml:"params,omitempty"`
}

// PlanDef is a serializable set of steps plus the stack they start from.
type PlanDef struct {
	// InitialStack seeds the runner's stack.
	InitialStack map[string]any `json:"initialStack,omitempty" yaml:"initialStack,omitempty" toml:"initialStack,omitempty"`
	// Steps are registered in order.
	Steps []StepDef `json:"steps" yaml:"steps" toml:"steps"`
}

// RunResult contains the result of running one target step
type RunResult struct {
	RunID         uuid.UUID
	StepID        string
	Success       bool
	Value         any
	Error         error
	ExecutionTime time.Duration
}
