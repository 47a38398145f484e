package depender

// BaseStep carries the bookkeeping shared by Step implementations: the
// identifier, the dependency list, the executed flag and the cached value.
// Embed it and implement Execute, calling MarkExecuted on success.
type BaseStep struct {
	identifier   string
	dependencies []string
	executed     bool
	value        any
}

// NewBaseStep creates the bookkeeping for a step.
func NewBaseStep(identifier string, dependencies ...string) BaseStep {
	return BaseStep{
		identifier:   identifier,
		dependencies: dependencies,
	}
}

// Identifier implements Step.Identifier
func (b *BaseStep) Identifier() string {
	return b.identifier
}

// Dependencies implements Step.Dependencies
func (b *BaseStep) Dependencies() []string {
	return b.dependencies
}

// IsExecuted implements Step.IsExecuted
func (b *BaseStep) IsExecuted() bool {
	return b.executed
}

// Value implements Step.Value
func (b *BaseStep) Value() any {
	return b.value
}

// MarkExecuted records value as the step's result and flags it executed.
func (b *BaseStep) MarkExecuted(value any) {
	b.value = value
	b.executed = true
}

// SimpleStep runs a zero-argument function. It ignores the step context;
// use HandlerStep when the work needs the stack or other steps.
type SimpleStep struct {
	BaseStep
	fn func() (any, error)
}

// NewSimpleStep creates a step that calls fn when executed.
func NewSimpleStep(identifier string, fn func() (any, error), dependencies ...string) *SimpleStep {
	return &SimpleStep{
		BaseStep: NewBaseStep(identifier, dependencies...),
		fn:       fn,
	}
}

// NewValueStep creates a step around a function that cannot fail.
func NewValueStep(identifier string, fn func() any, dependencies ...string) *SimpleStep {
	return NewSimpleStep(identifier, func() (any, error) {
		return fn(), nil
	}, dependencies...)
}

// Execute calls the wrapped function. A failing call leaves the step
// unexecuted so a later run can retry it.
func (s *SimpleStep) Execute(_ *StepContext) (any, error) {
	value, err := s.fn()
	if err != nil {
		return nil, err
	}
	s.MarkExecuted(value)
	return value, nil
}

// HandlerStep runs a function that receives the step context, giving it
// access to the runner, the shared stack and the logger.
type HandlerStep struct {
	BaseStep
	handler func(ctx *StepContext) (any, error)
}

// NewHandlerStep creates a step that calls handler when executed.
func NewHandlerStep(identifier string, handler func(ctx *StepContext) (any, error), dependencies ...string) *HandlerStep {
	return &HandlerStep{
		BaseStep: NewBaseStep(identifier, dependencies...),
		handler:  handler,
	}
}

// Execute calls the handler with the step context.
func (s *HandlerStep) Execute(ctx *StepContext) (any, error) {
	value, err := s.handler(ctx)
	if err != nil {
		return nil, err
	}
	s.MarkExecuted(value)
	return value, nil
}
