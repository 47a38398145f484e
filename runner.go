package depender

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"

	"github.com/davidroman0O/depender/store"
)

// Runner owns the step registry, the shared stack, the memoized dependency
// order of every step and the cached result of every executed step.
//
// Each RunStep call runs its steps one after the other. A Runner may be shared
// between goroutines: every step still executes at most once, and a caller
// reaching a step that another caller is executing waits for that execution
// to finish. The registry lock is never held while a step executes, so steps
// may call back into the Runner (read the stack, look up other steps, run
// another step). Nested runs must pass StepContext.GoContext along so the
// Runner can tell them apart from concurrent callers.
type Runner struct {
	id uuid.UUID

	mu    deadlock.RWMutex
	steps map[string]*registryEntry

	stack        *store.KVStore
	initialStack map[string]any

	logger       Logger
	middleware   []StepMiddleware
	detectCycles bool
}

// registryEntry is the Runner's record for one identifier.
type registryEntry struct {
	step Step

	// solved is the memoized resolution order, valid once resolved is set.
	// It is never invalidated.
	solved   []string
	resolved bool

	returnValue any

	// running is set while the step executes and closed once it is done.
	running chan struct{}
}

// inFlight links the steps executing further up a chain of nested runs.
type inFlight struct {
	identifier string
	parent     *inFlight
}

type inFlightKey struct{}

func withInFlight(ctx context.Context, identifier string) context.Context {
	parent, _ := ctx.Value(inFlightKey{}).(*inFlight)
	return context.WithValue(ctx, inFlightKey{}, &inFlight{identifier: identifier, parent: parent})
}

func isInFlight(ctx context.Context, identifier string) bool {
	for node, _ := ctx.Value(inFlightKey{}).(*inFlight); node != nil; node = node.parent {
		if node.identifier == identifier {
			return true
		}
	}
	return false
}

// WithInitialStack seeds the stack. Later calls add to earlier ones and win
// on shared keys. The stack is filled once every option has been applied.
func WithInitialStack(values map[string]any) RunnerOption {
	return func(r *Runner) {
		for k, v := range values {
			r.initialStack[k] = v
		}
	}
}

// WithLogger sets the logger for the runner
func WithLogger(logger Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMiddleware adds middleware to the runner
func WithMiddleware(middleware ...StepMiddleware) RunnerOption {
	return func(r *Runner) {
		r.middleware = append(r.middleware, middleware...)
	}
}

// WithCycleDetection toggles cycle detection during dependency resolution.
// It is on by default. When off, a cyclic graph recurses without bound and
// crashes the process with a stack overflow.
func WithCycleDetection(enabled bool) RunnerOption {
	return func(r *Runner) {
		r.detectCycles = enabled
	}
}

// NewRunner creates a new step runner with the given options
func NewRunner(opts ...RunnerOption) *Runner {
	runner := &Runner{
		id:           uuid.New(),
		steps:        make(map[string]*registryEntry),
		stack:        store.NewKVStore(),
		initialStack: make(map[string]any),
		logger:       NewDefaultLogger(),
		middleware:   []StepMiddleware{},
		detectCycles: true,
	}

	for _, opt := range opts {
		opt(runner)
	}

	for k, v := range runner.initialStack {
		runner.stack.Put(k, v)
	}
	if len(runner.initialStack) > 0 {
		runner.logger.Debug("Seeded stack with %d initial values", len(runner.initialStack))
	}
	runner.initialStack = nil

	return runner
}

// RunID identifies this runner in logs and telemetry.
func (r *Runner) RunID() uuid.UUID {
	return r.id
}

// Use adds middleware to the runner's middleware chain
func (r *Runner) Use(middleware ...StepMiddleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, middleware...)
}

// RegisterStep adds step to the registry.
//
// With replaceExisting set, a step already registered under the same
// identifier is swapped out. Only the step itself changes: the memoized
// dependency order and cached result of its entry are kept, and so are the
// orders already resolved by dependents. Replacing a step after it or a
// dependent was resolved or executed therefore leaves stale caches behind.
func (r *Runner) RegisterStep(step Step, replaceExisting bool) error {
	if step == nil {
		return fmt.Errorf("%w: step is nil", ErrInvalidIdentifier)
	}

	identifier := step.Identifier()
	if !ValidIdentifier(identifier) {
		return stepErrorf(ErrInvalidIdentifier, identifier,
			"does not match the step identifier pattern %s", IdentifierPattern)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.steps[identifier]
	if exists && !replaceExisting {
		return stepErrorf(ErrDuplicateStep, identifier,
			"was already registered and replacement was not requested")
	}

	if !exists {
		entry = &registryEntry{}
		r.steps[identifier] = entry
	} else {
		r.logger.Debug("Replacing step %s", identifier)
	}
	entry.step = step

	r.logger.Debug("Registered step %s with dependencies %v", identifier, step.Dependencies())
	return nil
}

// RunStep runs the step registered under identifier and returns its value.
//
// With withDependencies set, the full resolution order is executed first and
// the target's own value (always last in the order) is returned. Otherwise
// only the target runs, whatever it declares. Steps that already ran are not
// run again. The context is checked between steps.
func (r *Runner) RunStep(ctx context.Context, identifier string, withDependencies bool) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if !r.IsStepRegistered(identifier) {
		return nil, stepErrorf(ErrUnknownStep, identifier, "cannot be run")
	}

	order := []string{identifier}
	if withDependencies {
		var err error
		if order, err = r.ResolveOrder(identifier); err != nil {
			return nil, err
		}
	}

	r.logger.Info("Running step %s (%d steps in order)", identifier, len(order))

	var value any
	for i, current := range order {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run of step '%s' stopped before '%s': %w", identifier, current, err)
		}

		r.logger.Debug("Executing step %d/%d: %s", i+1, len(order), current)

		var err error
		if value, err = r.executeStep(ctx, current); err != nil {
			r.logger.Error("Run of step %s failed: %v", identifier, err)
			return nil, err
		}
	}

	r.logger.Info("Completed step %s", identifier)
	return value, nil
}

// ResolveOrder returns the deduplicated execution order for identifier,
// dependencies first and identifier last. The order is computed once per
// identifier and cached for the life of the Runner.
//
// Step.Dependencies must not call back into the Runner.
func (r *Runner) ResolveOrder(identifier string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := r.solveDependencies(identifier, nil)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), order...), nil
}

// solveDependencies resolves each declared dependency in order, concatenates
// their orders, appends identifier and keeps the first occurrence of every
// step. path holds the identifiers currently being resolved. Callers hold
// r.mu.
func (r *Runner) solveDependencies(identifier string, path []string) ([]string, error) {
	entry, ok := r.steps[identifier]
	if !ok {
		if len(path) > 0 {
			return nil, stepErrorf(ErrUnknownStep, identifier,
				"is required by '%s'", path[len(path)-1])
		}
		return nil, stepErrorf(ErrUnknownStep, identifier, "cannot be resolved")
	}

	if entry.resolved {
		return entry.solved, nil
	}

	if r.detectCycles {
		for i, seen := range path {
			if seen == identifier {
				cycle := append(append([]string{}, path[i:]...), identifier)
				return nil, cycleError(cycle)
			}
		}
	}
	path = append(path, identifier)

	var order []string
	for _, dependency := range entry.step.Dependencies() {
		solved, err := r.solveDependencies(dependency, path)
		if err != nil {
			return nil, err
		}
		order = append(order, solved...)
	}
	order = append(order, identifier)

	entry.solved = dedupe(order)
	entry.resolved = true
	return entry.solved, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// executeStep runs a single step at most once. A step reporting itself as
// executed is answered from the registry cache, even if it never ran through
// this Runner (the cache is then nil). A step already executing for another
// caller is waited for; one executing further up the same nested run is an
// error, since waiting for it would never end.
func (r *Runner) executeStep(ctx context.Context, identifier string) (any, error) {
	for {
		r.mu.Lock()
		entry, ok := r.steps[identifier]
		if !ok {
			r.mu.Unlock()
			return nil, stepErrorf(ErrUnknownStep, identifier, "cannot be executed")
		}

		if done := entry.running; done != nil {
			r.mu.Unlock()

			if isInFlight(ctx, identifier) {
				return nil, stepErrorf(ErrCyclicDependency, identifier,
					"is already executing further up this run")
			}

			r.logger.Debug("Step %s is executing elsewhere, waiting for it", identifier)
			select {
			case <-done:
				// Re-check: the execution may have failed
				continue
			case <-ctx.Done():
				return nil, fmt.Errorf("waiting for step '%s': %w", identifier, ctx.Err())
			}
		}

		step := entry.step
		if step.IsExecuted() {
			value := entry.returnValue
			r.mu.Unlock()
			r.logger.Debug("Step %s already executed, reusing its value", identifier)
			return value, nil
		}

		entry.running = make(chan struct{})
		r.mu.Unlock()

		value, err := r.runEntry(ctx, identifier, entry, step)
		if err != nil {
			return nil, fmt.Errorf("step '%s' failed: %w", identifier, err)
		}
		return value, nil
	}
}

// runEntry passes step through the middleware chain and settles entry
// afterwards. Waiters are released even when the step panics.
func (r *Runner) runEntry(ctx context.Context, identifier string, entry *registryEntry, step Step) (value any, err error) {
	finished := false
	defer func() {
		r.mu.Lock()
		if finished && err == nil {
			entry.returnValue = value
		}
		close(entry.running)
		entry.running = nil
		r.mu.Unlock()
	}()

	stepCtx := &StepContext{
		GoContext: withInFlight(ctx, identifier),
		Runner:    r,
		Step:      step,
		Logger:    r.logger,
	}
	value, err = r.chain()(stepCtx)
	finished = true
	return value, err
}

// chain builds the middleware chain around Step.Execute.
func (r *Runner) chain() StepRunnerFunc {
	r.mu.RLock()
	middleware := r.middleware
	r.mu.RUnlock()

	var handler StepRunnerFunc = func(ctx *StepContext) (any, error) {
		return ctx.Step.Execute(ctx)
	}

	// Apply middleware in reverse order
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

// Stack returns the shared stack for typed access with store.Get.
func (r *Runner) Stack() *store.KVStore {
	return r.stack
}

// GetStack returns the stack value stored under key, or ErrKeyNotFound.
func (r *Runner) GetStack(key string) (any, error) {
	return r.stack.Value(key)
}

// StackValues returns a snapshot of the whole stack.
func (r *Runner) StackValues() map[string]any {
	return r.stack.ToMap()
}

// AddValueToStack inserts or overwrites a stack value.
func (r *Runner) AddValueToStack(key string, value any) {
	r.stack.Put(key, value)
}

// GetStep returns the step registered under identifier.
func (r *Runner) GetStep(identifier string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.steps[identifier]
	if !ok {
		return nil, stepErrorf(ErrUnknownStep, identifier, "")
	}
	return entry.step, nil
}

// IsStepRegistered reports whether identifier is in the registry.
func (r *Runner) IsStepRegistered(identifier string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.steps[identifier]
	return ok
}

// Steps returns the registered identifiers in lexical order.
func (r *Runner) Steps() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.steps))
	for id := range r.steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Run runs identifier with its dependencies and reports the outcome.
func (r *Runner) Run(ctx context.Context, identifier string) RunResult {
	startTime := time.Now()

	value, err := r.RunStep(ctx, identifier, true)

	return RunResult{
		RunID:         r.id,
		StepID:        identifier,
		Success:       err == nil,
		Value:         value,
		Error:         err,
		ExecutionTime: time.Since(startTime),
	}
}

// RunTargets runs several targets in sequence. Unless ignoreErrors is set it
// stops after the first failing target.
func (r *Runner) RunTargets(ctx context.Context, identifiers []string, ignoreErrors bool) []RunResult {
	results := make([]RunResult, 0, len(identifiers))

	for _, identifier := range identifiers {
		result := r.Run(ctx, identifier)
		results = append(results, result)

		if !result.Success && !ignoreErrors {
			break
		}
	}

	return results
}

// FormatResults returns a human-readable summary of run results
func FormatResults(results []RunResult) string {
	if len(results) == 0 {
		return "No steps executed"
	}

	var summary string
	successCount := 0

	for i, result := range results {
		status := "FAILED"
		if result.Success {
			status = "SUCCESS"
			successCount++
		}

		summary += fmt.Sprintf("Step %d: %s - %s (%s)\n",
			i+1,
			result.StepID,
			status,
			result.ExecutionTime.Round(time.Millisecond),
		)

		if result.Error != nil {
			summary += fmt.Sprintf("  Error: %v\n", result.Error)
		}
	}

	summary += fmt.Sprintf("\nSummary: %d/%d steps succeeded\n",
		successCount,
		len(results),
	)

	return summary
}
