package depender

import (
	"fmt"
	"sort"

	"github.com/sasha-s/go-deadlock"
)

var (
	factoriesMu   deadlock.RWMutex
	stepFactories = make(map[string]StepFactory)
)

// RegisterStepFactory registers a step factory under a unique kind.
// This function should be called at application startup for every kind that
// plan files may reference.
// It will panic if a factory with the same kind is already registered.
func RegisterStepFactory(kind string, factory StepFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if _, exists := stepFactories[kind]; exists {
		panic(fmt.Sprintf("step factory with kind '%s' is already registered", kind))
	}
	stepFactories[kind] = factory
}

// IsStepFactoryRegistered reports whether kind has a factory.
func IsStepFactoryRegistered(kind string) bool {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	_, ok := stepFactories[kind]
	return ok
}

// StepFactoryKinds lists the registered kinds in lexical order.
func StepFactoryKinds() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	kinds := make([]string, 0, len(stepFactories))
	for kind := range stepFactories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// NewStepFromRegistry creates a Step from its definition using the factory
// registered for def.Kind.
func NewStepFromRegistry(def StepDef) (Step, error) {
	factoriesMu.RLock()
	factory, ok := stepFactories[def.Kind]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("step factory with kind '%s' not found in registry", def.Kind)
	}

	step, err := factory(def)
	if err != nil {
		return nil, fmt.Errorf("failed to build step '%s' of kind '%s': %w", def.ID, def.Kind, err)
	}
	if step == nil {
		return nil, fmt.Errorf("factory '%s' returned no step for '%s'", def.Kind, def.ID)
	}
	if step.Identifier() != def.ID {
		return nil, fmt.Errorf("factory '%s' built step '%s' for definition '%s'",
			def.Kind, step.Identifier(), def.ID)
	}
	return step, nil
}
