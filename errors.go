package depender

import (
	"errors"
	"fmt"
	"strings"

	"github.com/davidroman0O/depender/store"
)

var (
	ErrInvalidIdentifier = errors.New("invalid step identifier")
	ErrDuplicateStep     = errors.New("step already registered")
	ErrUnknownStep       = errors.New("step not registered")
	ErrCyclicDependency  = errors.New("cyclic dependency detected")

	// ErrKeyNotFound is returned when reading a stack key that was never set.
	// It is the store's not-found error so either sentinel matches.
	ErrKeyNotFound = store.ErrNotFound
)

// StepError describes a registration or resolution failure for one step.
type StepError struct {
	Kind   error
	StepID string
	Msg    string
}

func (e *StepError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return fmt.Sprintf("%s: '%s'", e.Kind.Error(), e.StepID)
	}
	return fmt.Sprintf("%s: '%s' %s", e.Kind.Error(), e.StepID, e.Msg)
}

func (e *StepError) Unwrap() error { return e.Kind }

func stepErrorf(kind error, stepID string, format string, args ...any) error {
	return &StepError{Kind: kind, StepID: stepID, Msg: fmt.Sprintf(format, args...)}
}

// cycleError reports a dependency path that returns to its first step.
func cycleError(path []string) error {
	return &StepError{
		Kind:   ErrCyclicDependency,
		StepID: path[0],
		Msg:    "via " + strings.Join(path, " -> "),
	}
}
