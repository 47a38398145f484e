package depender

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleStepExecute(t *testing.T) {
	calls := 0
	step := NewValueStep("counter", func() any {
		calls++
		return calls
	}, "dep-a", "dep-b")

	assert.Equal(t, "counter", step.Identifier())
	assert.Equal(t, []string{"dep-a", "dep-b"}, step.Dependencies())
	assert.False(t, step.IsExecuted())
	assert.Nil(t, step.Value())

	value, err := step.Execute(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, value)
	assert.True(t, step.IsExecuted())
	assert.Equal(t, 1, step.Value())
}

func TestSimpleStepFailure(t *testing.T) {
	expectedErr := errors.New("broken")
	step := NewSimpleStep("broken", func() (any, error) {
		return "partial", expectedErr
	})

	value, err := step.Execute(nil)
	assert.ErrorIs(t, err, expectedErr)
	assert.Nil(t, value)
	assert.False(t, step.IsExecuted())
	assert.Nil(t, step.Value())
}

func TestHandlerStepReceivesContext(t *testing.T) {
	runner := NewRunner(WithInitialStack(map[string]any{"name": "world"}))

	var seen *StepContext
	step := NewHandlerStep("greeter", func(ctx *StepContext) (any, error) {
		seen = ctx
		name, err := ctx.Get("name")
		if err != nil {
			return nil, err
		}
		return "hello " + name.(string), nil
	})
	require.NoError(t, runner.RegisterStep(step, false))

	value, err := runner.RunStep(context.Background(), "greeter", true)
	require.NoError(t, err)
	assert.Equal(t, "hello world", value)

	require.NotNil(t, seen)
	assert.Same(t, runner, seen.Runner)
	assert.Equal(t, "greeter", seen.Step.Identifier())
	assert.NotNil(t, seen.GoContext)
}

func TestBaseStepNoDependencies(t *testing.T) {
	base := NewBaseStep("alone")
	assert.Empty(t, base.Dependencies())

	base.MarkExecuted(nil)
	assert.True(t, base.IsExecuted())
	assert.Nil(t, base.Value())
}
