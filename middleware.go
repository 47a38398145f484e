package depender

import (
	"context"
	"time"
)

// LoggingMiddleware logs the start, duration and outcome of every step
// execution through the runner's logger.
func LoggingMiddleware() StepMiddleware {
	return func(next StepRunnerFunc) StepRunnerFunc {
		return func(ctx *StepContext) (any, error) {
			id := ctx.Step.Identifier()
			ctx.Logger.Info("Middleware: Starting step %s", id)

			start := time.Now()
			value, err := next(ctx)
			duration := time.Since(start)

			if err != nil {
				ctx.Logger.Error("Middleware: Step %s failed after %v: %v",
					id, duration.Round(time.Millisecond), err)
			} else {
				ctx.Logger.Info("Middleware: Step %s completed in %v",
					id, duration.Round(time.Millisecond))
			}

			return value, err
		}
	}
}

// StackInjectionMiddleware writes keyValues to the stack before every step
// execution.
func StackInjectionMiddleware(keyValues map[string]any) StepMiddleware {
	return func(next StepRunnerFunc) StepRunnerFunc {
		return func(ctx *StepContext) (any, error) {
			for key, value := range keyValues {
				ctx.Set(key, value)
			}
			return next(ctx)
		}
	}
}

// TimeLimitMiddleware gives every step execution a context with the given
// deadline. Steps must watch ctx.GoContext for the limit to have an effect.
func TimeLimitMiddleware(limit time.Duration) StepMiddleware {
	return func(next StepRunnerFunc) StepRunnerFunc {
		return func(ctx *StepContext) (any, error) {
			goCtx, cancel := context.WithTimeout(ctx.GoContext, limit)
			defer cancel()

			parent := ctx.GoContext
			ctx.GoContext = goCtx
			defer func() { ctx.GoContext = parent }()

			return next(ctx)
		}
	}
}
