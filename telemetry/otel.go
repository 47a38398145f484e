package telemetry

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidroman0O/depender"
)

const instrumentationName = "github.com/davidroman0O/depender/telemetry"

// Attribute keys set on spans and metric points.
const (
	AttrStep         = attribute.Key("depender.step")
	AttrRunID        = attribute.Key("depender.run_id")
	AttrDependencies = attribute.Key("depender.dependencies")
	AttrStatus       = attribute.Key("depender.status")
)

// TracingMiddleware wraps every execution in a span named after the step.
// A nil provider uses the global one.
func TracingMiddleware(tp trace.TracerProvider) depender.StepMiddleware {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(instrumentationName)

	return func(next depender.StepRunnerFunc) depender.StepRunnerFunc {
		return func(ctx *depender.StepContext) (any, error) {
			id := ctx.Step.Identifier()

			goCtx, span := tracer.Start(ctx.GoContext, "step "+id,
				trace.WithAttributes(
					AttrStep.String(id),
					AttrRunID.String(ctx.Runner.RunID().String()),
					AttrDependencies.StringSlice(ctx.Step.Dependencies()),
				))
			defer span.End()

			// Nested runs started by the step become children of this span
			parent := ctx.GoContext
			ctx.GoContext = goCtx
			defer func() { ctx.GoContext = parent }()

			value, err := next(ctx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return value, err
			}

			span.SetStatus(codes.Ok, "")
			return value, nil
		}
	}
}

// MeterMiddleware records an execution counter and a duration histogram.
// A nil provider uses the global one.
func MeterMiddleware(mp metric.MeterProvider) (depender.StepMiddleware, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	executions, err := meter.Int64Counter("depender.step.executions",
		metric.WithDescription("Number of step executions by outcome."))
	if err != nil {
		return nil, fmt.Errorf("failed to create execution counter: %w", err)
	}

	duration, err := meter.Float64Histogram("depender.step.duration",
		metric.WithDescription("Step execution time."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return func(next depender.StepRunnerFunc) depender.StepRunnerFunc {
		return func(ctx *depender.StepContext) (any, error) {
			start := time.Now()
			value, err := next(ctx)
			elapsed := time.Since(start).Seconds()

			status := statusSuccess
			if err != nil {
				status = statusFailure
			}
			step := AttrStep.String(ctx.Step.Identifier())

			executions.Add(ctx.GoContext, 1, metric.WithAttributes(step, AttrStatus.String(status)))
			duration.Record(ctx.GoContext, elapsed, metric.WithAttributes(step))

			return value, err
		}
	}, nil
}
