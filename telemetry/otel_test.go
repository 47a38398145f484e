package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidroman0O/depender"
)

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingMiddleware(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	runner := depender.NewRunner(depender.WithMiddleware(TracingMiddleware(tp)))
	require.NoError(t, runner.RegisterStep(depender.NewValueStep("fetch", func() any { return "data" }), false))
	require.NoError(t, runner.RegisterStep(depender.NewSimpleStep("parse", func() (any, error) {
		return nil, errors.New("malformed")
	}, "fetch"), false))

	_, err := runner.RunStep(context.Background(), "parse", true)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	fetch, parse := spans[0], spans[1]
	assert.Equal(t, "step fetch", fetch.Name())
	assert.Equal(t, codes.Ok, fetch.Status().Code)
	assert.Equal(t, "step parse", parse.Name())
	assert.Equal(t, codes.Error, parse.Status().Code)
	assert.Equal(t, "malformed", parse.Status().Description)

	step, ok := spanAttr(parse, AttrStep)
	require.True(t, ok)
	assert.Equal(t, "parse", step.AsString())

	runID, ok := spanAttr(parse, AttrRunID)
	require.True(t, ok)
	assert.Equal(t, runner.RunID().String(), runID.AsString())

	deps, ok := spanAttr(parse, AttrDependencies)
	require.True(t, ok)
	assert.Equal(t, []string{"fetch"}, deps.AsStringSlice())
}

func TestTracingMiddlewareNestsRuns(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	runner := depender.NewRunner(depender.WithMiddleware(TracingMiddleware(tp)))
	require.NoError(t, runner.RegisterStep(depender.NewValueStep("inner", func() any { return 1 }), false))
	require.NoError(t, runner.RegisterStep(depender.NewHandlerStep("outer", func(ctx *depender.StepContext) (any, error) {
		return ctx.Runner.RunStep(ctx.GoContext, "inner", true)
	}), false))

	_, err := runner.RunStep(context.Background(), "outer", true)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	inner, outer := spans[0], spans[1]
	assert.Equal(t, "step inner", inner.Name())
	assert.Equal(t, outer.SpanContext().SpanID(), inner.Parent().SpanID())
	assert.Equal(t, trace.SpanID{}, outer.Parent().SpanID())
}

func TestMeterMiddleware(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	mw, err := MeterMiddleware(mp)
	require.NoError(t, err)

	runner := depender.NewRunner(depender.WithMiddleware(mw))
	require.NoError(t, runner.RegisterStep(depender.NewValueStep("ok-step", func() any { return 1 }), false))
	require.NoError(t, runner.RegisterStep(depender.NewSimpleStep("bad-step", func() (any, error) {
		return nil, errors.New("fail")
	}, "ok-step"), false))

	_, err = runner.RunStep(context.Background(), "bad-step", true)
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, instrumentationName, rm.ScopeMetrics[0].Scope.Name)

	byName := make(map[string]metricdata.Metrics)
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m
	}

	sum, ok := byName["depender.step.executions"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := make(map[string]int64)
	for _, point := range sum.DataPoints {
		step, _ := point.Attributes.Value(AttrStep)
		status, _ := point.Attributes.Value(AttrStatus)
		counts[step.AsString()+"/"+status.AsString()] = point.Value
	}
	assert.Equal(t, map[string]int64{"ok-step/success": 1, "bad-step/failure": 1}, counts)

	hist, ok := byName["depender.step.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2)
}
