// Package telemetry provides step middleware that reports executions to
// Prometheus and OpenTelemetry.
//
// Each constructor returns a depender.StepMiddleware for Runner.Use or
// depender.WithMiddleware. Only real executions are observed: steps answered
// from the runner's cache never reach the middleware chain.
package telemetry
