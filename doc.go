// Package depender provides a dependency-ordered step runner.
//
// Callers register named steps, each declaring the identifiers of the steps it
// depends on, and ask the Runner to run a step together with its
// dependencies. The Runner resolves a deterministic execution order, runs each
// step at most once, memoizes results and exposes a shared key-value stack
// that steps use to pass data to one another.
//
// Core components include:
//   - Step: a named unit of work with declared dependencies and a cached value
//   - SimpleStep and HandlerStep: closure-backed Step implementations
//   - Runner: registration, dependency resolution and run-once execution
//   - Stack: a type-aware key-value store shared by all steps of a Runner
//
// Execution can be decorated with StepMiddleware (logging, time limits,
// telemetry) and plans can be declared in JSON, YAML or TOML and
// instantiated through registered step factories.
package depender
