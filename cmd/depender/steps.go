package main

import (
	"fmt"
	"sort"

	"github.com/davidroman0O/depender"
)

// Step kinds available to plan files.
const (
	kindValue = "value"
	kindSet   = "set"
	kindGet   = "get"
	kindSum   = "sum"
)

func init() {
	depender.RegisterStepFactory(kindValue, newValueStep)
	depender.RegisterStepFactory(kindSet, newSetStep)
	depender.RegisterStepFactory(kindGet, newGetStep)
	depender.RegisterStepFactory(kindSum, newSumStep)
}

// newValueStep returns params.value.
func newValueStep(def depender.StepDef) (depender.Step, error) {
	value, ok := def.Params["value"]
	if !ok {
		return nil, fmt.Errorf("param 'value' is required")
	}
	return depender.NewValueStep(def.ID, func() any { return value }, def.Dependencies...), nil
}

// newSetStep writes every param into the stack and returns how many were
// written.
func newSetStep(def depender.StepDef) (depender.Step, error) {
	keys := make([]string, 0, len(def.Params))
	for key := range def.Params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return depender.NewHandlerStep(def.ID, func(ctx *depender.StepContext) (any, error) {
		for _, key := range keys {
			ctx.Set(key, def.Params[key])
		}
		return len(keys), nil
	}, def.Dependencies...), nil
}

// newGetStep returns the stack value under params.key.
func newGetStep(def depender.StepDef) (depender.Step, error) {
	key, err := stringParam(def, "key")
	if err != nil {
		return nil, err
	}
	return depender.NewHandlerStep(def.ID, func(ctx *depender.StepContext) (any, error) {
		return ctx.Get(key)
	}, def.Dependencies...), nil
}

// newSumStep adds the numeric stack values listed in params.keys and stores
// the total under params.into.
func newSumStep(def depender.StepDef) (depender.Step, error) {
	into, err := stringParam(def, "into")
	if err != nil {
		return nil, err
	}

	raw, ok := def.Params["keys"].([]any)
	if !ok {
		return nil, fmt.Errorf("param 'keys' must be a list")
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		key, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("param 'keys' must only hold strings, got %T", k)
		}
		keys = append(keys, key)
	}

	return depender.NewHandlerStep(def.ID, func(ctx *depender.StepContext) (any, error) {
		var total float64
		for _, key := range keys {
			value, err := ctx.Get(key)
			if err != nil {
				return nil, err
			}
			n, err := toFloat(value)
			if err != nil {
				return nil, fmt.Errorf("stack key %q: %w", key, err)
			}
			total += n
		}
		ctx.Set(into, total)
		return total, nil
	}, def.Dependencies...), nil
}

func stringParam(def depender.StepDef, name string) (string, error) {
	value, ok := def.Params[name].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("param '%s' must be a non-empty string", name)
	}
	return value, nil
}

// toFloat accepts the numeric types produced by the JSON, YAML and TOML
// decoders.
func toFloat(value any) (float64, error) {
	switch n := value.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("%v (%T) is not a number", value, value)
	}
}
