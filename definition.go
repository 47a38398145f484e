package depender

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// PlanFormat names a plan file encoding.
type PlanFormat string

const (
	PlanFormatJSON PlanFormat = "json"
	PlanFormatYAML PlanFormat = "yaml"
	PlanFormatTOML PlanFormat = "toml"
)

// FormatFromPath picks the plan format from a file extension.
func FormatFromPath(path string) (PlanFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return PlanFormatJSON, nil
	case ".yaml", ".yml":
		return PlanFormatYAML, nil
	case ".toml":
		return PlanFormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported plan file extension %q", filepath.Ext(path))
	}
}

// ParsePlan decodes a plan definition.
func ParsePlan(data []byte, format PlanFormat) (*PlanDef, error) {
	var def PlanDef

	switch format {
	case PlanFormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("failed to parse JSON plan: %w", err)
		}
	case PlanFormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("failed to parse YAML plan: %w", err)
		}
	case PlanFormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("failed to parse TOML plan: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported plan format %q", format)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadPlanFile reads and decodes a plan file, picking the format from its
// extension.
func LoadPlanFile(path string) (*PlanDef, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	return ParsePlan(data, format)
}

// Validate checks that every step has an identifier and a kind. Identifier
// syntax and uniqueness are checked on registration.
func (p *PlanDef) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}
	for i, step := range p.Steps {
		if step.ID == "" {
			return fmt.Errorf("step %d has no id", i)
		}
		if step.Kind == "" {
			return fmt.Errorf("step '%s' has no kind", step.ID)
		}
	}
	return nil
}

// NewRunnerFromPlan creates a Runner seeded with the plan's initial stack and
// registers every step of the plan in order. Options are applied after the
// plan's stack, so WithInitialStack in opts can override plan values.
func NewRunnerFromPlan(def *PlanDef, opts ...RunnerOption) (*Runner, error) {
	if def == nil {
		return nil, fmt.Errorf("plan is nil")
	}

	allOpts := make([]RunnerOption, 0, len(opts)+1)
	allOpts = append(allOpts, WithInitialStack(def.InitialStack))
	allOpts = append(allOpts, opts...)
	runner := NewRunner(allOpts...)

	for _, stepDef := range def.Steps {
		step, err := NewStepFromRegistry(stepDef)
		if err != nil {
			return nil, err
		}
		if err := runner.RegisterStep(step, false); err != nil {
			return nil, err
		}
	}

	return runner, nil
}
