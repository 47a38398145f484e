package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidroman0O/depender"
)

const samplePlan = `initialStack:
  base: 10
steps:
  - id: seed
    kind: set
    params:
      bonus: 5
  - id: total
    kind: sum
    dependencies: [seed]
    params:
      keys: [base, bonus]
      into: result
  - id: report
    kind: get
    dependencies: [total, seed]
    params:
      key: result
`

func writePlan(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	logLevel = "warn"
	noDeps = false

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := Execute()
	return stdout.String(), err
}

func TestRootCommand_UseLine(t *testing.T) {
	assert.Equal(t, "depender", rootCmd.Use)

	flag := rootCmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)
	assert.Equal(t, "warn", flag.DefValue)
}

func TestBuiltinKindsRegistered(t *testing.T) {
	for _, kind := range []string{kindValue, kindSet, kindGet, kindSum} {
		assert.True(t, depender.IsStepFactoryRegistered(kind), kind)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "depender dev\n", out)
}

func TestOrderCommand(t *testing.T) {
	plan := writePlan(t, "plan.yaml", samplePlan)

	out, err := execute(t, "order", plan, "report")
	require.NoError(t, err)
	assert.Equal(t, "seed\ntotal\nreport\n", out)
}

func TestOrderCommandUnknownTarget(t *testing.T) {
	plan := writePlan(t, "plan.yaml", samplePlan)

	_, err := execute(t, "order", plan, "missing")
	assert.ErrorIs(t, err, depender.ErrUnknownStep)
}

func TestRunCommand(t *testing.T) {
	plan := writePlan(t, "plan.yaml", samplePlan)

	out, err := execute(t, "run", plan, "report")
	require.NoError(t, err)

	var result runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "report", result.Target)
	assert.Equal(t, float64(15), result.Value)
	assert.Equal(t, map[string]any{
		"base":   float64(10),
		"bonus":  float64(5),
		"result": float64(15),
	}, result.Stack)
	assert.NotEmpty(t, result.RunID)
}

func TestRunCommandNoDeps(t *testing.T) {
	plan := writePlan(t, "plan.yaml", samplePlan)

	// Without its dependencies the sum step misses the bonus key
	_, err := execute(t, "run", plan, "total", "--no-deps")
	require.Error(t, err)
	assert.ErrorIs(t, err, depender.ErrKeyNotFound)
}

func TestRunCommandTOML(t *testing.T) {
	plan := writePlan(t, "plan.toml", `[[steps]]
id = "answer"
kind = "value"
params = { value = 42 }
`)

	out, err := execute(t, "run", plan, "answer")
	require.NoError(t, err)

	var result runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, float64(42), result.Value)
	assert.Empty(t, result.Stack)
}

func TestRunCommandErrors(t *testing.T) {
	tests := []struct {
		name   string
		plan   string
		extra  []string
		errMsg string
	}{
		{
			name:   "bad log level",
			plan:   "{}",
			extra:  []string{"--log-level", "loud"},
			errMsg: "unknown log level",
		},
		{
			name:   "unknown kind",
			plan:   `{"steps":[{"id":"abc","kind":"nope"}]}`,
			errMsg: "not found in registry",
		},
		{
			name:   "missing param",
			plan:   `{"steps":[{"id":"abc","kind":"get"}]}`,
			errMsg: "param 'key' must be a non-empty string",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"run", writePlan(t, "plan.json", tc.plan), "abc"}, tc.extra...)
			_, err := execute(t, args...)
			assert.ErrorContains(t, err, tc.errMsg)
		})
	}

	_, err := execute(t, "run", "only-one")
	assert.ErrorContains(t, err, "accepts 2 arg(s)")
}

func TestToFloat(t *testing.T) {
	for _, value := range []any{3, int64(3), uint64(3), 3.0} {
		n, err := toFloat(value)
		require.NoError(t, err)
		assert.Equal(t, float64(3), n)
	}

	_, err := toFloat("3")
	assert.Error(t, err)
}
