package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrium-ui/app-state/internal/tree"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return s
}

func TestRun_PassingScenario(t *testing.T) {
	s := mustParse(t, `
name: pass
description: minimal
subscribers:
  - { name: ui, scope: global }
steps:
  - set: { scope: global, value: { a: 1 } }
    expect:
      ui: { a: 1 }
`)
	result, err := Run(s)
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, int64(1), result.Revision)
	assert.Equal(t, map[string]tree.Map{"global": {"a": tree.Int(1)}}, result.State)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, Delivery{Step: 0, Subscriber: "ui", Scope: "global", Delta: tree.Map{"a": tree.Int(1)}}, result.Trace[0])
}

func TestRun_WrongDelta(t *testing.T) {
	s := mustParse(t, `
name: wrong
description: expects the wrong delta
subscribers:
  - { name: ui, scope: global }
steps:
  - set: { scope: global, value: { a: 1 } }
    expect:
      ui: { a: 2 }
`)
	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `delta for "ui" = {"a":1}, expected {"a":2}`)
}

func TestRun_MissingAndUnexpectedDeliveries(t *testing.T) {
	s := mustParse(t, `
name: mismatch
description: expects a delivery to the wrong subscriber
subscribers:
  - { name: a, scope: one }
  - { name: b, scope: two }
steps:
  - set: { scope: one, value: { x: 1 } }
    expect:
      b: { x: 1 }
`)
	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	joined := strings.Join(result.Errors, "\n")
	assert.Contains(t, joined, `expected delta {"x":1} for "b", got none`)
	assert.Contains(t, joined, `unexpected delta {"x":1} for "a"`)
}

func TestRun_StepWithoutExpectIsNotChecked(t *testing.T) {
	s := mustParse(t, `
name: unchecked
description: records without checking
subscribers:
  - { name: ui, scope: global }
steps:
  - set: { scope: global, value: { a: 1 } }
`)
	result, err := Run(s)
	require.NoError(t, err)

	assert.True(t, result.Pass)
	assert.Len(t, result.Trace, 1)
}

func TestRun_SeedDoesNotNotify(t *testing.T) {
	s := mustParse(t, `
name: seeded
description: seed then attach
seed:
  global: { a: 1 }
subscribers:
  - { name: ui, scope: global, initial: current }
steps:
  - set: { scope: global, value: { a: 1 } }
    expect: {}
assertions:
  - { type: final_state, scope: global, expect: { a: 1 } }
  - { type: delivery_count, subscriber: ui, count: 0 }
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_FailedAssertions(t *testing.T) {
	s := mustParse(t, `
name: failing
description: every assertion fails
subscribers:
  - { name: ui, scope: global }
steps:
  - set: { scope: global, value: { a: 1 } }
assertions:
  - { type: final_state, scope: global, expect: { a: 2 } }
  - { type: delivery_count, subscriber: ui, count: 5 }
  - { type: scopes, scopes: [other] }
`)
	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "assertions[0]")
	assert.Contains(t, result.Errors[0], `scope "global" = {"a":1}`)
	assert.Contains(t, result.Errors[1], "5 deliveries to ui")
	assert.Contains(t, result.Errors[2], "scopes [other]")
}

func TestRun_FinalStateIgnoresNulls(t *testing.T) {
	s := mustParse(t, `
name: nulls
description: stored nulls compare as absent
steps:
  - set: { scope: global, value: { a: 1, b: null } }
assertions:
  - { type: final_state, scope: global, expect: { a: 1 } }
  - { type: final_state, scope: missing, expect: {} }
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nsteps: [{ delete_scope: s }]",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nsteps: [{ delete_scope: s }]",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d",
			wantErr: "steps list is required",
		},
		{
			name:    "unknown field",
			yaml:    "name: n\ndescription: d\nstep: []",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "two actions",
			yaml:    "name: n\ndescription: d\nsteps: [{ delete_scope: s, unsubscribe: x }]",
			wantErr: "exactly one action is required, got 2",
		},
		{
			name:    "no action",
			yaml:    "name: n\ndescription: d\nsteps: [{ expect: {} }]",
			wantErr: "exactly one action is required, got 0",
		},
		{
			name:    "set without value",
			yaml:    "name: n\ndescription: d\nsteps: [{ set: { scope: s } }]",
			wantErr: "value is required",
		},
		{
			name:    "delete_key without key",
			yaml:    "name: n\ndescription: d\nsteps: [{ delete_key: { scope: s } }]",
			wantErr: "key is required",
		},
		{
			name:    "duplicate subscriber",
			yaml:    "name: n\ndescription: d\nsubscribers: [{ name: a, scope: s }, { name: a, scope: t }]\nsteps: [{ delete_scope: s }]",
			wantErr: `duplicate subscriber "a"`,
		},
		{
			name:    "bad initial",
			yaml:    "name: n\ndescription: d\nsubscribers: [{ name: a, scope: s, initial: later }]\nsteps: [{ delete_scope: s }]",
			wantErr: "initial must be",
		},
		{
			name:    "unsubscribe unknown",
			yaml:    "name: n\ndescription: d\nsteps: [{ unsubscribe: ghost }]",
			wantErr: `unknown subscriber "ghost"`,
		},
		{
			name:    "expect unknown",
			yaml:    "name: n\ndescription: d\nsteps: [{ delete_scope: s, expect: { ghost: {} } }]",
			wantErr: `unknown subscriber "ghost"`,
		},
		{
			name:    "expect before subscribe",
			yaml:    "name: n\ndescription: d\nsteps: [{ delete_scope: s, expect: { late: {} } }, { subscribe: { name: late, scope: s } }]",
			wantErr: `unknown subscriber "late"`,
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nsteps: [{ delete_scope: s }]\nassertions: [{ type: vibes }]",
			wantErr: `unknown assertion type "vibes"`,
		},
		{
			name:    "final_state without expect",
			yaml:    "name: n\ndescription: d\nsteps: [{ delete_scope: s }]\nassertions: [{ type: final_state, scope: s }]",
			wantErr: "expect is required",
		},
		{
			name:    "delivery_count unknown subscriber",
			yaml:    "name: n\ndescription: d\nsteps: [{ delete_scope: s }]\nassertions: [{ type: delivery_count, subscriber: ghost }]",
			wantErr: `unknown subscriber "ghost"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: n\ndescription: d\nsteps: [{ delete_scope: s }]\n"), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "n", s.Name)
	assert.Equal(t, StepDeleteScope, s.Steps[0].Kind())
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertDeliveryCount,
		Expected: "2 deliveries to ui",
		Actual:   "1 deliveries",
		Trace: []Delivery{
			{Step: 0, Subscriber: "ui", Scope: "global", Delta: tree.Map{"a": tree.Int(1)}},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: delivery_count")
	assert.Contains(t, msg, "Expected: 2 deliveries to ui")
	assert.Contains(t, msg, "Actual: 1 deliveries")
	assert.Contains(t, msg, `[1] step 0 ui@global {"a":1}`)
}

func TestTraceSnapshot_MarshalCanonical(t *testing.T) {
	s := TraceSnapshot{
		ScenarioName: "x",
		Trace: []Delivery{
			{Step: 1, Subscriber: "ui", Scope: "global", Delta: tree.Map{"b": tree.Null{}, "a": tree.Int(1)}},
		},
	}

	data, err := s.MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, `{"scenario_name":"x","trace":[{"delta":{"a":1,"b":null},"scope":"global","step":1,"subscriber":"ui"}]}`, string(data))
}

func TestStep_Kind(t *testing.T) {
	assert.Equal(t, StepSet, Step{Set: &SetStep{}}.Kind())
	assert.Equal(t, StepDeleteKey, Step{DeleteKey: &DeleteKeyStep{}}.Kind())
	assert.Equal(t, StepDeleteScope, Step{DeleteScope: "s"}.Kind())
	assert.Equal(t, StepSubscribe, Step{Subscribe: &SubscriberSpec{}}.Kind())
	assert.Equal(t, StepUnsubscribe, Step{Unsubscribe: "a"}.Kind())
	assert.Equal(t, "", Step{}.Kind())
}
