package harness

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Scenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
			assert.Len(t, result.Trace, len(s.Steps))
		})
	}
}

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"02_sync_converges", "04_queued_not_translated"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/06_threshold_gating.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)

	a, err := MarshalSnapshot(s.Name, first)
	require.NoError(t, err)
	b, err := MarshalSnapshot(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_StepExpectationMismatch(t *testing.T) {
	s := &Scenario{
		Name:        "mismatch",
		Description: "wrong counters are reported per step",
		Steps: []Step{
			{
				Register: &RegisterStep{Source: "en", Targets: []string{"es"}, Texts: []string{"Save"}},
				Expect:   map[string]any{"stubs": 2, "bogus": 1},
			},
		},
		Assertions: []Assertion{{Type: AssertSleeps, Count: new(int)}},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "step 1 (register): bogus: no such field")
	assert.Contains(t, result.Errors[1], "stubs: expected 2, got 1")
}

func TestRun_UnexpectedStepError(t *testing.T) {
	s := &Scenario{
		Name:        "unexpected_error",
		Description: "a failing step without an error expectation fails the run",
		Steps: []Step{
			{Push: &PushStep{Mode: "str"}},
		},
		Assertions: []Assertion{{Type: AssertServerPending, Count: new(int)}},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error: no target locales resolved")
	assert.Equal(t, "no target locales resolved", result.Trace[0].Error)
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	s := &Scenario{
		Name:        "missing_error",
		Description: "an error expectation that does not happen fails the run",
		Steps: []Step{
			{
				Register: &RegisterStep{Source: "en", Texts: []string{"Save"}},
				Expect:   map[string]any{"error": "boom"},
			},
		},
		Assertions: []Assertion{{Type: AssertSleeps, Count: new(int)}},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected error containing "boom", got none`)
}

func TestMatchFields(t *testing.T) {
	actual := map[string]any{"updated": int64(3), "pct": 33.3, "converged": true, "state": "done"}

	assert.Empty(t, matchFields(map[string]any{"updated": 3, "pct": 33.3, "converged": true, "state": "done"}, actual))
	assert.Equal(t,
		[]string{"pct: expected 50, got 33.3", "state: expected failed, got done"},
		matchFields(map[string]any{"pct": 50, "state": "failed"}, actual))
}
