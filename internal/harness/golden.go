package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/atrium-ui/app-state/internal/tree"
)

// TraceSnapshot captures the delivery trace of a scenario execution.
type TraceSnapshot struct {
	ScenarioName string     `json:"scenario_name"`
	Trace        []Delivery `json:"trace"`
}

// MarshalCanonical renders the snapshot as canonical JSON, the golden file
// format.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	trace := make(tree.Array, len(s.Trace))
	for i, d := range s.Trace {
		delta := d.Delta
		if delta == nil {
			delta = tree.Map{}
		}
		trace[i] = tree.Map{
			"step":       tree.Int(d.Step),
			"subscriber": tree.String(d.Subscriber),
			"scope":      tree.String(d.Scope),
			"delta":      delta,
		}
	}

	return tree.MarshalCanonical(tree.Map{
		"scenario_name": tree.String(s.ScenarioName),
		"trace":         trace,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the trace doesn't match the golden file; scenario errors are
// reported with t.Errorf.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	traceJSON, err := snapshot.MarshalCanonical()
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
