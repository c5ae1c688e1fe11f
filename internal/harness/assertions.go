package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/atrium-ui/app-state/internal/tree"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string     // Assertion type for categorization
	Expected string     // Human-readable expected outcome
	Actual   string     // Human-readable actual outcome
	Trace    []Delivery // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, d := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] step %d %s@%s %s\n", i+1, d.Step, d.Subscriber, d.Scope, formatTree(d.Delta))
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion against result and returns the
// failure messages. An empty slice means every assertion passed.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertFinalState:
		return assertFinalState(result, a)
	case AssertDeliveryCount:
		return assertDeliveryCount(result, a)
	case AssertScopes:
		return assertScopes(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertFinalState compares a scope's final tree with the expected one.
// A missing scope compares as an empty tree.
func assertFinalState(result *Result, a Assertion) error {
	want, err := tree.MapFromGo(a.Expect)
	if err != nil {
		return fmt.Errorf("final_state expect: %w", err)
	}

	got := result.State[a.Scope]
	if got == nil {
		got = tree.Map{}
	}

	if !tree.Compare(want, got) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("scope %q = %s", a.Scope, formatTree(want)),
			Actual:   fmt.Sprintf("scope %q = %s", a.Scope, formatTree(got)),
		}
	}
	return nil
}

// assertDeliveryCount checks the number of deltas a subscriber received.
func assertDeliveryCount(result *Result, a Assertion) error {
	deliveries := result.DeliveriesFor(a.Subscriber)
	if len(deliveries) != a.Count {
		return &AssertionError{
			Type:     AssertDeliveryCount,
			Expected: fmt.Sprintf("%d deliveries to %s", a.Count, a.Subscriber),
			Actual:   fmt.Sprintf("%d deliveries", len(deliveries)),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertScopes checks the set of existing scopes.
func assertScopes(result *Result, a Assertion) error {
	got := make([]string, 0, len(result.State))
	for scope := range result.State {
		got = append(got, scope)
	}
	slices.Sort(got)

	want := slices.Clone(a.Scopes)
	slices.Sort(want)

	if !slices.Equal(want, got) {
		return &AssertionError{
			Type:     AssertScopes,
			Expected: fmt.Sprintf("scopes %v", want),
			Actual:   fmt.Sprintf("scopes %v", got),
		}
	}
	return nil
}

// formatTree renders a tree as canonical JSON for messages.
func formatTree(t tree.Map) string {
	data, err := tree.MarshalCanonical(t)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

// sortedErrors orders messages so map iteration cannot reorder output.
func sortedErrors(errs []string) []string {
	slices.Sort(errs)
	return errs
}
