package harness

import (
	"github.com/atrium-ui/app-state/internal/tree"
)

// Delivery is one delta received by a scenario subscriber.
type Delivery struct {
	Step       int      `json:"step"` // Index into Scenario.Steps
	Subscriber string   `json:"subscriber"`
	Scope      string   `json:"scope"`
	Delta      tree.Map `json:"delta"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains every delivery in order.
	Trace []Delivery `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final tree of every scope.
	State map[string]tree.Map `json:"state,omitempty"`

	// Revision is the store revision after the last step.
	Revision int64 `json:"revision"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []Delivery{},
		Errors: []string{},
		State:  make(map[string]tree.Map),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddDelivery appends a delivery to the trace.
func (r *Result) AddDelivery(step int, subscriber, scope string, delta tree.Map) {
	r.Trace = append(r.Trace, Delivery{
		Step:       step,
		Subscriber: subscriber,
		Scope:      scope,
		Delta:      delta,
	})
}

// DeliveriesFor returns the deliveries to subscriber, in order.
func (r *Result) DeliveriesFor(subscriber string) []Delivery {
	var out []Delivery
	for _, d := range r.Trace {
		if d.Subscriber == subscriber {
			out = append(out, d)
		}
	}
	return out
}
