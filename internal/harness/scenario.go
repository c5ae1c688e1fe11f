package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a delivery test scenario.
// A scenario seeds the store, attaches subscribers, performs writes and
// checks the deltas each subscriber receives along the way.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed is restored before any subscriber attaches. Keys are scopes.
	// Seeding does not notify anyone.
	Seed map[string]map[string]any `yaml:"seed,omitempty"`

	// Subscribers attach after seeding, in order.
	Subscribers []SubscriberSpec `yaml:"subscribers,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state.
	// Supported types: final_state, delivery_count, scopes
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SubscriberSpec declares a named subscriber.
type SubscriberSpec struct {
	// Name identifies the subscriber in expect clauses and assertions.
	Name string `yaml:"name"`

	// Scope is the scope to watch.
	Scope string `yaml:"scope"`

	// Initial selects the starting snapshot:
	// - "empty" (default): the first delivery carries the whole scope
	// - "current": only changes after attaching are delivered
	Initial string `yaml:"initial,omitempty"`
}

// Initial snapshot modes.
const (
	InitialEmpty   = "empty"
	InitialCurrent = "current"
)

// Step is one scenario action. Exactly one action field must be set.
type Step struct {
	Set         *SetStep        `yaml:"set,omitempty"`
	DeleteKey   *DeleteKeyStep  `yaml:"delete_key,omitempty"`
	DeleteScope string          `yaml:"delete_scope,omitempty"`
	Subscribe   *SubscriberSpec `yaml:"subscribe,omitempty"`
	Unsubscribe string          `yaml:"unsubscribe,omitempty"`

	// Expect maps subscriber names to the exact delta each must receive
	// during this step. Subscribers not listed must receive nothing.
	// If nil, deliveries are recorded but not checked.
	Expect map[string]map[string]any `yaml:"expect,omitempty"`
}

// SetStep merges Value into Scope.
type SetStep struct {
	Scope string         `yaml:"scope"`
	Value map[string]any `yaml:"value"`
}

// DeleteKeyStep removes Key from Scope.
type DeleteKeyStep struct {
	Scope string `yaml:"scope"`
	Key   string `yaml:"key"`
}

// Kind returns the step's action name, or "" if none is set.
func (s Step) Kind() string {
	switch {
	case s.Set != nil:
		return StepSet
	case s.DeleteKey != nil:
		return StepDeleteKey
	case s.DeleteScope != "":
		return StepDeleteScope
	case s.Subscribe != nil:
		return StepSubscribe
	case s.Unsubscribe != "":
		return StepUnsubscribe
	}
	return ""
}

func (s Step) actionCount() int {
	n := 0
	if s.Set != nil {
		n++
	}
	if s.DeleteKey != nil {
		n++
	}
	if s.DeleteScope != "" {
		n++
	}
	if s.Subscribe != nil {
		n++
	}
	if s.Unsubscribe != "" {
		n++
	}
	return n
}

// Step kinds.
const (
	StepSet         = "set"
	StepDeleteKey   = "delete_key"
	StepDeleteScope = "delete_scope"
	StepSubscribe   = "subscribe"
	StepUnsubscribe = "unsubscribe"
)

// Assertion validates the trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_state": Scope's tree compares equal to Expect
	// - "delivery_count": Subscriber received exactly Count deltas
	// - "scopes": the store holds exactly the scopes in Scopes
	Type string `yaml:"type"`

	// Scope is the scope to check (used by final_state).
	Scope string `yaml:"scope,omitempty"`

	// Expect is the expected tree (used by final_state).
	// Compared with tree.Compare, so null-valued keys count as absent.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Subscriber is the subscriber name (used by delivery_count).
	Subscriber string `yaml:"subscriber,omitempty"`

	// Count is the expected number of deliveries (used by delivery_count).
	Count int `yaml:"count,omitempty"`

	// Scopes is the expected scope list, in any order (used by scopes).
	Scopes []string `yaml:"scopes,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState    = "final_state"
	AssertDeliveryCount = "delivery_count"
	AssertScopes        = "scopes"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is invalid.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// subscriber reference resolves.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	known := make(map[string]bool)
	declare := func(where string, sub SubscriberSpec) error {
		if sub.Name == "" {
			return fmt.Errorf("%s: name is required", where)
		}
		if known[sub.Name] {
			return fmt.Errorf("%s: duplicate subscriber %q", where, sub.Name)
		}
		switch sub.Initial {
		case "", InitialEmpty, InitialCurrent:
		default:
			return fmt.Errorf("%s: initial must be %q or %q, got %q", where, InitialEmpty, InitialCurrent, sub.Initial)
		}
		known[sub.Name] = true
		return nil
	}

	for i, sub := range s.Subscribers {
		if err := declare(fmt.Sprintf("subscribers[%d]", i), sub); err != nil {
			return err
		}
	}

	for i, step := range s.Steps {
		if n := step.actionCount(); n != 1 {
			return fmt.Errorf("steps[%d]: exactly one action is required, got %d", i, n)
		}
		switch {
		case step.Set != nil:
			if step.Set.Value == nil {
				return fmt.Errorf("steps[%d].set: value is required (use {} for an empty write)", i)
			}
		case step.DeleteKey != nil:
			if step.DeleteKey.Key == "" {
				return fmt.Errorf("steps[%d].delete_key: key is required", i)
			}
		case step.Subscribe != nil:
			if err := declare(fmt.Sprintf("steps[%d].subscribe", i), *step.Subscribe); err != nil {
				return err
			}
		case step.Unsubscribe != "":
			if !known[step.Unsubscribe] {
				return fmt.Errorf("steps[%d].unsubscribe: unknown subscriber %q", i, step.Unsubscribe)
			}
		}
		for name := range step.Expect {
			if !known[name] {
				return fmt.Errorf("steps[%d].expect: unknown subscriber %q", i, name)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, known); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, known map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state (use {} for an empty scope)", index)
		}
	case AssertDeliveryCount:
		if !known[a.Subscriber] {
			return fmt.Errorf("assertions[%d]: unknown subscriber %q for delivery_count", index, a.Subscriber)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for delivery_count", index)
		}
	case AssertScopes:
		// An empty list asserts that no scope exists.
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
