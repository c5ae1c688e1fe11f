// Package harness runs delivery scenarios against a real state.Store.
//
// A scenario seeds scopes, attaches subscribers, performs writes and checks
// the exact delta every subscriber receives at each step. The final state is
// checked by assertions and the full delivery trace can be compared against
// a golden file.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: rename_user
//	description: "What this scenario validates"
//	seed:
//	  global: { user: { name: Ann } }
//	subscribers:
//	  - name: ui
//	    scope: global
//	    initial: empty      # or current
//	steps:
//	  - set: { scope: global, value: { user: { name: Bea } } }
//	    expect:
//	      ui: { user: { name: Bea } }
//	  - delete_key: { scope: global, key: user }
//	  - delete_scope: global
//	  - subscribe: { name: late, scope: global, initial: current }
//	  - unsubscribe: ui
//	assertions:
//	  - type: final_state
//	    scope: global
//	    expect: {}
//	  - type: delivery_count
//	    subscriber: ui
//	    count: 2
//
// An expect clause is exact: every listed subscriber must receive exactly
// the given delta during that step and every unlisted one must receive
// nothing. YAML null stands for a removed key. Steps without expect are
// executed and recorded but not checked.
//
// # Assertion Types
//
//   - final_state: the scope's tree compares equal to expect
//   - delivery_count: a subscriber received exactly count deltas in total
//   - scopes: the store holds exactly the listed scopes
//
// # Deterministic Testing
//
// Each run uses a fresh store, an in-memory SQLite database fed through
// store.Writer, and sequential subscription IDs. After the last step the
// harness checks that the persisted snapshot equals the live state.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/rename_user.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
