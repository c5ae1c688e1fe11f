package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/atrium-ui/app-state/internal/notify"
	"github.com/atrium-ui/app-state/internal/state"
	"github.com/atrium-ui/app-state/internal/store"
	"github.com/atrium-ui/app-state/internal/testutil"
	"github.com/atrium-ui/app-state/internal/tree"
)

// Harness is the scenario execution engine.
// It runs scenarios against a real state.Store persisted to an in-memory
// database, with deterministic subscription IDs.
type Harness struct {
	state  *state.Store
	db     *store.Store
	writer *store.Writer
	logger *slog.Logger

	subs   map[string]*notify.Subscription
	step   int // Index of the step being executed; -1 while attaching
	result *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh store and in-memory database for isolation.
//
// Execution flow:
// 1. Restore the seed (no notifications)
// 2. Attach declared subscribers
// 3. Execute steps, checking expect clauses after each
// 4. Verify the persisted snapshot matches the live state
// 5. Evaluate assertions
//
// A returned error means the scenario could not be executed at all;
// mismatches are reported through Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	db, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	writer := store.NewWriter(db, store.WithWriterLogger(logger))
	defer writer.Close()

	st := state.New(
		state.WithPersister(writer),
		state.WithLogger(logger),
		state.WithIDGenerator(testutil.NewSequenceGenerator(scenario.Name)),
	)
	defer st.Close()

	h := &Harness{
		state:  st,
		db:     db,
		writer: writer,
		logger: logger,
		subs:   make(map[string]*notify.Subscription),
		step:   -1,
		result: NewResult(),
	}

	ctx := context.Background()

	if err := h.seed(scenario.Seed); err != nil {
		return nil, fmt.Errorf("failed to seed: %w", err)
	}

	for _, sub := range scenario.Subscribers {
		h.subscribe(ctx, sub)
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Kind(), err)
		}
	}

	h.result.State = st.Snapshot()
	h.result.Revision = st.Revision()

	if err := h.verifyPersisted(ctx); err != nil {
		h.result.AddError(err.Error())
	}

	for _, errMsg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(errMsg)
	}

	return h.result, nil
}

func (h *Harness) seed(seed map[string]map[string]any) error {
	if len(seed) == 0 {
		return nil
	}
	snapshot := make(map[string]tree.Map, len(seed))
	for scope, value := range seed {
		t, err := tree.MapFromGo(value)
		if err != nil {
			return fmt.Errorf("scope %q: %w", scope, err)
		}
		snapshot[scope] = t
	}
	return h.state.Restore(0, snapshot)
}

func (h *Harness) subscribe(ctx context.Context, spec SubscriberSpec) {
	name, scope := spec.Name, spec.Scope
	cb := func(_ context.Context, delta tree.Map) {
		h.result.AddDelivery(h.step, name, scope, tree.Copy(delta))
	}

	var sub *notify.Subscription
	if spec.Initial == InitialCurrent {
		sub = h.state.SubscribeCurrent(ctx, scope, cb)
	} else {
		sub = h.state.Subscribe(scope, cb)
	}
	h.subs[name] = sub

	h.logger.Info("subscriber attached",
		"subscriber", name,
		"scope", scope,
		"subscription", sub.ID(),
	)
}

// executeStep runs one step and checks its expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step Step) error {
	h.step = i
	before := len(h.result.Trace)

	switch {
	case step.Set != nil:
		value, err := tree.MapFromGo(step.Set.Value)
		if err != nil {
			return fmt.Errorf("convert value: %w", err)
		}
		if err := h.state.Set(ctx, step.Set.Scope, value); err != nil {
			return err
		}
	case step.DeleteKey != nil:
		if err := h.state.DeleteKey(ctx, step.DeleteKey.Scope, step.DeleteKey.Key); err != nil {
			return err
		}
	case step.DeleteScope != "":
		if err := h.state.DeleteScope(ctx, step.DeleteScope); err != nil {
			return err
		}
	case step.Subscribe != nil:
		h.subscribe(ctx, *step.Subscribe)
	case step.Unsubscribe != "":
		sub, ok := h.subs[step.Unsubscribe]
		if !ok {
			return fmt.Errorf("unknown subscriber %q", step.Unsubscribe)
		}
		sub.Remove()
	default:
		return fmt.Errorf("step has no action")
	}

	h.logger.Info("step completed",
		"step", i,
		"kind", step.Kind(),
		"deliveries", len(h.result.Trace)-before,
	)

	if step.Expect != nil {
		for _, msg := range checkExpect(i, step.Expect, h.result.Trace[before:]) {
			h.result.AddError(msg)
		}
	}
	return nil
}

// checkExpect compares the deliveries of one step with its expect clause.
func checkExpect(step int, expect map[string]map[string]any, got []Delivery) []string {
	var errs []string

	bySub := make(map[string][]tree.Map)
	for _, d := range got {
		bySub[d.Subscriber] = append(bySub[d.Subscriber], d.Delta)
	}

	for name, raw := range expect {
		want, err := tree.MapFromGo(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("steps[%d].expect.%s: %v", step, name, err))
			continue
		}
		deltas := bySub[name]
		switch {
		case len(deltas) == 0:
			errs = append(errs, fmt.Sprintf("steps[%d]: expected delta %s for %q, got none",
				step, formatTree(want), name))
		case len(deltas) > 1:
			errs = append(errs, fmt.Sprintf("steps[%d]: expected one delta for %q, got %d",
				step, name, len(deltas)))
		case !tree.Equal(want, deltas[0]):
			errs = append(errs, fmt.Sprintf("steps[%d]: delta for %q = %s, expected %s",
				step, name, formatTree(deltas[0]), formatTree(want)))
		}
	}

	for name, deltas := range bySub {
		if _, listed := expect[name]; !listed {
			errs = append(errs, fmt.Sprintf("steps[%d]: unexpected delta %s for %q",
				step, formatTree(deltas[0]), name))
		}
	}

	return sortedErrors(errs)
}

// verifyPersisted flushes the writer and checks the database holds the
// final state.
func (h *Harness) verifyPersisted(ctx context.Context) error {
	if err := h.writer.Flush(ctx); err != nil {
		return fmt.Errorf("persistence: flush: %v", err)
	}
	rev, snapshot, err := h.db.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("persistence: load: %v", err)
	}
	// A scenario without writes never persists anything.
	if h.result.Revision == 0 {
		return nil
	}
	if rev != h.result.Revision {
		return fmt.Errorf("persistence: stored revision %d, expected %d", rev, h.result.Revision)
	}
	if !snapshotsEqual(snapshot, h.result.State) {
		return fmt.Errorf("persistence: stored snapshot differs from live state")
	}
	return nil
}

func snapshotsEqual(a, b map[string]tree.Map) bool {
	if len(a) != len(b) {
		return false
	}
	for scope, t := range a {
		u, ok := b[scope]
		if !ok || !tree.Equal(t, u) {
			return false
		}
	}
	return true
}
