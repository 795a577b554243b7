package harness

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/seqguard/internal/alloc"
	"github.com/roach88/seqguard/internal/breach"
	"github.com/roach88/seqguard/internal/seq"
	"github.com/roach88/seqguard/internal/testutil"
)

// Options configures a run.
type Options struct {
	// Reporter receives every breach after the harness has recorded it.
	// Nil means a fresh Recorder, so a breach never ends the process.
	Reporter breach.Reporter

	// Logger receives per-step debug logs. Nil discards them.
	Logger *slog.Logger

	// Registerer, when set, counts breaches in seqguard_breaches_total.
	Registerer prometheus.Registerer
}

// Run executes a scenario with default options and returns the result.
//
// Each scenario runs against a fresh store, so runs are isolated and the
// trace is reproducible.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithOptions(scenario, Options{})
}

// RunWithOptions executes a scenario.
//
// Execution flow:
// 1. Build the allocator and the store with the initial elements
// 2. Execute steps in order, checking each expect clause
// 3. Stop at the first breach, like a terminating reporter would
// 4. Capture the final store state and evaluate assertions
//
// The returned error covers scenarios that cannot run at all; failed
// expectations and assertions are reported in Result.Errors.
func RunWithOptions(scenario *Scenario, opts Options) (*Result, error) {
	if scenario == nil {
		return nil, fmt.Errorf("scenario is nil")
	}
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	switch scenario.Element {
	case ElementString:
		return run(scenario, opts, toString)
	default:
		return run(scenario, opts, toInt64)
	}
}

type element interface {
	~int64 | ~string
}

// tap records breaches for the trace before handing them on.
type tap struct {
	next     breach.Reporter
	breaches []breach.Breach
}

func (t *tap) Report(b *breach.Breach) {
	t.breaches = append(t.breaches, *b)
	breach.ReportTo(t.next, b)
}

type runner[T element] struct {
	scenario    *Scenario
	store       *seq.Store[T]
	iters       map[string]seq.Iterator[T]
	tap         *tap
	clock       *testutil.Clock
	logger      *slog.Logger
	conv        func(any) (T, error)
	outstanding func() int
}

func run[T element](scenario *Scenario, opts Options, conv func(any) (T, error)) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	}

	next := opts.Reporter
	if next == nil {
		next = breach.NewRecorder()
	}
	if opts.Registerer != nil {
		inst, err := breach.NewInstrumented(next, opts.Registerer)
		if err != nil {
			return nil, fmt.Errorf("failed to register breach metrics: %w", err)
		}
		next = inst
	}
	t := &tap{next: next}

	initial, err := convertAll(scenario.Initial, conv)
	if err != nil {
		return nil, fmt.Errorf("initial: %w", err)
	}

	a, outstanding := newAllocator[T](scenario)
	st, err := seq.New(seq.Options[T]{
		Allocator: a,
		Capacity:  scenario.Capacity,
		Reporter:  t,
	}, initial...)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Destroy()

	r := &runner[T]{
		scenario:    scenario,
		store:       st,
		iters:       make(map[string]seq.Iterator[T]),
		tap:         t,
		clock:       testutil.NewClock(),
		logger:      logger,
		conv:        conv,
		outstanding: outstanding,
	}

	result := NewResult()
	if err := r.execute(result); err != nil {
		return nil, err
	}
	result.State = r.finalState()
	result.Breaches = t.breaches

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	logger.Info("scenario completed",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"steps", result.Steps,
		"breaches", len(result.Breaches),
	)
	return result, nil
}

// execute runs steps until the last one, the first breach or the first
// unexpected error.
func (r *runner[T]) execute(result *Result) error {
	steps := r.scenario.Steps
	for i, step := range steps {
		before := len(r.tap.breaches)

		ev := TraceEvent{Op: step.Op}
		opErr, err := r.apply(step, &ev)
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}

		ev.Seq = r.clock.Next()
		if r.store.Destroyed() {
			ev.Destroyed = true
		} else {
			ev.Generation = r.store.Generation()
		}

		var reported *breach.Breach
		if len(r.tap.breaches) > before {
			reported = &r.tap.breaches[before]
			ev.Breach = string(reported.Kind)
			ev.Index = nil
			ev.Value = nil
		}
		if opErr != nil {
			ev.Error = opErr.Error()
		}

		result.AddTrace(ev)
		result.Steps++
		r.check(i, step, ev, reported, opErr, result)

		r.logger.Debug("step completed",
			"step", i,
			"op", step.Op,
			"iterator", ev.Iterator,
			"generation", ev.Generation,
			"breach", ev.Breach,
		)

		if reported != nil {
			result.Halted = i < len(steps)-1
			return nil
		}
		if opErr != nil && (step.Expect == nil || step.Expect.Error == "") {
			result.Halted = i < len(steps)-1
			return nil
		}
	}
	return nil
}

// apply performs one step. opErr is the error returned by the store
// operation; err means the step itself is unusable.
func (r *runner[T]) apply(step Step, ev *TraceEvent) (opErr error, err error) {
	s := r.store

	switch step.Op {
	case OpBegin:
		r.bind(step.As, s.Begin(), ev)

	case OpEnd:
		r.bind(step.As, s.End(), ev)

	case OpAdvance, OpNext, OpPrev:
		it, err := r.iter(step.Iter)
		if err != nil {
			return nil, err
		}
		var moved seq.Iterator[T]
		switch step.Op {
		case OpAdvance:
			moved = it.Advance(step.Delta)
		case OpNext:
			moved = it.Next()
		default:
			moved = it.Prev()
		}
		r.bind(target(step), moved, ev)

	case OpDeref:
		it, err := r.iter(step.Iter)
		if err != nil {
			return nil, err
		}
		ev.Iterator = step.Iter
		if p := it.Deref(); p != nil {
			ev.Value = *p
		}

	case OpEquals, OpDistance, OpLess:
		it, other, err := r.pair(step)
		if err != nil {
			return nil, err
		}
		ev.Iterator = step.Iter
		switch step.Op {
		case OpEquals:
			ev.Value = it.Equals(other)
		case OpDistance:
			ev.Value = it.Distance(other)
		default:
			ev.Value = it.Less(other)
		}

	case OpAppend:
		v, err := r.conv(step.Value)
		if err != nil {
			return nil, err
		}
		opErr = s.Append(v)

	case OpInsert:
		it, err := r.iter(step.Iter)
		if err != nil {
			return nil, err
		}
		vals, err := convertAll(step.Values, r.conv)
		if err != nil {
			return nil, err
		}
		var res seq.Iterator[T]
		res, opErr = s.Insert(it, vals...)
		if opErr != nil {
			ev.Iterator = step.Iter
			return opErr, nil
		}
		r.bind(target(step), res, ev)

	case OpErase:
		it, err := r.iter(step.Iter)
		if err != nil {
			return nil, err
		}
		r.bind(target(step), s.Erase(it), ev)

	case OpEraseRange:
		first, last, err := r.pair(step)
		if err != nil {
			return nil, err
		}
		r.bind(target(step), s.EraseRange(first, last), ev)

	case OpPopBack:
		s.PopBack()

	case OpClear:
		s.Clear()

	case OpAssign:
		vals, err := convertAll(step.Values, r.conv)
		if err != nil {
			return nil, err
		}
		opErr = s.Assign(vals...)

	case OpReserve:
		opErr = s.Reserve(step.N)

	case OpResize:
		opErr = s.Resize(step.N)

	case OpDestroy:
		s.Destroy()

	default:
		return nil, fmt.Errorf("unknown op %q", step.Op)
	}
	return opErr, nil
}

// check compares the step outcome with its expect clause.
func (r *runner[T]) check(i int, step Step, ev TraceEvent, reported *breach.Breach, opErr error, result *Result) {
	prefix := fmt.Sprintf("step %d (%s)", i, step.Op)
	exp := step.Expect

	var wantBreach breach.Kind
	if exp != nil && exp.Breach != "" {
		wantBreach, _ = breach.ParseKind(exp.Breach)
	}
	switch {
	case reported == nil && wantBreach != "":
		result.AddError(fmt.Sprintf("%s: expected breach %s, none reported", prefix, wantBreach))
	case reported != nil && wantBreach == "":
		result.AddError(fmt.Sprintf("%s: unexpected breach: %s", prefix, reported.Error()))
	case reported != nil && reported.Kind != wantBreach:
		result.AddError(fmt.Sprintf("%s: expected breach %s, got %s", prefix, wantBreach, reported.Kind))
	}

	wantErr := ""
	if exp != nil {
		wantErr = exp.Error
	}
	switch {
	case opErr != nil && wantErr == "":
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", prefix, opErr))
	case opErr == nil && wantErr != "":
		result.AddError(fmt.Sprintf("%s: expected error containing %q, got none", prefix, wantErr))
	case opErr != nil && !strings.Contains(opErr.Error(), wantErr):
		result.AddError(fmt.Sprintf("%s: expected error containing %q, got %q", prefix, wantErr, opErr.Error()))
	}

	if exp == nil || reported != nil {
		return
	}

	if exp.Value != nil {
		want, err := r.conv(exp.Value)
		if err != nil {
			result.AddError(fmt.Sprintf("%s: expect.value: %v", prefix, err))
		} else if got, ok := ev.Value.(T); !ok || got != want {
			result.AddError(fmt.Sprintf("%s: expected value %v, got %v", prefix, want, ev.Value))
		}
	}
	if exp.Equal != nil {
		if got, ok := ev.Value.(bool); !ok || got != *exp.Equal {
			result.AddError(fmt.Sprintf("%s: expected %v, got %v", prefix, *exp.Equal, ev.Value))
		}
	}
	if exp.Distance != nil {
		if got, ok := ev.Value.(int); !ok || got != *exp.Distance {
			result.AddError(fmt.Sprintf("%s: expected distance %d, got %v", prefix, *exp.Distance, ev.Value))
		}
	}
}

func (r *runner[T]) iter(name string) (seq.Iterator[T], error) {
	it, ok := r.iters[name]
	if !ok {
		return seq.Iterator[T]{}, fmt.Errorf("unknown iterator %q", name)
	}
	return it, nil
}

func (r *runner[T]) pair(step Step) (seq.Iterator[T], seq.Iterator[T], error) {
	it, err := r.iter(step.Iter)
	if err != nil {
		return it, it, err
	}
	other, err := r.iter(step.Other)
	if err != nil {
		return it, other, err
	}
	return it, other, nil
}

func (r *runner[T]) bind(name string, it seq.Iterator[T], ev *TraceEvent) {
	r.iters[name] = it
	ev.Iterator = name
	if !it.Terminated() {
		idx := it.Index()
		ev.Index = &idx
	}
}

func (r *runner[T]) finalState() FinalState {
	st := FinalState{Values: []any{}}
	if r.store.Destroyed() {
		st.Destroyed = true
	} else {
		st.Len = r.store.Len()
		st.Cap = r.store.Cap()
		st.Generation = r.store.Generation()
		for _, v := range r.store.Values() {
			st.Values = append(st.Values, v)
		}
	}
	if r.outstanding != nil {
		n := r.outstanding()
		st.Outstanding = &n
	}
	return st
}

// target is the name a movement or positional mutation binds its result to.
func target(step Step) string {
	if step.As != "" {
		return step.As
	}
	return step.Iter
}

func newAllocator[T any](scenario *Scenario) (alloc.Allocator[T], func() int) {
	switch scenario.Allocator {
	case AllocCounting:
		c := alloc.NewCounting[T](nil)
		return c, func() int { return c.Stats().Outstanding }
	case AllocLimited:
		l := alloc.NewLimited[T](nil, scenario.AllocLimit)
		return l, l.Outstanding
	case AllocPooled:
		return alloc.NewPooled[T](0), nil
	default:
		return alloc.NewHeap[T](), nil
	}
}

func convertAll[T any](vals []any, conv func(any) (T, error)) ([]T, error) {
	out := make([]T, 0, len(vals))
	for i, v := range vals {
		t, err := conv(v)
		if err != nil {
			return nil, fmt.Errorf("values[%d]: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// toInt64 converts a YAML-decoded value to an int element.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d out of range", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("want an int element, got %T", v)
	}
}

// toString converts a YAML-decoded value to a string element.
func toString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("want a string element, got %T", v)
	}
	return s, nil
}
