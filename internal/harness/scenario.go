package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/seqguard/internal/breach"
	"github.com/roach88/seqguard/internal/canon"
)

// digestDomain separates scenario digests from any other canonical hash.
const digestDomain = "seqguard/scenario/v1"

// Scenario drives one store through a list of steps and checks the result.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Element selects the element type: "int" (default) or "string".
	Element string `yaml:"element,omitempty"`

	// Allocator selects the store allocator: heap (default), counting,
	// limited or pooled.
	Allocator string `yaml:"allocator,omitempty"`

	// AllocLimit is the element budget of the limited allocator.
	AllocLimit int `yaml:"alloc_limit,omitempty"`

	// Capacity is the initial capacity of the store.
	Capacity int `yaml:"capacity,omitempty"`

	// Initial holds the starting elements.
	Initial []any `yaml:"initial,omitempty"`

	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Digest is the canonical hash of the scenario file. Set by the loaders.
	Digest string `yaml:"-"`
}

// Step is one operation on the store or on a named iterator.
type Step struct {
	Op string `yaml:"op"`

	// Iter names the iterator operated on, or the position argument of a
	// mutation.
	Iter string `yaml:"iter,omitempty"`

	// Other names the second operand of equals, distance, less and
	// erase_range.
	Other string `yaml:"other,omitempty"`

	// As names the iterator produced by the step. Movement and positional
	// mutations rebind Iter when As is empty.
	As string `yaml:"as,omitempty"`

	Delta int `yaml:"delta,omitempty"`

	// N is the argument of reserve and resize.
	N int `yaml:"n,omitempty"`

	Value  any   `yaml:"value,omitempty"`
	Values []any `yaml:"values,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the outcome a step must have.
type Expect struct {
	// Breach is the breach kind the step must report.
	Breach string `yaml:"breach,omitempty"`

	// Value is the element deref must read.
	Value any `yaml:"value,omitempty"`

	// Equal is the result of equals or less.
	Equal *bool `yaml:"equal,omitempty"`

	Distance *int `yaml:"distance,omitempty"`

	// Error is a substring of the error the step must return.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op is the step op (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Ops is the expected op order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Iterator narrows trace_contains to events on this iterator.
	Iterator string `yaml:"iterator,omitempty"`

	// Breach narrows trace_contains and breach_count to one kind.
	Breach string `yaml:"breach,omitempty"`

	// Count is the expected number of events or breaches.
	Count int `yaml:"count,omitempty"`

	// Expect holds the expected store state (final_state).
	Expect *StateExpect `yaml:"expect,omitempty"`
}

// StateExpect is a subset match on the final store state.
type StateExpect struct {
	Len        *int    `yaml:"len,omitempty"`
	Cap        *int    `yaml:"cap,omitempty"`
	Generation *uint64 `yaml:"generation,omitempty"`
	Values     []any   `yaml:"values,omitempty"`
	Destroyed  *bool   `yaml:"destroyed,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertBreachCount   = "breach_count"
)

// Element types.
const (
	ElementInt    = "int"
	ElementString = "string"
)

// Allocator names.
const (
	AllocHeap     = "heap"
	AllocCounting = "counting"
	AllocLimited  = "limited"
	AllocPooled   = "pooled"
)

// Step ops.
const (
	OpBegin      = "begin"
	OpEnd        = "end"
	OpAdvance    = "advance"
	OpNext       = "next"
	OpPrev       = "prev"
	OpDeref      = "deref"
	OpEquals     = "equals"
	OpDistance   = "distance"
	OpLess       = "less"
	OpAppend     = "append"
	OpInsert     = "insert"
	OpErase      = "erase"
	OpEraseRange = "erase_range"
	OpPopBack    = "pop_back"
	OpClear      = "clear"
	OpAssign     = "assign"
	OpReserve    = "reserve"
	OpResize     = "resize"
	OpDestroy    = "destroy"
)

// opShape describes which step fields an op reads.
type opShape struct {
	iter     bool // requires Iter
	other    bool // requires Other
	produces bool // binds an iterator (As, or Iter when rebinding)
	value    bool // requires Value
}

var ops = map[string]opShape{
	OpBegin:      {produces: true},
	OpEnd:        {produces: true},
	OpAdvance:    {iter: true, produces: true},
	OpNext:       {iter: true, produces: true},
	OpPrev:       {iter: true, produces: true},
	OpDeref:      {iter: true},
	OpEquals:     {iter: true, other: true},
	OpDistance:   {iter: true, other: true},
	OpLess:       {iter: true, other: true},
	OpAppend:     {value: true},
	OpInsert:     {iter: true, produces: true},
	OpErase:      {iter: true, produces: true},
	OpEraseRange: {iter: true, other: true, produces: true},
	OpPopBack:    {},
	OpClear:      {},
	OpAssign:     {},
	OpReserve:    {},
	OpResize:     {},
	OpDestroy:    {},
}

// LoadScenario reads a scenario file, checks it against the scenario
// schema and parses it.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos) or references iterators before binding them.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := parseChecked(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// ParseScenario decodes scenario YAML with strict field checking and
// semantic validation. It does not apply the CUE schema.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	digest, err := Digest(data)
	if err != nil {
		return nil, err
	}
	scenario.Digest = digest
	return &scenario, nil
}

// Digest returns the canonical hash of scenario YAML. Formatting, comments
// and key order do not change it.
func Digest(data []byte) (string, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("failed to parse YAML: %w", err)
	}
	d, err := canon.Digest(digestDomain, doc)
	if err != nil {
		return "", fmt.Errorf("scenario digest: %w", err)
	}
	return d, nil
}

// validateScenario checks required fields and iterator bindings.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch s.Element {
	case "", ElementInt, ElementString:
	default:
		return fmt.Errorf("unknown element type %q", s.Element)
	}

	switch s.Allocator {
	case "", AllocHeap, AllocCounting, AllocPooled:
	case AllocLimited:
		if s.AllocLimit <= 0 {
			return fmt.Errorf("alloc_limit must be positive for the limited allocator")
		}
	default:
		return fmt.Errorf("unknown allocator %q", s.Allocator)
	}

	if s.Capacity < 0 {
		return fmt.Errorf("capacity must be non-negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	bound := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(i, step, bound); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step, bound map[string]bool) error {
	shape, ok := ops[step.Op]
	if !ok {
		return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
	}
	if shape.iter {
		if step.Iter == "" {
			return fmt.Errorf("steps[%d] (%s): iter is required", i, step.Op)
		}
		if !bound[step.Iter] {
			return fmt.Errorf("steps[%d] (%s): iterator %q used before it is bound", i, step.Op, step.Iter)
		}
	}
	if shape.other {
		if step.Other == "" {
			return fmt.Errorf("steps[%d] (%s): other is required", i, step.Op)
		}
		if !bound[step.Other] {
			return fmt.Errorf("steps[%d] (%s): iterator %q used before it is bound", i, step.Op, step.Other)
		}
	}
	if shape.value && step.Value == nil {
		return fmt.Errorf("steps[%d] (%s): value is required", i, step.Op)
	}
	if step.As != "" && !shape.produces {
		return fmt.Errorf("steps[%d] (%s): op does not produce an iterator", i, step.Op)
	}
	if shape.produces && !shape.iter && step.As == "" {
		return fmt.Errorf("steps[%d] (%s): as is required", i, step.Op)
	}
	if step.As != "" {
		bound[step.As] = true
	}

	if e := step.Expect; e != nil && e.Breach != "" {
		if _, err := breach.ParseKind(e.Breach); err != nil {
			return fmt.Errorf("steps[%d].expect: %w", i, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertBreachCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for breach_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Breach != "" {
		if _, err := breach.ParseKind(a.Breach); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	}
	return nil
}
