package harness

import "github.com/roach88/seqguard/internal/breach"

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq int64  `json:"seq"`
	Op  string `json:"op"`

	// Iterator is the iterator the step bound or operated on.
	Iterator string `json:"iterator,omitempty"`

	// Index is the position of the bound iterator, nil when the step bound
	// none or the step breached.
	Index *int `json:"index,omitempty"`

	// Generation is the store generation after the step. Zero and
	// meaningless once Destroyed is set.
	Generation uint64 `json:"generation"`
	Destroyed  bool   `json:"destroyed,omitempty"`

	// Breach is the kind reported by the step, if any.
	Breach string `json:"breach,omitempty"`

	// Value is what deref read, what equals/less answered or the distance.
	Value any `json:"value,omitempty"`

	// Error is the error the step returned (allocation failures).
	Error string `json:"error,omitempty"`
}

// FinalState is the store after the last executed step.
type FinalState struct {
	Len        int    `json:"len"`
	Cap        int    `json:"cap"`
	Generation uint64 `json:"generation"`
	Destroyed  bool   `json:"destroyed"`
	Values     []any  `json:"values"`

	// Outstanding is the number of allocated elements not yet returned,
	// reported for the counting and limited allocators.
	Outstanding *int `json:"outstanding,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step met its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Breaches holds every breach the run reported.
	Breaches []breach.Breach `json:"breaches,omitempty"`

	// Halted is set when a breach ended the run early.
	Halted bool `json:"halted,omitempty"`

	// Steps is the number of steps executed.
	Steps int `json:"steps"`

	State FinalState `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends ev to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
