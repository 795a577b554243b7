package breach

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// DefaultExitCode is the status Terminator exits with, matching abort().
const DefaultExitCode = 134

// Reporter receives every detected breach.
//
// A Reporter may end the process or return. Callers must behave sanely when
// it returns: the failed operation yields a terminated iterator, a nil
// pointer or a zero value.
type Reporter interface {
	Report(b *Breach)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(b *Breach)

// Report calls f(b).
func (f ReporterFunc) Report(b *Breach) {
	f(b)
}

// Terminator logs a breach and exits the process.
type Terminator struct {
	// Code is the exit status.
	Code int

	// Exit ends the process. Tests replace it; nil means os.Exit.
	Exit func(code int)

	// Logger receives the breach record. Nil means slog.Default().
	Logger *slog.Logger
}

// NewTerminator creates a Terminator exiting with code through os.Exit.
func NewTerminator(code int) *Terminator {
	return &Terminator{Code: code}
}

// Report logs b and exits.
func (t *Terminator) Report(b *Breach) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("iterator contract breach",
		"kind", string(b.Kind),
		"op", b.Op,
		"index", b.Index,
		"delta", b.Delta,
		"len", b.Len,
		"iterator_generation", b.IteratorGeneration,
		"store_generation", b.StoreGeneration,
		"message", b.Message,
	)

	exit := t.Exit
	if exit == nil {
		exit = os.Exit
	}
	exit(t.Code)
}

// Recorder keeps breaches and returns control to the caller.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	breaches []Breach
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Report stores a copy of b.
func (r *Recorder) Report(b *Breach) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breaches = append(r.breaches, *b)
}

// Breaches returns a copy of the recorded breaches in report order.
func (r *Recorder) Breaches() []Breach {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Breach, len(r.breaches))
	copy(out, r.breaches)
	return out
}

// Count returns the number of recorded breaches.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.breaches)
}

// CountKind returns the number of recorded breaches of kind k.
func (r *Recorder) CountKind(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i := range r.breaches {
		if r.breaches[i].Kind == k {
			n++
		}
	}
	return n
}

// Last returns the most recent breach.
func (r *Recorder) Last() (Breach, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.breaches) == 0 {
		return Breach{}, false
	}
	return r.breaches[len(r.breaches)-1], true
}

// Reset discards all recorded breaches.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breaches = nil
}

// reporterBox lets atomic.Pointer hold an interface value.
type reporterBox struct {
	r Reporter
}

var current atomic.Pointer[reporterBox]

func init() {
	current.Store(&reporterBox{r: NewTerminator(DefaultExitCode)})
}

// SetReporter installs r as the process-wide reporter and returns a function
// restoring the previous one. A nil r restores the default Terminator.
func SetReporter(r Reporter) (restore func()) {
	if r == nil {
		r = NewTerminator(DefaultExitCode)
	}
	prev := current.Swap(&reporterBox{r: r})
	return func() {
		current.Store(prev)
	}
}

// Current returns the process-wide reporter.
func Current() Reporter {
	return current.Load().r
}

// Report delivers b to the process-wide reporter.
func Report(b *Breach) {
	Current().Report(b)
}

// ReportTo delivers b to r, or to the process-wide reporter when r is nil.
func ReportTo(r Reporter, b *Breach) {
	if r == nil {
		r = Current()
	}
	r.Report(b)
}
