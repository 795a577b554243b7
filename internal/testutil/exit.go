package testutil

import "sync"

// ExitTrap stands in for os.Exit in tests of terminating reporters.
type ExitTrap struct {
	mu    sync.Mutex
	codes []int
}

// Exit records code instead of ending the process.
func (e *ExitTrap) Exit(code int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.codes = append(e.codes, code)
}

// Called reports whether Exit ran at least once.
func (e *ExitTrap) Called() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.codes) > 0
}

// Code returns the first exit code and whether Exit ran.
func (e *ExitTrap) Code() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.codes) == 0 {
		return 0, false
	}
	return e.codes[0], true
}

// Codes returns every recorded exit code in order.
func (e *ExitTrap) Codes() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.codes...)
}
