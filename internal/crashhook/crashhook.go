// Package crashhook owns the two process-wide slots for uncaught-error
// handling: one for a panic escaping the primary goroutine and one for a
// panic terminating a worker goroutine. Each slot holds exactly one handler;
// installing a new handler returns the previous one so installers can chain
// to it. The defaults reproduce what the runtime would have done with an
// unrecovered panic: print the value and stack to stderr and exit 2.
package crashhook

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Dicklesworthstone/glreporter/internal/signature"
)

// Event is one uncaught error occurrence.
type Event struct {
	// Value is the recovered panic value.
	Value any
	// Stack is the stack at the recover site; may be nil.
	Stack *signature.Stack
	// Goroutine is true when the panic terminated a worker goroutine
	// rather than the primary execution path.
	Goroutine bool
}

// Handler consumes one event. Handlers may be invoked concurrently from
// multiple goroutines.
type Handler func(Event)

var (
	mu               sync.RWMutex
	panicHandler     Handler = defaultHandler
	goroutineHandler Handler = defaultHandler
)

// Swapped in tests; the defaults terminate the process.
var (
	exit             = os.Exit
	stderr io.Writer = os.Stderr
)

// SwapPanic installs h as the primary-path handler and returns the handler
// it replaced. A nil h restores the default.
func SwapPanic(h Handler) Handler {
	mu.Lock()
	defer mu.Unlock()
	prev := panicHandler
	if h == nil {
		h = defaultHandler
	}
	panicHandler = h
	return prev
}

// SwapGoroutine installs h as the worker-goroutine handler and returns the
// handler it replaced. A nil h restores the default.
func SwapGoroutine(h Handler) Handler {
	mu.Lock()
	defer mu.Unlock()
	prev := goroutineHandler
	if h == nil {
		h = defaultHandler
	}
	goroutineHandler = h
	return prev
}

// InvokePanic routes an event through the primary-path slot.
func InvokePanic(e Event) {
	mu.RLock()
	h := panicHandler
	mu.RUnlock()
	h(e)
}

// InvokeGoroutine routes an event through the worker-goroutine slot.
func InvokeGoroutine(e Event) {
	mu.RLock()
	h := goroutineHandler
	mu.RUnlock()
	h(e)
}

// defaultHandler mirrors the runtime's crash output for an unrecovered
// panic, then terminates the process with the runtime's panic exit status.
func defaultHandler(e Event) {
	fmt.Fprintf(stderr, "panic: %v\n\n%s", e.Value, e.Stack.String())
	exit(2)
}
