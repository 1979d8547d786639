package signature

import (
	"fmt"
	"runtime"
	"strings"
)

// maxFrames bounds how many frames a capture records.
const maxFrames = 64

// Stack is a captured call stack. The zero of *Stack (nil) renders as an
// empty trace, which keeps formatting total when no stack is available.
type Stack struct {
	pcs []uintptr
}

// Capture records the calling goroutine's stack. skip counts frames above
// the caller to drop, so a recover helper can hide itself from the trace.
func Capture(skip int) *Stack {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}
	return &Stack{pcs: pcs[:n]}
}

// String renders the stack frame by frame: the function on one line, its
// file and line indented below, matching conventional panic output.
func (s *Stack) String() string {
	if s == nil || len(s.pcs) == 0 {
		return ""
	}
	var b strings.Builder
	frames := runtime.CallersFrames(s.pcs)
	for {
		frame, more := frames.Next()
		// Panic machinery (runtime.gopanic and friends) is noise between
		// the recover site and the frame that actually panicked.
		if frame.Function != "" && !strings.HasPrefix(frame.Function, "runtime.") {
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return b.String()
}
