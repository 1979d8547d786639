package glreporter

import (
	"context"

	"github.com/Dicklesworthstone/glreporter/internal/crashhook"
	"github.com/Dicklesworthstone/glreporter/internal/signature"
)

// std is the process-wide default reporter the package-level functions use.
var std = New()

// Default returns the package-level reporter instance.
func Default() *Reporter { return std }

// Initialize configures the default reporter and installs the uncaught
// error handlers. See Reporter.Initialize.
func Initialize(host, token string, projectID int, opts ...Option) {
	std.Initialize(host, token, projectID, opts...)
}

// InitializeFromFile configures the default reporter from a TOML file.
func InitializeFromFile(path string) error {
	return std.InitializeFromFile(path)
}

// WatchConfig configures the default reporter from a file and keeps it in
// sync with file changes. It returns a stop function.
func WatchConfig(path string) (func(), error) {
	return std.WatchConfig(path)
}

// IsConfigured reports whether the default reporter is configured.
func IsConfigured() bool { return std.IsConfigured() }

// ReportError submits a caught error through the default reporter.
func ReportError(ctx context.Context, err error) error {
	return std.ReportError(ctx, err)
}

// Recover routes a panic on the calling goroutine into the process
// uncaught-error handler. Defer it at the top of main:
//
//	func main() {
//		defer glreporter.Recover()
//		glreporter.Initialize("https://gitlab.com", token, 42)
//		...
//	}
//
// When no reporter is installed the default handler reproduces the
// runtime's crash output and exit status, so behavior without Initialize
// matches an unrecovered panic.
func Recover() {
	v := recover()
	if v == nil {
		return
	}
	crashhook.InvokePanic(crashhook.Event{
		Value: v,
		Stack: signature.Capture(1),
	})
}

// Go runs fn on a new goroutine. A panic escaping fn is routed into the
// process uncaught-thread-error handler instead of crashing the process
// unreported.
func Go(fn func()) {
	go func() {
		defer func() {
			if v := recover(); v != nil {
				crashhook.InvokeGoroutine(crashhook.Event{
					Value:     v,
					Stack:     signature.Capture(2),
					Goroutine: true,
				})
			}
		}()
		fn()
	}()
}
