package glreporter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Dicklesworthstone/glreporter/internal/crashhook"
	"github.com/Dicklesworthstone/glreporter/internal/signature"
	"github.com/Dicklesworthstone/glreporter/internal/tracker"
	"github.com/Dicklesworthstone/glreporter/internal/tracker/trackertest"
)

type valueError struct{ msg string }

func (e *valueError) Error() string { return e.msg }

// resetHooks restores both process hook slots after a test that installs
// handlers into them.
func resetHooks(t *testing.T) {
	t.Helper()
	prevPanic := crashhook.SwapPanic(nil)
	prevGoroutine := crashhook.SwapGoroutine(nil)
	t.Cleanup(func() {
		crashhook.SwapPanic(prevPanic)
		crashhook.SwapGoroutine(prevGoroutine)
	})
}

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsConfigured(t *testing.T) {
	resetHooks(t)
	r := New(WithLogger(quietLogger()))

	if r.IsConfigured() {
		t.Error("IsConfigured() = true before Initialize")
	}

	r.Initialize("https://gitlab.example", "tok", 7, withTracker(trackertest.New(7)))

	if !r.IsConfigured() {
		t.Error("IsConfigured() = false after Initialize")
	}
}

func TestHandlerSkipsWhenUnconfigured(t *testing.T) {
	var buf bytes.Buffer
	r := New(WithLogger(testLogger(&buf)))

	var chained []crashhook.Event
	r.origPanic = func(e crashhook.Event) { chained = append(chained, e) }

	event := crashhook.Event{Value: &valueError{"Ooopsie"}, Stack: signature.Capture(0)}
	r.handlePanic(event)

	if !strings.Contains(buf.String(), "not configured") {
		t.Errorf("expected informational skip message, log: %s", buf.String())
	}
	if len(chained) != 1 {
		t.Fatalf("original handler called %d times, want 1", len(chained))
	}
	if chained[0].Value != event.Value {
		t.Error("original handler did not receive the original error value")
	}
}

func TestPanicReportsIssueAndChains(t *testing.T) {
	resetHooks(t)

	chained := make(chan crashhook.Event, 1)
	crashhook.SwapPanic(func(e crashhook.Event) { chained <- e })

	fake := trackertest.New(7)
	r := New(WithLogger(quietLogger()))
	r.Initialize("https://gitlab.example", "tok", 7, withTracker(fake))

	boom := &valueError{"Ooopsie"}
	func() {
		defer Recover()
		panic(boom)
	}()

	select {
	case e := <-chained:
		if e.Value != boom {
			t.Errorf("chained event value = %v, want original panic value", e.Value)
		}
	default:
		t.Fatal("original handler was not invoked")
	}

	issues := fake.Issues()
	if len(issues) != 1 {
		t.Fatalf("issue count = %d, want 1", len(issues))
	}
	if issues[0].Title != "glreporter.valueError: Ooopsie" {
		t.Errorf("issue title = %q", issues[0].Title)
	}
	if !strings.Contains(issues[0].Description, "Ooopsie") {
		t.Errorf("description missing message:\n%s", issues[0].Description)
	}
	if !strings.Contains(issues[0].Description, "```") {
		t.Errorf("description missing fenced trace block:\n%s", issues[0].Description)
	}
	if issues[0].State != tracker.StateOpened {
		t.Errorf("issue state = %q, want opened", issues[0].State)
	}
}

func TestRecurringPanicReopensInsteadOfDuplicating(t *testing.T) {
	resetHooks(t)
	crashhook.SwapPanic(func(crashhook.Event) {})

	fake := trackertest.New(7)
	seeded := fake.Seed("glreporter.valueError: Ooopsie", "stale", tracker.StateClosed)

	r := New(WithLogger(quietLogger()))
	r.Initialize("https://gitlab.example", "tok", 7, withTracker(fake))

	func() {
		defer Recover()
		panic(&valueError{"Ooopsie"})
	}()

	issues := fake.Issues()
	if len(issues) != 1 {
		t.Fatalf("issue count = %d, want 1 (reopen, not duplicate)", len(issues))
	}
	if issues[0].IID != seeded.IID {
		t.Errorf("reported into IID %d, want existing %d", issues[0].IID, seeded.IID)
	}
	if issues[0].State != tracker.StateOpened {
		t.Errorf("state = %q, want reopened", issues[0].State)
	}
	if issues[0].Description == "stale" {
		t.Error("description was not refreshed")
	}
}

func TestGoroutinePanicReportsAndChains(t *testing.T) {
	resetHooks(t)

	chained := make(chan crashhook.Event, 1)
	crashhook.SwapGoroutine(func(e crashhook.Event) { chained <- e })

	fake := trackertest.New(7)
	r := New(WithLogger(quietLogger()))
	r.Initialize("https://gitlab.example", "tok", 7, withTracker(fake))

	Go(func() {
		panic("worker boom")
	})

	select {
	case e := <-chained:
		if e.Value != "worker boom" {
			t.Errorf("chained value = %v", e.Value)
		}
		if !e.Goroutine {
			t.Error("event not flagged as goroutine")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("goroutine handler not invoked")
	}

	issues := fake.Issues()
	if len(issues) != 1 {
		t.Fatalf("issue count = %d, want 1", len(issues))
	}
	if issues[0].Title != "string: worker boom" {
		t.Errorf("issue title = %q", issues[0].Title)
	}
}

func TestTrackerFailureIsAbsorbedAndStillChains(t *testing.T) {
	resetHooks(t)

	chained := make(chan crashhook.Event, 1)
	crashhook.SwapPanic(func(e crashhook.Event) { chained <- e })

	fake := trackertest.New(7)
	fake.GetProjectErr = &tracker.APIError{StatusCode: 503, Message: "tracker down"}

	var buf bytes.Buffer
	r := New(WithLogger(testLogger(&buf)))
	r.Initialize("https://gitlab.example", "tok", 7, withTracker(fake))

	boom := &valueError{"Ooopsie"}
	func() {
		defer Recover()
		panic(boom)
	}()

	select {
	case e := <-chained:
		if e.Value != boom {
			t.Errorf("chained value = %v, want original panic value, not the tracker error", e.Value)
		}
	default:
		t.Fatal("original handler was not invoked after reporting failure")
	}

	if len(fake.Issues()) != 0 {
		t.Error("no issue should exist after a failed report")
	}
	if !strings.Contains(buf.String(), "issue reporting failed") {
		t.Errorf("diagnostic log missing failure line: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "tracker down") {
		t.Errorf("diagnostic log missing error detail: %s", buf.String())
	}
}

// panickyTracker blows up during the scan to exercise the guard.
type panickyTracker struct{ *trackertest.Fake }

func (p *panickyTracker) ListIssues(ctx context.Context, projectID int) tracker.IssueIterator {
	panic("malformed client")
}

func TestReportingPanicIsAbsorbed(t *testing.T) {
	resetHooks(t)

	chained := make(chan crashhook.Event, 1)
	crashhook.SwapPanic(func(e crashhook.Event) { chained <- e })

	pt := &panickyTracker{Fake: trackertest.New(7)}

	var buf bytes.Buffer
	r := New(WithLogger(testLogger(&buf)))
	r.Initialize("https://gitlab.example", "tok", 7, withTracker(pt))

	func() {
		defer Recover()
		panic(&valueError{"Ooopsie"})
	}()

	if len(chained) != 1 {
		t.Fatal("original handler was not invoked after reporting panic")
	}
	if !strings.Contains(buf.String(), "issue reporting panicked") {
		t.Errorf("guard did not log the reporting panic: %s", buf.String())
	}
}

func TestReinitializeKeepsOriginalChainTarget(t *testing.T) {
	resetHooks(t)

	var originalCalls int
	crashhook.SwapPanic(func(crashhook.Event) { originalCalls++ })

	fake := trackertest.New(7)
	r := New(WithLogger(quietLogger()))
	r.Initialize("https://gitlab.example", "tok", 7, withTracker(fake))
	r.Initialize("https://gitlab.example", "tok-rotated", 7, withTracker(fake))

	crashhook.InvokePanic(crashhook.Event{Value: "boom"})

	// One invocation must reach the pre-install handler exactly once; a
	// re-captured chain would loop through the reporter's own handler.
	if originalCalls != 1 {
		t.Errorf("original handler calls = %d, want 1", originalCalls)
	}
}

func TestReinitializeReplacesAssignee(t *testing.T) {
	resetHooks(t)
	crashhook.SwapPanic(func(crashhook.Event) {})

	fake := trackertest.New(7)
	r := New(WithLogger(quietLogger()))
	r.Initialize("https://gitlab.example", "tok", 7, withTracker(fake), WithAssignee(99))
	r.Initialize("https://gitlab.example", "tok", 7, withTracker(fake))

	r.mu.RLock()
	assignee := r.assigneeID
	r.mu.RUnlock()
	if assignee != nil {
		t.Errorf("assignee = %v, want cleared by re-initialization", *assignee)
	}
}

func TestConcurrentSameSignatureYieldsOneIssue(t *testing.T) {
	resetHooks(t)

	chained := make(chan crashhook.Event, 2)
	crashhook.SwapGoroutine(func(e crashhook.Event) { chained <- e })

	fake := trackertest.New(7)
	r := New(WithLogger(quietLogger()))
	r.Initialize("https://gitlab.example", "tok", 7, withTracker(fake))

	for i := 0; i < 2; i++ {
		Go(func() {
			panic(&valueError{"Ooopsie"})
		})
	}
	for i := 0; i < 2; i++ {
		select {
		case <-chained:
		case <-time.After(5 * time.Second):
			t.Fatal("goroutine handler not invoked")
		}
	}

	if got := len(fake.Issues()); got != 1 {
		t.Errorf("issue count = %d, want 1 for one signature", got)
	}
}

func TestReportError(t *testing.T) {
	resetHooks(t)
	crashhook.SwapPanic(func(crashhook.Event) {})

	fake := trackertest.New(7)
	r := New(WithLogger(quietLogger()))
	r.Initialize("https://gitlab.example", "tok", 7, withTracker(fake))

	if err := r.ReportError(context.Background(), &valueError{"caught"}); err != nil {
		t.Fatalf("ReportError() error = %v", err)
	}
	issues := fake.Issues()
	if len(issues) != 1 || issues[0].Title != "glreporter.valueError: caught" {
		t.Errorf("issues = %+v", issues)
	}

	if err := r.ReportError(context.Background(), nil); err != nil {
		t.Errorf("ReportError(nil) = %v, want nil", err)
	}
}

func TestReportErrorUnconfigured(t *testing.T) {
	r := New(WithLogger(quietLogger()))

	err := r.ReportError(context.Background(), errors.New("x"))
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("ReportError() = %v, want ErrNotConfigured", err)
	}
}

func TestReportErrorPropagatesTrackerFailure(t *testing.T) {
	resetHooks(t)
	crashhook.SwapPanic(func(crashhook.Event) {})

	fake := trackertest.New(7)
	fake.CreateErr = &tracker.APIError{StatusCode: 500, Message: "boom"}
	r := New(WithLogger(quietLogger()))
	r.Initialize("https://gitlab.example", "tok", 7, withTracker(fake))

	err := r.ReportError(context.Background(), errors.New("x"))
	var apiErr *tracker.APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("ReportError() = %v, want APIError to propagate", err)
	}
}

func TestRecoverNoPanicIsNoop(t *testing.T) {
	resetHooks(t)

	var invoked bool
	crashhook.SwapPanic(func(crashhook.Event) { invoked = true })

	func() {
		defer Recover()
	}()

	if invoked {
		t.Error("Recover() invoked the hook without a panic")
	}
}
