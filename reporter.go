// Package glreporter reports uncaught errors to a GitLab project as
// deduplicated issues. A panic escaping the primary goroutine (via Recover)
// or terminating a worker goroutine (via Go) is formatted into a stable
// signature title; an existing issue with that exact title is reopened and
// refreshed, otherwise a new issue is created. Reporting is fail-safe: a
// failure inside the reporting path is logged and discarded, and the handler
// that was active before installation always still runs, so the crash
// behavior users would see without this package is preserved unchanged.
package glreporter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Dicklesworthstone/glreporter/internal/config"
	"github.com/Dicklesworthstone/glreporter/internal/crashhook"
	"github.com/Dicklesworthstone/glreporter/internal/gitlab"
	"github.com/Dicklesworthstone/glreporter/internal/issuesync"
	"github.com/Dicklesworthstone/glreporter/internal/signature"
	"github.com/Dicklesworthstone/glreporter/internal/tracker"
)

// DefaultReportTimeout bounds one reporting attempt (project lookup, issue
// scan, and the single mutation).
const DefaultReportTimeout = 30 * time.Second

// ErrNotConfigured reports use of the reporter before Initialize. It is
// returned only to direct callers; the installed handlers log and skip
// instead.
var ErrNotConfigured = errors.New("glreporter: not configured, call Initialize first")

// Reporter converts uncaught errors into tracker issues. The zero value is
// not usable; construct with New. A process normally uses the package-level
// default instance through Initialize, but tests can construct independent
// instances instead of resetting shared state.
type Reporter struct {
	// Logger receives the reporter's diagnostics. Defaults to slog.Default.
	Logger *slog.Logger

	mu         sync.RWMutex
	client     tracker.Tracker
	projectID  int
	assigneeID *int
	syncer     *issuesync.Synchronizer

	reportTimeout time.Duration
	httpTimeout   time.Duration

	// clientOverride substitutes the constructed GitLab client, for tests.
	clientOverride tracker.Tracker

	// Hook installation happens once per Reporter; the captured originals
	// are the chain targets for every occurrence, including after
	// re-initialization, so repeated Initialize calls cannot build handler
	// chains onto themselves.
	installOnce   sync.Once
	origPanic     crashhook.Handler
	origGoroutine crashhook.Handler
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reporter) { r.Logger = l }
}

// WithAssignee assigns created issues to the given user ID. The assignee is
// part of one configuration: a later Initialize without this option clears
// it.
func WithAssignee(id int) Option {
	return func(r *Reporter) { r.assigneeID = &id }
}

// WithReportTimeout bounds a single reporting attempt.
func WithReportTimeout(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.reportTimeout = d
		}
	}
}

// WithHTTPTimeout sets the per-request timeout of the constructed GitLab
// client.
func WithHTTPTimeout(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.httpTimeout = d
		}
	}
}

// withTracker substitutes the tracker client, bypassing client construction.
func withTracker(t tracker.Tracker) Option {
	return func(r *Reporter) { r.clientOverride = t }
}

// New creates an uninitialized Reporter.
func New(opts ...Option) *Reporter {
	r := &Reporter{reportTimeout: DefaultReportTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reporter) logger() *slog.Logger {
	if r != nil && r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Initialize configures the reporter against the GitLab instance at host
// using a private token, targeting one project, and installs the uncaught
// error handlers. Calling it again fully replaces the previous
// configuration (last call wins) without re-capturing the chained original
// handlers.
func (r *Reporter) Initialize(host, token string, projectID int, opts ...Option) {
	r.mu.Lock()
	r.assigneeID = nil
	for _, opt := range opts {
		opt(r)
	}

	client := r.clientOverride
	if client == nil {
		var gopts []gitlab.Option
		if r.httpTimeout > 0 {
			gopts = append(gopts, gitlab.WithTimeout(r.httpTimeout))
		}
		client = gitlab.NewClient(host, token, gopts...)
	}

	r.client = client
	r.projectID = projectID
	r.syncer = issuesync.New(client)
	r.syncer.Logger = r.logger()
	r.mu.Unlock()

	r.logger().Info("glreporter configured",
		"host", host,
		"project_id", projectID)

	r.install()
}

// InitializeFromFile loads a TOML config file and initializes from it.
func (r *Reporter) InitializeFromFile(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	r.initializeFromConfig(cfg)
	return nil
}

// WatchConfig initializes from a config file and re-initializes whenever
// the file changes (last write wins). It returns a stop function.
func (r *Reporter) WatchConfig(path string) (func(), error) {
	if err := r.InitializeFromFile(path); err != nil {
		return nil, err
	}
	return config.Watch(path, func(cfg *config.Config) {
		r.initializeFromConfig(cfg)
		r.logger().Info("glreporter configuration reloaded",
			"project_id", cfg.ProjectID)
	})
}

func (r *Reporter) initializeFromConfig(cfg *config.Config) {
	if cfg.LogLevel != "" {
		SetupLogging(ParseLevel(cfg.LogLevel))
	}
	var opts []Option
	if a := cfg.Assignee(); a != nil {
		opts = append(opts, WithAssignee(*a))
	}
	r.Initialize(cfg.Host, cfg.ResolveToken(), cfg.ProjectID, opts...)
}

// IsConfigured reports whether both a tracker client and a project are set.
func (r *Reporter) IsConfigured() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.client != nil && r.projectID != 0
}

// install swaps the reporter's handlers into the process hook slots,
// capturing the handlers that were active before this reporter was ever
// installed.
func (r *Reporter) install() {
	r.installOnce.Do(func() {
		r.mu.Lock()
		r.origPanic = crashhook.SwapPanic(r.handlePanic)
		r.origGoroutine = crashhook.SwapGoroutine(r.handleGoroutine)
		r.mu.Unlock()
	})
}

// handlePanic handles an uncaught error on the primary execution path, then
// chains to the original handler with the unmodified event.
func (r *Reporter) handlePanic(e crashhook.Event) {
	r.handleEvent(e)

	r.mu.RLock()
	orig := r.origPanic
	r.mu.RUnlock()
	if orig != nil {
		orig(e)
	}
}

// handleGoroutine handles an uncaught error terminating a worker goroutine,
// then chains to the original handler with the unmodified event.
func (r *Reporter) handleGoroutine(e crashhook.Event) {
	r.handleEvent(e)

	r.mu.RLock()
	orig := r.origGoroutine
	r.mu.RUnlock()
	if orig != nil {
		orig(e)
	}
}

func (r *Reporter) handleEvent(e crashhook.Event) {
	if !r.IsConfigured() {
		r.logger().Info("glreporter not configured, skipping issue report")
		return
	}
	r.guarded(func() error {
		return r.report(e)
	})
}

// guarded runs one reporting attempt and absorbs every failure. An error
// return is logged; a panic raised during formatting or synchronization is
// recovered and logged. Nothing escapes into the crash handler that invoked
// it, and the original crash behavior is unaffected either way.
func (r *Reporter) guarded(fn func() error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger().Error("issue reporting panicked", "panic", p)
		}
	}()
	if err := fn(); err != nil {
		r.logger().Error("issue reporting failed", "error", err)
	}
}

func (r *Reporter) report(e crashhook.Event) error {
	r.mu.RLock()
	syncer := r.syncer
	projectID := r.projectID
	assignee := r.assigneeID
	timeout := r.reportTimeout
	r.mu.RUnlock()

	// Configuration can be replaced between the configured check and this
	// snapshot; treat a missing synchronizer like the unconfigured case.
	if syncer == nil {
		return ErrNotConfigured
	}
	if timeout <= 0 {
		timeout = DefaultReportTimeout
	}

	title := signature.Title(e.Value)
	description := signature.Description(e.Value, e.Stack)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	issue, err := syncer.Sync(ctx, projectID, title, description, assignee)
	if err != nil {
		return err
	}
	r.logger().Info("uncaught error reported",
		"title", title,
		"issue_iid", issue.IID,
		"issue_url", issue.WebURL)
	return nil
}

// ReportError submits a caught error through the same reopen-or-create path
// the handlers use. Unlike the handlers it propagates failures, so direct
// callers can act on them.
func (r *Reporter) ReportError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	r.mu.RLock()
	syncer := r.syncer
	projectID := r.projectID
	assignee := r.assigneeID
	r.mu.RUnlock()

	if syncer == nil {
		return ErrNotConfigured
	}

	title := signature.Title(err)
	description := signature.Description(err, signature.Capture(1))
	_, syncErr := syncer.Sync(ctx, projectID, title, description, assignee)
	return syncErr
}
