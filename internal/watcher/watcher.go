// Package watcher is a debounced filesystem watcher. Bursts of write events
// from a single save collapse into one callback.
package watcher

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before pending events flush.
const DefaultDebounce = 500 * time.Millisecond

// Event is one observed filesystem change.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Watcher batches fsnotify events and delivers them after a debounce window.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	cb       func([]Event)

	mu      sync.Mutex
	pending []Event
	timer   *time.Timer

	closeOnce sync.Once
	done      chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration overrides the debounce window.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher delivering debounced event batches to cb.
func New(cb func([]Event), opts ...Option) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:       fs,
		debounce: DefaultDebounce,
		cb:       cb,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	go w.loop()
	return w, nil
}

// Add starts watching a file or directory.
func (w *Watcher) Add(path string) error {
	return w.fs.Add(path)
}

// Close stops the watcher. Pending events are dropped.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
	return err
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.enqueue(Event{Path: ev.Name, Op: ev.Op})
		case _, ok := <-w.fs.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) enqueue(e Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, e)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}

	if len(batch) > 0 && w.cb != nil {
		w.cb(batch)
	}
}
