package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Dicklesworthstone/glreporter/internal/watcher"
)

// Watch starts watching a config file for changes and calls onChange with
// the reloaded config after each change. Reload failures are logged and the
// previous configuration stays in effect. It returns a stop function.
func Watch(path string, onChange func(*Config)) (func(), error) {
	if path == "" {
		path = DefaultPath()
	}

	w, err := watcher.New(func(events []watcher.Event) {
		for _, e := range events {
			if e.Path != path {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				slog.Warn("config reload failed, keeping previous configuration",
					"path", path,
					"error", err)
				return
			}
			if onChange != nil {
				onChange(cfg)
			}
			return
		}
	}, watcher.WithDebounceDuration(500*time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}

	// Watch the directory too so a file created or replaced after start
	// (editors often rename over the target) is still seen.
	if err := w.Add(path); err != nil {
		dir := filepath.Dir(path)
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("watching config path %s: %w", path, err)
		}
	}

	return func() {
		w.Close()
	}, nil
}
