package framejob

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/xerrors"
)

//////////////////////////////////////////////////////////////////////////////
//
//
//
// Public
//
//
//
//////////////////////////////////////////////////////////////////////////////

// WatchConfig watches a configuration file for changes. Every change starts a
// job that calls load off the frame loop and then applies the result on the
// loop's Goroutine.
//
// The returned function stops watching.
func WatchConfig(c *Context, path string, load func(path string) (*Config, error)) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, xerrors.Errorf("error creating watcher: %w", err)
	}

	// Watch the containing directory rather than the file itself because
	// many editors save by writing a new file and renaming it over the old
	// one, which would drop a watch on the file.
	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, xerrors.Errorf("error watching config directory: %w", err)
	}

	c.Log.Infof("Watching config for changes: %s", path)

	go watchChanges(c, path, watcher.Events, watcher.Errors, func() <-chan struct{} {
		return startReload(c, path, load)
	})

	return watcher.Close, nil
}

//////////////////////////////////////////////////////////////////////////////
//
//
//
// Private
//
//
//
//////////////////////////////////////////////////////////////////////////////

// The time window in which *not* to trigger another reload after the last one.
// A single save often produces a burst of events on the same file.
const reloadQuiesceTime = 100 * time.Millisecond

// Applies a freshly loaded configuration. Must run on the loop's Goroutine.
func applyConfig(c *Context, next *Config) {
	current := c.Config

	if next.Concurrency != current.Concurrency {
		c.Log.Warnf("Config: concurrency change to %v requires a restart", next.Concurrency)
	}

	if next.Port != current.Port {
		c.Log.Warnf("Config: port change to %v requires a restart", next.Port)
	}

	if nextLog, ok := next.Log.(*Logger); ok {
		if currentLog, ok := current.Log.(*Logger); !ok || currentLog.Level != nextLog.Level {
			c.Log.Warnf("Config: log level change to %v requires a restart", nextLog.Level)
		}
	}

	current.FrameInterval = next.FrameInterval
	current.RefreshInterval = next.RefreshInterval
	c.Loop.Interval = next.FrameInterval

	c.Log.Infof("Config: Applied (frame interval %v, refresh interval %v)",
		current.FrameInterval, current.RefreshInterval)

	if c.OnConfigChange != nil {
		c.OnConfigChange(c)
	}
}

// Decides whether a reload should be triggered given some input event
// properties from fsnotify.
func shouldReload(configPath, path string, op fsnotify.Op) bool {
	if filepath.Clean(path) != configPath {
		return false
	}

	base := filepath.Base(path)

	// Vim creates this temporary file to see whether it can write into a
	// target directory.
	if base == "4913" {
		return false
	}

	if strings.HasSuffix(base, "~") {
		return false
	}

	// Chmod won't change the contents, and a rename is followed by a create
	// of the new file, so only these matter.
	return op&(fsnotify.Create|fsnotify.Write) != 0
}

// Starts a job that loads the configuration off the loop and applies it on the
// loop. Returns a channel that's closed once the load has finished.
func startReload(c *Context, path string, load func(path string) (*Config, error)) <-chan struct{} {
	var next *Config

	j := NewJob("config reload", func(ctx context.Context) error {
		var err error
		next, err = load(path)
		if err != nil {
			return xerrors.Errorf("error reloading config: %w", err)
		}
		return nil
	}, nil)

	j.OnFinished = func() {
		if j.Err() != nil {
			return
		}
		applyConfig(c, next)
	}

	if err := c.Start(j); err != nil {
		c.Log.Errorf("Error starting config reload: %v", err)
		done := make(chan struct{})
		close(done)
		return done
	}

	return j.Done()
}

// Listens for file system changes from fsnotify and triggers a reload for
// relevant ones.
//
// Changes that come in while a reload is in progress are accumulated, and
// trigger one more reload once it's finished. Changes that come in within the
// quiesce time after a reload started are held back and trigger a single
// deferred reload once the quiesce time is up.
func watchChanges(c *Context, configPath string, watchEvents chan fsnotify.Event,
	watchErrors chan error, reload func() <-chan struct{}) {

	var deferred <-chan time.Time
	var lastReload time.Time

	for {
		select {
		case event, ok := <-watchEvents:
			if !ok {
				c.Log.Infof("Watcher detected closed channel; stopping")
				return
			}

			c.Log.Debugf("Received event from watcher: %+v", event)

			if !shouldReload(configPath, event.Name, event.Op) {
				continue
			}

			if deferred != nil {
				continue
			}

			if wait := reloadQuiesceRemaining(lastReload, time.Now()); wait > 0 {
				c.Log.Debugf("Config changed within quiesce time; reloading in %v", wait)
				deferred = time.After(wait)
				continue
			}

			if lastReload, ok = reloadUntilSettled(c, configPath, watchEvents, watchErrors, reload); !ok {
				return
			}

		case <-deferred:
			deferred = nil

			var ok bool
			if lastReload, ok = reloadUntilSettled(c, configPath, watchEvents, watchErrors, reload); !ok {
				return
			}

		case err, ok := <-watchErrors:
			if !ok {
				c.Log.Infof("Watcher detected closed channel; stopping")
				return
			}
			c.Log.Errorf("Error from watcher: %v", err)
		}
	}
}

// Time left in the quiesce window that started at the last reload. Zero if
// there's no window in effect.
func reloadQuiesceRemaining(lastReload, now time.Time) time.Duration {
	if lastReload.IsZero() {
		return 0
	}

	remaining := lastReload.Add(reloadQuiesceTime).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Triggers a reload and waits for it to finish. If more relevant changes come
// in while it's running, triggers another one, until a reload finishes
// without any new changes. Returns the time the last reload started, and false
// if the watcher's channels were closed.
func reloadUntilSettled(c *Context, configPath string, watchEvents chan fsnotify.Event,
	watchErrors chan error, reload func() <-chan struct{}) (time.Time, bool) {

	for {
		lastReload := time.Now()
		reloadDone := reload()
		changed := false

		for {
			select {
			case <-reloadDone:
				if !changed {
					return lastReload, true
				}

			case event, ok := <-watchEvents:
				if !ok {
					c.Log.Infof("Watcher detected closed channel; stopping")
					return lastReload, false
				}

				if shouldReload(configPath, event.Name, event.Op) {
					changed = true
				}
				continue

			case err, ok := <-watchErrors:
				if !ok {
					c.Log.Infof("Watcher detected closed channel; stopping")
					return lastReload, false
				}
				c.Log.Errorf("Error from watcher: %v", err)
				continue
			}

			break
		}
	}
}
