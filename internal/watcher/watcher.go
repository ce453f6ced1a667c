// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package watcher watches the TODO files referenced by active sessions
// for external changes (a human editing the file in their own editor,
// or another tool renaming/removing a task) so the daemon can react
// promptly instead of only noticing at its next badge write.
package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// ChangeFunc is invoked, debounced, once a watched project file is
// written to, created, renamed or removed.
type ChangeFunc func(projectPath string)

// ProjectWatcher ref-counts watches on project TODO files: multiple
// sessions bound to the same file share one underlying fsnotify watch.
type ProjectWatcher struct {
	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	onChange ChangeFunc
	debounce *debouncer
	refs    map[string]int
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New creates a ProjectWatcher that calls onChange after a 250ms
// debounce whenever a watched path changes.
func New(onChange ChangeFunc) (*ProjectWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: create fsnotify watcher: %w", err)
	}

	w := &ProjectWatcher{
		fsw:      fsw,
		onChange: onChange,
		debounce: newDebouncer(defaultDebounce),
		refs:     make(map[string]int),
		closeCh:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.processEvents()
	return w, nil
}

// Watch adds a reference to projectPath, beginning an fsnotify watch on
// the file the first time it is referenced.
func (w *ProjectWatcher) Watch(projectPath string) {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		abs = projectPath
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.refs[abs]++
	if w.refs[abs] == 1 {
		if err := w.fsw.Add(abs); err != nil {
			w.refs[abs]--
			if w.refs[abs] == 0 {
				delete(w.refs, abs)
			}
		}
	}
}

// Unwatch drops a reference to projectPath, removing the underlying
// fsnotify watch once no session references it anymore.
func (w *ProjectWatcher) Unwatch(projectPath string) {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		abs = projectPath
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.refs[abs]; !ok {
		return
	}
	w.refs[abs]--
	if w.refs[abs] <= 0 {
		w.fsw.Remove(abs)
		delete(w.refs, abs)
		w.debounce.cancel(abs)
	}
}

// Close stops the watcher and releases its resources.
func (w *ProjectWatcher) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.debounce.stop()
	w.fsw.Close()
	w.wg.Wait()
}

func (w *ProjectWatcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *ProjectWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}
	w.mu.Lock()
	_, watched := w.refs[event.Name]
	w.mu.Unlock()
	if !watched || w.onChange == nil {
		return
	}
	path := event.Name
	w.debounce.run(path, func() { w.onChange(path) })
}

// debouncer collapses bursts of calls for the same key into one,
// delayed call fired once the key has been quiet for duration.
type debouncer struct {
	mu       sync.Mutex
	duration time.Duration
	timers   map[string]*time.Timer
}

func newDebouncer(duration time.Duration) *debouncer {
	return &debouncer{duration: duration, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) run(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.timers[key] = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
}

func (d *debouncer) cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[key]; ok {
		t.Stop()
		delete(d.timers, key)
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}
