package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher reloads the YAML config file when it changes on disk and
// hands the validated result to onChange. Editors replace files in
// different ways (write, rename, atomic swap), so it watches the
// parent directory and filters by name.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *logrus.Logger
	onChange func(*Config)

	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// Watch starts watching the config file at path. onChange runs on the
// watcher goroutine after each successful reload; reload failures are
// logged and the previous config stays in effect.
func Watch(path string, logger *logrus.Logger, onChange func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		path:     path,
		watcher:  fsw,
		logger:   logger,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.eventLoop()
	return w, nil
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.matches(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.logger.WithFields(logrus.Fields{
					"event": event.Op.String(),
					"file":  event.Name,
				}).Debug("config file changed")
				w.scheduleReload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithField("error", err).Error("config watcher")
		}
	}
}

// matches reports whether the event concerns the watched config file.
func (w *Watcher) matches(name string) bool {
	return filepath.Base(name) == filepath.Base(w.path)
}

// scheduleReload resets the debounce timer so a burst of events from
// one save produces a single reload.
func (w *Watcher) scheduleReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(reloadDebounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.WithField("error", err).Error("config reload rejected")
		return
	}
	w.logger.WithField("file", w.path).Info("config reloaded")
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Close stops the watcher and waits for the event loop to exit. A
// pending debounce timer is cancelled.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()
	return err
}
