package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads settings.json whenever it is written.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	onChange func(Settings)
	done     chan struct{}
}

// Watch starts watching dir for settings changes. onChange receives each
// successfully parsed version; invalid files are logged and skipped.
func Watch(dir string, onChange func(Settings)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors often replace the file rather than write it.
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{dir: dir, watcher: fw, onChange: onChange, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() {
	w.watcher.Close()
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	target := filepath.Clean(SettingsPath(w.dir))
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			s, err := LoadSettings(w.dir)
			if err != nil {
				slog.Warn("config: failed to reload settings", "err", err)
				continue
			}
			slog.Debug("config: settings reloaded", "path", target)
			w.onChange(s)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config: watcher error", "err", err)
		}
	}
}
