package notify

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// dirWatch delivers the names of matching files created in one directory.
type dirWatch struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// watchDir starts an fsnotify loop on dir. onFile runs on the loop
// goroutine for every event in ops whose path passes match.
func watchDir(dir string, ops fsnotify.Op, match func(string) bool, onFile func(string)) (*dirWatch, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}

	dw := &dirWatch{watcher: w, done: make(chan struct{})}
	go func() {
		defer close(dw.done)
		for {
			select {
			case evt, ok := <-w.Events:
				if !ok {
					return
				}
				if evt.Op&ops != 0 && match(evt.Name) {
					onFile(evt.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("notify: watcher error on %s: %v", dir, err)
			}
		}
	}()
	return dw, nil
}

// close stops the loop and waits for it to exit.
func (dw *dirWatch) close() {
	_ = dw.watcher.Close()
	<-dw.done
}

// listFiles returns the matching regular files in dir in lexical order.
func listFiles(dir string, match func(string) bool) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && match(entry.Name()) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths
}

func isEventFile(name string) bool {
	return strings.HasSuffix(name, ".event")
}

// EventWatcher consumes the event files other processes write to the
// shared events directory.
type EventWatcher struct {
	dir      string
	callback func(Event)
	watch    *dirWatch
}

// NewEventWatcher creates a watcher for {dataPath}/events/.
func NewEventWatcher(dataPath string, callback func(Event)) *EventWatcher {
	return &EventWatcher{
		dir:      filepath.Join(dataPath, "events"),
		callback: callback,
	}
}

// Start consumes any event files already present, then watches for new
// ones. Call Stop() to clean up.
func (ew *EventWatcher) Start() error {
	if err := os.MkdirAll(ew.dir, 0o700); err != nil {
		return err
	}

	for _, path := range listFiles(ew.dir, isEventFile) {
		ew.consume(path)
	}

	watch, err := watchDir(ew.dir, fsnotify.Create, isEventFile, ew.consume)
	if err != nil {
		return err
	}
	ew.watch = watch
	log.Printf("notify: watching %s for session events", ew.dir)
	return nil
}

// Stop shuts down the watcher.
func (ew *EventWatcher) Stop() {
	if ew.watch != nil {
		ew.watch.close()
	}
}

// consume reads and removes one event file, then dispatches it.
func (ew *EventWatcher) consume(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // another watcher got it first
	}
	_ = os.Remove(path)

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		log.Printf("notify: invalid event file %s: %v", filepath.Base(path), err)
		return
	}
	if event.Type != "" && ew.callback != nil {
		ew.callback(event)
	}
}
