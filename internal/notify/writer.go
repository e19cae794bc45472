// Package notify carries session events between osintgraph processes through
// a shared directory, and watches an inbox directory for findings files.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Event types exchanged between processes.
const (
	EventSnapshotSaved = "snapshot.saved"
)

// Event is the payload written to an event file.
type Event struct {
	Type     string `json:"type"`
	Snapshot string `json:"snapshot"`
	Time     int64  `json:"time"`
}

// EventWriter writes notification event files to a shared directory.
type EventWriter struct {
	dir string
}

// NewEventWriter creates a writer that emits events to {dataPath}/events/.
func NewEventWriter(dataPath string) *EventWriter {
	return &EventWriter{dir: filepath.Join(dataPath, "events")}
}

// Notify writes an event file with the given type. The file is written
// under a temporary name and renamed so watchers never read a partial event.
// Safe to call concurrently.
func (w *EventWriter) Notify(eventType, snapshot string) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}
	evt := Event{
		Type:     eventType,
		Snapshot: snapshot,
		Time:     time.Now().UnixNano(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}

	name := fmt.Sprintf("%d-%s", evt.Time, sanitizeName(snapshot))
	tmp := filepath.Join(w.dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("notify: write event: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(w.dir, name+".event")); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("notify: publish event: %w", err)
	}
	return nil
}

// sanitizeName replaces characters unsafe for filenames.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '\\', ' ':
			return '_'
		}
		return r
	}, name)
}
