package notify

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/osintgraph/pkg/types"
)

const findingsJSON = `[{"username": "john_doe", "platform_name": "twitter"}, {"username": "johndoe", "platform_name": "github"}]`

func TestEventWriterCreatesFile(t *testing.T) {
	dir := t.TempDir()
	w := NewEventWriter(dir)

	require.NoError(t, w.Notify(EventSnapshotSaved, "case:42"))

	entries, err := os.ReadDir(filepath.Join(dir, "events"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file is renamed away")
	assert.Equal(t, ".event", filepath.Ext(entries[0].Name()))
	assert.Contains(t, entries[0].Name(), "case_42")
}

func TestEventWatcherReceivesEvent(t *testing.T) {
	dir := t.TempDir()
	received := make(chan Event, 1)

	watcher := NewEventWatcher(dir, func(evt Event) { received <- evt })
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	// Give fsnotify a moment to register
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, NewEventWriter(dir).Notify(EventSnapshotSaved, "current"))

	select {
	case evt := <-received:
		assert.Equal(t, EventSnapshotSaved, evt.Type)
		assert.Equal(t, "current", evt.Snapshot)
		assert.NotZero(t, evt.Time)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestEventWatcherDrainsExisting(t *testing.T) {
	dir := t.TempDir()

	// Write events BEFORE starting watcher
	writer := NewEventWriter(dir)
	require.NoError(t, writer.Notify(EventSnapshotSaved, "one"))
	require.NoError(t, writer.Notify(EventSnapshotSaved, "two"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "events", "bad.event"), []byte("{"), 0o600))

	received := make(chan string, 10)
	watcher := NewEventWatcher(dir, func(evt Event) { received <- evt.Snapshot })
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	// Drain processes the files synchronously during Start
	assert.Len(t, received, 2)
	entries, err := os.ReadDir(filepath.Join(dir, "events"))
	require.NoError(t, err)
	assert.Empty(t, entries, "consumed and invalid files are removed")
}

func TestEventWatcherStopWithoutStart(t *testing.T) {
	NewEventWatcher(t.TempDir(), nil).Stop()
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "ent_account_x_a_b", sanitizeName("ent:account:x/a b"))
}

// dropFile writes a file outside the inbox and renames it in, the way a
// well-behaved producer publishes a finished file.
func dropFile(t *testing.T, inbox, name, content string) {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o600))
	require.NoError(t, os.Rename(tmp, filepath.Join(inbox, name)))
}

type recorder struct {
	mu       sync.Mutex
	files    []string
	findings int
	err      error
}

func (r *recorder) handle(path string, findings []types.Finding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, filepath.Base(path))
	r.findings += len(findings)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestInboxWatcher_DrainsExisting(t *testing.T) {
	inbox := filepath.Join(t.TempDir(), "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "b.json"), []byte(findingsJSON), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "a.yaml"), []byte("- username: x\n  platform_name: y\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "broken.json"), []byte("[{"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("ignored"), 0o600))

	rec := &recorder{}
	iw := NewInboxWatcher(inbox, 10*time.Millisecond, rec.handle)
	require.NoError(t, iw.Start())
	defer iw.Stop()

	assert.Equal(t, []string{"a.yaml", "b.json"}, rec.files, "lexical order; broken file never reaches the handler")
	assert.Equal(t, 3, rec.findings)
	assert.True(t, exists(filepath.Join(inbox, ProcessedDir, "a.yaml")))
	assert.True(t, exists(filepath.Join(inbox, ProcessedDir, "b.json")))
	assert.True(t, exists(filepath.Join(inbox, FailedDir, "broken.json")))
	assert.True(t, exists(filepath.Join(inbox, "notes.txt")))
}

func TestInboxWatcher_ImportsNewFiles(t *testing.T) {
	inbox := t.TempDir()
	rec := &recorder{}
	iw := NewInboxWatcher(inbox, 20*time.Millisecond, rec.handle)
	require.NoError(t, iw.Start())
	defer iw.Stop()

	time.Sleep(50 * time.Millisecond)
	dropFile(t, inbox, "run1.json", findingsJSON)
	require.Eventually(t, func() bool { return rec.count() == 1 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return exists(filepath.Join(inbox, ProcessedDir, "run1.json"))
	}, 3*time.Second, 10*time.Millisecond)

	// A second file with the same name does not overwrite the first.
	dropFile(t, inbox, "run1.json", findingsJSON)
	require.Eventually(t, func() bool { return rec.count() == 2 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(filepath.Join(inbox, ProcessedDir))
		return err == nil && len(entries) == 2
	}, 3*time.Second, 10*time.Millisecond)
}

func TestInboxWatcher_HandlerErrorMovesToFailed(t *testing.T) {
	inbox := t.TempDir()
	rec := &recorder{err: errors.New("session closed")}
	iw := NewInboxWatcher(inbox, 20*time.Millisecond, rec.handle)
	require.NoError(t, iw.Start())
	defer iw.Stop()

	time.Sleep(50 * time.Millisecond)
	dropFile(t, inbox, "run.jsonl", `{"username": "a", "platform_name": "b"}`+"\n")
	require.Eventually(t, func() bool {
		return exists(filepath.Join(inbox, FailedDir, "run.jsonl"))
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestIsFindingsFile(t *testing.T) {
	tests := map[string]bool{
		"a.json":           true,
		"/x/b.NDJSON":      true,
		"c.yml":            true,
		".hidden.json":     false,
		"notes.txt":        false,
		"findings.json~":   false,
		"run.json.tmp":     false,
		"/inbox/processed": false,
	}
	for name, want := range tests {
		assert.Equal(t, want, isFindingsFile(name), name)
	}
}
