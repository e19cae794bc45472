package notify

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/scrypster/osintgraph/internal/importer"
	"github.com/scrypster/osintgraph/pkg/types"
)

// Inbox subdirectories that hold consumed files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// DefaultSettleDelay is how long a file must stay quiet before it is read.
const DefaultSettleDelay = 250 * time.Millisecond

// FindingsHandler consumes the findings parsed from one inbox file.
type FindingsHandler func(path string, findings []types.Finding) error

// InboxWatcher imports findings files dropped into a directory. Each file is
// parsed once it has been quiet for the settle delay, handed to the handler
// and moved to processed/ on success or failed/ otherwise.
type InboxWatcher struct {
	dir    string
	settle time.Duration
	handle FindingsHandler
	watch  *dirWatch

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup

	procMu sync.Mutex // one file at a time
}

// NewInboxWatcher creates a watcher for dir. A non-positive settle uses
// DefaultSettleDelay.
func NewInboxWatcher(dir string, settle time.Duration, handle FindingsHandler) *InboxWatcher {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	return &InboxWatcher{
		dir:     dir,
		settle:  settle,
		handle:  handle,
		pending: make(map[string]*time.Timer),
	}
}

// Start imports the files already in the inbox, then watches for new ones.
// Call Stop() to clean up.
func (iw *InboxWatcher) Start() error {
	for _, sub := range []string{"", ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(iw.dir, sub), 0o755); err != nil {
			return fmt.Errorf("notify: inbox: %w", err)
		}
	}

	for _, path := range listFiles(iw.dir, isFindingsFile) {
		iw.processFile(path)
	}

	watch, err := watchDir(iw.dir, fsnotify.Create|fsnotify.Write, isFindingsFile, iw.schedule)
	if err != nil {
		return err
	}
	iw.watch = watch
	log.Printf("notify: watching inbox %s for findings", iw.dir)
	return nil
}

// Stop shuts down the watcher and waits for in-flight imports. Files whose
// settle delay has not expired stay in the inbox for the next start.
func (iw *InboxWatcher) Stop() {
	if iw.watch == nil {
		return
	}
	iw.watch.close()

	iw.mu.Lock()
	iw.stopped = true
	for path, t := range iw.pending {
		if t.Stop() {
			iw.wg.Done()
		}
		delete(iw.pending, path)
	}
	iw.mu.Unlock()
	iw.wg.Wait()
}

// schedule (re)starts the settle timer for path.
func (iw *InboxWatcher) schedule(path string) {
	iw.mu.Lock()
	defer iw.mu.Unlock()
	if iw.stopped {
		return
	}
	if t, ok := iw.pending[path]; ok && t.Stop() {
		t.Reset(iw.settle)
		return
	}

	iw.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(iw.settle, func() {
		defer iw.wg.Done()
		iw.mu.Lock()
		if iw.pending[path] == t {
			delete(iw.pending, path)
		}
		iw.mu.Unlock()
		iw.processFile(path)
	})
	iw.pending[path] = t
}

func (iw *InboxWatcher) processFile(path string) {
	iw.procMu.Lock()
	defer iw.procMu.Unlock()

	if _, err := os.Stat(path); err != nil {
		return // already moved
	}

	findings, err := importer.LoadFile(path)
	if err == nil && iw.handle != nil {
		err = iw.handle(path, findings)
	}

	dest := ProcessedDir
	if err != nil {
		dest = FailedDir
		log.Printf("notify: WARNING: inbox file %s failed: %v", filepath.Base(path), err)
	} else {
		log.Printf("notify: imported %d findings from %s", len(findings), filepath.Base(path))
	}
	if err := iw.move(path, dest); err != nil {
		log.Printf("notify: ERROR: cannot move %s to %s: %v", filepath.Base(path), dest, err)
	}
}

// move renames path into the given inbox subdirectory, prefixing a
// timestamp when the name is already taken.
func (iw *InboxWatcher) move(path, sub string) error {
	base := filepath.Base(path)
	target := filepath.Join(iw.dir, sub, base)
	if _, err := os.Stat(target); err == nil {
		target = filepath.Join(iw.dir, sub, fmt.Sprintf("%d-%s", time.Now().UnixNano(), base))
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.Rename(path, target)
}

// isFindingsFile reports whether name is a visible file in a findings format.
func isFindingsFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	_, err := importer.FormatFromPath(base)
	return err == nil
}
