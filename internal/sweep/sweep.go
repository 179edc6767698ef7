// Package sweep implements orphan reconciliation between the catalog and
// the blob store: blobs on disk with no matching file record are deleted,
// and file records whose blob is missing are reported. It never mutates
// catalog rows — the catalog stays authoritative, and sweep only cleans up
// storage and surfaces drift for a human to investigate.
package sweep

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"codenerd/toollib/internal/catalog"
	"codenerd/toollib/internal/logging"
)

// Report summarizes one Sweep pass.
type Report struct {
	OrphanedBlobsRemoved []string // stored-rel-paths of blobs deleted because no file record referenced them
	MissingBlobs         []string // stored-rel-paths referenced by a file record but absent on disk
}

// Sweep walks storeRoot's tool directories, deletes any regular file whose
// stored-rel-path isn't referenced by cat, and reports any referenced path
// that is missing on disk. storeRoot is the blob store's root directory
// (the same path passed to blobstore.New).
func Sweep(cat *catalog.Catalog, storeRoot string) (*Report, error) {
	timer := logging.StartTimer(logging.CategorySweep, "Sweep")
	defer timer.Stop()

	referenced, err := cat.AllStoredRelPaths()
	if err != nil {
		return nil, err
	}

	report := &Report{}
	seenOnDisk := make(map[string]bool, len(referenced))

	err = filepath.Walk(filepath.Join(storeRoot, "tools"), func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(storeRoot, path)
		if err != nil {
			return err
		}
		storedRelPath := filepath.ToSlash(relPath)
		seenOnDisk[storedRelPath] = true

		if !referenced[storedRelPath] {
			if err := os.Remove(path); err != nil {
				logging.Get(logging.CategorySweep).Warn("failed to remove orphaned blob %s: %v", path, err)
				return nil
			}
			logging.Get(logging.CategorySweep).Info("removed orphaned blob %s", storedRelPath)
			report.OrphanedBlobsRemoved = append(report.OrphanedBlobsRemoved, storedRelPath)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for storedRelPath := range referenced {
		if !seenOnDisk[storedRelPath] {
			report.MissingBlobs = append(report.MissingBlobs, storedRelPath)
		}
	}

	removeEmptyDirs(storeRoot)

	logging.Get(logging.CategorySweep).Info("sweep complete: %d orphans removed, %d blobs missing",
		len(report.OrphanedBlobsRemoved), len(report.MissingBlobs))
	return report, nil
}

// removeEmptyDirs prunes any now-empty tool/version directories a sweep's
// deletions left behind. Best-effort: failures are logged, never returned.
func removeEmptyDirs(storeRoot string) {
	toolsRoot := filepath.Join(storeRoot, "tools")
	entries, err := os.ReadDir(toolsRoot)
	if err != nil {
		return
	}
	for _, toolEntry := range entries {
		if !toolEntry.IsDir() {
			continue
		}
		toolDir := filepath.Join(toolsRoot, toolEntry.Name())
		versionEntries, err := os.ReadDir(toolDir)
		if err != nil {
			continue
		}
		for _, versionEntry := range versionEntries {
			if !versionEntry.IsDir() {
				continue
			}
			versionDir := filepath.Join(toolDir, versionEntry.Name())
			filesDir := filepath.Join(versionDir, "files")
			if entries, err := os.ReadDir(filesDir); err == nil && len(entries) == 0 {
				_ = os.Remove(filesDir)
				_ = os.Remove(versionDir)
			}
		}
		if remaining, err := os.ReadDir(toolDir); err == nil && len(remaining) == 0 {
			_ = os.Remove(toolDir)
		}
	}
}

// Watcher debounces out-of-band filesystem changes under a store root and
// triggers a re-sweep once events settle, mirroring the teacher's
// debounce-map watcher shape (internal/core/mangle_watcher.go).
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	cat         *catalog.Catalog
	storeRoot   string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	// OnReport, if set, is called after every completed sweep triggered by a watch event.
	OnReport func(*Report)
}

// DefaultDebounce is the watch-mode settle window before a re-sweep fires.
const DefaultDebounce = 2 * time.Second

// NewWatcher creates a Watcher over storeRoot, using DefaultDebounce.
func NewWatcher(cat *catalog.Catalog, storeRoot string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     fsWatcher,
		cat:         cat,
		storeRoot:   storeRoot,
		debounceMap: make(map[string]time.Time),
		debounceDur: DefaultDebounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching storeRoot for changes. Non-blocking; runs in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.storeRoot, 0o755); err != nil {
		logging.Get(logging.CategorySweep).Warn("watcher: failed to create store root %s: %v", w.storeRoot, err)
	}

	if err := addRecursive(w.watcher, w.storeRoot); err != nil {
		logging.Get(logging.CategorySweep).Warn("watcher: initial watch failed: %v", err)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategorySweep).Error("watcher: error closing: %v", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(200 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.mu.Lock()
			w.debounceMap[event.Name] = time.Now()
			w.mu.Unlock()
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addRecursive(w.watcher, event.Name); err != nil {
						logging.Get(logging.CategorySweep).Warn("watcher: failed to watch %s: %v", event.Name, err)
					}
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategorySweep).Error("watcher error: %v", err)
		case <-debounceTicker.C:
			w.maybeSweep()
		}
	}
}

func (w *Watcher) maybeSweep() {
	w.mu.Lock()
	now := time.Now()
	settled := false
	for _, eventTime := range w.debounceMap {
		if now.Sub(eventTime) >= w.debounceDur {
			settled = true
			break
		}
	}
	if settled {
		w.debounceMap = make(map[string]time.Time)
	}
	w.mu.Unlock()

	if !settled {
		return
	}

	report, err := Sweep(w.cat, w.storeRoot)
	if err != nil {
		logging.Get(logging.CategorySweep).Error("watch-triggered sweep failed: %v", err)
		return
	}
	if w.OnReport != nil {
		w.OnReport(report)
	}
}

// addRecursive walks dir and registers every subdirectory with watcher, so
// newly created tool/version folders are covered without re-adding by hand.
func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() && !strings.HasPrefix(info.Name(), ".") {
			return watcher.Add(path)
		}
		return nil
	})
}
