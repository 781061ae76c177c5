package chords

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"musichelper/cache"
	"musichelper/logger"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates cached chord timelines when an artifact is rewritten on
// disk. Regeneration can also be run out-of-band by the CLI script directly
// against a processed directory, so the cache cannot rely on the HTTP layer
// being the only writer.
type Watcher struct {
	root    string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher watches the processed root and all existing upload directories.
func NewWatcher(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fs watcher: %w", err)
	}

	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}

	// fsnotify is not recursive; each upload_<id> directory is watched
	// individually. New directories are picked up from create events.
	entries, err := os.ReadDir(root)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := fsw.Add(filepath.Join(root, entry.Name())); err != nil {
				logger.Warn("Failed to watch processed directory",
					logger.String("dir", entry.Name()),
					logger.ErrorField(err))
			}
		}
	}

	w := &Watcher{root: root, watcher: fsw, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Processed directory watcher error", logger.ErrorField(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}

	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if err := w.watcher.Add(event.Name); err != nil {
			logger.Warn("Failed to watch new processed directory",
				logger.String("dir", event.Name),
				logger.ErrorField(err))
		}
		return
	}

	if filepath.Base(event.Name) != ArtifactName {
		return
	}

	uploadID, ok := uploadIDFromDir(filepath.Base(filepath.Dir(event.Name)))
	if !ok {
		return
	}

	if err := cache.InvalidateChordTimeline(context.Background(), uploadID); err != nil {
		logger.Warn("Failed to invalidate timeline cache from watcher",
			logger.Int64("uploadId", uploadID),
			logger.ErrorField(err))
		return
	}
	logger.Debug("Timeline cache invalidated after artifact change",
		logger.Int64("uploadId", uploadID))
}

func uploadIDFromDir(dir string) (int64, bool) {
	const prefix = "upload_"
	if !strings.HasPrefix(dir, prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(dir, prefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
