package projectctx

import (
	"path/filepath"
	"sort"
	"sync"

	"jrdev/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher flags indexed files as stale the moment they change on disk,
// so /projectcontext status reflects edits made outside the tool without
// rehashing the tree.
type Watcher struct {
	mu      sync.Mutex
	stale   map[string]bool
	root    string
	fsw     *fsnotify.Watcher
	done    chan struct{}
	closing sync.Once
}

// NewWatcher watches the directories containing the indexed files.
func NewWatcher(root string, index *Index) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		stale: make(map[string]bool),
		root:  root,
		fsw:   fsw,
		done:  make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, relPath := range index.FilePaths() {
		dirs[filepath.Dir(filepath.Join(root, relPath))] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			logging.ContextWarn("watch %s: %v", dir, err)
		}
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			rel, err := filepath.Rel(w.root, ev.Name)
			if err != nil {
				continue
			}
			w.mu.Lock()
			w.stale[filepath.ToSlash(rel)] = true
			w.mu.Unlock()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.ContextWarn("watcher error: %v", err)
		}
	}
}

// Stale returns the relative paths flagged since the last Reset.
func (w *Watcher) Stale() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.stale))
	for p := range w.stale {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Reset clears a path's stale flag after it has been re-indexed.
func (w *Watcher) Reset(relPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.stale, relPath)
}

// Close stops the watch loop.
func (w *Watcher) Close() error {
	var err error
	w.closing.Do(func() {
		err = w.fsw.Close()
		<-w.done
	})
	return err
}
