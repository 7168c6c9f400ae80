// Package filesystem watches a local folder and reports changes to the
// supported documents it contains.
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/logger"
)

// ChangeType describes what happened to a watched file.
type ChangeType int

const (
	ChangeCreated ChangeType = iota
	ChangeUpdated
	ChangeDeleted
)

func (t ChangeType) String() string {
	switch t {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change is a single file event. Name is the base filename used as the
// document name.
type Change struct {
	Type ChangeType
	Path string
	Name string
}

// Watcher reports changes to supported documents directly inside a folder.
// Subfolders are not followed since document names must be unique per user.
type Watcher struct {
	root string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// New creates a watcher for root.
func New(root string) *Watcher {
	return &Watcher{root: root}
}

// Root returns the watched folder.
func (w *Watcher) Root() string {
	return w.root
}

// Scan lists the supported, non-hidden files currently in the folder,
// sorted by name.
func (w *Watcher) Scan() ([]string, error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", w.root, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || isHidden(e.Name()) || !supported(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(w.root, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Watch starts watching the folder. The returned channel closes when ctx
// is cancelled or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan Change, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(w.root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.root, err)
	}

	w.mu.Lock()
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.watcher = fw
	w.mu.Unlock()

	changes := make(chan Change)
	go func() {
		defer close(changes)
		defer fw.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				change, ok := handleFsEvent(event)
				if !ok {
					continue
				}
				select {
				case changes <- change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Warn("watch %s: %v", w.root, err)
			}
		}
	}()

	return changes, nil
}

// Close stops an active watch.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	return err
}

// handleFsEvent maps an fsnotify event to a change. Chmod events,
// directories, hidden files and unsupported formats are ignored. Only the
// file name is checked for a leading dot, so a watched folder may itself
// live under a hidden directory.
func handleFsEvent(event fsnotify.Event) (Change, bool) {
	name := filepath.Base(event.Name)
	if isHidden(name) || !supported(name) {
		return Change{}, false
	}
	change := Change{Path: event.Name, Name: name}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		change.Type = ChangeDeleted
		return change, true
	case event.Has(fsnotify.Create):
		change.Type = ChangeCreated
	case event.Has(fsnotify.Write):
		change.Type = ChangeUpdated
	default:
		return Change{}, false
	}

	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return Change{}, false
	}
	return change, true
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func supported(name string) bool {
	_, ok := domain.FormatForName(name)
	return ok
}
