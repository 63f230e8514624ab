// Package filesystem watches an inbox directory for PDF documents.
//
// The inbox is laid out one directory per industry:
//
//	inbox/
//	  fintech/deal.pdf
//	  real estate/proposal.pdf
//
// A file's top-level directory names the industry it is ingested under.
// Files directly in the root, hidden files and non-PDF files are ignored.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/opptrack/internal/logger"
)

// DefaultSettle is how long a file must stop changing before it is
// reported.
const DefaultSettle = 2 * time.Second

// Arrival is a PDF ready for ingestion.
type Arrival struct {
	// Path is the absolute file path.
	Path string

	// Industry is the name of the file's top-level directory.
	Industry string
}

// Watcher reports PDFs that appear under root.
type Watcher struct {
	root   string
	settle time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// New creates a watcher for root.
func New(root string) *Watcher {
	return &Watcher{root: root, settle: DefaultSettle}
}

// WithSettle overrides DefaultSettle. Non-positive values are ignored.
func (w *Watcher) WithSettle(d time.Duration) *Watcher {
	if d > 0 {
		w.settle = d
	}
	return w
}

// Scan returns every PDF currently in the inbox.
func (w *Watcher) Scan() ([]Arrival, error) {
	root, err := w.absRoot()
	if err != nil {
		return nil, err
	}

	var out []Arrival
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			logger.Warn("inbox: skipping %s: %v", path, walkErr)
			return nil
		}
		if d.IsDir() {
			if path != root && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if a, ok := w.arrival(root, path); ok {
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return out, nil
}

// Watch reports PDFs that are created or moved into the inbox once they
// stop changing. The channel closes when ctx is done.
func (w *Watcher) Watch(ctx context.Context) (<-chan Arrival, error) {
	root, err := w.absRoot()
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, errors.New("watcher is closed")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w.watcher = fw
	w.mu.Unlock()

	if err := addTree(fw, root); err != nil {
		fw.Close()
		return nil, err
	}

	out := make(chan Arrival, 64)
	go w.loop(ctx, fw, root, out)
	return out, nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, root string, out chan<- Arrival) {
	defer close(out)
	defer fw.Close()

	// pending maps a path to the time it last changed.
	pending := make(map[string]time.Time)
	tick := time.NewTicker(w.settle / 4)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			for _, path := range w.handleFsEvent(fw, root, event) {
				pending[path] = time.Now()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn("inbox: watch error: %v", err)

		case now := <-tick.C:
			for path, changed := range pending {
				if now.Sub(changed) < w.settle {
					continue
				}
				delete(pending, path)
				a, ok := w.arrival(root, path)
				if !ok {
					continue
				}
				select {
				case out <- a:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// handleFsEvent returns the paths to (re)schedule for an event. A new
// directory is added to the watch and any PDFs already inside it are
// scheduled.
func (w *Watcher) handleFsEvent(fw *fsnotify.Watcher, root string, event fsnotify.Event) []string {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return nil
	}
	rel, err := filepath.Rel(root, event.Name)
	if err != nil || isHidden(rel) {
		return nil
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return nil
	}
	if !info.IsDir() {
		if !isPDF(event.Name) {
			return nil
		}
		return []string{event.Name}
	}
	if !event.Has(fsnotify.Create) {
		return nil
	}
	if err := addTree(fw, event.Name); err != nil {
		logger.Warn("inbox: cannot watch %s: %v", event.Name, err)
	}
	var paths []string
	_ = filepath.WalkDir(event.Name, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && isPDF(path) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths
}

// arrival builds the Arrival for path, or false if it is not ingestible.
func (w *Watcher) arrival(root, path string) (Arrival, bool) {
	if !isPDF(path) {
		return Arrival{}, false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || isHidden(rel) {
		return Arrival{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" {
		return Arrival{}, false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return Arrival{}, false
	}
	return Arrival{Path: path, Industry: parts[0]}, true
}

// Close stops any running watch.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher) absRoot() (string, error) {
	root, err := filepath.Abs(w.root)
	if err != nil {
		return "", fmt.Errorf("root path error: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root path error: %s is not a directory", root)
	}
	return root, nil
}

func addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part != "." && part != ".." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
