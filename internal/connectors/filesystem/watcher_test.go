package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWatcher_Scan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "fintech", "deal.pdf"), "%PDF-1")
	writeFile(t, filepath.Join(root, "fintech", "archive", "old.PDF"), "%PDF-2")
	writeFile(t, filepath.Join(root, "real estate", "proposal.pdf"), "%PDF-3")
	writeFile(t, filepath.Join(root, "fintech", "notes.txt"), "not a pdf")
	writeFile(t, filepath.Join(root, "fintech", ".draft.pdf"), "%PDF-hidden")
	writeFile(t, filepath.Join(root, ".trash", "gone.pdf"), "%PDF-hidden")
	writeFile(t, filepath.Join(root, "loose.pdf"), "%PDF-no-industry")
	writeFile(t, filepath.Join(root, "fintech", "empty.pdf"), "")

	arrivals, err := New(root).Scan()
	require.NoError(t, err)

	got := map[string]string{}
	for _, a := range arrivals {
		rel, err := filepath.Rel(root, a.Path)
		require.NoError(t, err)
		got[filepath.ToSlash(rel)] = a.Industry
	}
	assert.Equal(t, map[string]string{
		"fintech/deal.pdf":         "fintech",
		"fintech/archive/old.PDF":  "fintech",
		"real estate/proposal.pdf": "real estate",
	}, got)
}

func TestWatcher_Scan_MissingRoot(t *testing.T) {
	_, err := New("/non/existent/path").Scan()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "root path error")
}

func TestWatcher_Watch(t *testing.T) {
	t.Run("reports settled PDFs with their industry", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(root, "fintech"), 0o755))

		w := New(root).WithSettle(40 * time.Millisecond)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		arrivals, err := w.Watch(ctx)
		require.NoError(t, err)

		target := filepath.Join(root, "fintech", "new.pdf")
		go func() {
			time.Sleep(50 * time.Millisecond)
			os.WriteFile(target, []byte("%PDF-new"), 0o644)
		}()

		select {
		case a := <-arrivals:
			assert.Equal(t, target, a.Path)
			assert.Equal(t, "fintech", a.Industry)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for arrival")
		}
	})

	t.Run("watches directories created later", func(t *testing.T) {
		root := t.TempDir()

		w := New(root).WithSettle(40 * time.Millisecond)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		arrivals, err := w.Watch(ctx)
		require.NoError(t, err)

		target := filepath.Join(root, "healthcare", "rfp.pdf")
		go func() {
			time.Sleep(50 * time.Millisecond)
			os.Mkdir(filepath.Join(root, "healthcare"), 0o755)
			time.Sleep(50 * time.Millisecond)
			os.WriteFile(target, []byte("%PDF-rfp"), 0o644)
		}()

		select {
		case a := <-arrivals:
			assert.Equal(t, target, a.Path)
			assert.Equal(t, "healthcare", a.Industry)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for arrival")
		}
	})

	t.Run("ignores files without an industry", func(t *testing.T) {
		root := t.TempDir()

		w := New(root).WithSettle(20 * time.Millisecond)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		arrivals, err := w.Watch(ctx)
		require.NoError(t, err)

		writeFile(t, filepath.Join(root, "loose.pdf"), "%PDF")

		select {
		case a := <-arrivals:
			t.Fatalf("unexpected arrival %+v", a)
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("closes channel when context is cancelled", func(t *testing.T) {
		root := t.TempDir()

		ctx, cancel := context.WithCancel(context.Background())
		arrivals, err := New(root).Watch(ctx)
		require.NoError(t, err)

		cancel()

		select {
		case _, ok := <-arrivals:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("channel did not close after context cancellation")
		}
	})

	t.Run("returns error for non-existent directory", func(t *testing.T) {
		arrivals, err := New("/non/existent/path").Watch(context.Background())

		assert.Error(t, err)
		assert.Nil(t, arrivals)
	})

	t.Run("returns error when watcher is closed", func(t *testing.T) {
		w := New(t.TempDir())
		require.NoError(t, w.Close())

		arrivals, err := w.Watch(context.Background())

		assert.Error(t, err)
		assert.Nil(t, arrivals)
		assert.Contains(t, err.Error(), "closed")
	})
}

func TestHandleFsEvent(t *testing.T) {
	root := t.TempDir()
	fw, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer fw.Close()

	pdf := filepath.Join(root, "fintech", "deal.pdf")
	writeFile(t, pdf, "%PDF")
	txt := filepath.Join(root, "fintech", "notes.txt")
	writeFile(t, txt, "notes")
	hidden := filepath.Join(root, "fintech", ".tmp.pdf")
	writeFile(t, hidden, "%PDF")
	movedDir := filepath.Join(root, "energy")
	writeFile(t, filepath.Join(movedDir, "a.pdf"), "%PDF")

	w := New(root)
	tests := []struct {
		name  string
		event fsnotify.Event
		want  []string
	}{
		{"create pdf", fsnotify.Event{Name: pdf, Op: fsnotify.Create}, []string{pdf}},
		{"write pdf", fsnotify.Event{Name: pdf, Op: fsnotify.Write}, []string{pdf}},
		{"write and chmod", fsnotify.Event{Name: pdf, Op: fsnotify.Write | fsnotify.Chmod}, []string{pdf}},
		{"chmod only", fsnotify.Event{Name: pdf, Op: fsnotify.Chmod}, nil},
		{"remove", fsnotify.Event{Name: pdf, Op: fsnotify.Remove}, nil},
		{"not a pdf", fsnotify.Event{Name: txt, Op: fsnotify.Create}, nil},
		{"hidden", fsnotify.Event{Name: hidden, Op: fsnotify.Create}, nil},
		{"vanished", fsnotify.Event{Name: filepath.Join(root, "fintech", "gone.pdf"), Op: fsnotify.Create}, nil},
		{"directory moved in", fsnotify.Event{Name: movedDir, Op: fsnotify.Create}, []string{filepath.Join(movedDir, "a.pdf")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.handleFsEvent(fw, root, tt.event))
		})
	}
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{".hidden", true},
		{"path/to/.hidden", true},
		{"dir/.git/config", true},
		{".config/.cache/data", true},
		{"file.pdf", false},
		{"path/to/file.pdf", false},
		{"file.hidden", false},
		{".", false},
		{"..", false},
		{"path/./file", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, isHidden(tt.path))
		})
	}
}
