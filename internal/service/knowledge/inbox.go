package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/pkg/log"
)

const (
	inboxSettle  = 500 * time.Millisecond
	processedDir = ".processed"
)

// InboxWatcher submits files dropped into a directory as pending materials.
// Submitted files are moved to <dir>/.processed.
type InboxWatcher struct {
	dir      string
	patterns []string
	owner    core.Subject
	pipeline *Pipeline

	mu      sync.Mutex
	timers  map[string]*time.Timer
	cancel  context.CancelFunc
	done    chan struct{}
	watcher *fsnotify.Watcher
}

func NewInboxWatcher(dir string, patterns []string, owner core.Subject, p *Pipeline) *InboxWatcher {
	return &InboxWatcher{
		dir:      dir,
		patterns: patterns,
		owner:    owner,
		pipeline: p,
		timers:   make(map[string]*time.Timer),
	}
}

// Start submits files already in the inbox, then watches it until Shutdown.
func (w *InboxWatcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create inbox: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch inbox: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.watcher = watcher
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	logger := log.FromCtx(ctx).With().Str("component", "inbox").Logger()
	logger.Info().Str("dir", w.dir).Strs("patterns", w.patterns).Msg("inbox watcher started")

	w.scan(ctx)

	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("inbox watcher error")
		}
	}
}

func (w *InboxWatcher) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	cancel, done, watcher := w.cancel, w.done, w.watcher
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
	}
	return watcher.Close()
}

func (w *InboxWatcher) scan(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("failed to read inbox")
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.ingest(ctx, filepath.Join(w.dir, e.Name()))
		}
	}
}

// schedule debounces writes so a file is read once it stopped changing.
func (w *InboxWatcher) schedule(ctx context.Context, path string) {
	if !w.Matches(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(inboxSettle)
		return
	}
	w.timers[path] = time.AfterFunc(inboxSettle, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		if ctx.Err() == nil {
			w.ingest(ctx, path)
		}
	})
}

// Matches reports whether path, relative to the inbox, matches one of the
// patterns. Hidden files never match.
func (w *InboxWatcher) Matches(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil || strings.HasPrefix(filepath.Base(rel), ".") || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (w *InboxWatcher) ingest(ctx context.Context, path string) {
	if !w.Matches(path) {
		return
	}
	logger := log.FromCtx(ctx).With().Str("file", path).Logger()

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read inbox file")
		return
	}

	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(name))
	materialType := DefaultMaterialType
	if ext == ".html" || ext == ".htm" {
		materialType = MaterialTypeHTML
	}

	m, err := w.pipeline.Submit(ctx, w.owner, SubmitInput{
		Title:        strings.TrimSuffix(name, filepath.Ext(name)),
		Content:      string(data),
		MaterialType: materialType,
		Source:       "inbox:" + name,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to submit inbox file")
		return
	}

	target := filepath.Join(w.dir, processedDir, name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err == nil {
		err = os.Rename(path, target)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to move inbox file")
		}
	}
	logger.Info().Str("material_id", m.ID).Msg("inbox file submitted")
}
