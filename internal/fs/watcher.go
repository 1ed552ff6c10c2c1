package fs

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a path must stay quiet before a create or
// write event for it is emitted.
const DefaultDebounce = 150 * time.Millisecond

// FileEvent represents a debounced change under the workspace root.
type FileEvent struct {
	Path string `json:"path"` // slash-separated, relative to the root, leading "/"
	Op   string `json:"op"`   // create, write, remove, rename, chmod
}

// Watcher wraps fsnotify with debouncing and root-relative paths.
type Watcher struct {
	ws       *Workspace
	fsw      *fsnotify.Watcher
	log      *zap.Logger
	debounce time.Duration

	events  chan FileEvent
	stop    chan struct{}
	stopped chan struct{}

	// pending is nil once the watcher has stopped.
	mu      sync.Mutex
	pending map[string]*pendingEvent
}

type pendingEvent struct {
	timer *time.Timer
	op    string
}

// NewWatcher creates a watcher for the workspace root. Call Start to begin
// receiving events.
func NewWatcher(ws *Workspace, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Watcher{
		ws:       ws,
		fsw:      fsw,
		log:      logger.With(zap.String("component", "watcher")),
		debounce: DefaultDebounce,
		events:   make(chan FileEvent, 256),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		pending:  make(map[string]*pendingEvent),
	}, nil
}

// SetDebounce changes the debounce interval. Must be called before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Events returns the channel of debounced events. It is closed after Stop.
func (w *Watcher) Events() <-chan FileEvent {
	return w.events
}

// Start registers the root and its non-hidden subdirectories.
func (w *Watcher) Start() error {
	if err := w.fsw.Add(w.ws.Root()); err != nil {
		w.fsw.Close()
		return err
	}

	err := filepath.WalkDir(w.ws.Root(), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() || path == w.ws.Root() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if watchErr := w.fsw.Add(path); watchErr != nil {
			w.log.Warn("failed to watch directory", zap.String("dir", path), zap.Error(watchErr))
		}
		return nil
	})
	if err != nil {
		w.log.Warn("walk error during init", zap.Error(err))
	}

	go w.loop()
	return nil
}

// Stop shuts down the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
	}
	close(w.stop)
	w.fsw.Close()
	<-w.stopped
}

func (w *Watcher) loop() {
	defer close(w.stopped)
	defer w.shutdown()

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("fsnotify error", zap.Error(err))
		}
	}
}

func (w *Watcher) shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.pending {
		p.timer.Stop()
	}
	w.pending = nil
	close(w.events)
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !IsPathWithin(event.Name, w.ws.Root()) {
		return
	}
	rel := w.ws.relative(event.Name)

	info, err := os.Lstat(event.Name)
	if event.Has(fsnotify.Create) && err == nil && info.IsDir() && !strings.HasPrefix(info.Name(), ".") {
		if watchErr := w.fsw.Add(event.Name); watchErr != nil {
			w.log.Warn("failed to watch new directory", zap.String("dir", event.Name), zap.Error(watchErr))
		}
	}

	op := opName(event.Op)
	if op == "" {
		return
	}

	// Removals and renames are emitted immediately and cancel any pending
	// create/write for the same path.
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.mu.Lock()
		if p, ok := w.pending[rel]; ok {
			p.timer.Stop()
			delete(w.pending, rel)
		}
		w.mu.Unlock()
		w.emit(FileEvent{Path: rel, Op: op})
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return
	}
	if p, ok := w.pending[rel]; ok {
		p.timer.Stop()
		// A path created inside this window is still reported as created.
		if p.op == "create" {
			op = "create"
		}
	}
	p := &pendingEvent{op: op}
	p.timer = time.AfterFunc(w.debounce, func() { w.fire(rel, p) })
	w.pending[rel] = p
}

// fire emits a debounced event. A timer that was re-armed or cancelled after
// it had already started is stale and emits nothing.
func (w *Watcher) fire(rel string, p *pendingEvent) {
	w.mu.Lock()
	if w.pending == nil || w.pending[rel] != p {
		w.mu.Unlock()
		return
	}
	delete(w.pending, rel)
	w.mu.Unlock()
	w.emit(FileEvent{Path: rel, Op: p.op})
}

func (w *Watcher) emit(event FileEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return
	}
	select {
	case w.events <- event:
	default:
		w.log.Warn("event channel full, dropping event", zap.String("path", event.Path))
	}
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Chmod):
		return "chmod"
	}
	return ""
}
