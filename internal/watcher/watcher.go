package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"pushsync/internal/logger"
	"pushsync/internal/model"
	"pushsync/internal/util"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var fs = afero.NewOsFs()

type Ignorer interface {
	ShouldIgnore(path string) (bool, error)
}

// Watcher feeds filesystem changes under root into a Queue. A file named
// exitFile created directly in root is deleted and closes ExitRequested.
type Watcher struct {
	root     string
	exitFile string
	filter   Ignorer
	queue    *Queue

	mu     sync.Mutex
	fw     *fsnotify.Watcher
	doneCh chan struct{}
	wg     sync.WaitGroup

	exitOnce sync.Once
	exitCh   chan struct{}
}

func New(root string, queue *Queue, filter Ignorer, exitFile string) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := fs.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("source directory not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absRoot)
	}

	return &Watcher{
		root:     absRoot,
		exitFile: exitFile,
		filter:   filter,
		queue:    queue,
		exitCh:   make(chan struct{}),
	}, nil
}

func (w *Watcher) Root() string {
	return w.root
}

func (w *Watcher) Queue() *Queue {
	return w.queue
}

// Start begins observing root. Calling Start on a running watcher is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fw != nil {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := addRecursive(fw, w.root); err != nil {
		_ = fw.Close()
		return err
	}

	w.fw = fw
	w.doneCh = make(chan struct{})
	w.wg.Add(1)
	go w.run(fw, w.doneCh)

	logger.Log.Info("watcher started",
		zap.String("dir", w.root))
	return nil
}

// Stop ends observation. Calling Stop on a stopped watcher is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fw == nil {
		return
	}

	close(w.doneCh)
	_ = w.fw.Close()
	w.wg.Wait()
	w.fw = nil
}

func (w *Watcher) ExitRequested() <-chan struct{} {
	return w.exitCh
}

func (w *Watcher) RequestExit() {
	w.exitOnce.Do(func() {
		logger.Log.Info("exit requested")
		close(w.exitCh)
	})
}

func addRecursive(fw *fsnotify.Watcher, dir string) error {
	return afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if err := fw.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			logger.Log.Debug("watching directory",
				zap.String("path", path))
		}

		return nil
	})
}

func (w *Watcher) run(fw *fsnotify.Watcher, doneCh <-chan struct{}) {
	defer w.wg.Done()

	for {
		select {
		case <-doneCh:
			logger.Log.Info("watcher stopping")
			return

		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handle(fw, ev)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}

			logger.Log.Error("watcher error",
				zap.Error(err))
		}
	}
}

func (w *Watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event) {
	path := ev.Name

	switch {
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		if w.isExitRequest(path) {
			if err := util.RemoveIfExists(fs, path); err != nil {
				logger.Log.Warn("failed to remove exit request file",
					zap.String("path", path),
					zap.Error(err))
			}
			w.RequestExit()
			return
		}

		info, err := fs.Stat(path)
		if err != nil {
			logger.Log.Debug("changed path vanished",
				zap.String("path", path))
			return
		}

		if info.IsDir() {
			if ev.Op.Has(fsnotify.Create) {
				w.addDir(fw, path)
			}
			return
		}

		kind := model.EventModified
		if ev.Op.Has(fsnotify.Create) {
			kind = model.EventCreated
		}
		w.enqueue(path, kind)

	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		if w.isExitRequest(path) {
			return
		}
		w.enqueue(path, model.EventDeleted)
	}
}

// addDir watches a directory created after Start and queues the files it
// already contains, since they produce no events of their own.
func (w *Watcher) addDir(fw *fsnotify.Watcher, dir string) {
	_ = afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		if !info.IsDir() {
			w.enqueue(path, model.EventCreated)
			return nil
		}

		if fw == nil {
			return nil
		}

		if err := fw.Add(path); err != nil {
			logger.Log.Warn("failed to watch new directory",
				zap.String("path", path),
				zap.Error(err))
		} else {
			logger.Log.Debug("added new directory to watch",
				zap.String("path", path))
		}
		return nil
	})
}

// enqueue filters on the path below root, so a root that itself lives in a
// hidden directory is still watched.
func (w *Watcher) enqueue(path string, kind model.EventKind) {
	if w.filter != nil {
		ignored, err := w.filter.ShouldIgnore(w.relative(path))
		if err != nil {
			logger.Log.Warn("ignore filter failed",
				zap.String("path", path),
				zap.Error(err))
			return
		}
		if ignored {
			return
		}
	}

	queued := w.queue.Push(model.ChangeEvent{
		Path:      path,
		Kind:      kind,
		Timestamp: time.Now(),
	})

	logger.Log.Debug("change observed",
		zap.String("kind", string(kind)),
		zap.String("path", path),
		zap.Bool("coalesced", !queued))
}

func (w *Watcher) relative(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}

	return string(filepath.Separator) + rel
}

func (w *Watcher) isExitRequest(path string) bool {
	if w.exitFile == "" {
		return false
	}

	return samePath(filepath.Dir(path), w.root) && samePath(filepath.Base(path), w.exitFile)
}

func samePath(a, b string) bool {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return strings.EqualFold(a, b)
	}

	return a == b
}
