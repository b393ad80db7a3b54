package xconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce 是默认防抖时间。
const DefaultDebounce = 100 * time.Millisecond

// WatchCallback 在配置文件变更并重载后调用。err 非 nil 时 settings 为零值，
// Source 保留旧内容。
type WatchCallback func(settings Settings, err error)

// WatchOption 配置 [Watcher]。
type WatchOption func(*Watcher)

// WithDebounce 设置防抖时间，窗口内的多次变更只触发一次重载。
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher 监视配置文件并自动重载。
type Watcher struct {
	src      *Source
	fs       *fsnotify.Watcher
	callback WatchCallback
	debounce time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	// cbMu 串行化回调。
	cbMu sync.Mutex
}

// Watch 为文件型 Source 创建监视器，需调用 Start 开始监视。
func Watch(src *Source, callback WatchCallback, opts ...WatchOption) (*Watcher, error) {
	if src == nil || src.Path() == "" {
		return nil, ErrNotReloadable
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xconf: failed to create watcher: %w", err)
	}
	// 监视目录而非文件：编辑器保存时常先删除再创建。
	dir := filepath.Dir(src.Path())
	if err := fs.Add(dir); err != nil {
		return nil, errors.Join(fmt.Errorf("xconf: failed to watch directory %s: %w", dir, err), fs.Close())
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		src:      src,
		fs:       fs,
		callback: callback,
		debounce: DefaultDebounce,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start 在后台 goroutine 中开始监视，重复调用无效果。
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.ctx.Err() != nil {
		return
	}
	w.running = true
	go w.run()
}

// Stop 停止监视。可在回调中调用。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.ctx.Err() != nil {
		w.mu.Unlock()
		return nil
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.cancel()
	w.mu.Unlock()
	return w.fs.Close()
}

func (w *Watcher) run() {
	filename := filepath.Base(w.src.Path())
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == filename &&
				(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)) {
				w.schedule()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.notify(Settings{}, fmt.Errorf("xconf: watch error: %w", err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	if err := w.src.Reload(); err != nil {
		w.notify(Settings{}, err)
		return
	}
	w.notify(w.src.Settings())
}

func (w *Watcher) notify(settings Settings, err error) {
	if w.callback == nil {
		return
	}
	w.cbMu.Lock()
	defer w.cbMu.Unlock()
	if w.ctx.Err() != nil {
		return
	}
	w.callback(settings, err)
}
