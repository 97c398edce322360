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

// DefaultDebounce 默认防抖时间
const DefaultDebounce = 100 * time.Millisecond

// WatchCallback 配置变更回调，err 非 nil 表示重载失败，此时 cfg 保持旧值。
type WatchCallback func(cfg Config, err error)

// WatchOption 监视器选项
type WatchOption func(*Watcher)

// WithDebounce 设置防抖时间，窗口内的多次变更只触发一次重载。非正值被忽略。
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher 监视配置文件并自动重载。
//
// 监视的是文件所在目录：编辑器与 ConfigMap 更新常以 rename 方式替换文件，
// 直接监视文件会丢失事件。
type Watcher struct {
	cfg      *koanfConfig
	fs       *fsnotify.Watcher
	callback WatchCallback
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// Watch 为 New 创建的 Config 创建监视器，调用 Run 开始监视。
func Watch(cfg Config, callback WatchCallback, opts ...WatchOption) (*Watcher, error) {
	kc, ok := cfg.(*koanfConfig)
	if !ok {
		return nil, fmt.Errorf("xconf: unsupported config type %T", cfg)
	}
	if kc.isBytes {
		return nil, ErrNotReloadable
	}

	w := &Watcher{cfg: kc, callback: callback, debounce: DefaultDebounce}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xconf: create watcher: %w", err)
	}
	dir := filepath.Dir(kc.path)
	if err := fsw.Add(dir); err != nil {
		return nil, errors.Join(fmt.Errorf("xconf: watch directory %s: %w", dir, err), fsw.Close())
	}
	w.fs = fsw
	return w, nil
}

// Run 阻塞监视直到 ctx 结束。返回后不会再有回调被触发。
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	filename := filepath.Base(w.cfg.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) == filename &&
				(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)) {
				w.schedule()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.notify(fmt.Errorf("xconf: watch error: %w", err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.stopped {
			return
		}
		err := w.cfg.Reload()
		if w.callback != nil {
			w.callback(w.cfg, err)
		}
	})
}

func (w *Watcher) notify(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped && w.callback != nil {
		w.callback(w.cfg, err)
	}
}

func (w *Watcher) stop() {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	_ = w.fs.Close()
}
