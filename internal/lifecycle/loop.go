package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrStopped 事件循环已停止
var ErrStopped = errors.New("生命周期控制器已停止")

// eventLoop 单线程事件队列：所有状态变更都在同一个 goroutine 上按 FIFO 执行。
// post 从不阻塞（宿主回调使用），call 等待执行结果（控制面板命令使用）。
type eventLoop struct {
	mu      sync.Mutex
	queue   []func()
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
	logger  *slog.Logger
}

func newEventLoop(logger *slog.Logger) *eventLoop {
	return &eventLoop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		logger:  logger,
	}
}

func (l *eventLoop) post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// 命令状态：排队中 -> 执行中，或排队中 -> 已取消
const (
	taskQueued int32 = iota
	taskRunning
	taskCancelled
)

// call 在事件循环上执行 fn 并等待结果。
// ctx 在 fn 开始执行前结束时，命令被取消且不再执行；已开始执行的命令会等它完成。
func (l *eventLoop) call(ctx context.Context, fn func() error) error {
	var state atomic.Int32
	done := make(chan error, 1)
	task := func() {
		if !state.CompareAndSwap(taskQueued, taskRunning) {
			return
		}
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("处理命令时 panic: %v", r)
				l.logger.Error("❌ " + err.Error())
			}
			done <- err
		}()
		err = fn()
	}
	if !l.post(task) {
		return ErrStopped
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if state.CompareAndSwap(taskQueued, taskCancelled) {
			return ctx.Err()
		}
		return <-done
	case <-l.stopped:
		return ErrStopped
	}
}

func (l *eventLoop) run(ctx context.Context) {
	defer l.close()
	for {
		l.drain(ctx)
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

func (l *eventLoop) drain(ctx context.Context) {
	for ctx.Err() == nil {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.safeRun(fn)
	}
}

// safeRun 单个站点的异常不能拖垮整个控制器
func (l *eventLoop) safeRun(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error(fmt.Sprintf("❌ 生命周期事件处理 panic: %v", r))
		}
	}()
	fn()
}

func (l *eventLoop) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.queue = nil
	l.mu.Unlock()
	close(l.stopped)
}
