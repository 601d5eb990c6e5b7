package logging

import (
	"context"
	"sync"
	"time"
)

// EventLogBatch 批量日志事件名
const EventLogBatch = "log:batch"

// EmitFunc 把事件发送到前端（控制面板窗口）
type EmitFunc func(name string, data any)

const (
	defaultBatchSize     = 10
	defaultFlushInterval = 100 * time.Millisecond
	defaultQueueSize     = 2000
)

// EventEmitter 把日志条目攒批后推送到控制面板。
// Start 之前与 Stop 之后的 Emit 直接丢弃。
type EventEmitter struct {
	mu  sync.Mutex
	run *emitterRun

	batchSize     int
	flushInterval time.Duration
	queueSize     int
}

// emitterRun 一次 Start..Stop 之间的发送协程
type emitterRun struct {
	queue chan LogEntry
	stop  chan struct{}
	done  chan struct{}
}

// NewEventEmitter 创建事件发射器
func NewEventEmitter() *EventEmitter {
	return &EventEmitter{
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		queueSize:     defaultQueueSize,
	}
}

// Start 启动发送协程；已启动或 emit 为空时忽略
func (e *EventEmitter) Start(ctx context.Context, emit EmitFunc) {
	if emit == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run != nil {
		return
	}

	run := &emitterRun{
		queue: make(chan LogEntry, e.queueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	e.run = run
	go run.loop(ctx, emit, e.batchSize, e.flushInterval)
}

// Stop 停止发送协程，等待剩余日志刷出
func (e *EventEmitter) Stop() {
	e.mu.Lock()
	run := e.run
	e.run = nil
	e.mu.Unlock()

	if run == nil {
		return
	}
	close(run.stop)
	<-run.done
}

// Emit 投递一条日志，从不阻塞调用方。
// 队列满时普通日志直接丢弃，WARN/ERROR 挤掉最旧的一条。
func (e *EventEmitter) Emit(entry LogEntry) {
	e.mu.Lock()
	run := e.run
	e.mu.Unlock()
	if run == nil {
		return
	}

	select {
	case run.queue <- entry:
		return
	default:
	}
	if entry.Level != "WARN" && entry.Level != "ERROR" {
		return
	}
	select {
	case <-run.queue:
	default:
	}
	select {
	case run.queue <- entry:
	default:
	}
}

// IsEnabled 是否正在推送
func (e *EventEmitter) IsEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run != nil
}

func (r *emitterRun) loop(ctx context.Context, emit EmitFunc, batchSize int, interval time.Duration) {
	defer close(r.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pending := make([]LogEntry, 0, batchSize)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		// 接收方可能异步序列化，交出去的切片不能再复用
		emit(EventLogBatch, append([]LogEntry(nil), pending...))
		pending = pending[:0]
	}
	add := func(entry LogEntry) {
		pending = append(pending, entry)
		if len(pending) >= batchSize {
			flush()
		}
	}

	for {
		select {
		case entry := <-r.queue:
			add(entry)
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		case <-r.stop:
			for {
				select {
				case entry := <-r.queue:
					add(entry)
				default:
					flush()
					return
				}
			}
		}
	}
}
