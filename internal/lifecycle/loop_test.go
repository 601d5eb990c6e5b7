package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *eventLoop {
	t.Helper()
	l := newEventLoop(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go l.run(ctx)
	t.Cleanup(cancel)
	return l
}

// blockLoop 占住事件循环，直到返回的函数被调用
func blockLoop(t *testing.T, l *eventLoop) func() {
	t.Helper()
	started := make(chan struct{})
	release := make(chan struct{})
	require.True(t, l.post(func() {
		close(started)
		<-release
	}))
	<-started
	return func() { close(release) }
}

func TestEventLoop_CallTimedOutBeforeRunIsSkipped(t *testing.T) {
	l := startLoop(t)
	release := blockLoop(t, l)

	var ran atomic.Bool
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.call(ctx, func() error {
		ran.Store(true)
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	// 之后的命令照常执行，且排在被取消的命令之后
	require.NoError(t, l.call(context.Background(), func() error { return nil }))
	assert.False(t, ran.Load())
}

func TestEventLoop_CallWaitsForRunningCommand(t *testing.T) {
	l := startLoop(t)

	ctx, cancel := context.WithCancel(context.Background())
	entered := make(chan struct{})
	finish := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		result <- l.call(ctx, func() error {
			close(entered)
			<-finish
			return nil
		})
	}()

	<-entered
	cancel()
	close(finish)

	// 已开始执行的命令返回它自己的结果
	assert.NoError(t, <-result)
}

func TestController_AddTimedOutDoesNotAddSite(t *testing.T) {
	h := newHarness(t, nil)
	release := blockLoop(t, h.c.loop)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.c.Add(ctx, "https://late.example")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	views, err := h.c.List(h.ctx)
	require.NoError(t, err)
	for _, v := range views {
		assert.NotEqual(t, "https://late.example", v.URL)
	}
	_, saves := h.store.Last()
	assert.Zero(t, saves)
	assert.Empty(t, h.notifier.Added())
}
