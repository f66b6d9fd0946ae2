package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_RunsImmediatelyAndRepeats(t *testing.T) {
	s := New(zap.NewNop())
	var runs atomic.Int32
	s.AddTask("count", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	require.Equal(t, 1, s.Len())

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	stopped := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load())
}

func TestScheduler_DisabledTask(t *testing.T) {
	s := New(nil)
	s.AddTask("off", 0, func(ctx context.Context) error { return nil })
	assert.Equal(t, 0, s.Len())

	s.Start(context.Background())
	s.Stop()
}

func TestScheduler_FailingTaskKeepsRunning(t *testing.T) {
	s := New(zap.NewNop())
	var runs atomic.Int32
	s.AddTask("fail", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	// 取消父 context 同样会停止任务
	cancel()
	s.Stop()
}
