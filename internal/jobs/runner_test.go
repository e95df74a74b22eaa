package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunner_RunsImmediatelyAndOnInterval(t *testing.T) {
	var runs int64
	runner := NewRunner(Job{
		Name:     "tick",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			atomic.AddInt64(&runs, 1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	runner.Start(ctx)

	time.Sleep(35 * time.Millisecond)
	cancel()
	runner.Wait()

	assert.GreaterOrEqual(t, atomic.LoadInt64(&runs), int64(2), "initial run plus at least one tick")
}

func TestRunner_FailingJobKeepsTicking(t *testing.T) {
	var runs int64
	runner := NewRunner(Job{
		Name:     "flaky",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			atomic.AddInt64(&runs, 1)
			return errors.New("boom")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	runner.Start(ctx)

	time.Sleep(35 * time.Millisecond)
	cancel()
	runner.Wait()

	assert.GreaterOrEqual(t, atomic.LoadInt64(&runs), int64(2), "errors do not stop the schedule")
}

func TestRunner_StopsOnCancel(t *testing.T) {
	var runs int64
	runner := NewRunner(Job{
		Name:     "once",
		Interval: time.Hour,
		Run: func(context.Context) error {
			atomic.AddInt64(&runs, 1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	runner.Start(ctx)
	time.Sleep(10 * time.Millisecond)
	cancel()
	runner.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&runs))
}
