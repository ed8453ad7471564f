package prefetch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestQueue_Enqueue_DeduplicatesSameKey(t *testing.T) {
	q := NewQueue(2, 8)

	jobA, createdA := q.Enqueue(EnqueueRequest{Source: "prefetch", DedupeKey: "abc:1:0", Task: noop})
	jobB, createdB := q.Enqueue(EnqueueRequest{Source: "prefetch", DedupeKey: "abc:1:0", Task: noop})

	require.True(t, createdA)
	require.False(t, createdB)
	require.NotNil(t, jobA)
	require.NotNil(t, jobB)
	assert.Equal(t, jobA.ID, jobB.ID)
	assert.True(t, q.InFlight("abc:1:0"))
}

func TestQueue_Enqueue_AllowsRetryAfterFailure(t *testing.T) {
	q := NewQueue(1, 8)

	var attempts atomic.Int32
	task := func(context.Context) error {
		if attempts.Add(1) == 1 {
			return assert.AnError
		}
		return nil
	}
	q.Start()
	defer q.Stop()

	first, created := q.Enqueue(EnqueueRequest{DedupeKey: "retry-key", Task: task})
	require.True(t, created)

	require.Eventually(t, func() bool {
		got, ok := q.Get(first.ID)
		return ok && got.Status == StatusFailed
	}, time.Second, 10*time.Millisecond)

	got, _ := q.Get(first.ID)
	assert.Equal(t, assert.AnError.Error(), got.Error)
	assert.False(t, q.InFlight("retry-key"))

	second, created := q.Enqueue(EnqueueRequest{DedupeKey: "retry-key", Task: task})
	require.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)

	require.Eventually(t, func() bool {
		got, ok := q.Get(second.ID)
		return ok && got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_StaleAndPanickingTasks(t *testing.T) {
	q := NewQueue(1, 8)
	q.Start()
	defer q.Stop()

	stale, _ := q.Enqueue(EnqueueRequest{DedupeKey: "stale", Task: func(context.Context) error { return ErrStale }})
	panicking, _ := q.Enqueue(EnqueueRequest{DedupeKey: "panic", Task: func(context.Context) error { panic("boom") }})
	after, _ := q.Enqueue(EnqueueRequest{DedupeKey: "after", Task: noop})

	require.Eventually(t, func() bool {
		got, ok := q.Get(after.ID)
		return ok && got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)

	got, _ := q.Get(stale.ID)
	assert.Equal(t, StatusSkipped, got.Status)
	got, _ = q.Get(panicking.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, "boom")

	stats := q.Stats()
	assert.Equal(t, 1, stats.Success)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Skipped)
}

func TestQueue_DropsWhenFull(t *testing.T) {
	q := NewQueue(1, 1)
	release := make(chan struct{})
	running := make(chan struct{})
	q.Start()
	defer q.Stop()
	defer close(release)

	_, created := q.Enqueue(EnqueueRequest{DedupeKey: "a", Task: func(context.Context) error {
		close(running)
		<-release
		return nil
	}})
	require.True(t, created)
	<-running

	_, created = q.Enqueue(EnqueueRequest{DedupeKey: "b", Task: noop})
	require.True(t, created)

	job, created := q.Enqueue(EnqueueRequest{DedupeKey: "c", Task: noop})
	assert.False(t, created)
	assert.Nil(t, job)
	assert.Equal(t, uint64(1), q.Stats().Dropped)
	assert.False(t, q.InFlight("c"))
}

func TestQueue_PendingBeforeStart(t *testing.T) {
	q := NewQueue(1, 8)
	var ran atomic.Bool
	job, created := q.Enqueue(EnqueueRequest{DedupeKey: "early", Task: func(context.Context) error {
		ran.Store(true)
		return nil
	}})
	require.True(t, created)

	got, _ := q.Get(job.ID)
	assert.Equal(t, StatusPending, got.Status)

	q.Start()
	defer q.Stop()
	require.Eventually(t, ran.Load, time.Second, 10*time.Millisecond)
}

func TestQueue_StopCancelsAndRejects(t *testing.T) {
	q := NewQueue(1, 8)
	q.Start()

	started := make(chan struct{})
	job, _ := q.Enqueue(EnqueueRequest{DedupeKey: "long", Task: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}})
	<-started
	q.Stop()

	got, _ := q.Get(job.ID)
	assert.Equal(t, StatusSkipped, got.Status)
	assert.False(t, q.Submit("late", noop))
}
