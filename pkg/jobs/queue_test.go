package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan string, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		done <- job.ID
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))

	select {
	case id := <-done:
		assert.Equal(t, "job-1", id)
	case <-time.After(time.Second):
		t.Fatal("job not processed")
	}
}

func TestQueueRetriesThenReportsExhaustion(t *testing.T) {
	var attempts int32
	exhausted := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("boom")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnExhausted: func(ctx context.Context, job Job, err error) {
			exhausted <- job
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-2"}))

	select {
	case job := <-exhausted:
		assert.Equal(t, "job-2", job.ID)
		assert.Equal(t, 3, job.Attempt)
		assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	case <-time.After(2 * time.Second):
		t.Fatal("exhaustion callback not invoked")
	}
}

func TestQueueRecoversFromPanic(t *testing.T) {
	exhausted := make(chan error, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		panic("bad payload")
	}, QueueConfig{
		OnExhausted: func(ctx context.Context, job Job, err error) { exhausted <- err },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-3"}))

	select {
	case err := <-exhausted:
		assert.ErrorContains(t, err, "bad payload")
	case <-time.After(time.Second):
		t.Fatal("panic not converted to failure")
	}
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{ID: "x"})
	assert.ErrorIs(t, err, ErrQueueStopped)
}
