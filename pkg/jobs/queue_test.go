package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, job.ID)
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job{ID: id, Type: "status_change_mail"}))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
	mu.Unlock()
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	var calls int32
	gaveUp := make(chan Job, 1)
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("smtp unavailable")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		OnGiveUp:   func(job Job, err error) { gaveUp <- job },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j1"}))

	select {
	case job := <-gaveUp:
		assert.Equal(t, "j1", job.ID)
		assert.Equal(t, 3, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job was never given up")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueRetrySucceeds(t *testing.T) {
	var calls int32
	var gaveUp int32
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("temporary failure")
		}
		return nil
	}, QueueConfig{
		MaxRetries: 3,
		RetryDelay: 5 * time.Millisecond,
		OnGiveUp:   func(job Job, err error) { atomic.AddInt32(&gaveUp, 1) },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j1"}))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&gaveUp))
}

func TestQueueRejectsWhenNotRunning(t *testing.T) {
	q := NewQueue("mail", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})

	err := q.Enqueue(Job{ID: "early"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not started")

	q.Start(context.Background())
	q.Stop()

	err = q.Enqueue(Job{ID: "late"})
	require.Error(t, err)
}

func TestQueueFullBuffer(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		if job.ID == "blocker" {
			started <- struct{}{}
			<-release
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "blocker"}))
	<-started
	require.NoError(t, q.Enqueue(Job{ID: "buffered"}))
	assert.Equal(t, 1, q.Len())

	err := q.Enqueue(Job{ID: "overflow"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full")

	close(release)
}

func TestQueueStopDrainsBufferedJobs(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var handled int32
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		if job.ID == "blocker" {
			started <- struct{}{}
			<-release
		}
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "blocker"}))
	<-started
	require.NoError(t, q.Enqueue(Job{ID: "b1"}))
	require.NoError(t, q.Enqueue(Job{ID: "b2"}))

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	q.Stop()

	assert.Equal(t, int32(3), atomic.LoadInt32(&handled))
	assert.Equal(t, 0, q.Len())
}
