package notification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/privatedrops/internal/clock"
	"github.com/smallbiznis/privatedrops/internal/config"
	"github.com/smallbiznis/privatedrops/internal/providers/email"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSender struct {
	mu    sync.Mutex
	err   error
	calls []email.Message
}

func (s *recordingSender) Send(ctx context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, msg)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestService(t *testing.T, queue Queue) *Service {
	t.Helper()
	svc, err := NewService(Params{
		Log:   zap.NewNop(),
		Cfg:   config.Config{AppURL: "https://privatedrops.test"},
		Queue: queue,
		Clock: clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	return svc
}

func drain(t *testing.T, worker *Worker) {
	t.Helper()
	for i := 0; i < 10; i++ {
		found, err := worker.ProcessOne(context.Background())
		require.NoError(t, err)
		if !found {
			return
		}
	}
	t.Fatalf("queue did not drain")
}

func TestWorkerDropsJobAfterThreeAttempts(t *testing.T) {
	queue := NewMemoryQueue(8)
	svc := newTestService(t, queue)
	sender := &recordingSender{err: errors.New("smtp down")}
	worker := NewWorker(queue, sender, zap.NewNop(), nil)
	worker.wait = 10 * time.Millisecond

	require.NoError(t, svc.EnqueuePayout(context.Background(), "creator@example.com", "eur", 900))
	drain(t, worker)

	if got := sender.count(); got != DefaultMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", DefaultMaxAttempts, got)
	}
	if queue.Len() != 0 {
		t.Fatalf("expected dropped job to leave the queue empty")
	}
}

// refillingSender takes the slot the worker just freed before failing the send.
type refillingSender struct {
	queue *MemoryQueue
}

func (s *refillingSender) Send(ctx context.Context, msg email.Message) error {
	_ = s.queue.Enqueue(ctx, Job{ID: "late", Template: "login", To: "late@example.com"})
	return errors.New("smtp down")
}

func TestWorkerDropsRetryWhenQueueStaysFull(t *testing.T) {
	queue := NewMemoryQueue(1)
	require.NoError(t, queue.Enqueue(context.Background(), Job{ID: "first", Template: "payout", To: "creator@example.com"}))

	worker := NewWorker(queue, &refillingSender{queue: queue}, zap.NewNop(), nil)
	worker.wait = 10 * time.Millisecond
	worker.requeue = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = worker.ProcessOne(ctx)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker blocked re-enqueueing into its own full queue")
	}

	require.Equal(t, 1, queue.Len())
	job, err := queue.Dequeue(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, "late", job.ID)
}

func TestWorkerStopsAfterSuccess(t *testing.T) {
	queue := NewMemoryQueue(8)
	svc := newTestService(t, queue)
	sender := &recordingSender{}
	worker := NewWorker(queue, sender, zap.NewNop(), nil)
	worker.wait = 10 * time.Millisecond

	require.NoError(t, svc.EnqueueLogin(context.Background(), "user@example.com", "https://privatedrops.test/login/ABC", 15*time.Minute))
	drain(t, worker)

	require.Equal(t, 1, sender.count())
	msg := sender.calls[0]
	require.Equal(t, "user@example.com", msg.To)
	require.Equal(t, "PrivateDrops - sign in", msg.Subject)
	require.Contains(t, msg.Text, "https://privatedrops.test/login/ABC")
	require.Contains(t, msg.HTML, `href="https://privatedrops.test/login/ABC"`)
}

func TestEnqueuePayoutRendersAmount(t *testing.T) {
	queue := NewMemoryQueue(1)
	svc := newTestService(t, queue)

	require.NoError(t, svc.EnqueuePayout(context.Background(), "creator@example.com", "eur", 900))
	job, err := queue.Dequeue(context.Background(), time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, TemplatePayout, job.Template)
	require.Equal(t, DefaultMaxAttempts, job.MaxAttempts)
	require.Equal(t, 0, job.Attempt)
	require.True(t, strings.Contains(job.Text, "9.00 EUR"), job.Text)
	require.Contains(t, job.HTML, "https://privatedrops.test/profile")
}

func TestMemoryQueueDequeueTimesOut(t *testing.T) {
	queue := NewMemoryQueue(1)
	job, err := queue.Dequeue(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, job)
}

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{0: "0.00", 5: "0.05", 900: "9.00", 123456: "1234.56"}
	for amount, want := range cases {
		if got := FormatAmount(amount); got != want {
			t.Fatalf("FormatAmount(%d) = %s, want %s", amount, got, want)
		}
	}
}
