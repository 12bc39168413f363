package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okian/nurture/internal/adapters/mq/queue"
	"github.com/okian/nurture/internal/adapters/mq/worker"
	"github.com/okian/nurture/internal/domain/model"
	logging "github.com/okian/nurture/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 64)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Job {
	return mq.jobs
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

type recordingHandler struct {
	mu      sync.Mutex
	handled map[uuid.UUID]int
	failFor uuid.UUID
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{handled: map[uuid.UUID]int{}}
}

func (h *recordingHandler) Handle(ctx context.Context, job queue.Job) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if job.LeadID == h.failFor {
		return errors.New("delivery failed")
	}
	h.handled[job.LeadID] += len(job.Sends)
	return nil
}

func (h *recordingHandler) count(id uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handled[id]
}

func (h *recordingHandler) total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, v := range h.handled {
		n += v
	}
	return n
}

func job(sends int) queue.Job {
	j := queue.Job{LeadID: uuid.New()}
	for i := 0; i < sends; i++ {
		j.Sends = append(j.Sends, model.DueSend{Send: model.ScheduledSend{ID: uuid.NewString(), StepIndex: i}})
	}
	return j
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker on a mock queue", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		h := newRecordingHandler()
		w := worker.NewInMemoryWorker(q, h, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When jobs arrive and the queue closes", func() {
			first, second := job(2), job(1)
			q.jobs <- first
			q.jobs <- second
			_ = q.Close()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()
			err := w.Shutdown(shutdownCtx)

			convey.Convey("Then the worker stops cleanly", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a job fails", func() {
			bad, good := job(1), job(3)
			h.failFor = bad.LeadID
			q.jobs <- bad
			q.jobs <- good
			_ = q.Close()
			time.Sleep(50 * time.Millisecond)

			convey.Convey("Then the worker logs it and carries on", func() {
				convey.So(h.count(bad.LeadID), convey.ShouldEqual, 0)
				convey.So(h.count(good.LeadID), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When shutting down twice", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.Convey("Then both calls return cleanly", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPoolDrain(t *testing.T) {
	convey.Convey("Given a pool of workers on a real queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		h := newRecordingHandler()
		pool := worker.NewPool(3, q, h)
		ctx := context.Background()
		pool.Start(ctx)

		convey.Convey("When many jobs are enqueued and the pool drains", func() {
			for i := 0; i < 40; i++ {
				convey.So(q.Enqueue(ctx, job(2)), convey.ShouldBeNil)
			}
			drainCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			err := pool.Drain(drainCtx)

			convey.Convey("Then every send was handled exactly once", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(h.total(), convey.ShouldEqual, 80)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestPoolDefaults(t *testing.T) {
	convey.Convey("Given a pool with no worker count", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, newMockQueue(), worker.HandlerFunc(func(context.Context, queue.Job) error { return nil }))

		convey.Convey("Then it falls back to the default size", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})

		convey.Convey("And shutdown stops idle workers", func() {
			pool.Start(context.Background())
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
		})
	})
}
