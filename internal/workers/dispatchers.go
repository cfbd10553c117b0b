package workers

import (
	"context"
	"errors"
	"sync"

	"devmind/datacollector/internal/common"
	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/logging"
)

// ErrDispatchQueueFull is returned when the in-process queue cannot take more jobs
var ErrDispatchQueueFull = errors.New("job queue is full")

const localQueueSize = 256

// RedisDispatcher publishes jobs to the Redis job stream
type RedisDispatcher struct {
	queue  *common.RedisQueueService
	stream string
}

func NewRedisDispatcher(queue *common.RedisQueueService) *RedisDispatcher {
	return &RedisDispatcher{queue: queue, stream: constants.JobStream}
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, msg *common.JobMessage) error {
	return d.queue.EnqueueJob(ctx, d.stream, msg)
}

// LocalDispatcher runs jobs on a fixed pool of goroutines. Used when Redis is not configured.
// Jobs still queued at shutdown are dropped.
type LocalDispatcher struct {
	executor *JobExecutor
	jobs     chan *common.JobMessage
	workers  int
}

func NewLocalDispatcher(executor *JobExecutor, workers int) *LocalDispatcher {
	if workers < 1 {
		workers = 1
	}
	return &LocalDispatcher{
		executor: executor,
		jobs:     make(chan *common.JobMessage, localQueueSize),
		workers:  workers,
	}
}

// Dispatch never blocks
func (d *LocalDispatcher) Dispatch(ctx context.Context, msg *common.JobMessage) error {
	select {
	case d.jobs <- msg:
		return nil
	default:
		return ErrDispatchQueueFull
	}
}

// Start runs the pool until ctx is cancelled
func (d *LocalDispatcher) Start(ctx context.Context) {
	logging.Info("Starting in-process job workers", "workers", d.workers)

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-d.jobs:
					if err := d.executor.Execute(ctx, msg); err != nil {
						logging.Warn("Job failed", "task_id", msg.TaskID, "job", msg.Kind, "error", err.Error())
					}
				}
			}
		}()
	}

	wg.Wait()
	logging.Info("In-process job workers stopped")
}
