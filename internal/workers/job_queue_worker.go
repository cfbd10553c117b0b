package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"devmind/datacollector/internal/common"
	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/logging"
)

const (
	dequeueBlock   = 5 * time.Second
	dequeueBackoff = time.Second
	claimInterval  = 2 * time.Minute
	claimMinIdle   = 10 * time.Minute
)

// JobQueueWorker consumes the job stream through a consumer group.
// Messages are acknowledged after the job ran, so delivery is at-least-once.
type JobQueueWorker struct {
	workerID string
	queue    *common.RedisQueueService
	executor *JobExecutor
	stream   string
	group    string
}

func NewJobQueueWorker(workerID string, queue *common.RedisQueueService, executor *JobExecutor) *JobQueueWorker {
	return &JobQueueWorker{
		workerID: workerID,
		queue:    queue,
		executor: executor,
		stream:   constants.JobStream,
		group:    constants.JobConsumerGroup,
	}
}

// Start runs numWorkers consumers and the stale-message claimer until ctx is cancelled
func (w *JobQueueWorker) Start(ctx context.Context, numWorkers int) error {
	if numWorkers < 1 {
		numWorkers = 1
	}
	logging.Info("Starting job queue workers", "workers", numWorkers, "worker_id", w.workerID, "stream", w.stream)

	if err := w.queue.CreateConsumerGroup(ctx, w.stream, w.group); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		consumer := fmt.Sprintf("%s-worker-%d", w.workerID, i)
		go func() {
			defer wg.Done()
			w.processQueue(ctx, consumer)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.claimStaleMessages(ctx)
	}()

	wg.Wait()
	logging.Info("All job queue workers stopped", "worker_id", w.workerID)
	return nil
}

func (w *JobQueueWorker) processQueue(ctx context.Context, consumer string) {
	log := logging.With("consumer", consumer)
	log.Infow("Started processing job queue")

	processed, failed := 0, 0
	for {
		select {
		case <-ctx.Done():
			log.Infow("Shutting down", "processed", processed, "failed", failed)
			return
		default:
		}

		msg, messageID, err := w.queue.DequeueJob(ctx, w.stream, w.group, consumer, dequeueBlock)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Warnw("Error dequeuing job", "error", err.Error())
			if messageID != "" {
				// undecodable message
				_ = w.queue.AckJob(ctx, w.stream, w.group, messageID)
			}
			time.Sleep(dequeueBackoff)
			continue
		}
		if msg == nil {
			continue
		}

		if err := w.executor.Execute(ctx, msg); err != nil {
			log.Warnw("Job failed", "task_id", msg.TaskID, "job", msg.Kind, "error", err.Error())
			failed++
		} else {
			processed++
		}

		// failed jobs are acked too; retries are a new dispatch
		if err := w.queue.AckJob(context.WithoutCancel(ctx), w.stream, w.group, messageID); err != nil {
			log.Warnw("Error acknowledging job", "message_id", messageID, "error", err.Error())
		}
	}
}

func (w *JobQueueWorker) claimStaleMessages(ctx context.Context) {
	ticker := time.NewTicker(claimInterval)
	defer ticker.Stop()

	claimer := w.workerID + "-claimer"
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msgs, messageIDs, err := w.queue.ClaimStaleJobs(ctx, w.stream, w.group, claimer, claimMinIdle)
			if err != nil {
				logging.Warn("Error claiming stale jobs", "error", err.Error())
				continue
			}
			if len(msgs) == 0 {
				continue
			}

			logging.Info("Claimed stale jobs", "count", len(msgs))
			for i, msg := range msgs {
				if err := w.executor.Execute(ctx, msg); err != nil {
					logging.Warn("Claimed job failed", "task_id", msg.TaskID, "error", err.Error())
				}
				if err := w.queue.AckJob(context.WithoutCancel(ctx), w.stream, w.group, messageIDs[i]); err != nil {
					logging.Warn("Error acknowledging claimed job", "message_id", messageIDs[i], "error", err.Error())
				}
			}
		}
	}
}
