package workers

import (
	"context"
	"fmt"
	"time"

	"devmind/datacollector/internal/common"
	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/logging"
	"devmind/datacollector/internal/metrics"
)

const (
	pendingAlertThreshold = 100
	lengthAlertThreshold  = 5000
	streamMaxLen          = 10000
)

// QueueStats is a point-in-time view of the job stream
type QueueStats struct {
	StreamName   string    `json:"stream"`
	QueueLength  int64     `json:"queue_length"`
	PendingCount int64     `json:"pending_count"`
	LastChecked  time.Time `json:"last_checked"`
}

// JobQueueMonitor reports job stream depth and keeps the stream bounded
type JobQueueMonitor struct {
	queue   *common.RedisQueueService
	metrics *metrics.MetricsRegistry
}

func NewJobQueueMonitor(queue *common.RedisQueueService, reg *metrics.MetricsRegistry) *JobQueueMonitor {
	if reg == nil {
		reg = metrics.Default()
	}
	return &JobQueueMonitor{queue: queue, metrics: reg}
}

// Start checks the queue every interval until ctx is cancelled
func (m *JobQueueMonitor) Start(ctx context.Context, interval time.Duration) {
	logging.Info("Starting job queue monitoring", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.check(ctx)
	for {
		select {
		case <-ctx.Done():
			logging.Info("Job queue monitor shutting down")
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *JobQueueMonitor) check(ctx context.Context) {
	stats, err := m.Stats(ctx)
	if err != nil {
		logging.Warn("Failed to read job queue stats", "error", err.Error())
		return
	}

	m.metrics.QueueLength.Set(float64(stats.QueueLength))
	m.metrics.QueuePending.Set(float64(stats.PendingCount))

	switch {
	case stats.PendingCount > pendingAlertThreshold:
		logging.Warn("Job queue has many unacknowledged jobs", "pending", stats.PendingCount, "length", stats.QueueLength)
	case stats.QueueLength > lengthAlertThreshold:
		logging.Warn("Job stream is long, trimming", "length", stats.QueueLength)
		if err := m.queue.TrimStream(ctx, stats.StreamName, streamMaxLen); err != nil {
			logging.Warn("Failed to trim job stream", "error", err.Error())
		}
	default:
		logging.Debug("Job queue healthy", "pending", stats.PendingCount, "length", stats.QueueLength)
	}
}

// Stats reads the current depth of the job stream
func (m *JobQueueMonitor) Stats(ctx context.Context) (*QueueStats, error) {
	length, err := m.queue.GetQueueLength(ctx, constants.JobStream)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue length: %w", err)
	}

	pending, err := m.queue.GetPendingCount(ctx, constants.JobStream, constants.JobConsumerGroup)
	if err != nil {
		// no consumer group yet
		pending = 0
	}

	return &QueueStats{
		StreamName:   constants.JobStream,
		QueueLength:  length,
		PendingCount: pending,
		LastChecked:  time.Now().UTC(),
	}, nil
}
