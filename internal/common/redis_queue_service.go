package common

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"devmind/datacollector/internal/logging"

	"github.com/redis/go-redis/v9"
)

// RedisQueueService provides queue functionality using Redis Streams
type RedisQueueService struct {
	client *redis.Client
}

// NewRedisQueueService creates a new Redis queue service
func NewRedisQueueService(client *redis.Client) *RedisQueueService {
	return &RedisQueueService{
		client: client,
	}
}

// JobMessage is a dispatched collect, validate or cleanup request
type JobMessage struct {
	TaskID      string  `json:"task_id"`
	Kind        string  `json:"kind"`
	ConfigUUID  string  `json:"config_uuid"`
	OwnerID     string  `json:"owner_id,omitempty"`
	StartTime   *string `json:"start_time,omitempty"`
	EndTime     *string `json:"end_time,omitempty"`
	TriggeredBy string  `json:"triggered_by"`
}

// EnqueueJob adds a job to the stream
func (s *RedisQueueService) EnqueueJob(ctx context.Context, streamName string, msg *JobMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}

	// XADD stream_name * data <json>
	_, err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}
	return nil
}

// DequeueJob reads one new job for this consumer.
// Returns (nil, "", nil) when the block time elapses without a message.
func (s *RedisQueueService) DequeueJob(ctx context.Context, streamName, groupName, consumerName string, blockTime time.Duration) (*JobMessage, string, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    groupName,
		Consumer: consumerName,
		Streams:  []string{streamName, ">"},
		Count:    1,
		Block:    blockTime,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("failed to read from stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, "", nil
	}

	msg := streams[0].Messages[0]
	job, err := decodeJobMessage(msg)
	if err != nil {
		// hand back the id so the caller can ack the poison message
		return nil, msg.ID, err
	}
	return job, msg.ID, nil
}

// AckJob acknowledges processing of a message
func (s *RedisQueueService) AckJob(ctx context.Context, streamName, groupName, messageID string) error {
	return s.client.XAck(ctx, streamName, groupName, messageID).Err()
}

// CreateConsumerGroup creates a consumer group for the stream if it doesn't exist
func (s *RedisQueueService) CreateConsumerGroup(ctx context.Context, streamName, groupName string) error {
	err := s.client.XGroupCreateMkStream(ctx, streamName, groupName, "0").Err()
	if err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

// GetQueueLength returns the number of entries in the stream
func (s *RedisQueueService) GetQueueLength(ctx context.Context, streamName string) (int64, error) {
	length, err := s.client.XLen(ctx, streamName).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return length, nil
}

// GetPendingCount returns the number of unacknowledged messages for a consumer group
func (s *RedisQueueService) GetPendingCount(ctx context.Context, streamName, groupName string) (int64, error) {
	pending, err := s.client.XPending(ctx, streamName, groupName).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get pending count: %w", err)
	}
	return pending.Count, nil
}

// TrimStream keeps only the most recent maxLen messages
func (s *RedisQueueService) TrimStream(ctx context.Context, streamName string, maxLen int64) error {
	return s.client.XTrimMaxLen(ctx, streamName, maxLen).Err()
}

// ClaimStaleJobs claims messages pending longer than minIdleTime, typically left by a dead worker
func (s *RedisQueueService) ClaimStaleJobs(ctx context.Context, streamName, groupName, consumerName string, minIdleTime time.Duration) ([]*JobMessage, []string, error) {
	pending, err := s.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: streamName,
		Group:  groupName,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get pending messages: %w", err)
	}

	var staleIDs []string
	for _, p := range pending {
		if p.Idle >= minIdleTime {
			staleIDs = append(staleIDs, p.ID)
		}
	}
	if len(staleIDs) == 0 {
		return nil, nil, nil
	}

	messages, err := s.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   streamName,
		Group:    groupName,
		Consumer: consumerName,
		MinIdle:  minIdleTime,
		Messages: staleIDs,
	}).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to claim stale messages: %w", err)
	}

	var jobs []*JobMessage
	var messageIDs []string
	for _, msg := range messages {
		job, err := decodeJobMessage(msg)
		if err != nil {
			logging.Warn("Dropping undecodable claimed job", "message_id", msg.ID, "error", err.Error())
			_ = s.AckJob(ctx, streamName, groupName, msg.ID)
			continue
		}
		jobs = append(jobs, job)
		messageIDs = append(messageIDs, msg.ID)
	}

	return jobs, messageIDs, nil
}

func decodeJobMessage(msg redis.XMessage) (*JobMessage, error) {
	dataStr, ok := msg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid message format: data field missing")
	}

	var job JobMessage
	if err := json.Unmarshal([]byte(dataStr), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job message: %w", err)
	}
	return &job, nil
}
