package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/models"
	gormModels "devmind/datacollector/internal/models/gorm"

	"gorm.io/gorm"
)

// JobExecutionRepo handles job execution history
type JobExecutionRepo struct {
	db *gorm.DB
}

// NewJobExecutionRepo creates a new job execution repository
func NewJobExecutionRepo(db *gorm.DB) *JobExecutionRepo {
	return &JobExecutionRepo{db: db}
}

// RecordDispatch stores a pending execution for a dispatched job
func (r *JobExecutionRepo) RecordDispatch(ctx context.Context, exec *gormModels.JobExecution) error {
	exec.Status = constants.JobStatusPending
	if err := r.db.WithContext(ctx).Create(exec).Error; err != nil {
		return fmt.Errorf("failed to record job dispatch: %w", err)
	}
	return nil
}

// MarkStarted moves an execution to started. Executions that were never recorded are created.
func (r *JobExecutionRepo) MarkStarted(ctx context.Context, exec *gormModels.JobExecution, at time.Time) error {
	exec.Status = constants.JobStatusStarted
	exec.StartedAt = &at

	err := r.db.WithContext(ctx).
		Where("task_id = ?", exec.TaskID).
		Assign(gormModels.JobExecution{Status: exec.Status, StartedAt: exec.StartedAt}).
		FirstOrCreate(exec).Error
	if err != nil {
		return fmt.Errorf("failed to mark job started: %w", err)
	}
	return nil
}

// Finish stores the terminal status and result of an execution
func (r *JobExecutionRepo) Finish(ctx context.Context, taskID, status string, result map[string]interface{}, errMsg string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&gormModels.JobExecution{}).
		Where("task_id = ?", taskID).
		Updates(map[string]interface{}{
			"status":      status,
			"result":      models.JSONB(result),
			"error":       errMsg,
			"finished_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to finish job execution: %w", err)
	}
	return nil
}

// GetForOwner returns nil, nil when absent
func (r *JobExecutionRepo) GetForOwner(ctx context.Context, ownerID, taskID string) (*gormModels.JobExecution, error) {
	var exec gormModels.JobExecution

	err := r.db.WithContext(ctx).
		Where("task_id = ? AND owner_id = ?", taskID, ownerID).
		First(&exec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job execution: %w", err)
	}
	return &exec, nil
}

// ListRecent returns the latest executions of an owner, optionally for one config
func (r *JobExecutionRepo) ListRecent(ctx context.Context, ownerID, configUUID string, limit int) ([]gormModels.JobExecution, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if configUUID != "" {
		q = q.Where("config_uuid = ?", configUUID)
	}

	var execs []gormModels.JobExecution
	if err := q.Order("created_at DESC").Limit(limit).Find(&execs).Error; err != nil {
		return nil, fmt.Errorf("failed to list job executions: %w", err)
	}
	return execs, nil
}
