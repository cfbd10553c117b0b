package workers

import (
	"context"
	"fmt"
	"time"

	"devmind/datacollector/internal/common"
	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/db/repositories"
	"devmind/datacollector/internal/logging"
	"devmind/datacollector/internal/models/dtos"
	gormModels "devmind/datacollector/internal/models/gorm"
)

// JobRunner is the engine surface a dispatched job drives
type JobRunner interface {
	RunCollect(ctx context.Context, configUUID string, start, end *string) (*dtos.JobResult, error)
	RunValidate(ctx context.Context, configUUID, start, end string) (*dtos.JobResult, error)
	RunCleanup(ctx context.Context, configUUID string) (*dtos.JobResult, error)
}

// StatsInvalidator drops cached aggregates after data changed
type StatsInvalidator interface {
	Invalidate(ctx context.Context, ownerID string)
}

// JobExecutor runs one job message and tracks it as a JobExecution
type JobExecutor struct {
	runner     JobRunner
	executions *repositories.JobExecutionRepo
	stats      StatsInvalidator
	now        func() time.Time
}

// NewJobExecutor wires the executor. stats may be nil.
func NewJobExecutor(runner JobRunner, executions *repositories.JobExecutionRepo, stats StatsInvalidator) *JobExecutor {
	return &JobExecutor{
		runner:     runner,
		executions: executions,
		stats:      stats,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Execute runs msg to completion. The returned error is the job's own error;
// tracking failures are only logged.
func (e *JobExecutor) Execute(ctx context.Context, msg *common.JobMessage) error {
	log := logging.ForJob(msg.TaskID, msg.Kind, msg.ConfigUUID)

	exec := &gormModels.JobExecution{
		TaskID:      msg.TaskID,
		JobKind:     msg.Kind,
		ConfigUUID:  msg.ConfigUUID,
		OwnerID:     msg.OwnerID,
		TriggeredBy: msg.TriggeredBy,
	}
	if err := e.executions.MarkStarted(ctx, exec, e.now()); err != nil {
		log.Warnw("Failed to mark job started", "error", err.Error())
	}

	result, err := e.run(ctx, msg)

	status := constants.JobStatusSuccess
	errMsg := ""
	switch {
	case err != nil:
		status = constants.JobStatusFailure
		errMsg = err.Error()
	case result != nil && result.Skipped:
		status = constants.JobStatusSkipped
	case result != nil && !result.Success:
		status = constants.JobStatusFailure
		errMsg = result.Error
	}

	var resultMap map[string]interface{}
	if result != nil {
		resultMap = result.ToMap()
	}
	if ferr := e.executions.Finish(context.WithoutCancel(ctx), msg.TaskID, status, resultMap, errMsg, e.now()); ferr != nil {
		log.Warnw("Failed to record job result", "error", ferr.Error())
	}

	if status == constants.JobStatusSuccess && e.stats != nil && msg.OwnerID != "" {
		e.stats.Invalidate(ctx, msg.OwnerID)
	}

	log.Infow("Job finished", "status", status)
	return err
}

func (e *JobExecutor) run(ctx context.Context, msg *common.JobMessage) (*dtos.JobResult, error) {
	switch msg.Kind {
	case constants.JobKindCollect:
		return e.runner.RunCollect(ctx, msg.ConfigUUID, msg.StartTime, msg.EndTime)
	case constants.JobKindValidate:
		var start, end string
		if msg.StartTime != nil {
			start = *msg.StartTime
		}
		if msg.EndTime != nil {
			end = *msg.EndTime
		}
		return e.runner.RunValidate(ctx, msg.ConfigUUID, start, end)
	case constants.JobKindCleanup:
		return e.runner.RunCleanup(ctx, msg.ConfigUUID)
	}
	return nil, fmt.Errorf("unknown job kind %q", msg.Kind)
}
