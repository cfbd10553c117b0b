package services

import (
	"context"
	"fmt"
	"time"

	"devmind/datacollector/internal/common"
	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/db/repositories"
	"devmind/datacollector/internal/jobs"
	"devmind/datacollector/internal/logging"
	"devmind/datacollector/internal/metrics"
	"devmind/datacollector/internal/models"
	"devmind/datacollector/internal/models/dtos/requests"
	"devmind/datacollector/internal/models/dtos/responses"
	gormModels "devmind/datacollector/internal/models/gorm"

	"github.com/google/uuid"
)

// JobDispatcher hands a job to whatever executes it. Dispatch must not run the job inline.
type JobDispatcher interface {
	Dispatch(ctx context.Context, msg *common.JobMessage) error
}

// JobService validates trigger requests, records executions and dispatches jobs
type JobService struct {
	configs        *repositories.CollectorConfigRepo
	executions     *repositories.JobExecutionRepo
	dispatcher     JobDispatcher
	metrics        *metrics.MetricsRegistry
	maxManualRange time.Duration
	now            func() time.Time
}

func NewJobService(configs *repositories.CollectorConfigRepo, executions *repositories.JobExecutionRepo, dispatcher JobDispatcher, reg *metrics.MetricsRegistry, manualRangeMaxDays int) *JobService {
	if reg == nil {
		reg = metrics.Default()
	}
	if manualRangeMaxDays <= 0 {
		manualRangeMaxDays = 90
	}
	return &JobService{
		configs:        configs,
		executions:     executions,
		dispatcher:     dispatcher,
		metrics:        reg,
		maxManualRange: time.Duration(manualRangeMaxDays) * 24 * time.Hour,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// TriggerCollect queues a one-off collect. A manual window may span at most the configured
// number of whole days.
func (s *JobService) TriggerCollect(ctx context.Context, ownerID, configUUID string, req *requests.TriggerCollectRequest) (*responses.JobDispatchResponse, error) {
	config, err := s.load(ctx, ownerID, configUUID)
	if err != nil {
		return nil, err
	}

	window, err := jobs.ParseManualWindow(req.StartTime, req.EndTime)
	if err != nil {
		return nil, newServiceError(constants.ErrCodeInvalidTimeRange, err)
	}
	if window != nil {
		// whole days only: 90 days and some hours is still 90 days
		if window.End.Sub(window.Start) >= s.maxManualRange+24*time.Hour {
			return nil, &ServiceError{
				Code:    constants.ErrCodeInvalidTimeRange,
				Message: fmt.Sprintf("collect range must not exceed %d days", int(s.maxManualRange.Hours()/24)),
			}
		}
	}

	return s.dispatch(ctx, config, constants.JobKindCollect, constants.TriggerManual, req.StartTime, req.EndTime)
}

// TriggerValidate queues a validation of the given window. Both bounds are required.
func (s *JobService) TriggerValidate(ctx context.Context, ownerID, configUUID string, req *requests.TriggerValidateRequest) (*responses.JobDispatchResponse, error) {
	config, err := s.load(ctx, ownerID, configUUID)
	if err != nil {
		return nil, err
	}

	if req.StartTime == "" || req.EndTime == "" {
		return nil, &ServiceError{
			Code:    constants.ErrCodeInvalidTimeRange,
			Message: "start_time and end_time are required",
		}
	}
	if _, err := jobs.ParseManualWindow(&req.StartTime, &req.EndTime); err != nil {
		return nil, newServiceError(constants.ErrCodeInvalidTimeRange, err)
	}

	return s.dispatch(ctx, config, constants.JobKindValidate, constants.TriggerManual, &req.StartTime, &req.EndTime)
}

// DispatchScheduled is the scheduler's entry point. It returns the task id.
func (s *JobService) DispatchScheduled(ctx context.Context, kind, configUUID string) (string, error) {
	config, err := s.configs.GetByUUID(ctx, configUUID)
	if err != nil {
		return "", err
	}
	if config == nil {
		return "", jobs.ErrConfigNotFound
	}

	resp, err := s.dispatch(ctx, config, kind, constants.TriggerSchedule, nil, nil)
	if err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

func (s *JobService) ListExecutions(ctx context.Context, ownerID, configUUID string, limit int) ([]responses.JobExecutionResponse, error) {
	execs, err := s.executions.ListRecent(ctx, ownerID, configUUID, limit)
	if err != nil {
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}

	out := make([]responses.JobExecutionResponse, 0, len(execs))
	for i := range execs {
		out = append(out, toExecutionResponse(&execs[i]))
	}
	return out, nil
}

func (s *JobService) GetExecution(ctx context.Context, ownerID, taskID string) (*responses.JobExecutionResponse, error) {
	exec, err := s.executions.GetForOwner(ctx, ownerID, taskID)
	if err != nil {
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}
	if exec == nil {
		return nil, newServiceError(constants.ErrCodeJobNotFound, nil)
	}
	resp := toExecutionResponse(exec)
	return &resp, nil
}

func (s *JobService) dispatch(ctx context.Context, config *gormModels.CollectorConfig, kind, trigger string, start, end *string) (*responses.JobDispatchResponse, error) {
	msg := &common.JobMessage{
		TaskID:      uuid.NewString(),
		Kind:        kind,
		ConfigUUID:  config.UUID,
		OwnerID:     config.OwnerID,
		StartTime:   start,
		EndTime:     end,
		TriggeredBy: trigger,
	}

	params := models.JSONB{}
	if start != nil {
		params["start_time"] = *start
	}
	if end != nil {
		params["end_time"] = *end
	}

	exec := &gormModels.JobExecution{
		TaskID:      msg.TaskID,
		JobKind:     kind,
		ConfigUUID:  config.UUID,
		OwnerID:     config.OwnerID,
		TriggeredBy: trigger,
		Params:      params,
	}
	if err := s.executions.RecordDispatch(ctx, exec); err != nil {
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}

	if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
		logging.Error("Failed to dispatch job", "task_id", msg.TaskID, "job", kind, "config_uuid", config.UUID, "error", err.Error())
		if ferr := s.executions.Finish(ctx, msg.TaskID, constants.JobStatusFailure, nil, err.Error(), s.now()); ferr != nil {
			logging.Warn("Failed to record dispatch failure", "task_id", msg.TaskID, "error", ferr.Error())
		}
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}

	s.metrics.JobsQueued.WithLabelValues(kind, trigger).Inc()
	logging.Info("Job dispatched", "task_id", msg.TaskID, "job", kind, "config_uuid", config.UUID, "trigger", trigger)

	return &responses.JobDispatchResponse{
		TaskID:     msg.TaskID,
		JobKind:    kind,
		ConfigUUID: config.UUID,
		Status:     constants.JobStatusPending,
	}, nil
}

func (s *JobService) load(ctx context.Context, ownerID, configUUID string) (*gormModels.CollectorConfig, error) {
	config, err := s.configs.GetForOwner(ctx, ownerID, configUUID)
	if err != nil {
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}
	if config == nil {
		return nil, newServiceError(constants.ErrCodeConfigNotFound, nil)
	}
	return config, nil
}

func toExecutionResponse(exec *gormModels.JobExecution) responses.JobExecutionResponse {
	return responses.JobExecutionResponse{
		TaskID:      exec.TaskID,
		JobKind:     exec.JobKind,
		ConfigUUID:  exec.ConfigUUID,
		Status:      exec.Status,
		TriggeredBy: exec.TriggeredBy,
		Params:      exec.Params,
		Result:      exec.Result,
		Error:       exec.Error,
		StartedAt:   exec.StartedAt,
		FinishedAt:  exec.FinishedAt,
		CreatedAt:   exec.CreatedAt,
	}
}
