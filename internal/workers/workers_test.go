package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"devmind/datacollector/internal/common"
	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/db/repositories"
	"devmind/datacollector/internal/jobs"
	"devmind/datacollector/internal/metrics"
	"devmind/datacollector/internal/models"
	"devmind/datacollector/internal/models/dtos"
	gormModels "devmind/datacollector/internal/models/gorm"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:workers_%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(gormModels.AllModels()...); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

type stubRunner struct {
	mu     sync.Mutex
	calls  []string
	result *dtos.JobResult
	err    error
	done   chan struct{}
}

func (r *stubRunner) record(call string) (*dtos.JobResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- struct{}{}
	}
	return r.result, r.err
}

func (r *stubRunner) RunCollect(ctx context.Context, configUUID string, start, end *string) (*dtos.JobResult, error) {
	call := "collect:" + configUUID
	if start != nil && end != nil {
		call += ":" + *start + ":" + *end
	}
	return r.record(call)
}

func (r *stubRunner) RunValidate(ctx context.Context, configUUID, start, end string) (*dtos.JobResult, error) {
	return r.record("validate:" + configUUID + ":" + start + ":" + end)
}

func (r *stubRunner) RunCleanup(ctx context.Context, configUUID string) (*dtos.JobResult, error) {
	return r.record("cleanup:" + configUUID)
}

type invalidations struct {
	mu     sync.Mutex
	owners []string
}

func (i *invalidations) Invalidate(ctx context.Context, ownerID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.owners = append(i.owners, ownerID)
}

func TestJobExecutor_Statuses(t *testing.T) {
	tests := []struct {
		name       string
		result     *dtos.JobResult
		err        error
		wantStatus string
		wantError  string
	}{
		{"success", &dtos.JobResult{Success: true, RecordsCreated: 2}, nil, constants.JobStatusSuccess, ""},
		{"skipped", &dtos.JobResult{Success: true, Skipped: true}, nil, constants.JobStatusSkipped, ""},
		{"failed run", &dtos.JobResult{Success: false, Error: "upstream 500"}, errors.New("upstream 500"), constants.JobStatusFailure, "upstream 500"},
		{"config gone", nil, jobs.ErrConfigNotFound, constants.JobStatusFailure, jobs.ErrConfigNotFound.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			executions := repositories.NewJobExecutionRepo(db)
			stats := &invalidations{}
			executor := NewJobExecutor(&stubRunner{result: tt.result, err: tt.err}, executions, stats)

			msg := &common.JobMessage{
				TaskID:      "5b0c8a48-9d2e-4a3b-8f36-7c1f0d1e2a3b",
				Kind:        constants.JobKindCollect,
				ConfigUUID:  "cfg-1",
				OwnerID:     "owner-1",
				TriggeredBy: constants.TriggerManual,
			}
			err := executor.Execute(context.Background(), msg)
			if !errors.Is(err, tt.err) {
				t.Fatalf("Expected error %v, got %v", tt.err, err)
			}

			exec, err := executions.GetForOwner(context.Background(), "owner-1", msg.TaskID)
			if err != nil || exec == nil {
				t.Fatalf("Expected execution row, got %v, %v", exec, err)
			}
			if exec.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, exec.Status)
			}
			if exec.Error != tt.wantError {
				t.Errorf("Expected error %q, got %q", tt.wantError, exec.Error)
			}
			if exec.StartedAt == nil || exec.FinishedAt == nil {
				t.Error("Expected started_at and finished_at to be set")
			}
			if tt.result != nil && exec.Result == nil {
				t.Error("Expected result JSON to be stored")
			}

			wantInvalidated := tt.wantStatus == constants.JobStatusSuccess
			if got := len(stats.owners) == 1; got != wantInvalidated {
				t.Errorf("Expected stats invalidated=%v, got %v", wantInvalidated, stats.owners)
			}
		})
	}
}

func TestJobExecutor_RoutesByKind(t *testing.T) {
	db := setupTestDB(t)
	runner := &stubRunner{result: &dtos.JobResult{Success: true}}
	executor := NewJobExecutor(runner, repositories.NewJobExecutionRepo(db), nil)
	ctx := context.Background()

	start, end := "2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z"
	msgs := []*common.JobMessage{
		{TaskID: "00000000-0000-0000-0000-000000000001", Kind: constants.JobKindCollect, ConfigUUID: "c"},
		{TaskID: "00000000-0000-0000-0000-000000000002", Kind: constants.JobKindCollect, ConfigUUID: "c", StartTime: &start, EndTime: &end},
		{TaskID: "00000000-0000-0000-0000-000000000003", Kind: constants.JobKindValidate, ConfigUUID: "c", StartTime: &start, EndTime: &end},
		{TaskID: "00000000-0000-0000-0000-000000000004", Kind: constants.JobKindCleanup, ConfigUUID: "c"},
	}
	for _, msg := range msgs {
		if err := executor.Execute(ctx, msg); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	want := []string{
		"collect:c",
		"collect:c:" + start + ":" + end,
		"validate:c:" + start + ":" + end,
		"cleanup:c",
	}
	if strings.Join(runner.calls, "|") != strings.Join(want, "|") {
		t.Errorf("Expected calls %v, got %v", want, runner.calls)
	}

	err := executor.Execute(ctx, &common.JobMessage{TaskID: "00000000-0000-0000-0000-000000000005", Kind: "reindex"})
	if err == nil {
		t.Error("Expected unknown job kind to fail")
	}
}

func TestLocalDispatcher_RunsJobs(t *testing.T) {
	db := setupTestDB(t)
	runner := &stubRunner{result: &dtos.JobResult{Success: true}, done: make(chan struct{}, 4)}
	dispatcher := NewLocalDispatcher(NewJobExecutor(runner, repositories.NewJobExecutionRepo(db), nil), 2)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		dispatcher.Start(ctx)
		close(stopped)
	}()

	for i := 0; i < 3; i++ {
		msg := &common.JobMessage{
			TaskID:     fmt.Sprintf("00000000-0000-0000-0000-00000000001%d", i),
			Kind:       constants.JobKindCleanup,
			ConfigUUID: fmt.Sprintf("cfg-%d", i),
		}
		if err := dispatcher.Dispatch(context.Background(), msg); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		select {
		case <-runner.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("Timed out waiting for job %d", i)
		}
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Dispatcher did not stop")
	}
}

func TestLocalDispatcher_FullQueue(t *testing.T) {
	dispatcher := NewLocalDispatcher(nil, 1)
	for i := 0; i < localQueueSize; i++ {
		if err := dispatcher.Dispatch(context.Background(), &common.JobMessage{}); err != nil {
			t.Fatalf("Unexpected error at %d: %v", i, err)
		}
	}
	if err := dispatcher.Dispatch(context.Background(), &common.JobMessage{}); !errors.Is(err, ErrDispatchQueueFull) {
		t.Fatalf("Expected ErrDispatchQueueFull, got %v", err)
	}
}

type stubScheduledDispatcher struct {
	mu    sync.Mutex
	fired []string
	err   error
}

func (d *stubScheduledDispatcher) DispatchScheduled(ctx context.Context, kind, configUUID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return "", d.err
	}
	d.fired = append(d.fired, kind+":"+configUUID)
	return "task", nil
}

func newScheduler(t *testing.T) (*CollectorScheduler, *stubScheduledDispatcher, *repositories.CollectorConfigRepo) {
	db := setupTestDB(t)
	configs := repositories.NewCollectorConfigRepo(db)
	dispatcher := &stubScheduledDispatcher{}
	return NewCollectorScheduler(configs, dispatcher, metrics.NewMetricsRegistry(prometheus.NewRegistry())), dispatcher, configs
}

func TestCollectorScheduler_Sync(t *testing.T) {
	s, _, _ := newScheduler(t)

	config := &gormModels.CollectorConfig{
		UUID:      "cfg-1",
		IsEnabled: true,
		Value:     models.JSONB{"schedule_cron": "*/15 * * * *"},
	}
	s.Sync(config)

	collect, cleanup, ok := s.Specs("cfg-1")
	if !ok || collect != "*/15 * * * *" || cleanup != constants.DefaultCleanupCron {
		t.Fatalf("Unexpected specs %q %q %v", collect, cleanup, ok)
	}
	if len(s.cron.Entries()) != 2 {
		t.Fatalf("Expected 2 cron entries, got %d", len(s.cron.Entries()))
	}

	// re-sync with the same specs is a no-op
	s.Sync(config)
	if len(s.cron.Entries()) != 2 {
		t.Fatalf("Expected 2 cron entries after re-sync, got %d", len(s.cron.Entries()))
	}

	// invalid expressions fall back to defaults
	config.Value = models.JSONB{"schedule_cron": "whenever", "cleanup_cron": "0 4 * * *"}
	s.Sync(config)
	collect, cleanup, _ = s.Specs("cfg-1")
	if collect != constants.DefaultScheduleCron || cleanup != "0 4 * * *" {
		t.Errorf("Unexpected specs after update %q %q", collect, cleanup)
	}
	if len(s.cron.Entries()) != 2 {
		t.Errorf("Expected old entries replaced, got %d entries", len(s.cron.Entries()))
	}

	config.IsEnabled = false
	s.Sync(config)
	if _, _, ok := s.Specs("cfg-1"); ok {
		t.Error("Disabled configs must not be scheduled")
	}
	if len(s.cron.Entries()) != 0 {
		t.Errorf("Expected no cron entries, got %d", len(s.cron.Entries()))
	}
}

func TestCollectorScheduler_LoadAllAndFire(t *testing.T) {
	s, dispatcher, configs := newScheduler(t)
	ctx := context.Background()

	enabled := &gormModels.CollectorConfig{OwnerID: "o", Platform: "jira", Value: models.JSONB{}, IsEnabled: true}
	disabled := &gormModels.CollectorConfig{OwnerID: "o", Platform: "feishu", Value: models.JSONB{}, IsEnabled: false}
	for _, c := range []*gormModels.CollectorConfig{enabled, disabled} {
		if err := configs.Create(ctx, c); err != nil {
			t.Fatalf("Failed to create config: %v", err)
		}
	}

	if err := s.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Expected 1 scheduled config, got %d", s.Len())
	}

	s.fire(constants.JobKindCollect, enabled.UUID)
	if len(dispatcher.fired) != 1 || dispatcher.fired[0] != "collect:"+enabled.UUID {
		t.Errorf("Unexpected dispatches %v", dispatcher.fired)
	}

	// a config deleted behind the scheduler's back is unscheduled on its next fire
	dispatcher.err = jobs.ErrConfigNotFound
	s.fire(constants.JobKindCleanup, enabled.UUID)
	if s.Len() != 0 {
		t.Errorf("Expected schedule removed, %d left", s.Len())
	}
}
