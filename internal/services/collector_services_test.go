package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"devmind/datacollector/internal/common"
	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/db/repositories"
	"devmind/datacollector/internal/metrics"
	"devmind/datacollector/internal/models"
	"devmind/datacollector/internal/models/dtos"
	"devmind/datacollector/internal/models/dtos/requests"
	"devmind/datacollector/internal/models/entities"
	gormModels "devmind/datacollector/internal/models/gorm"
	"devmind/datacollector/internal/providers"
	"devmind/datacollector/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:services_%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gormModels.AllModels()...))

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func errCode(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

type authOnlyProvider struct{}

func (authOnlyProvider) Platform() string { return "jira" }

func (authOnlyProvider) Authenticate(ctx context.Context, auth map[string]interface{}) (bool, error) {
	if auth["base_url"] == "http://down" {
		return false, errors.New("dial tcp: connection refused")
	}
	return auth["api_token"] == "good", nil
}

func (authOnlyProvider) Collect(ctx context.Context, auth map[string]interface{}, window providers.Window, ownerID, platform string, opts providers.CollectOptions) ([]providers.Item, error) {
	return nil, nil
}

func (authOnlyProvider) Validate(ctx context.Context, auth map[string]interface{}, window providers.Window, ownerID, platform string, knownIDs []string) ([]string, error) {
	return nil, nil
}

func (authOnlyProvider) FetchAttachments(ctx context.Context, auth map[string]interface{}, record providers.StoredRecord) ([]providers.AttachmentMeta, error) {
	return nil, nil
}

func (authOnlyProvider) DownloadAttachmentContent(ctx context.Context, auth map[string]interface{}, meta providers.AttachmentMeta) ([]byte, error) {
	return nil, nil
}

type recordingSyncer struct {
	mu      sync.Mutex
	synced  []string
	removed []string
}

func (s *recordingSyncer) Sync(config *gormModels.CollectorConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced = append(s.synced, config.UUID)
}

func (s *recordingSyncer) Remove(configUUID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, configUUID)
}

type recordingDispatcher struct {
	mu   sync.Mutex
	msgs []*common.JobMessage
	err  error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, msg *common.JobMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.msgs = append(d.msgs, msg)
	return nil
}

func newConfigService(t *testing.T) (*CollectorConfigService, *recordingSyncer, *gorm.DB) {
	db := setupTestDB(t)
	syncer := &recordingSyncer{}
	svc := NewCollectorConfigService(repositories.NewCollectorConfigRepo(db), providers.NewRegistry(authOnlyProvider{}), syncer)
	return svc, syncer, db
}

func createJira(t *testing.T, svc *CollectorConfigService) string {
	t.Helper()

	resp, err := svc.Create(context.Background(), "owner-1", &requests.CreateConfigRequest{
		Platform: "Jira",
		Value: models.JSONB{
			"auth":          map[string]interface{}{"username": "bot", "api_token": "good"},
			"initial_range": "3m",
		},
	})
	require.NoError(t, err)
	return resp.UUID
}

func TestCollectorConfigService_Create(t *testing.T) {
	svc, syncer, _ := newConfigService(t)
	ctx := context.Background()

	resp, err := svc.Create(ctx, "owner-1", &requests.CreateConfigRequest{
		Platform: " JIRA ",
		Value: models.JSONB{
			"auth": map[string]interface{}{"api_token": "good"},
			// clients cannot seed the engine's bookkeeping
			"runtime_state": map[string]interface{}{"first_collect_at": "2020-01-01T00:00:00Z"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "jira", resp.Platform)
	require.Equal(t, "jira", resp.Key)
	require.Equal(t, 1, resp.Version)
	require.True(t, resp.IsEnabled)
	require.Equal(t, []string{resp.UUID}, syncer.synced)

	state := dtos.RuntimeStateFromValue(resp.Value)
	require.Nil(t, state.FirstCollectAt)

	auth := resp.Value["auth"].(map[string]interface{})
	require.Equal(t, "", auth["api_token"], "secrets are masked in responses")

	_, err = svc.Create(ctx, "owner-1", &requests.CreateConfigRequest{Platform: "jira"})
	require.Equal(t, constants.ErrCodeConfigExists, errCode(err))

	// another owner may use the same platform
	_, err = svc.Create(ctx, "owner-2", &requests.CreateConfigRequest{Platform: "jira"})
	require.NoError(t, err)
}

func TestCollectorConfigService_CreateRejectsInvalidValue(t *testing.T) {
	svc, syncer, _ := newConfigService(t)

	tests := []struct {
		name  string
		value models.JSONB
		code  string
	}{
		{"negative retention", models.JSONB{"retention_days": -5}, constants.ErrCodeConfigMalformed},
		{"fractional retention", models.JSONB{"retention_days": 1.5}, constants.ErrCodeConfigMalformed},
		{"unknown range", models.JSONB{"initial_range": "2y"}, constants.ErrCodeConfigMalformed},
		{"auth not an object", models.JSONB{"auth": "token"}, constants.ErrCodeConfigMalformed},
		{"bad schedule", models.JSONB{"schedule_cron": "every day"}, constants.ErrCodeInvalidCron},
		{"bad cleanup", models.JSONB{"cleanup_cron": "61 * * * *"}, constants.ErrCodeInvalidCron},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "owner-1", &requests.CreateConfigRequest{Platform: "jira", Value: tt.value})
			require.Equal(t, tt.code, errCode(err))
		})
	}
	require.Empty(t, syncer.synced)

	_, err := svc.Create(context.Background(), "owner-1", &requests.CreateConfigRequest{})
	require.Equal(t, constants.ErrCodeConfigMalformed, errCode(err))
}

func TestCollectorConfigService_UpdateOptimisticConcurrency(t *testing.T) {
	svc, syncer, db := newConfigService(t)
	ctx := context.Background()
	configUUID := createJira(t, svc)

	// simulate a completed run
	repo := repositories.NewCollectorConfigRepo(db)
	stored, err := repo.GetByUUID(ctx, configUUID)
	require.NoError(t, err)
	lastSuccess := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetRuntimeTimestamps(ctx, stored.ID, map[string]time.Time{
		dtos.RuntimeLastSuccessCollectAt: lastSuccess,
	}))

	disabled := false
	resp, err := svc.Update(ctx, "owner-1", configUUID, &requests.UpdateConfigRequest{
		Version:   1,
		IsEnabled: &disabled,
		Value: models.JSONB{
			// blank secret keeps the stored one
			"auth":           map[string]interface{}{"username": "robot", "api_token": ""},
			"retention_days": 30,
			"runtime_state":  map[string]interface{}{"last_success_collect_at": nil},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Version)
	require.False(t, resp.IsEnabled)
	require.Equal(t, "3m", resp.Value["initial_range"], "shallow merge keeps untouched keys")

	stored, err = repo.GetByUUID(ctx, configUUID)
	require.NoError(t, err)
	auth := stored.Value["auth"].(map[string]interface{})
	require.Equal(t, "robot", auth["username"])
	require.Equal(t, "good", auth["api_token"])

	state := dtos.RuntimeStateFromValue(stored.Value)
	require.NotNil(t, state.LastSuccessCollectAt)
	require.True(t, state.LastSuccessCollectAt.Equal(lastSuccess))

	// a second writer still holding version 1 loses
	_, err = svc.Update(ctx, "owner-1", configUUID, &requests.UpdateConfigRequest{Version: 1, Value: models.JSONB{"retention_days": 7}})
	require.Equal(t, constants.ErrCodeVersionConflict, errCode(err))

	stored, err = repo.GetByUUID(ctx, configUUID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.Version)
	require.EqualValues(t, 30, stored.Value["retention_days"])

	require.Len(t, syncer.synced, 2)

	_, err = svc.Update(ctx, "owner-2", configUUID, &requests.UpdateConfigRequest{Version: 2})
	require.Equal(t, constants.ErrCodeConfigNotFound, errCode(err))
}

func TestCollectorConfigService_Delete(t *testing.T) {
	svc, syncer, _ := newConfigService(t)
	ctx := context.Background()
	configUUID := createJira(t, svc)

	require.Equal(t, constants.ErrCodeConfigNotFound, errCode(svc.Delete(ctx, "owner-2", configUUID)))
	require.NoError(t, svc.Delete(ctx, "owner-1", configUUID))
	require.Equal(t, []string{configUUID}, syncer.removed)

	_, err := svc.Get(ctx, "owner-1", configUUID)
	require.Equal(t, constants.ErrCodeConfigNotFound, errCode(err))
}

func TestCollectorConfigService_ValidateCredentials(t *testing.T) {
	svc, _, _ := newConfigService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		platform string
		value    models.JSONB
		valid    bool
		message  string
	}{
		{"ok", "jira", models.JSONB{"auth": map[string]interface{}{"api_token": "good"}}, true, "Connection OK."},
		{"rejected", "jira", models.JSONB{"auth": map[string]interface{}{"api_token": "bad"}}, false, "Authentication failed."},
		{"unknown platform", "gitlab", models.JSONB{}, false, "Unknown platform."},
		{"transport error", "jira", models.JSONB{"base_url": "http://down"}, false, "dial tcp: connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.ValidateCredentials(ctx, tt.platform, tt.value)
			require.NoError(t, err)
			require.Equal(t, tt.valid, resp.Valid)
			require.Equal(t, tt.message, resp.Message)
		})
	}

	_, err := svc.ValidateCredentials(ctx, "", models.JSONB{})
	require.Equal(t, constants.ErrCodeConfigMalformed, errCode(err))

	configUUID := createJira(t, svc)
	resp, err := svc.ValidateStoredCredentials(ctx, "owner-1", configUUID)
	require.NoError(t, err)
	require.True(t, resp.Valid)
}

type projectListingProvider struct {
	authOnlyProvider
}

func (projectListingProvider) ListProjects(ctx context.Context, auth map[string]interface{}) ([]providers.Project, error) {
	if auth["api_token"] != "good" {
		return nil, &providers.ProviderError{Code: constants.ErrCodeAuthenticationFailed, Message: "Authentication failed."}
	}
	return []providers.Project{{Key: "OPS", ID: "10", Name: "Operations"}, {Key: "WEB", Name: "WEB"}}, nil
}

func TestCollectorConfigService_FetchProjects(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCollectorConfigService(repositories.NewCollectorConfigRepo(db), providers.NewRegistry(projectListingProvider{}), nil)
	ctx := context.Background()

	resp, err := svc.FetchProjects(ctx, "owner-1", &requests.FetchProjectsRequest{
		Platform: "jira",
		Value:    models.JSONB{"auth": map[string]interface{}{"api_token": "good"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Projects, 2)
	require.Equal(t, "OPS", resp.Projects[0].Key)
	require.Equal(t, "10", resp.Projects[0].ID)

	_, err = svc.FetchProjects(ctx, "owner-1", &requests.FetchProjectsRequest{
		Platform: "jira",
		Value:    models.JSONB{"auth": map[string]interface{}{"api_token": "bad"}},
	})
	require.Equal(t, constants.ErrCodeProjectListFailed, errCode(err))

	_, err = svc.FetchProjects(ctx, "owner-1", &requests.FetchProjectsRequest{Platform: "gitlab", Value: models.JSONB{}})
	require.Equal(t, constants.ErrCodeUnknownPlatform, errCode(err))

	_, err = svc.FetchProjects(ctx, "owner-1", &requests.FetchProjectsRequest{Value: models.JSONB{}})
	require.Equal(t, constants.ErrCodeConfigMalformed, errCode(err))

	// the stored value is used, so a masked secret never needs to be resent
	configUUID := createJira(t, svc)
	resp, err = svc.FetchProjects(ctx, "owner-1", &requests.FetchProjectsRequest{ConfigUUID: configUUID})
	require.NoError(t, err)
	require.Len(t, resp.Projects, 2)

	_, err = svc.FetchProjects(ctx, "owner-2", &requests.FetchProjectsRequest{ConfigUUID: configUUID})
	require.Equal(t, constants.ErrCodeConfigNotFound, errCode(err))
}

func TestCollectorConfigService_FetchProjectsWithoutListing(t *testing.T) {
	svc, _, _ := newConfigService(t)

	resp, err := svc.FetchProjects(context.Background(), "owner-1", &requests.FetchProjectsRequest{
		Platform: "jira",
		Value:    models.JSONB{"auth": map[string]interface{}{"api_token": "good"}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Projects)
	require.Empty(t, resp.Projects)
}

func TestMergeValue(t *testing.T) {
	current := models.JSONB{
		"auth":          map[string]interface{}{"username": "bot", "password": "p", "app_secret": "s"},
		"initial_range": "1m",
		"runtime_state": map[string]interface{}{"first_collect_at": "2024-01-01T00:00:00Z"},
	}
	incoming := models.JSONB{
		"auth":          map[string]interface{}{"password": "  ", "app_secret": "rotated"},
		"schedule_cron": "0 * * * *",
		"runtime_state": map[string]interface{}{},
	}

	merged := MergeValue(current, incoming)
	auth := merged["auth"].(map[string]interface{})
	require.Equal(t, "bot", auth["username"])
	require.Equal(t, "p", auth["password"])
	require.Equal(t, "rotated", auth["app_secret"])
	require.Equal(t, "1m", merged["initial_range"])
	require.Equal(t, "0 * * * *", merged["schedule_cron"])
	require.Equal(t, current["runtime_state"], merged["runtime_state"])

	// current is not modified
	require.Equal(t, "p", current["auth"].(map[string]interface{})["password"])
	require.NotContains(t, current, "schedule_cron")
}

type jobServiceEnv struct {
	svc        *JobService
	dispatcher *recordingDispatcher
	executions *repositories.JobExecutionRepo
	configUUID string
}

func newJobServiceEnv(t *testing.T) *jobServiceEnv {
	db := setupTestDB(t)
	configs := repositories.NewCollectorConfigRepo(db)
	config := &gormModels.CollectorConfig{OwnerID: "owner-1", Platform: "jira", Key: "jira", Value: models.JSONB{}, IsEnabled: true}
	require.NoError(t, configs.Create(context.Background(), config))

	env := &jobServiceEnv{
		dispatcher: &recordingDispatcher{},
		executions: repositories.NewJobExecutionRepo(db),
		configUUID: config.UUID,
	}
	env.svc = NewJobService(configs, env.executions, env.dispatcher, metrics.NewMetricsRegistry(prometheus.NewRegistry()), 90)
	return env
}

func strPtr(s string) *string { return &s }

func TestJobService_TriggerCollect(t *testing.T) {
	env := newJobServiceEnv(t)
	ctx := context.Background()

	resp, err := env.svc.TriggerCollect(ctx, "owner-1", env.configUUID, &requests.TriggerCollectRequest{})
	require.NoError(t, err)
	require.Equal(t, constants.JobStatusPending, resp.Status)
	require.Len(t, env.dispatcher.msgs, 1)

	msg := env.dispatcher.msgs[0]
	require.Equal(t, resp.TaskID, msg.TaskID)
	require.Equal(t, constants.JobKindCollect, msg.Kind)
	require.Equal(t, constants.TriggerManual, msg.TriggeredBy)
	require.Nil(t, msg.StartTime)

	exec, err := env.executions.GetForOwner(ctx, "owner-1", resp.TaskID)
	require.NoError(t, err)
	require.NotNil(t, exec)
	require.Equal(t, constants.JobStatusPending, exec.Status)

	// exactly 90 days and a few hours is accepted
	_, err = env.svc.TriggerCollect(ctx, "owner-1", env.configUUID, &requests.TriggerCollectRequest{
		StartTime: strPtr("2024-01-01T00:00:00Z"),
		EndTime:   strPtr("2024-03-31T06:00:00Z"),
	})
	require.NoError(t, err)
	require.Equal(t, "2024-01-01T00:00:00Z", *env.dispatcher.msgs[1].StartTime)

	invalid := []requests.TriggerCollectRequest{
		{StartTime: strPtr("2024-01-01T00:00:00Z")},
		{StartTime: strPtr("2024-02-01T00:00:00Z"), EndTime: strPtr("2024-01-01T00:00:00Z")},
		{StartTime: strPtr("2024-01-01T00:00:00Z"), EndTime: strPtr("2024-04-02T00:00:00Z")},
	}
	for i := range invalid {
		_, err := env.svc.TriggerCollect(ctx, "owner-1", env.configUUID, &invalid[i])
		require.Equal(t, constants.ErrCodeInvalidTimeRange, errCode(err), "request %d", i)
	}
	require.Len(t, env.dispatcher.msgs, 2, "invalid requests are never dispatched")

	_, err = env.svc.TriggerCollect(ctx, "owner-2", env.configUUID, &requests.TriggerCollectRequest{})
	require.Equal(t, constants.ErrCodeConfigNotFound, errCode(err))
}

func TestJobService_TriggerValidate(t *testing.T) {
	env := newJobServiceEnv(t)
	ctx := context.Background()

	_, err := env.svc.TriggerValidate(ctx, "owner-1", env.configUUID, &requests.TriggerValidateRequest{StartTime: "2024-01-01T00:00:00Z"})
	require.Equal(t, constants.ErrCodeInvalidTimeRange, errCode(err))

	resp, err := env.svc.TriggerValidate(ctx, "owner-1", env.configUUID, &requests.TriggerValidateRequest{
		StartTime: "2024-01-01T00:00:00Z",
		EndTime:   "2024-06-01T00:00:00Z",
	})
	require.NoError(t, err)
	require.Equal(t, constants.JobKindValidate, resp.JobKind)
	require.Equal(t, "2024-06-01T00:00:00Z", *env.dispatcher.msgs[0].EndTime)
}

func TestJobService_DispatchFailureIsRecorded(t *testing.T) {
	env := newJobServiceEnv(t)
	ctx := context.Background()
	env.dispatcher.err = errors.New("redis unavailable")

	_, err := env.svc.TriggerCollect(ctx, "owner-1", env.configUUID, &requests.TriggerCollectRequest{})
	require.Equal(t, constants.ErrCodeInternal, errCode(err))

	execs, err := env.svc.ListExecutions(ctx, "owner-1", env.configUUID, 10)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	require.Equal(t, constants.JobStatusFailure, execs[0].Status)
	require.Equal(t, "redis unavailable", execs[0].Error)
}

func TestJobService_DispatchScheduled(t *testing.T) {
	env := newJobServiceEnv(t)
	ctx := context.Background()

	taskID, err := env.svc.DispatchScheduled(ctx, constants.JobKindCleanup, env.configUUID)
	require.NoError(t, err)
	require.Equal(t, constants.TriggerSchedule, env.dispatcher.msgs[0].TriggeredBy)

	exec, err := env.svc.GetExecution(ctx, "owner-1", taskID)
	require.NoError(t, err)
	require.Equal(t, constants.JobKindCleanup, exec.JobKind)

	_, err = env.svc.DispatchScheduled(ctx, constants.JobKindCollect, "missing")
	require.Error(t, err)

	_, err = env.svc.GetExecution(ctx, "owner-1", "missing")
	require.Equal(t, constants.ErrCodeJobNotFound, errCode(err))
}

type countingStats struct {
	calls int
	err   error
}

func (c *countingStats) RecordStats(ctx context.Context, ownerID string) (*entities.RecordStats, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &entities.RecordStats{
		ByPlatform: []entities.PlatformRecordCount{{Platform: "jira", Total: 3, Deleted: 1}},
		Total:      3,
		Deleted:    1,
	}, nil
}

func TestStatsService_Caches(t *testing.T) {
	source := &countingStats{}
	svc := NewStatsService(source, common.NewCacheService(time.Minute, time.Minute))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		stats, err := svc.RecordStats(ctx, "owner-1")
		require.NoError(t, err)
		require.EqualValues(t, 3, stats.Total)
		require.Equal(t, "jira", stats.ByPlatform[0].Platform)
	}
	require.Equal(t, 1, source.calls)

	svc.Invalidate(ctx, "owner-1")
	_, err := svc.RecordStats(ctx, "owner-1")
	require.NoError(t, err)
	require.Equal(t, 2, source.calls)

	source.err = errors.New("db down")
	_, err = svc.RecordStats(ctx, "owner-2")
	require.Equal(t, constants.ErrCodeInternal, errCode(err))
}

type mapBlobs struct {
	blobs map[string][]byte
}

func (m *mapBlobs) Write(ctx context.Context, key string, data []byte) error {
	m.blobs[key] = data
	return nil
}

func (m *mapBlobs) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (m *mapBlobs) Delete(ctx context.Context, key string) error {
	delete(m.blobs, key)
	return nil
}

func (m *mapBlobs) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.blobs[key]
	return ok, nil
}

func TestRecordService(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	blobs := &mapBlobs{blobs: map[string][]byte{}}
	signer := common.NewURLSignerService([]byte("secret"), common.NewCacheService(time.Minute, time.Minute))
	svc := NewRecordService(repositories.NewRawDataRecordRepo(db), repositories.NewRawDataAttachmentRepo(db), blobs, signer, "/api/v1/collector")

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	record := &gormModels.RawDataRecord{
		OwnerID:        "owner-1",
		Platform:       "jira",
		SourceUniqueID: "PROJ-1",
		RawData: models.JSONB{
			"issue":       map[string]interface{}{"fields": map[string]interface{}{"summary": "Login broken"}},
			"attachments": []interface{}{map[string]interface{}{"id": "1"}, map[string]interface{}{"id": "2"}},
		},
		DataHash:         "h",
		FirstCollectedAt: now,
		LastCollectedAt:  now,
	}
	require.NoError(t, db.Create(record).Error)

	att := &gormModels.RawDataAttachment{RawRecordUUID: record.UUID, FileName: "log.txt", FileType: "text/plain"}
	att.UUID = "7a2d0f3e-5a47-4b43-9d0e-1d1c1c2f0a01"
	att.FilePath = storage.AttachmentKey(record.UUID, att.UUID)
	require.NoError(t, db.Create(att).Error)
	blobs.blobs[att.FilePath] = []byte("hello")

	list, err := svc.List(ctx, repositories.RecordFilter{OwnerID: "owner-1"})
	require.NoError(t, err)
	require.EqualValues(t, 1, list.Total)
	require.Equal(t, "Login broken", list.Items[0].Title)
	require.Equal(t, 2, list.Items[0].AttachmentCount)

	detail, err := svc.Get(ctx, "owner-1", record.UUID)
	require.NoError(t, err)
	require.Len(t, detail.Attachments, 1)
	require.Equal(t, "/api/v1/collector/records/"+record.UUID+"/attachments/"+att.UUID+"/download", detail.Attachments[0].DownloadURL)

	_, err = svc.Get(ctx, "owner-2", record.UUID)
	require.Equal(t, constants.ErrCodeRecordNotFound, errCode(err))

	download, err := svc.OpenAttachment(ctx, "owner-1", record.UUID, att.UUID)
	require.NoError(t, err)
	body, _ := io.ReadAll(download.Content)
	download.Content.Close()
	require.Equal(t, "hello", string(body))
	require.Equal(t, "log.txt", download.FileName)

	_, err = svc.OpenAttachment(ctx, "owner-2", record.UUID, att.UUID)
	require.Equal(t, constants.ErrCodeRecordNotFound, errCode(err))

	link, err := svc.CreateDownloadLink(ctx, "owner-1", record.UUID, att.UUID)
	require.NoError(t, err)
	token := strings.TrimPrefix(link.URL, "/api/v1/collector/files/")

	signed, err := svc.OpenSignedAttachment(ctx, token)
	require.NoError(t, err)
	signed.Content.Close()

	_, err = svc.OpenSignedAttachment(ctx, token)
	require.Equal(t, constants.ErrCodeAttachmentNotFound, errCode(err), "links are single use")

	delete(blobs.blobs, att.FilePath)
	_, err = svc.OpenAttachment(ctx, "owner-1", record.UUID, att.UUID)
	require.Equal(t, constants.ErrCodeAttachmentNotFound, errCode(err))
}

func TestDisplayTitle(t *testing.T) {
	jira := &gormModels.RawDataRecord{Platform: "jira", SourceUniqueID: "PROJ-9", RawData: models.JSONB{}}
	require.Equal(t, "PROJ-9", DisplayTitle(jira))

	other := &gormModels.RawDataRecord{
		Platform:       "feishu",
		SourceUniqueID: "inst-1",
		RawData:        models.JSONB{"issue": map[string]interface{}{"fields": map[string]interface{}{"summary": "ignored"}}},
	}
	require.Equal(t, "inst-1", DisplayTitle(other))
}
