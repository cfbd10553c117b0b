package jobs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"devmind/datacollector/internal/common"
	"devmind/datacollector/internal/db/repositories"
	"devmind/datacollector/internal/metrics"
	"devmind/datacollector/internal/models"
	gormModels "devmind/datacollector/internal/models/gorm"
	"devmind/datacollector/internal/providers"
	"devmind/datacollector/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:jobs_%s?mode=memory&cache=shared", name)

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

// fakeProvider serves canned items. Attachments come from raw_data["attachments"]
// entries of the form {"id": ..., "name": ...}; content is looked up by name.
type fakeProvider struct {
	mu sync.Mutex

	platform    string
	items       []providers.Item
	collectErr  error
	missing     []string
	validateErr error
	contents    map[string][]byte

	collectCalls  int
	validateCalls int
	lastWindow    providers.Window
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{platform: "jira", contents: map[string][]byte{}}
}

func (p *fakeProvider) Platform() string { return p.platform }

func (p *fakeProvider) Authenticate(ctx context.Context, auth map[string]interface{}) (bool, error) {
	return auth["api_token"] == "good", nil
}

func (p *fakeProvider) Collect(ctx context.Context, auth map[string]interface{}, window providers.Window, ownerID, platform string, opts providers.CollectOptions) ([]providers.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.collectCalls++
	p.lastWindow = window
	if p.collectErr != nil {
		return nil, p.collectErr
	}
	return p.items, nil
}

func (p *fakeProvider) Validate(ctx context.Context, auth map[string]interface{}, window providers.Window, ownerID, platform string, knownIDs []string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.validateCalls++
	if p.validateErr != nil {
		return nil, p.validateErr
	}
	return p.missing, nil
}

func (p *fakeProvider) FetchAttachments(ctx context.Context, auth map[string]interface{}, record providers.StoredRecord) ([]providers.AttachmentMeta, error) {
	list, _ := record.RawData["attachments"].([]interface{})
	metas := make([]providers.AttachmentMeta, 0, len(list))
	for _, entry := range list {
		att, _ := entry.(map[string]interface{})
		meta := providers.AttachmentMeta{FileType: "text/plain"}
		meta.FileName, _ = att["name"].(string)
		if id, ok := att["id"].(string); ok {
			meta.SourceFileID = &id
		}
		// reported sizes may disagree with the content
		switch size := att["size"].(type) {
		case int:
			meta.FileSize = int64(size)
		case float64:
			meta.FileSize = int64(size)
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

func (p *fakeProvider) DownloadAttachmentContent(ctx context.Context, auth map[string]interface{}, meta providers.AttachmentMeta) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.contents[meta.FileName], nil
}

// memoryBlobs is a BlobStore kept in a map
type memoryBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{blobs: map[string][]byte{}}
}

func (m *memoryBlobs) Write(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *memoryBlobs) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryBlobs) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *memoryBlobs) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok, nil
}

func (m *memoryBlobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

type testEnv struct {
	db       *gorm.DB
	runner   *Runner
	provider *fakeProvider
	blobs    *memoryBlobs
	lock     *common.MemoryTaskLock
	configs  *repositories.CollectorConfigRepo
	records  *repositories.RawDataRecordRepo
	clock    *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithDelay(t, 0)
}

func newTestEnvWithDelay(t *testing.T, requestDelay time.Duration) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	env := &testEnv{
		db:       db,
		provider: newFakeProvider(),
		blobs:    newMemoryBlobs(),
		lock:     common.NewMemoryTaskLock(),
		configs:  repositories.NewCollectorConfigRepo(db),
		records:  repositories.NewRawDataRecordRepo(db),
	}
	now := testNow
	env.clock = &now

	env.runner = NewRunner(RunnerDeps{
		DB:          db,
		Configs:     env.configs,
		Records:     env.records,
		Attachments: repositories.NewRawDataAttachmentRepo(db),
		Registry:    providers.NewRegistry(env.provider),
		Blobs:       env.blobs,
		Lock:        env.lock,
		Metrics:     metrics.NewMetricsRegistry(prometheus.NewRegistry()),
		URLPrefix:    "/files",
		RequestDelay: requestDelay,
		Now:          func() time.Time { return *env.clock },
	})
	return env
}

func (e *testEnv) createConfig(t *testing.T, platform string, value models.JSONB) *gormModels.CollectorConfig {
	t.Helper()

	if value == nil {
		value = models.JSONB{}
	}
	if _, ok := value["auth"]; !ok {
		value["auth"] = map[string]interface{}{"api_token": "good"}
	}
	config := &gormModels.CollectorConfig{
		OwnerID:   "owner-1",
		Platform:  platform,
		Key:       platform,
		IsEnabled: true,
		Value:     value,
	}
	if err := e.configs.Create(context.Background(), config); err != nil {
		t.Fatalf("Failed to create config: %v", err)
	}
	return config
}

func (e *testEnv) listRecords(t *testing.T) []gormModels.RawDataRecord {
	t.Helper()

	var records []gormModels.RawDataRecord
	if err := e.db.Order("source_unique_id ASC").Find(&records).Error; err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	return records
}

func (e *testEnv) listAttachments(t *testing.T, recordUUID string) []gormModels.RawDataAttachment {
	t.Helper()

	var rows []gormModels.RawDataAttachment
	if err := e.db.Where("raw_record_uuid = ?", recordUUID).Order("id ASC").Find(&rows).Error; err != nil {
		t.Fatalf("Failed to list attachments: %v", err)
	}
	return rows
}

func item(id string, raw map[string]interface{}) providers.Item {
	if raw == nil {
		raw = map[string]interface{}{}
	}
	if id != "" {
		raw["key"] = id
	}
	return providers.Item{SourceUniqueID: id, RawData: raw}
}

func attachmentList(entries ...map[string]interface{}) []interface{} {
	out := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	return out
}
