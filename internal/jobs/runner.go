package jobs

import (
	"context"
	"time"

	"devmind/datacollector/internal/common"
	"devmind/datacollector/internal/db/repositories"
	"devmind/datacollector/internal/logging"
	"devmind/datacollector/internal/metrics"
	"devmind/datacollector/internal/models/dtos"
	"devmind/datacollector/internal/providers"
	"devmind/datacollector/internal/storage"

	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// RunnerDeps wires a Runner
type RunnerDeps struct {
	DB          *gorm.DB
	Configs     *repositories.CollectorConfigRepo
	Records     *repositories.RawDataRecordRepo
	Attachments *repositories.RawDataAttachmentRepo
	Registry    *providers.Registry
	Blobs       storage.BlobStore
	Lock        common.TaskLock
	Metrics     *metrics.MetricsRegistry

	URLPrefix    string
	LockTTL      time.Duration
	RequestDelay time.Duration
	Now          func() time.Time
}

// Runner executes collect, validate and cleanup jobs for one config at a time.
// Every run takes the (job kind, config) lock first; a held lock yields a skipped result.
type Runner struct {
	db          *gorm.DB
	configs     *repositories.CollectorConfigRepo
	records     *repositories.RawDataRecordRepo
	attachments *repositories.RawDataAttachmentRepo
	registry    *providers.Registry
	blobs       storage.BlobStore
	lock        common.TaskLock
	metrics     *metrics.MetricsRegistry
	itemLimit   rate.Limit

	urlPrefix string
	lockTTL   time.Duration
	now       func() time.Time
}

func NewRunner(deps RunnerDeps) *Runner {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	lockTTL := deps.LockTTL
	if lockTTL <= 0 {
		lockTTL = time.Hour
	}
	limit := rate.Inf
	if deps.RequestDelay > 0 {
		limit = rate.Every(deps.RequestDelay)
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.Default()
	}

	return &Runner{
		db:          deps.DB,
		configs:     deps.Configs,
		records:     deps.Records,
		attachments: deps.Attachments,
		registry:    deps.Registry,
		blobs:       deps.Blobs,
		lock:        deps.Lock,
		metrics:     m,
		itemLimit:   limit,
		urlPrefix:   deps.URLPrefix,
		lockTTL:     lockTTL,
		now:         now,
	}
}

// newThrottle spaces the upstream calls of one run. Each run gets its own,
// so configs running in parallel never wait on each other.
func (r *Runner) newThrottle() *rate.Limiter {
	return rate.NewLimiter(r.itemLimit, 1)
}

// acquire takes the job lock. The returned release func is nil when the run must be skipped.
func (r *Runner) acquire(ctx context.Context, kind, configUUID string) func() {
	key := common.TaskLockKey(kind, configUUID)

	token, ok, err := r.lock.TryLock(ctx, key, r.lockTTL)
	if err != nil {
		logging.Warn("Lock backend unavailable, skipping run", "job", kind, "config_uuid", configUUID, "error", err.Error())
		return nil
	}
	if !ok {
		return nil
	}

	return func() {
		// release must happen even if ctx was cancelled mid-run
		if err := r.lock.Unlock(context.Background(), key, token); err != nil {
			logging.Warn("Failed to release job lock", "job", kind, "config_uuid", configUUID, "error", err.Error())
		}
	}
}

func (r *Runner) skipped(result *dtos.JobResult) *dtos.JobResult {
	result.Success = true
	result.Skipped = true
	result.Reason = "another run holds the lock"
	logging.Info("Job skipped, lock held", "job", result.JobKind, "config_uuid", result.ConfigUUID)
	return result
}

func (r *Runner) fail(result *dtos.JobResult, err error) (*dtos.JobResult, error) {
	result.Success = false
	result.Error = err.Error()
	logging.Error("Job failed", "job", result.JobKind, "config_uuid", result.ConfigUUID, "error", err.Error())
	return result, err
}

func (r *Runner) observe(kind string, began time.Time, result *dtos.JobResult) {
	outcome := "success"
	switch {
	case result.Skipped:
		outcome = "skipped"
	case !result.Success:
		outcome = "failure"
	}
	r.metrics.JobRunsTotal.WithLabelValues(kind, outcome).Inc()
	r.metrics.JobDuration.WithLabelValues(kind).Observe(time.Since(began).Seconds())

	if result.Platform != "" {
		rec := r.metrics.RecordsTotal
		rec.WithLabelValues(result.Platform, "created").Add(float64(result.RecordsCreated))
		rec.WithLabelValues(result.Platform, "updated").Add(float64(result.RecordsUpdated))
		rec.WithLabelValues(result.Platform, "unchanged").Add(float64(result.RecordsSkippedUnchanged))
		rec.WithLabelValues(result.Platform, "no_id").Add(float64(result.RecordsSkippedNoID))
		rec.WithLabelValues(result.Platform, "deleted").Add(float64(result.RecordsDeleted))
	}
	att := r.metrics.AttachmentsTotal
	att.WithLabelValues("stored").Add(float64(result.AttachmentsStored))
	att.WithLabelValues("removed").Add(float64(result.AttachmentsRemoved))
	att.WithLabelValues("failed").Add(float64(result.AttachmentsFailed))
}
