package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/db/repositories"
	"devmind/datacollector/internal/jobs"
	"devmind/datacollector/internal/logging"
	"devmind/datacollector/internal/metrics"
	"devmind/datacollector/internal/models/dtos"
	gormModels "devmind/datacollector/internal/models/gorm"

	"github.com/robfig/cron/v3"
)

const scheduledDispatchTimeout = 30 * time.Second

// ScheduledDispatcher queues a job fired by the scheduler
type ScheduledDispatcher interface {
	DispatchScheduled(ctx context.Context, kind, configUUID string) (string, error)
}

type scheduleEntry struct {
	collectSpec string
	cleanupSpec string
	collectID   cron.EntryID
	cleanupID   cron.EntryID
}

// CollectorScheduler keeps one collect and one cleanup cron entry per enabled config.
// Fired entries only dispatch; the job runs wherever the dispatcher sends it.
type CollectorScheduler struct {
	cron       *cron.Cron
	configs    *repositories.CollectorConfigRepo
	dispatcher ScheduledDispatcher
	metrics    *metrics.MetricsRegistry

	mu      sync.Mutex
	entries map[string]*scheduleEntry
}

func NewCollectorScheduler(configs *repositories.CollectorConfigRepo, dispatcher ScheduledDispatcher, reg *metrics.MetricsRegistry) *CollectorScheduler {
	if reg == nil {
		reg = metrics.Default()
	}
	logger := cronLogger{}
	return &CollectorScheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(logger),
			cron.WithChain(
				cron.SkipIfStillRunning(logger),
				cron.Recover(logger),
			),
		),
		configs:    configs,
		dispatcher: dispatcher,
		metrics:    reg,
		entries:    make(map[string]*scheduleEntry),
	}
}

// LoadAll registers every enabled config. Call once at startup.
func (s *CollectorScheduler) LoadAll(ctx context.Context) error {
	configs, err := s.configs.ListEnabled(ctx)
	if err != nil {
		return err
	}
	for i := range configs {
		s.Sync(&configs[i])
	}
	logging.Info("Collector schedules loaded", "configs", len(configs))
	return nil
}

// Sync makes the registry match config. Disabled configs are removed.
func (s *CollectorScheduler) Sync(config *gormModels.CollectorConfig) {
	if !config.IsEnabled {
		s.Remove(config.UUID)
		return
	}

	settings := dtos.SettingsFromValue(config.Value)
	collectSpec := validSpec(config.UUID, "schedule_cron", settings.ScheduleCron, constants.DefaultScheduleCron)
	cleanupSpec := validSpec(config.UUID, "cleanup_cron", settings.CleanupCron, constants.DefaultCleanupCron)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[config.UUID]; ok {
		if existing.collectSpec == collectSpec && existing.cleanupSpec == cleanupSpec {
			return
		}
		s.removeLocked(config.UUID)
	}

	configUUID := config.UUID
	entry := &scheduleEntry{collectSpec: collectSpec, cleanupSpec: cleanupSpec}

	var err error
	entry.collectID, err = s.cron.AddFunc(collectSpec, func() { s.fire(constants.JobKindCollect, configUUID) })
	if err != nil {
		logging.Error("Failed to register collect schedule", "config_uuid", configUUID, "error", err.Error())
		return
	}
	entry.cleanupID, err = s.cron.AddFunc(cleanupSpec, func() { s.fire(constants.JobKindCleanup, configUUID) })
	if err != nil {
		s.cron.Remove(entry.collectID)
		logging.Error("Failed to register cleanup schedule", "config_uuid", configUUID, "error", err.Error())
		return
	}

	s.entries[configUUID] = entry
	s.metrics.ScheduleEntries.Set(float64(len(s.entries)))
	logging.Debug("Collector schedule registered", "config_uuid", configUUID, "collect", collectSpec, "cleanup", cleanupSpec)
}

// Remove drops both entries of a config. Unknown configs are ignored.
func (s *CollectorScheduler) Remove(configUUID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(configUUID)
}

func (s *CollectorScheduler) removeLocked(configUUID string) {
	entry, ok := s.entries[configUUID]
	if !ok {
		return
	}
	s.cron.Remove(entry.collectID)
	s.cron.Remove(entry.cleanupID)
	delete(s.entries, configUUID)
	s.metrics.ScheduleEntries.Set(float64(len(s.entries)))
}

// Specs returns the registered collect and cleanup specs of a config
func (s *CollectorScheduler) Specs(configUUID string) (collect, cleanup string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[configUUID]
	if !ok {
		return "", "", false
	}
	return entry.collectSpec, entry.cleanupSpec, true
}

// Len is the number of scheduled configs
func (s *CollectorScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Start runs the cron loop until ctx is cancelled, then waits for running dispatches
func (s *CollectorScheduler) Start(ctx context.Context) {
	s.cron.Start()
	logging.Info("Collector scheduler started")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	logging.Info("Collector scheduler stopped")
}

func (s *CollectorScheduler) fire(kind, configUUID string) {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledDispatchTimeout)
	defer cancel()

	taskID, err := s.dispatcher.DispatchScheduled(ctx, kind, configUUID)
	if err != nil {
		if errors.Is(err, jobs.ErrConfigNotFound) {
			logging.Warn("Scheduled config no longer exists, removing schedule", "config_uuid", configUUID)
			s.Remove(configUUID)
			return
		}
		logging.Error("Failed to dispatch scheduled job", "job", kind, "config_uuid", configUUID, "error", err.Error())
		return
	}
	logging.Debug("Scheduled job dispatched", "job", kind, "config_uuid", configUUID, "task_id", taskID)
}

// validSpec falls back to def when spec does not parse
func validSpec(configUUID, field, spec, def string) string {
	if _, err := cron.ParseStandard(spec); err != nil {
		logging.Warn("Invalid cron expression, using default", "config_uuid", configUUID, "field", field, "spec", spec, "default", def)
		return def
	}
	return spec
}

// cronLogger routes robfig/cron logs through zap
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logging.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
