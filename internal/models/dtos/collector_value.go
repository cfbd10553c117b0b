package dtos

import (
	"time"

	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/models"
)

// Runtime state keys inside CollectorConfig.Value["runtime_state"]
const (
	RuntimeFirstCollectAt       = "first_collect_at"
	RuntimeLastCollectStartAt   = "last_collect_start_at"
	RuntimeLastCollectEndAt     = "last_collect_end_at"
	RuntimeLastSuccessCollectAt = "last_success_collect_at"
	RuntimeLastValidateAt       = "last_validate_at"
	RuntimeLastCleanupAt        = "last_cleanup_at"
)

var runtimeStateKeys = []string{
	RuntimeFirstCollectAt,
	RuntimeLastCollectStartAt,
	RuntimeLastCollectEndAt,
	RuntimeLastSuccessCollectAt,
	RuntimeLastValidateAt,
	RuntimeLastCleanupAt,
}

// RuntimeState is the engine-owned bookkeeping of a collector config
type RuntimeState struct {
	FirstCollectAt       *time.Time
	LastCollectStartAt   *time.Time
	LastCollectEndAt     *time.Time
	LastSuccessCollectAt *time.Time
	LastValidateAt       *time.Time
	LastCleanupAt        *time.Time
}

// RuntimeStateFromValue reads runtime_state out of a config value. Missing or bad entries are nil.
func RuntimeStateFromValue(value models.JSONB) RuntimeState {
	raw, _ := value["runtime_state"].(map[string]interface{})
	return RuntimeState{
		FirstCollectAt:       models.ParseTimestampValue(raw[RuntimeFirstCollectAt]),
		LastCollectStartAt:   models.ParseTimestampValue(raw[RuntimeLastCollectStartAt]),
		LastCollectEndAt:     models.ParseTimestampValue(raw[RuntimeLastCollectEndAt]),
		LastSuccessCollectAt: models.ParseTimestampValue(raw[RuntimeLastSuccessCollectAt]),
		LastValidateAt:       models.ParseTimestampValue(raw[RuntimeLastValidateAt]),
		LastCleanupAt:        models.ParseTimestampValue(raw[RuntimeLastCleanupAt]),
	}
}

// ToMap renders every key, with nil for unset timestamps.
func (s RuntimeState) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(runtimeStateKeys))
	put := func(key string, t *time.Time) {
		if t == nil {
			out[key] = nil
			return
		}
		out[key] = models.FormatTimestamp(*t)
	}
	put(RuntimeFirstCollectAt, s.FirstCollectAt)
	put(RuntimeLastCollectStartAt, s.LastCollectStartAt)
	put(RuntimeLastCollectEndAt, s.LastCollectEndAt)
	put(RuntimeLastSuccessCollectAt, s.LastSuccessCollectAt)
	put(RuntimeLastValidateAt, s.LastValidateAt)
	put(RuntimeLastCleanupAt, s.LastCleanupAt)
	return out
}

// EmptyRuntimeState is the runtime_state written for a new config.
func EmptyRuntimeState() map[string]interface{} {
	return RuntimeState{}.ToMap()
}

// CollectorSettings is the typed, read-only view of a config value used by jobs and the scheduler.
type CollectorSettings struct {
	Auth          map[string]interface{}
	ScheduleCron  string
	CleanupCron   string
	RetentionDays int
	InitialRange  string
	ProjectKeys   []string
	Runtime       RuntimeState
}

// SettingsFromValue applies defaults for absent keys.
func SettingsFromValue(value models.JSONB) CollectorSettings {
	s := CollectorSettings{
		ScheduleCron:  constants.DefaultScheduleCron,
		CleanupCron:   constants.DefaultCleanupCron,
		RetentionDays: constants.DefaultRetentionDays,
		InitialRange:  constants.InitialRangeOneMonth,
		Runtime:       RuntimeStateFromValue(value),
	}

	s.Auth = map[string]interface{}{}
	if auth, ok := value["auth"].(map[string]interface{}); ok {
		for k, v := range auth {
			s.Auth[k] = v
		}
	}
	// a top-level base_url is part of the credentials
	if baseURL, ok := value["base_url"].(string); ok && baseURL != "" {
		s.Auth["base_url"] = baseURL
	}
	if v, ok := value["schedule_cron"].(string); ok && v != "" {
		s.ScheduleCron = v
	}
	if v, ok := value["cleanup_cron"].(string); ok && v != "" {
		s.CleanupCron = v
	}
	switch v := value["retention_days"].(type) {
	case float64:
		if v > 0 {
			s.RetentionDays = int(v)
		}
	case int:
		if v > 0 {
			s.RetentionDays = v
		}
	}
	if v, ok := value["initial_range"].(string); ok && v != "" {
		s.InitialRange = v
	}
	if keys, ok := value["project_keys"].([]interface{}); ok {
		for _, k := range keys {
			if str, ok := k.(string); ok && str != "" {
				s.ProjectKeys = append(s.ProjectKeys, str)
			}
		}
	}
	return s
}
