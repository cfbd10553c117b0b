package jobs

import (
	"context"
	"fmt"
	"time"

	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/logging"
	"devmind/datacollector/internal/models"
	"devmind/datacollector/internal/models/dtos"
)

// RunValidate asks the provider which records collected in [start, end] are gone upstream
// and tombstones exactly those. A provider error marks nothing.
func (r *Runner) RunValidate(ctx context.Context, configUUID, start, end string) (*dtos.JobResult, error) {
	began := time.Now()
	result := &dtos.JobResult{JobKind: constants.JobKindValidate, ConfigUUID: configUUID}
	defer func() { r.observe(constants.JobKindValidate, began, result) }()

	window, err := ParseManualWindow(&start, &end)
	if err != nil {
		return r.fail(result, err)
	}
	result.WindowStart = models.FormatTimestamp(window.Start)
	result.WindowEnd = models.FormatTimestamp(window.End)

	release := r.acquire(ctx, constants.JobKindValidate, configUUID)
	if release == nil {
		return r.skipped(result), nil
	}
	defer release()

	config, err := r.configs.GetByUUID(ctx, configUUID)
	if err != nil {
		return r.fail(result, err)
	}
	if config == nil {
		return r.fail(result, fmt.Errorf("%w: %s", ErrConfigNotFound, configUUID))
	}
	result.Platform = config.Platform

	provider, ok := r.registry.Get(config.Platform)
	if !ok {
		result.Success = true
		result.Reason = "unknown platform"
		return result, nil
	}

	records, err := r.records.ListActiveInWindow(ctx, config.OwnerID, config.Platform, window.Start, window.End)
	if err != nil {
		return r.fail(result, err)
	}
	result.RecordsChecked = len(records)

	if len(records) > 0 {
		known := make(map[string]struct{}, len(records))
		ids := make([]string, 0, len(records))
		for _, rec := range records {
			known[rec.SourceUniqueID] = struct{}{}
			ids = append(ids, rec.SourceUniqueID)
		}

		settings := dtos.SettingsFromValue(config.Value)
		missing, err := provider.Validate(ctx, settings.Auth, *window, config.OwnerID, config.Platform, ids)
		if err != nil {
			return r.fail(result, fmt.Errorf("provider validate failed: %w", err))
		}

		gone := make([]string, 0, len(missing))
		for _, id := range missing {
			if _, ok := known[id]; ok {
				gone = append(gone, id)
			}
		}

		marked, err := r.records.MarkDeleted(ctx, config.OwnerID, config.Platform, gone)
		if err != nil {
			return r.fail(result, err)
		}
		result.RecordsDeleted = int(marked)
	}

	err = r.configs.SetRuntimeTimestamps(ctx, config.ID, map[string]time.Time{
		dtos.RuntimeLastValidateAt: r.now(),
	})
	if err != nil {
		return r.fail(result, err)
	}

	result.Success = true
	logging.Info("Validate finished",
		"config_uuid", configUUID,
		"checked", result.RecordsChecked,
		"deleted", result.RecordsDeleted,
	)
	return result, nil
}
