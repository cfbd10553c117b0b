package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/db/repositories"
	"devmind/datacollector/internal/logging"
	"devmind/datacollector/internal/models"
	"devmind/datacollector/internal/models/dtos"
	gormModels "devmind/datacollector/internal/models/gorm"
	"devmind/datacollector/internal/providers"

	"gorm.io/gorm"
)

type itemOutcome int

const (
	outcomeCreated itemOutcome = iota
	outcomeUpdated
	outcomeUnchanged
	outcomeNoID
)

// RunCollect pulls one config's window from its provider and persists the changes.
// start and end are either both nil (computed window) or both set (manual window).
func (r *Runner) RunCollect(ctx context.Context, configUUID string, start, end *string) (*dtos.JobResult, error) {
	began := time.Now()
	result := &dtos.JobResult{JobKind: constants.JobKindCollect, ConfigUUID: configUUID}
	defer func() { r.observe(constants.JobKindCollect, began, result) }()

	manual, err := ParseManualWindow(start, end)
	if err != nil {
		return r.fail(result, err)
	}

	release := r.acquire(ctx, constants.JobKindCollect, configUUID)
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
		logging.Warn("No provider registered for platform, nothing collected",
			"platform", config.Platform, "config_uuid", configUUID)
		result.Success = true
		result.Reason = "unknown platform"
		return result, nil
	}

	settings := dtos.SettingsFromValue(config.Value)
	runStart := r.now()

	window := ComputeWindow(runStart, settings.Runtime, settings.InitialRange)
	if manual != nil {
		window = *manual
	}
	result.WindowStart = models.FormatTimestamp(window.Start)
	result.WindowEnd = models.FormatTimestamp(window.End)

	logging.Info("Collect started",
		"config_uuid", configUUID,
		"owner_id", config.OwnerID,
		"platform", config.Platform,
		"window_start", result.WindowStart,
		"window_end", result.WindowEnd,
		"manual", manual != nil,
	)

	items, err := provider.Collect(ctx, settings.Auth, window, config.OwnerID, config.Platform,
		providers.CollectOptions{ProjectKeys: settings.ProjectKeys})
	if err != nil {
		return r.fail(result, fmt.Errorf("provider collect failed: %w", err))
	}

	touched := make([]string, 0, len(items))
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		records := r.records.WithTx(tx)

		for i := range items {
			var recordUUID string
			var outcome itemOutcome

			// savepoint per item so one bad row does not roll back the batch
			itemErr := tx.Transaction(func(itemTx *gorm.DB) error {
				var err error
				recordUUID, outcome, err = r.persistItem(ctx, records.WithTx(itemTx), config, items[i])
				return err
			})
			if itemErr != nil {
				result.RecordsFailed++
				logging.Warn("Failed to persist item",
					"config_uuid", configUUID,
					"source_unique_id", items[i].SourceUniqueID,
					"error", itemErr.Error())
				continue
			}

			switch outcome {
			case outcomeCreated:
				result.RecordsCreated++
				touched = append(touched, recordUUID)
			case outcomeUpdated:
				result.RecordsUpdated++
				touched = append(touched, recordUUID)
			case outcomeUnchanged:
				result.RecordsSkippedUnchanged++
			case outcomeNoID:
				result.RecordsSkippedNoID++
			}
		}

		finished := r.now()
		updates := map[string]time.Time{
			dtos.RuntimeLastCollectStartAt:   runStart,
			dtos.RuntimeLastCollectEndAt:     finished,
			dtos.RuntimeLastSuccessCollectAt: finished,
		}
		if settings.Runtime.FirstCollectAt == nil {
			updates[dtos.RuntimeFirstCollectAt] = runStart
		}
		return r.configs.WithTx(tx).SetRuntimeTimestamps(ctx, config.ID, updates)
	})
	if err != nil {
		return r.fail(result, fmt.Errorf("failed to commit collected records: %w", err))
	}

	r.syncAttachments(ctx, r.newThrottle(), provider, config, settings.Auth, touched, result)

	result.Success = true
	logging.Info("Collect finished",
		"config_uuid", configUUID,
		"created", result.RecordsCreated,
		"updated", result.RecordsUpdated,
		"unchanged", result.RecordsSkippedUnchanged,
		"skipped_no_id", result.RecordsSkippedNoID,
		"failed", result.RecordsFailed,
		"attachments_stored", result.AttachmentsStored,
		"attachments_removed", result.AttachmentsRemoved,
		"backfilled", result.RecordsBackfilled,
	)
	return result, nil
}

// persistItem applies the create / hash-gated update / touch rule for one item
func (r *Runner) persistItem(ctx context.Context, records *repositories.RawDataRecordRepo, config *gormModels.CollectorConfig, item providers.Item) (string, itemOutcome, error) {
	sourceID := strings.TrimSpace(item.SourceUniqueID)
	if sourceID == "" {
		return "", outcomeNoID, nil
	}

	hash := item.DataHash
	if hash == "" {
		var err error
		if hash, err = providers.HashPayload(item.RawData); err != nil {
			return "", 0, fmt.Errorf("hash payload: %w", err)
		}
	}

	now := r.now()
	existing, err := records.FindByNaturalKey(ctx, config.OwnerID, config.Platform, sourceID)
	if err != nil {
		return "", 0, err
	}

	if existing == nil {
		record := &gormModels.RawDataRecord{
			OwnerID:          config.OwnerID,
			Platform:         config.Platform,
			SourceUniqueID:   sourceID,
			RawData:          models.JSONB(item.RawData),
			FilterMetadata:   models.JSONB(item.FilterMetadata),
			DataHash:         hash,
			SourceCreatedAt:  item.SourceCreatedAt,
			SourceUpdatedAt:  item.SourceUpdatedAt,
			FirstCollectedAt: now,
			LastCollectedAt:  now,
		}
		if err := records.Create(ctx, record); err != nil {
			return "", 0, err
		}
		return record.UUID, outcomeCreated, nil
	}

	if existing.DataHash == hash {
		if err := records.TouchCollected(ctx, existing.UUID, now); err != nil {
			return "", 0, err
		}
		return existing.UUID, outcomeUnchanged, nil
	}

	payload := repositories.RecordPayload{
		RawData:         models.JSONB(item.RawData),
		FilterMetadata:  models.JSONB(item.FilterMetadata),
		DataHash:        hash,
		SourceCreatedAt: item.SourceCreatedAt,
		SourceUpdatedAt: item.SourceUpdatedAt,
	}
	if err := records.UpdatePayload(ctx, existing.UUID, payload, now); err != nil {
		return "", 0, err
	}
	return existing.UUID, outcomeUpdated, nil
}
