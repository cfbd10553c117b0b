package jobs

import (
	"context"
	"fmt"
	"time"

	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/logging"
	"devmind/datacollector/internal/models/dtos"
	"devmind/datacollector/internal/storage"
)

const cleanupChunkSize = 500

// RunCleanup removes records of the config not seen for retention_days, blobs first.
func (r *Runner) RunCleanup(ctx context.Context, configUUID string) (*dtos.JobResult, error) {
	began := time.Now()
	result := &dtos.JobResult{JobKind: constants.JobKindCleanup, ConfigUUID: configUUID}
	defer func() { r.observe(constants.JobKindCleanup, began, result) }()

	release := r.acquire(ctx, constants.JobKindCleanup, configUUID)
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

	settings := dtos.SettingsFromValue(config.Value)
	now := r.now()
	cutoff := now.Add(-time.Duration(settings.RetentionDays) * day)

	expired, err := r.records.ListExpiredUUIDs(ctx, config.OwnerID, config.Platform, cutoff)
	if err != nil {
		return r.fail(result, err)
	}

	for i := 0; i < len(expired); i += cleanupChunkSize {
		chunk := expired[i:min(i+cleanupChunkSize, len(expired))]

		attachments, err := r.attachments.ListByRecords(ctx, chunk)
		if err != nil {
			return r.fail(result, err)
		}
		for _, att := range attachments {
			if err := r.blobs.Delete(ctx, storage.AttachmentKey(att.RawRecordUUID, att.UUID)); err != nil {
				logging.Warn("Failed to remove attachment blob", "attachment_uuid", att.UUID, "error", err.Error())
				continue
			}
			result.AttachmentsRemoved++
		}

		deleted, err := r.records.DeleteByUUIDs(ctx, chunk)
		if err != nil {
			return r.fail(result, err)
		}
		result.RecordsDeleted += int(deleted)
	}

	err = r.configs.SetRuntimeTimestamps(ctx, config.ID, map[string]time.Time{
		dtos.RuntimeLastCleanupAt: now,
	})
	if err != nil {
		return r.fail(result, err)
	}

	result.Success = true
	logging.Info("Cleanup finished",
		"config_uuid", configUUID,
		"cutoff", cutoff.Format(time.RFC3339),
		"records_deleted", result.RecordsDeleted,
		"attachments_removed", result.AttachmentsRemoved,
	)
	return result, nil
}
