package jobs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"devmind/datacollector/internal/logging"
	"devmind/datacollector/internal/models/dtos"
	gormModels "devmind/datacollector/internal/models/gorm"
	"devmind/datacollector/internal/providers"
	"devmind/datacollector/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	maxSourceFileIDLen = 255
	maxFileNameLen     = 512
	maxFileTypeLen     = 128
	defaultFileName    = "attachment"
)

// syncAttachments reconciles the records written by this run, then repairs any
// record whose payload lists more attachments than are stored.
func (r *Runner) syncAttachments(ctx context.Context, throttle *rate.Limiter, provider providers.Provider, config *gormModels.CollectorConfig, auth map[string]interface{}, touched []string, result *dtos.JobResult) {
	done := make(map[string]struct{}, len(touched))

	for _, recordUUID := range touched {
		done[recordUUID] = struct{}{}

		record, err := r.records.GetByUUID(ctx, recordUUID)
		if err != nil || record == nil {
			result.AttachmentsFailed++
			continue
		}
		r.reconcileRecord(ctx, throttle, provider, auth, record, result)
	}

	backfill, err := r.records.FindAttachmentBackfill(ctx, config.OwnerID, config.Platform, done)
	if err != nil {
		logging.Warn("Attachment backfill scan failed", "config_uuid", config.UUID, "error", err.Error())
		return
	}
	for i := range backfill {
		r.reconcileRecord(ctx, throttle, provider, auth, &backfill[i], result)
		result.RecordsBackfilled++
	}
}

// reconcileRecord converges the stored attachment set of one record onto the provider-reported list.
// Rows without a source file id are never removed here.
func (r *Runner) reconcileRecord(ctx context.Context, throttle *rate.Limiter, provider providers.Provider, auth map[string]interface{}, record *gormModels.RawDataRecord, result *dtos.JobResult) {
	log := logging.With("record_uuid", record.UUID, "source_unique_id", record.SourceUniqueID)

	if err := throttle.Wait(ctx); err != nil {
		log.Warnw("Attachment sync interrupted", "error", err.Error())
		result.AttachmentsFailed++
		return
	}
	metas, err := provider.FetchAttachments(ctx, auth, providers.StoredRecord{
		UUID:           record.UUID,
		SourceUniqueID: record.SourceUniqueID,
		RawData:        record.RawData,
	})
	if err != nil {
		// without a trustworthy list nothing may be removed
		log.Warnw("Failed to list attachments", "error", err.Error())
		result.AttachmentsFailed++
		return
	}

	reported := make(map[string]struct{}, len(metas))
	for i := range metas {
		metas[i].SourceFileID = normalizeSourceFileID(metas[i].SourceFileID)
		if metas[i].SourceFileID != nil {
			reported[*metas[i].SourceFileID] = struct{}{}
		}
	}

	for _, meta := range metas {
		stored, err := r.storeAttachment(ctx, throttle, provider, auth, record.UUID, meta)
		if err != nil {
			log.Warnw("Failed to store attachment", "file_name", meta.FileName, "error", err.Error())
			result.AttachmentsFailed++
			continue
		}
		if stored {
			result.AttachmentsStored++
		}
	}

	existing, err := r.attachments.ListByRecord(ctx, record.UUID)
	if err != nil {
		log.Warnw("Failed to load stored attachments", "error", err.Error())
		return
	}

	var stale []uint
	for _, att := range existing {
		if att.SourceFileID == nil {
			continue
		}
		if _, ok := reported[*att.SourceFileID]; ok {
			continue
		}
		if err := r.blobs.Delete(ctx, storage.AttachmentKey(record.UUID, att.UUID)); err != nil {
			log.Warnw("Failed to remove attachment blob", "attachment_uuid", att.UUID, "error", err.Error())
		}
		stale = append(stale, att.ID)
	}

	removed, err := r.attachments.DeleteByIDs(ctx, stale)
	if err != nil {
		log.Warnw("Failed to delete stale attachments", "error", err.Error())
		return
	}
	result.AttachmentsRemoved += int(removed)
}

// storeAttachment downloads one attachment and upserts its row.
// It reports false without error when the provider has no content for it.
func (r *Runner) storeAttachment(ctx context.Context, throttle *rate.Limiter, provider providers.Provider, auth map[string]interface{}, recordUUID string, meta providers.AttachmentMeta) (bool, error) {
	if err := throttle.Wait(ctx); err != nil {
		return false, err
	}
	content, err := provider.DownloadAttachmentContent(ctx, auth, meta)
	if err != nil {
		return false, err
	}
	if content == nil {
		return false, nil
	}

	sourceFileID := normalizeSourceFileID(meta.SourceFileID)
	attachmentUUID := ""
	if sourceFileID != nil {
		existing, err := r.attachments.FindBySourceFileID(ctx, recordUUID, *sourceFileID)
		if err != nil {
			return false, err
		}
		if existing != nil {
			attachmentUUID = existing.UUID
		}
	}
	if attachmentUUID == "" {
		attachmentUUID = uuid.NewString()
	}

	key := storage.AttachmentKey(recordUUID, attachmentUUID)
	if err := r.blobs.Write(ctx, key, content); err != nil {
		return false, err
	}

	sum := md5.Sum(content)
	name := truncate(strings.TrimSpace(meta.FileName), maxFileNameLen)
	if name == "" {
		name = defaultFileName
	}

	err = r.attachments.Upsert(ctx, &gormModels.RawDataAttachment{
		UUID:            attachmentUUID,
		RawRecordUUID:   recordUUID,
		SourceFileID:    sourceFileID,
		FileName:        name,
		FilePath:        key,
		FileURL:         storage.AttachmentURL(r.urlPrefix, recordUUID, attachmentUUID),
		FileType:        truncate(meta.FileType, maxFileTypeLen),
		FileSize:        int64(len(content)),
		FileMD5:         hex.EncodeToString(sum[:]),
		SourceCreatedAt: meta.SourceCreatedAt,
		SourceUpdatedAt: meta.SourceUpdatedAt,
	})
	return err == nil, err
}

// normalizeSourceFileID truncates the id to the column size. Blank ids count as absent.
func normalizeSourceFileID(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	trimmed = truncate(trimmed, maxSourceFileIDLen)
	return &trimmed
}

// truncate cuts s to at most max bytes without splitting a rune
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	s = s[:max]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
