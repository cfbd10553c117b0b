package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"devmind/datacollector/internal/models"
	gormModels "devmind/datacollector/internal/models/gorm"

	"gorm.io/gorm"
)

// RecordPayload is the hash-gated part of a record
type RecordPayload struct {
	RawData         models.JSONB
	FilterMetadata  models.JSONB
	DataHash        string
	SourceCreatedAt *time.Time
	SourceUpdatedAt *time.Time
}

// RecordFilter narrows record listings
type RecordFilter struct {
	OwnerID   string
	Platform  string
	IsDeleted *bool
	Page      int
	PageSize  int
}

type RawDataRecordRepo struct {
	db *gorm.DB
}

func NewRawDataRecordRepo(db *gorm.DB) *RawDataRecordRepo {
	return &RawDataRecordRepo{db: db}
}

// WithTx returns a repo bound to an open transaction
func (r *RawDataRecordRepo) WithTx(tx *gorm.DB) *RawDataRecordRepo {
	return &RawDataRecordRepo{db: tx}
}

// FindByNaturalKey returns nil, nil when the record has never been collected
func (r *RawDataRecordRepo) FindByNaturalKey(ctx context.Context, ownerID, platform, sourceUniqueID string) (*gormModels.RawDataRecord, error) {
	var record gormModels.RawDataRecord

	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND platform = ? AND source_unique_id = ?", ownerID, platform, sourceUniqueID).
		First(&record).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find record: %w", err)
	}
	return &record, nil
}

// GetByUUID returns nil, nil when absent
func (r *RawDataRecordRepo) GetByUUID(ctx context.Context, recordUUID string) (*gormModels.RawDataRecord, error) {
	var record gormModels.RawDataRecord

	err := r.db.WithContext(ctx).Where("uuid = ?", recordUUID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &record, nil
}

// GetForOwner loads a record with its attachments, scoped to the owner
func (r *RawDataRecordRepo) GetForOwner(ctx context.Context, ownerID, recordUUID string) (*gormModels.RawDataRecord, error) {
	var record gormModels.RawDataRecord

	err := r.db.WithContext(ctx).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("uuid = ? AND owner_id = ?", recordUUID, ownerID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &record, nil
}

// Create inserts a newly seen record
func (r *RawDataRecordRepo) Create(ctx context.Context, record *gormModels.RawDataRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

// UpdatePayload replaces the payload fields and marks the record as seen at collectedAt
func (r *RawDataRecordRepo) UpdatePayload(ctx context.Context, recordUUID string, payload RecordPayload, collectedAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&gormModels.RawDataRecord{}).
		Where("uuid = ?", recordUUID).
		Updates(map[string]interface{}{
			"raw_data":          payload.RawData,
			"filter_metadata":   payload.FilterMetadata,
			"data_hash":         payload.DataHash,
			"source_created_at": payload.SourceCreatedAt,
			"source_updated_at": payload.SourceUpdatedAt,
			"last_collected_at": collectedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	return nil
}

// TouchCollected only moves last_collected_at
func (r *RawDataRecordRepo) TouchCollected(ctx context.Context, recordUUID string, collectedAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&gormModels.RawDataRecord{}).
		Where("uuid = ?", recordUUID).
		UpdateColumn("last_collected_at", collectedAt).Error
	if err != nil {
		return fmt.Errorf("failed to touch record: %w", err)
	}
	return nil
}

// List pages through an owner's records, most recently collected first
func (r *RawDataRecordRepo) List(ctx context.Context, filter RecordFilter) ([]gormModels.RawDataRecord, int64, error) {
	q := r.db.WithContext(ctx).Model(&gormModels.RawDataRecord{}).Where("owner_id = ?", filter.OwnerID)
	if filter.Platform != "" {
		q = q.Where("platform = ?", filter.Platform)
	}
	if filter.IsDeleted != nil {
		q = q.Where("is_deleted = ?", *filter.IsDeleted)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 20
	}

	var records []gormModels.RawDataRecord
	err := q.Order("last_collected_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list records: %w", err)
	}
	return records, total, nil
}

// ListActiveInWindow returns non-deleted records last collected within [start, end]
func (r *RawDataRecordRepo) ListActiveInWindow(ctx context.Context, ownerID, platform string, start, end time.Time) ([]gormModels.RawDataRecord, error) {
	var records []gormModels.RawDataRecord

	err := r.db.WithContext(ctx).
		Select("uuid", "source_unique_id").
		Where("owner_id = ? AND platform = ? AND is_deleted = ?", ownerID, platform, false).
		Where("last_collected_at >= ? AND last_collected_at <= ?", start, end).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list records for validation: %w", err)
	}
	return records, nil
}

// MarkDeleted flags the given source ids as removed upstream
func (r *RawDataRecordRepo) MarkDeleted(ctx context.Context, ownerID, platform string, sourceUniqueIDs []string) (int64, error) {
	if len(sourceUniqueIDs) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).
		Model(&gormModels.RawDataRecord{}).
		Where("owner_id = ? AND platform = ? AND source_unique_id IN ?", ownerID, platform, sourceUniqueIDs).
		Update("is_deleted", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark records deleted: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ListExpiredUUIDs returns records last collected before cutoff
func (r *RawDataRecordRepo) ListExpiredUUIDs(ctx context.Context, ownerID, platform string, cutoff time.Time) ([]string, error) {
	var uuids []string

	err := r.db.WithContext(ctx).
		Model(&gormModels.RawDataRecord{}).
		Where("owner_id = ? AND platform = ? AND last_collected_at < ?", ownerID, platform, cutoff).
		Pluck("uuid", &uuids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired records: %w", err)
	}
	return uuids, nil
}

// DeleteByUUIDs removes records. Attachment rows go with them.
func (r *RawDataRecordRepo) DeleteByUUIDs(ctx context.Context, uuids []string) (int64, error) {
	if len(uuids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("raw_record_uuid IN ?", uuids).Delete(&gormModels.RawDataAttachment{}).Error; err != nil {
			return err
		}
		result := tx.Where("uuid IN ?", uuids).Delete(&gormModels.RawDataRecord{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}
	return deleted, nil
}

// FindAttachmentBackfill scans (owner, platform) records whose payload lists more
// attachments than are stored. Records in exclude are skipped.
func (r *RawDataRecordRepo) FindAttachmentBackfill(ctx context.Context, ownerID, platform string, exclude map[string]struct{}) ([]gormModels.RawDataRecord, error) {
	var candidates []gormModels.RawDataRecord
	var batch []gormModels.RawDataRecord

	result := r.db.WithContext(ctx).
		Where("owner_id = ? AND platform = ?", ownerID, platform).
		FindInBatches(&batch, 200, func(tx *gorm.DB, _ int) error {
			uuids := make([]string, 0, len(batch))
			for _, rec := range batch {
				if _, skip := exclude[rec.UUID]; skip {
					continue
				}
				if rec.ReportedAttachmentCount() > 0 {
					uuids = append(uuids, rec.UUID)
				}
			}
			if len(uuids) == 0 {
				return nil
			}

			stored, err := countAttachments(ctx, r.db, uuids)
			if err != nil {
				return err
			}
			for _, rec := range batch {
				if _, skip := exclude[rec.UUID]; skip {
					continue
				}
				if int64(rec.ReportedAttachmentCount()) > stored[rec.UUID] {
					candidates = append(candidates, rec)
				}
			}
			return nil
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to scan attachment backfill: %w", result.Error)
	}
	return candidates, nil
}

type attachmentCount struct {
	RawRecordUUID string
	Total         int64
}

func countAttachments(ctx context.Context, db *gorm.DB, recordUUIDs []string) (map[string]int64, error) {
	var rows []attachmentCount
	err := db.WithContext(ctx).
		Model(&gormModels.RawDataAttachment{}).
		Select("raw_record_uuid, COUNT(*) AS total").
		Where("raw_record_uuid IN ?", recordUUIDs).
		Group("raw_record_uuid").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count attachments: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.RawRecordUUID] = row.Total
	}
	return out, nil
}
