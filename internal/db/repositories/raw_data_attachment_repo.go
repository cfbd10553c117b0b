package repositories

import (
	"context"
	"errors"
	"fmt"

	gormModels "devmind/datacollector/internal/models/gorm"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RawDataAttachmentRepo struct {
	db *gorm.DB
}

func NewRawDataAttachmentRepo(db *gorm.DB) *RawDataAttachmentRepo {
	return &RawDataAttachmentRepo{db: db}
}

// ListByRecord returns all attachments of a record
func (r *RawDataAttachmentRepo) ListByRecord(ctx context.Context, recordUUID string) ([]gormModels.RawDataAttachment, error) {
	var attachments []gormModels.RawDataAttachment

	err := r.db.WithContext(ctx).
		Where("raw_record_uuid = ?", recordUUID).
		Order("id ASC").
		Find(&attachments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return attachments, nil
}

// ListByRecords returns attachments of several records
func (r *RawDataAttachmentRepo) ListByRecords(ctx context.Context, recordUUIDs []string) ([]gormModels.RawDataAttachment, error) {
	if len(recordUUIDs) == 0 {
		return nil, nil
	}

	var attachments []gormModels.RawDataAttachment
	err := r.db.WithContext(ctx).
		Where("raw_record_uuid IN ?", recordUUIDs).
		Find(&attachments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return attachments, nil
}

// GetForRecord returns nil, nil when the attachment does not belong to the record
func (r *RawDataAttachmentRepo) GetForRecord(ctx context.Context, recordUUID, attachmentUUID string) (*gormModels.RawDataAttachment, error) {
	var attachment gormModels.RawDataAttachment

	err := r.db.WithContext(ctx).
		Where("raw_record_uuid = ? AND uuid = ?", recordUUID, attachmentUUID).
		First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return &attachment, nil
}

// Upsert stores an attachment row.
// Rows with a source file id are keyed on (raw_record_uuid, source_file_id) and keep their
// existing uuid; rows without one are always inserted.
func (r *RawDataAttachmentRepo) Upsert(ctx context.Context, attachment *gormModels.RawDataAttachment) error {
	if attachment.SourceFileID == nil {
		if err := r.db.WithContext(ctx).Create(attachment).Error; err != nil {
			return fmt.Errorf("failed to insert attachment: %w", err)
		}
		return nil
	}

	existing, err := r.FindBySourceFileID(ctx, attachment.RawRecordUUID, *attachment.SourceFileID)
	if err != nil {
		return err
	}
	if existing != nil {
		attachment.ID = existing.ID
		attachment.UUID = existing.UUID
		attachment.CreatedAt = existing.CreatedAt
		err := r.db.WithContext(ctx).
			Model(&gormModels.RawDataAttachment{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"file_name":         attachment.FileName,
				"file_path":         attachment.FilePath,
				"file_url":          attachment.FileURL,
				"file_type":         attachment.FileType,
				"file_size":         attachment.FileSize,
				"file_md5":          attachment.FileMD5,
				"source_created_at": attachment.SourceCreatedAt,
				"source_updated_at": attachment.SourceUpdatedAt,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update attachment: %w", err)
		}
		return nil
	}

	// ON CONFLICT covers a concurrent insert of the same source file
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "raw_record_uuid"},
				{Name: "source_file_id"},
			},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "source_file_id IS NOT NULL"},
			}},
			DoUpdates: clause.AssignmentColumns([]string{
				"file_name",
				"file_path",
				"file_url",
				"file_type",
				"file_size",
				"file_md5",
				"source_created_at",
				"source_updated_at",
				"updated_at",
			}),
		}).
		Create(attachment).Error
	if err != nil {
		return fmt.Errorf("failed to upsert attachment: %w", err)
	}
	return nil
}

// FindBySourceFileID returns nil, nil when the record has no row for that source file
func (r *RawDataAttachmentRepo) FindBySourceFileID(ctx context.Context, recordUUID, sourceFileID string) (*gormModels.RawDataAttachment, error) {
	var attachment gormModels.RawDataAttachment

	err := r.db.WithContext(ctx).
		Where("raw_record_uuid = ? AND source_file_id = ?", recordUUID, sourceFileID).
		First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find attachment: %w", err)
	}
	return &attachment, nil
}

// DeleteByIDs removes attachment rows by primary key
func (r *RawDataAttachmentRepo) DeleteByIDs(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&gormModels.RawDataAttachment{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete attachments: %w", result.Error)
	}
	return result.RowsAffected, nil
}
