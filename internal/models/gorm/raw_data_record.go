package gorm

import (
	"time"

	"devmind/datacollector/internal/models"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"
)

// RawDataRecord is the stored snapshot of one upstream record.
// (OwnerID, Platform, SourceUniqueID) is the natural key.
type RawDataRecord struct {
	UUID             string       `gorm:"column:uuid;primaryKey;type:uuid"`
	OwnerID          string       `gorm:"column:owner_id;type:varchar(64);not null;uniqueIndex:uq_raw_record_natural_key,priority:1;index:idx_raw_record_owner_platform,priority:1"`
	Platform         string       `gorm:"column:platform;type:varchar(50);not null;uniqueIndex:uq_raw_record_natural_key,priority:2;index:idx_raw_record_owner_platform,priority:2"`
	SourceUniqueID   string       `gorm:"column:source_unique_id;type:varchar(255);not null;uniqueIndex:uq_raw_record_natural_key,priority:3"`
	RawData          models.JSONB `gorm:"column:raw_data;type:jsonb;not null"`
	FilterMetadata   models.JSONB `gorm:"column:filter_metadata;type:jsonb"`
	DataHash         string       `gorm:"column:data_hash;type:varchar(64);not null;index"`
	IsDeleted        bool         `gorm:"column:is_deleted;not null"`
	SourceCreatedAt  *time.Time   `gorm:"column:source_created_at"`
	SourceUpdatedAt  *time.Time   `gorm:"column:source_updated_at"`
	FirstCollectedAt time.Time    `gorm:"column:first_collected_at;not null"`
	LastCollectedAt  time.Time    `gorm:"column:last_collected_at;not null;index"`
	CreatedAt        time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time    `gorm:"column:updated_at;autoUpdateTime"`

	// Relationships
	Attachments []RawDataAttachment `gorm:"foreignKey:RawRecordUUID;references:UUID;constraint:OnDelete:CASCADE"`
}

func (RawDataRecord) TableName() string {
	return "data_collector_raw_data_record"
}

func (r *RawDataRecord) BeforeCreate(tx *gormlib.DB) error {
	if r.UUID == "" {
		r.UUID = uuid.NewString()
	}
	return nil
}

// ReportedAttachmentCount is the number of attachment entries the upstream payload declares.
func (r *RawDataRecord) ReportedAttachmentCount() int {
	if r.RawData == nil {
		return 0
	}
	list, ok := r.RawData["attachments"].([]interface{})
	if !ok {
		return 0
	}
	return len(list)
}
