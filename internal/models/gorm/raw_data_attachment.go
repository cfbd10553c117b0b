package gorm

import (
	"time"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"
)

// RawDataAttachment is a file attached to a RawDataRecord.
// (RawRecordUUID, SourceFileID) is unique only when SourceFileID is set.
type RawDataAttachment struct {
	ID              uint       `gorm:"column:id;primaryKey;autoIncrement"`
	UUID            string     `gorm:"column:uuid;type:uuid;uniqueIndex;not null"`
	RawRecordUUID   string     `gorm:"column:raw_record_uuid;type:uuid;not null;index;uniqueIndex:uq_attachment_source_file,priority:1,where:source_file_id IS NOT NULL"`
	SourceFileID    *string    `gorm:"column:source_file_id;type:varchar(255);uniqueIndex:uq_attachment_source_file,priority:2,where:source_file_id IS NOT NULL"`
	FileName        string     `gorm:"column:file_name;type:varchar(512);not null"`
	FilePath        string     `gorm:"column:file_path;type:varchar(1024);not null"`
	FileURL         string     `gorm:"column:file_url;type:varchar(1024)"`
	FileType        string     `gorm:"column:file_type;type:varchar(128)"`
	FileSize        int64      `gorm:"column:file_size"`
	FileMD5         string     `gorm:"column:file_md5;type:varchar(32)"`
	SourceCreatedAt *time.Time `gorm:"column:source_created_at"`
	SourceUpdatedAt *time.Time `gorm:"column:source_updated_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (RawDataAttachment) TableName() string {
	return "data_collector_raw_data_attachment"
}

func (a *RawDataAttachment) BeforeCreate(tx *gormlib.DB) error {
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
	return nil
}
