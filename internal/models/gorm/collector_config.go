package gorm

import (
	"time"

	"devmind/datacollector/internal/models"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"
)

// CollectorConfig is one owner's collection settings for one platform.
// Value holds auth, schedules, ranges and the engine-owned runtime_state.
type CollectorConfig struct {
	ID        string       `gorm:"column:id;primaryKey;type:uuid"`
	UUID      string       `gorm:"column:uuid;type:uuid;uniqueIndex;not null"`
	OwnerID   string       `gorm:"column:owner_id;type:varchar(64);not null;uniqueIndex:uq_collector_owner_platform"`
	Platform  string       `gorm:"column:platform;type:varchar(50);not null;uniqueIndex:uq_collector_owner_platform"`
	Key       string       `gorm:"column:key;type:varchar(255)"`
	Value     models.JSONB `gorm:"column:value;type:jsonb;not null"`
	IsEnabled bool         `gorm:"column:is_enabled;not null"`
	Version   int          `gorm:"column:version;not null"`
	CreatedAt time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (CollectorConfig) TableName() string {
	return "data_collector_config"
}

func (c *CollectorConfig) BeforeCreate(tx *gormlib.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.UUID == "" {
		c.UUID = uuid.NewString()
	}
	if c.Version == 0 {
		c.Version = 1
	}
	return nil
}
