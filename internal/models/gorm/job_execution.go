package gorm

import (
	"time"

	"devmind/datacollector/internal/models"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"
)

// JobExecution tracks one dispatched collect/validate/cleanup run
type JobExecution struct {
	TaskID      string       `gorm:"column:task_id;primaryKey;type:uuid"`
	JobKind     string       `gorm:"column:job_kind;type:varchar(20);not null"`
	ConfigUUID  string       `gorm:"column:config_uuid;type:uuid;not null;index"`
	OwnerID     string       `gorm:"column:owner_id;type:varchar(64);index"`
	Status      string       `gorm:"column:status;type:varchar(20);not null"`
	TriggeredBy string       `gorm:"column:triggered_by;type:varchar(20)"`
	Params      models.JSONB `gorm:"column:params;type:jsonb"`
	Result      models.JSONB `gorm:"column:result;type:jsonb"`
	Error       string       `gorm:"column:error;type:text"`
	StartedAt   *time.Time   `gorm:"column:started_at"`
	FinishedAt  *time.Time   `gorm:"column:finished_at"`
	CreatedAt   time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (JobExecution) TableName() string {
	return "data_collector_job_execution"
}

func (j *JobExecution) BeforeCreate(tx *gormlib.DB) error {
	if j.TaskID == "" {
		j.TaskID = uuid.NewString()
	}
	return nil
}

// AllModels lists every table the service owns, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&CollectorConfig{},
		&RawDataRecord{},
		&RawDataAttachment{},
		&JobExecution{},
	}
}
