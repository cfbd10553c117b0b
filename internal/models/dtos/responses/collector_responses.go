package responses

import (
	"time"

	"devmind/datacollector/internal/models"
)

type ConfigResponse struct {
	UUID      string       `json:"uuid"`
	Platform  string       `json:"platform"`
	Key       string       `json:"key"`
	Value     models.JSONB `json:"value"`
	IsEnabled bool         `json:"is_enabled"`
	Version   int          `json:"version"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type CredentialCheckResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

type ProjectOption struct {
	Key  string `json:"key"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type ProjectListResponse struct {
	Projects []ProjectOption `json:"projects"`
}

type JobDispatchResponse struct {
	TaskID     string `json:"task_id"`
	JobKind    string `json:"job_kind"`
	ConfigUUID string `json:"config_uuid"`
	Status     string `json:"status"`
}

type JobExecutionResponse struct {
	TaskID      string                 `json:"task_id"`
	JobKind     string                 `json:"job_kind"`
	ConfigUUID  string                 `json:"config_uuid"`
	Status      string                 `json:"status"`
	TriggeredBy string                 `json:"triggered_by"`
	Params      map[string]interface{} `json:"params,omitempty"`
	Result      map[string]interface{} `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	FinishedAt  *time.Time             `json:"finished_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

type RecordSummary struct {
	UUID             string     `json:"uuid"`
	Platform         string     `json:"platform"`
	SourceUniqueID   string     `json:"source_unique_id"`
	Title            string     `json:"title"`
	IsDeleted        bool       `json:"is_deleted"`
	AttachmentCount  int        `json:"attachment_count"`
	SourceUpdatedAt  *time.Time `json:"source_updated_at,omitempty"`
	FirstCollectedAt time.Time  `json:"first_collected_at"`
	LastCollectedAt  time.Time  `json:"last_collected_at"`
}

type RecordListResponse struct {
	Items    []RecordSummary `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

type AttachmentResponse struct {
	UUID         string  `json:"uuid"`
	SourceFileID *string `json:"source_file_id"`
	FileName     string  `json:"file_name"`
	FileType     string  `json:"file_type"`
	FileSize     int64   `json:"file_size"`
	FileMD5      string  `json:"file_md5"`
	FileURL      string  `json:"file_url"`
	DownloadURL  string  `json:"download_url"`
}

type RecordDetailResponse struct {
	RecordSummary
	DataHash       string               `json:"data_hash"`
	RawData        models.JSONB         `json:"raw_data"`
	FilterMetadata models.JSONB         `json:"filter_metadata,omitempty"`
	Attachments    []AttachmentResponse `json:"attachments"`
}
