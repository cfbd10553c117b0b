package requests

import "devmind/datacollector/internal/models"

type CreateConfigRequest struct {
	Platform  string       `json:"platform"`
	Key       string       `json:"key"`
	Value     models.JSONB `json:"value"`
	IsEnabled *bool        `json:"is_enabled"`
}

// UpdateConfigRequest must carry the version the client last read
type UpdateConfigRequest struct {
	Version   int          `json:"version"`
	Key       *string      `json:"key"`
	Value     models.JSONB `json:"value"`
	IsEnabled *bool        `json:"is_enabled"`
}

// ValidateCredentialsRequest checks a config value that has not been saved yet
type ValidateCredentialsRequest struct {
	Platform string       `json:"platform"`
	Value    models.JSONB `json:"value"`
}

// FetchProjectsRequest lists projects for an unsaved value, or for a stored
// config when ConfigUUID is set
type FetchProjectsRequest struct {
	Platform   string       `json:"platform"`
	Value      models.JSONB `json:"value"`
	ConfigUUID string       `json:"config_uuid"`
}

// TriggerCollectRequest bounds are optional but must be given together
type TriggerCollectRequest struct {
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
}

type TriggerValidateRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}
