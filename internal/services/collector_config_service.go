package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/db/repositories"
	"devmind/datacollector/internal/logging"
	"devmind/datacollector/internal/models"
	"devmind/datacollector/internal/models/dtos"
	"devmind/datacollector/internal/models/dtos/requests"
	"devmind/datacollector/internal/models/dtos/responses"
	gormModels "devmind/datacollector/internal/models/gorm"
	"devmind/datacollector/internal/providers"

	"github.com/robfig/cron/v3"
)

// Auth keys whose blank incoming value keeps the stored secret
var secretAuthKeys = []string{"password", "api_token", "app_secret", "token"}

// ScheduleSyncer keeps the schedule registry in step with stored configs
type ScheduleSyncer interface {
	Sync(config *gormModels.CollectorConfig)
	Remove(configUUID string)
}

type CollectorConfigService struct {
	configs   *repositories.CollectorConfigRepo
	registry  *providers.Registry
	schedules ScheduleSyncer
}

// NewCollectorConfigService wires the config store. schedules may be nil.
func NewCollectorConfigService(configs *repositories.CollectorConfigRepo, registry *providers.Registry, schedules ScheduleSyncer) *CollectorConfigService {
	return &CollectorConfigService{
		configs:   configs,
		registry:  registry,
		schedules: schedules,
	}
}

// SetScheduleSyncer attaches the scheduler once it exists
func (s *CollectorConfigService) SetScheduleSyncer(schedules ScheduleSyncer) {
	s.schedules = schedules
}

func (s *CollectorConfigService) List(ctx context.Context, ownerID string) ([]responses.ConfigResponse, error) {
	configs, err := s.configs.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}

	out := make([]responses.ConfigResponse, 0, len(configs))
	for i := range configs {
		out = append(out, toConfigResponse(&configs[i]))
	}
	return out, nil
}

func (s *CollectorConfigService) Get(ctx context.Context, ownerID, configUUID string) (*responses.ConfigResponse, error) {
	config, err := s.load(ctx, ownerID, configUUID)
	if err != nil {
		return nil, err
	}
	resp := toConfigResponse(config)
	return &resp, nil
}

// Create stores a new config with an empty runtime state and registers its schedules
func (s *CollectorConfigService) Create(ctx context.Context, ownerID string, req *requests.CreateConfigRequest) (*responses.ConfigResponse, error) {
	platform := strings.ToLower(strings.TrimSpace(req.Platform))
	if platform == "" {
		return nil, malformed("platform is required")
	}

	value := req.Value.Clone()
	// runtime state belongs to the engine
	value["runtime_state"] = dtos.EmptyRuntimeState()

	if err := checkValue(value); err != nil {
		return nil, err
	}

	enabled := true
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}
	key := strings.TrimSpace(req.Key)
	if key == "" {
		key = platform
	}

	config := &gormModels.CollectorConfig{
		OwnerID:   ownerID,
		Platform:  platform,
		Key:       key,
		Value:     value,
		IsEnabled: enabled,
	}
	if err := s.configs.Create(ctx, config); err != nil {
		if errors.Is(err, repositories.ErrConfigExists) {
			return nil, newServiceError(constants.ErrCodeConfigExists, err)
		}
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}

	logging.Info("Collector config created", "config_uuid", config.UUID, "owner_id", ownerID, "platform", platform)

	if s.schedules != nil {
		s.schedules.Sync(config)
	}
	resp := toConfigResponse(config)
	return &resp, nil
}

// Update applies an edit guarded by the caller's version
func (s *CollectorConfigService) Update(ctx context.Context, ownerID, configUUID string, req *requests.UpdateConfigRequest) (*responses.ConfigResponse, error) {
	if req.Version < 1 {
		return nil, malformed("version is required")
	}

	current, err := s.load(ctx, ownerID, configUUID)
	if err != nil {
		return nil, err
	}

	key := current.Key
	if req.Key != nil {
		key = strings.TrimSpace(*req.Key)
	}
	enabled := current.IsEnabled
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}

	value := current.Value.Clone()
	if req.Value != nil {
		value = MergeValue(current.Value, req.Value)
	}
	if err := checkValue(value); err != nil {
		return nil, err
	}

	if _, err := s.configs.UpdateWithVersion(ctx, current.ID, req.Version, key, value, enabled); err != nil {
		switch {
		case errors.Is(err, repositories.ErrVersionConflict):
			return nil, newServiceError(constants.ErrCodeVersionConflict, err)
		case errors.Is(err, repositories.ErrNotFound):
			return nil, newServiceError(constants.ErrCodeConfigNotFound, err)
		}
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}

	updated, err := s.load(ctx, ownerID, configUUID)
	if err != nil {
		return nil, err
	}

	logging.Info("Collector config updated", "config_uuid", updated.UUID, "version", updated.Version)

	if s.schedules != nil {
		s.schedules.Sync(updated)
	}
	resp := toConfigResponse(updated)
	return &resp, nil
}

func (s *CollectorConfigService) Delete(ctx context.Context, ownerID, configUUID string) error {
	config, err := s.load(ctx, ownerID, configUUID)
	if err != nil {
		return err
	}

	if err := s.configs.Delete(ctx, config.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return newServiceError(constants.ErrCodeConfigNotFound, err)
		}
		return newServiceError(constants.ErrCodeInternal, err)
	}

	if s.schedules != nil {
		s.schedules.Remove(config.UUID)
	}
	logging.Info("Collector config deleted", "config_uuid", config.UUID, "owner_id", ownerID)
	return nil
}

// ValidateCredentials checks a platform and value pair without persisting anything
func (s *CollectorConfigService) ValidateCredentials(ctx context.Context, platform string, value models.JSONB) (*responses.CredentialCheckResponse, error) {
	if strings.TrimSpace(platform) == "" {
		return nil, malformed("platform is required")
	}
	if value == nil {
		return nil, malformed("value is required")
	}
	return s.authenticate(ctx, platform, value), nil
}

// ValidateStoredCredentials tests the credentials of an existing config
func (s *CollectorConfigService) ValidateStoredCredentials(ctx context.Context, ownerID, configUUID string) (*responses.CredentialCheckResponse, error) {
	config, err := s.load(ctx, ownerID, configUUID)
	if err != nil {
		return nil, err
	}
	return s.authenticate(ctx, config.Platform, config.Value), nil
}

// FetchProjects lists the upstream projects a config can be narrowed to. With ConfigUUID
// set the stored value is used and the platform must match it. Platforms that cannot
// enumerate projects return an empty list.
func (s *CollectorConfigService) FetchProjects(ctx context.Context, ownerID string, req *requests.FetchProjectsRequest) (*responses.ProjectListResponse, error) {
	platform := strings.TrimSpace(req.Platform)
	value := req.Value
	if req.ConfigUUID != "" {
		config, err := s.load(ctx, ownerID, req.ConfigUUID)
		if err != nil {
			return nil, err
		}
		if platform != "" && !strings.EqualFold(platform, config.Platform) {
			return nil, malformed("platform does not match the stored config")
		}
		platform = config.Platform
		value = config.Value
	}
	if platform == "" {
		return nil, malformed("platform is required")
	}
	if value == nil {
		return nil, malformed("value is required")
	}

	provider, ok := s.registry.Get(platform)
	if !ok {
		return nil, newServiceError(constants.ErrCodeUnknownPlatform, nil)
	}

	out := &responses.ProjectListResponse{Projects: []responses.ProjectOption{}}
	lister, ok := provider.(providers.ProjectLister)
	if !ok {
		return out, nil
	}

	projects, err := lister.ListProjects(ctx, authFromValue(value))
	if err != nil {
		logging.Warn("Project listing failed", "platform", platform, "error", err.Error())
		return nil, newServiceError(constants.ErrCodeProjectListFailed, err)
	}
	for _, p := range projects {
		out.Projects = append(out.Projects, responses.ProjectOption{Key: p.Key, ID: p.ID, Name: p.Name})
	}
	return out, nil
}

func (s *CollectorConfigService) authenticate(ctx context.Context, platform string, value models.JSONB) *responses.CredentialCheckResponse {
	provider, ok := s.registry.Get(platform)
	if !ok {
		return &responses.CredentialCheckResponse{Valid: false, Message: constants.GetErrorMessage(constants.ErrCodeUnknownPlatform)}
	}

	valid, err := provider.Authenticate(ctx, authFromValue(value))
	if err != nil {
		return &responses.CredentialCheckResponse{Valid: false, Message: err.Error()}
	}
	if !valid {
		return &responses.CredentialCheckResponse{Valid: false, Message: constants.GetErrorMessage(constants.ErrCodeAuthenticationFailed)}
	}
	return &responses.CredentialCheckResponse{Valid: true, Message: "Connection OK."}
}

func (s *CollectorConfigService) load(ctx context.Context, ownerID, configUUID string) (*gormModels.CollectorConfig, error) {
	config, err := s.configs.GetForOwner(ctx, ownerID, configUUID)
	if err != nil {
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}
	if config == nil {
		return nil, newServiceError(constants.ErrCodeConfigNotFound, nil)
	}
	return config, nil
}

// MergeValue shallow-merges incoming over current. auth is merged per field and a blank
// incoming secret keeps the stored one. The stored runtime_state always survives.
func MergeValue(current, incoming models.JSONB) models.JSONB {
	merged := current.Clone()
	for k, v := range incoming {
		merged[k] = v
	}

	if rs, ok := current["runtime_state"]; ok {
		merged["runtime_state"] = rs
	} else {
		merged["runtime_state"] = dtos.EmptyRuntimeState()
	}

	currentAuth, okCurrent := current["auth"].(map[string]interface{})
	incomingAuth, okIncoming := incoming["auth"].(map[string]interface{})
	if okCurrent && okIncoming {
		auth := make(map[string]interface{}, len(currentAuth)+len(incomingAuth))
		for k, v := range currentAuth {
			auth[k] = v
		}
		for k, v := range incomingAuth {
			auth[k] = v
		}
		for _, key := range secretAuthKeys {
			if str, _ := auth[key].(string); strings.TrimSpace(str) == "" {
				if stored, ok := currentAuth[key]; ok {
					auth[key] = stored
				}
			}
		}
		merged["auth"] = auth
	}
	return merged
}

// checkValue runs the schema and cron checks shared by create and update
func checkValue(value models.JSONB) error {
	if err := ValidateValue(value); err != nil {
		return &ServiceError{
			Code:    constants.ErrCodeConfigMalformed,
			Message: fmt.Sprintf("invalid value: %v", err),
			Err:     err,
		}
	}
	for _, field := range []string{"schedule_cron", "cleanup_cron"} {
		expr, _ := value[field].(string)
		if expr == "" {
			continue
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			return &ServiceError{
				Code:    constants.ErrCodeInvalidCron,
				Message: fmt.Sprintf("invalid %s: %v", field, err),
				Err:     err,
			}
		}
	}
	return nil
}

func authFromValue(value models.JSONB) map[string]interface{} {
	return dtos.SettingsFromValue(value).Auth
}

// toConfigResponse masks stored secrets. A blank secret on update keeps the stored one,
// so clients can send the masked value back unchanged.
func toConfigResponse(config *gormModels.CollectorConfig) responses.ConfigResponse {
	value := config.Value.Clone()
	if auth, ok := value["auth"].(map[string]interface{}); ok {
		masked := make(map[string]interface{}, len(auth))
		for k, v := range auth {
			masked[k] = v
		}
		for _, key := range secretAuthKeys {
			if _, ok := masked[key]; ok {
				masked[key] = ""
			}
		}
		value["auth"] = masked
	}

	return responses.ConfigResponse{
		UUID:      config.UUID,
		Platform:  config.Platform,
		Key:       config.Key,
		Value:     value,
		IsEnabled: config.IsEnabled,
		Version:   config.Version,
		CreatedAt: config.CreatedAt,
		UpdatedAt: config.UpdatedAt,
	}
}
