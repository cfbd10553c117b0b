package providers

import (
	"context"

	"devmind/datacollector/internal/constants"
)

// FeishuProvider is the approval-system driver. Its collection is not wired to an
// upstream API yet, so it only checks that credentials are present.
type FeishuProvider struct{}

func NewFeishuProvider() *FeishuProvider {
	return &FeishuProvider{}
}

func (p *FeishuProvider) Platform() string {
	return constants.PlatformFeishu
}

func (p *FeishuProvider) Authenticate(ctx context.Context, auth map[string]interface{}) (bool, error) {
	appID, _ := auth["app_id"].(string)
	secret, _ := auth["app_secret"].(string)
	return appID != "" && secret != "", nil
}

func (p *FeishuProvider) Collect(ctx context.Context, auth map[string]interface{}, window Window, ownerID, platform string, opts CollectOptions) ([]Item, error) {
	return []Item{}, nil
}

func (p *FeishuProvider) Validate(ctx context.Context, auth map[string]interface{}, window Window, ownerID, platform string, knownIDs []string) ([]string, error) {
	return []string{}, nil
}

func (p *FeishuProvider) FetchAttachments(ctx context.Context, auth map[string]interface{}, record StoredRecord) ([]AttachmentMeta, error) {
	return nil, nil
}

func (p *FeishuProvider) DownloadAttachmentContent(ctx context.Context, auth map[string]interface{}, meta AttachmentMeta) ([]byte, error) {
	return nil, nil
}
