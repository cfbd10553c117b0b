package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/logging"
	"devmind/datacollector/internal/models"

	"golang.org/x/time/rate"
)

const (
	feedPageSize      = 100
	feedValidateBatch = 100

	// DefaultMaxAttachmentBytes caps a single attachment download
	DefaultMaxAttachmentBytes = 100 << 20
)

// HTTPFeedProvider speaks a small JSON feed protocol:
//
//	GET  {base_url}/ping
//	GET  {base_url}/items?updated_from=&updated_to=&offset=&limit=[&project=]
//	GET  {base_url}/items/{id}
//	POST {base_url}/items/exists  {"ids": [...]} -> {"existing": [...]}
//	GET  {base_url}/projects      -> {"projects": [{"key", "id", "name"}]}
//
// Attachments are read from the item's "attachments" array and downloaded from their "content" URL.
// Credentials are only sent to the host of base_url.
type HTTPFeedProvider struct {
	client        *http.Client
	itemLimit     rate.Limit
	maxAttachment int64
}

// NewHTTPFeedProvider creates a feed provider that waits requestDelay between per-item calls
// of one collection. A zero delay disables throttling.
func NewHTTPFeedProvider(client *http.Client, requestDelay time.Duration) *HTTPFeedProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	if requestDelay > 0 {
		limit = rate.Every(requestDelay)
	}
	return &HTTPFeedProvider{
		client:        client,
		itemLimit:     limit,
		maxAttachment: DefaultMaxAttachmentBytes,
	}
}

func (p *HTTPFeedProvider) Platform() string {
	return constants.PlatformHTTPFeed
}

type feedListResponse struct {
	Items      []map[string]interface{} `json:"items"`
	NextOffset string                   `json:"next_offset"`
}

type feedExistsResponse struct {
	Existing []string `json:"existing"`
}

func (p *HTTPFeedProvider) Authenticate(ctx context.Context, auth map[string]interface{}) (bool, error) {
	base, err := baseURL(auth)
	if err != nil {
		return false, nil
	}

	resp, err := p.do(ctx, auth, true, http.MethodGet, base+"/ping", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return false, nil
	}
	if err := handleHTTPError(resp); err != nil {
		return false, err
	}
	return true, nil
}

func (p *HTTPFeedProvider) Collect(ctx context.Context, auth map[string]interface{}, window Window, ownerID, platform string, opts CollectOptions) ([]Item, error) {
	base, err := baseURL(auth)
	if err != nil {
		return nil, err
	}

	projects := opts.ProjectKeys
	if len(projects) == 0 {
		projects = []string{""}
	}
	// one limiter per collection; configs never wait on each other
	limiter := rate.NewLimiter(p.itemLimit, 1)

	var items []Item
	for _, project := range projects {
		summaries, err := p.listItems(ctx, auth, base, window, project)
		if err != nil {
			return nil, err
		}

		for _, summary := range summaries {
			id := stringField(summary, "id")
			if id == "" {
				logging.Warn("Feed item without id skipped", "owner_id", ownerID, "platform", platform)
				continue
			}

			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
			detail, err := p.getItem(ctx, auth, base, id)
			if err != nil {
				logging.Warn("Failed to fetch feed item", "item_id", id, "error", err.Error())
				continue
			}

			item := Item{
				SourceUniqueID:  id,
				RawData:         detail,
				SourceCreatedAt: models.ParseTimestampValue(detail["created_at"]),
				SourceUpdatedAt: models.ParseTimestampValue(detail["updated_at"]),
			}
			if project != "" {
				item.FilterMetadata = map[string]interface{}{"project": project}
			}
			if item.DataHash, err = HashPayload(detail); err != nil {
				logging.Warn("Failed to hash feed item", "item_id", id, "error", err.Error())
				continue
			}
			items = append(items, item)
		}
	}

	return items, nil
}

func (p *HTTPFeedProvider) listItems(ctx context.Context, auth map[string]interface{}, base string, window Window, project string) ([]map[string]interface{}, error) {
	var all []map[string]interface{}
	offset := ""

	for {
		q := url.Values{}
		q.Set("updated_from", models.FormatTimestamp(window.Start))
		q.Set("updated_to", models.FormatTimestamp(window.End))
		q.Set("limit", strconv.Itoa(feedPageSize))
		if offset != "" {
			q.Set("offset", offset)
		}
		if project != "" {
			q.Set("project", project)
		}

		resp, err := p.do(ctx, auth, true, http.MethodGet, base+"/items?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}

		var page feedListResponse
		err = handleHTTPError(resp)
		if err == nil {
			err = json.NewDecoder(resp.Body).Decode(&page)
			if err != nil {
				err = &ProviderError{
					Code:    constants.ErrCodeInvalidDataFormat,
					Message: constants.GetErrorMessage(constants.ErrCodeInvalidDataFormat),
					Err:     err,
				}
			}
		}
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		all = append(all, page.Items...)
		if page.NextOffset == "" || len(page.Items) == 0 {
			return all, nil
		}
		offset = page.NextOffset
	}
}

func (p *HTTPFeedProvider) getItem(ctx context.Context, auth map[string]interface{}, base, id string) (map[string]interface{}, error) {
	resp, err := p.do(ctx, auth, true, http.MethodGet, base+"/items/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := handleHTTPError(resp); err != nil {
		return nil, err
	}

	var detail map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return detail, nil
}

func (p *HTTPFeedProvider) Validate(ctx context.Context, auth map[string]interface{}, window Window, ownerID, platform string, knownIDs []string) ([]string, error) {
	base, err := baseURL(auth)
	if err != nil {
		return nil, err
	}

	var missing []string
	for start := 0; start < len(knownIDs); start += feedValidateBatch {
		end := start + feedValidateBatch
		if end > len(knownIDs) {
			end = len(knownIDs)
		}
		batch := knownIDs[start:end]

		body, _ := json.Marshal(map[string]interface{}{"ids": batch})
		resp, err := p.do(ctx, auth, true, http.MethodPost, base+"/items/exists", body)
		if err != nil {
			return nil, err
		}

		var existsResp feedExistsResponse
		err = handleHTTPError(resp)
		if err == nil {
			err = json.NewDecoder(resp.Body).Decode(&existsResp)
		}
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		present := make(map[string]struct{}, len(existsResp.Existing))
		for _, id := range existsResp.Existing {
			present[id] = struct{}{}
		}
		for _, id := range batch {
			if _, ok := present[id]; !ok {
				missing = append(missing, id)
			}
		}
	}

	return missing, nil
}

func (p *HTTPFeedProvider) FetchAttachments(ctx context.Context, auth map[string]interface{}, record StoredRecord) ([]AttachmentMeta, error) {
	list, _ := record.RawData["attachments"].([]interface{})
	metas := make([]AttachmentMeta, 0, len(list))

	for _, entry := range list {
		att, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		meta := AttachmentMeta{
			FileName:        stringField(att, "filename"),
			FileURL:         stringField(att, "content"),
			FileType:        stringField(att, "mime_type"),
			SourceCreatedAt: models.ParseTimestampValue(att["created_at"]),
			SourceUpdatedAt: models.ParseTimestampValue(att["updated_at"]),
		}
		if id := stringField(att, "id"); id != "" {
			meta.SourceFileID = &id
		}
		if size, ok := att["size"].(float64); ok {
			meta.FileSize = int64(size)
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

func (p *HTTPFeedProvider) DownloadAttachmentContent(ctx context.Context, auth map[string]interface{}, meta AttachmentMeta) ([]byte, error) {
	if meta.FileURL == "" {
		return nil, nil
	}

	// content URLs come from the payload and may point anywhere
	base, _ := baseURL(auth)
	resp, err := p.do(ctx, auth, sameOrigin(base, meta.FileURL), http.MethodGet, meta.FileURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := handleHTTPError(resp); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, p.maxAttachment+1))
	if err != nil {
		return nil, networkError(err)
	}
	if int64(len(content)) > p.maxAttachment {
		return nil, &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: fmt.Sprintf("attachment exceeds %d bytes", p.maxAttachment),
		}
	}
	return content, nil
}

// ListProjects returns the projects the credentials can see
func (p *HTTPFeedProvider) ListProjects(ctx context.Context, auth map[string]interface{}) ([]Project, error) {
	base, err := baseURL(auth)
	if err != nil {
		return nil, err
	}

	resp, err := p.do(ctx, auth, true, http.MethodGet, base+"/projects", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := handleHTTPError(resp); err != nil {
		return nil, err
	}

	var body struct {
		Projects []map[string]interface{} `json:"projects"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: constants.GetErrorMessage(constants.ErrCodeInvalidDataFormat),
			Err:     err,
		}
	}

	projects := make([]Project, 0, len(body.Projects))
	for _, raw := range body.Projects {
		project := Project{
			Key:  stringField(raw, "key"),
			ID:   stringField(raw, "id"),
			Name: stringField(raw, "name"),
		}
		if project.Key == "" {
			continue
		}
		if project.Name == "" {
			project.Name = project.Key
		}
		projects = append(projects, project)
	}
	return projects, nil
}

func (p *HTTPFeedProvider) do(ctx context.Context, auth map[string]interface{}, withAuth bool, method, target string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if withAuth {
		if token := stringField(auth, "api_token"); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		} else if user := stringField(auth, "username"); user != "" {
			req.SetBasicAuth(user, stringField(auth, "password"))
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	return resp, nil
}

func baseURL(auth map[string]interface{}) (string, error) {
	base := strings.TrimRight(stringField(auth, "base_url"), "/")
	if base == "" {
		return "", &ProviderError{
			Code:    constants.ErrCodeInvalidCredentials,
			Message: "base_url is required",
		}
	}
	return base, nil
}

// sameOrigin reports whether target shares scheme and host with base
func sameOrigin(base, target string) bool {
	if base == "" {
		return false
	}
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	t, err := url.Parse(target)
	if err != nil {
		return false
	}
	return strings.EqualFold(b.Scheme, t.Scheme) && strings.EqualFold(b.Host, t.Host)
}

func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
