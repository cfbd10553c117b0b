package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Provider is the contract every platform driver implements.
// Implementations must be safe for concurrent use by different configs.
type Provider interface {
	// Platform returns the platform identifier the provider serves, e.g. "jira"
	Platform() string

	// Authenticate checks credentials. Expected auth failures return false with a nil error.
	Authenticate(ctx context.Context, auth map[string]interface{}) (bool, error)

	// Collect returns every record modified in [window.Start, window.End).
	// Pagination is internal; items that fail individually are logged and left out.
	Collect(ctx context.Context, auth map[string]interface{}, window Window, ownerID, platform string, opts CollectOptions) ([]Item, error)

	// Validate returns the subset of knownIDs that no longer exist upstream.
	// Any error means the caller must not mark anything deleted.
	Validate(ctx context.Context, auth map[string]interface{}, window Window, ownerID, platform string, knownIDs []string) ([]string, error)

	// FetchAttachments lists the attachments of a stored record, from its payload where possible
	FetchAttachments(ctx context.Context, auth map[string]interface{}, record StoredRecord) ([]AttachmentMeta, error)

	// DownloadAttachmentContent returns the bytes of an attachment. Nil content means skip it.
	DownloadAttachmentContent(ctx context.Context, auth map[string]interface{}, meta AttachmentMeta) ([]byte, error)
}

// ProjectLister is implemented by providers that can enumerate the upstream projects
// a config may narrow collection to through project_keys.
type ProjectLister interface {
	ListProjects(ctx context.Context, auth map[string]interface{}) ([]Project, error)
}

// Project is one selectable upstream scope
type Project struct {
	Key  string `json:"key"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Window is a half-open time range [Start, End)
type Window struct {
	Start time.Time
	End   time.Time
}

// CollectOptions carries config settings that shape a collection
type CollectOptions struct {
	ProjectKeys []string
}

// Item is one normalized upstream record
type Item struct {
	SourceUniqueID  string
	RawData         map[string]interface{}
	FilterMetadata  map[string]interface{}
	DataHash        string // computed by the engine when empty
	SourceCreatedAt *time.Time
	SourceUpdatedAt *time.Time
}

// StoredRecord is the view of a persisted record handed back to providers
type StoredRecord struct {
	UUID           string
	SourceUniqueID string
	RawData        map[string]interface{}
}

// AttachmentMeta describes one attachment as reported upstream
type AttachmentMeta struct {
	SourceFileID    *string
	FileName        string
	FileURL         string
	FileType        string
	FileSize        int64
	SourceCreatedAt *time.Time
	SourceUpdatedAt *time.Time
}

// HashPayload is the canonical content hash of a payload: sha256 over key-sorted JSON.
func HashPayload(raw map[string]interface{}) (string, error) {
	// encoding/json writes map keys in sorted order
	b, err := json.Marshal(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
