package entities

// PlatformRecordCount is one row of the per-platform record breakdown
type PlatformRecordCount struct {
	Platform string `db:"platform" json:"platform"`
	Total    int64  `db:"total" json:"total"`
	Deleted  int64  `db:"deleted" json:"deleted"`
}

// AttachmentTotals is the attachment footprint of an owner
type AttachmentTotals struct {
	Attachments int64 `db:"attachments"`
	Bytes       int64 `db:"bytes"`
}

type RecordStats struct {
	ByPlatform       []PlatformRecordCount `json:"by_platform"`
	Total            int64                 `json:"total"`
	Deleted          int64                 `json:"deleted"`
	Attachments      int64                 `json:"attachments"`
	AttachmentsBytes int64                 `json:"attachments_bytes"`
}
