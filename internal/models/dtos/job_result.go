package dtos

// JobResult is the outcome of a collect, validate or cleanup run.
// Skipped runs are successful runs that did no work because another run held the lock.
type JobResult struct {
	Success    bool   `json:"success"`
	Skipped    bool   `json:"skipped,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
	JobKind    string `json:"job_kind"`
	ConfigUUID string `json:"config_uuid"`
	Platform   string `json:"platform,omitempty"`

	WindowStart string `json:"window_start,omitempty"`
	WindowEnd   string `json:"window_end,omitempty"`

	RecordsCreated          int `json:"records_created"`
	RecordsUpdated          int `json:"records_updated"`
	RecordsSkippedNoID      int `json:"records_skipped_no_id"`
	RecordsSkippedUnchanged int `json:"records_skipped_unchanged"`
	RecordsDeleted          int `json:"records_deleted"`
	RecordsFailed           int `json:"records_failed"`

	AttachmentsStored  int `json:"attachments_stored"`
	AttachmentsRemoved int `json:"attachments_removed"`
	AttachmentsFailed  int `json:"attachments_failed"`
	RecordsBackfilled  int `json:"records_backfilled"`

	RecordsChecked int `json:"records_checked,omitempty"`
}

// ToMap is used to persist the result on the job execution row.
func (r *JobResult) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"success":                   r.Success,
		"skipped":                   r.Skipped,
		"reason":                    r.Reason,
		"error":                     r.Error,
		"job_kind":                  r.JobKind,
		"config_uuid":               r.ConfigUUID,
		"platform":                  r.Platform,
		"window_start":              r.WindowStart,
		"window_end":                r.WindowEnd,
		"records_created":           r.RecordsCreated,
		"records_updated":           r.RecordsUpdated,
		"records_skipped_no_id":     r.RecordsSkippedNoID,
		"records_skipped_unchanged": r.RecordsSkippedUnchanged,
		"records_deleted":           r.RecordsDeleted,
		"records_failed":            r.RecordsFailed,
		"attachments_stored":        r.AttachmentsStored,
		"attachments_removed":       r.AttachmentsRemoved,
		"attachments_failed":        r.AttachmentsFailed,
		"records_backfilled":        r.RecordsBackfilled,
		"records_checked":           r.RecordsChecked,
	}
}
