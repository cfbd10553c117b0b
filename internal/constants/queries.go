package constants

// Queries run through sqlx. Placeholders are written as ? and rebound per driver.
const (
	RecordCountsByPlatform = `
	SELECT platform,
	       COUNT(*) AS total,
	       COALESCE(SUM(CASE WHEN is_deleted THEN 1 ELSE 0 END), 0) AS deleted
	FROM data_collector_raw_data_record
	WHERE owner_id = ?
	GROUP BY platform
	ORDER BY platform
	`

	AttachmentTotalsByOwner = `
	SELECT COUNT(a.id) AS attachments,
	       COALESCE(SUM(a.file_size), 0) AS bytes
	FROM data_collector_raw_data_attachment a
	JOIN data_collector_raw_data_record r ON r.uuid = a.raw_record_uuid
	WHERE r.owner_id = ?
	`
)
