package constants

type (
	APIStatus   string
	CachePrefix string
)

const (
	APIStatusOk    APIStatus = "ok"
	APIStatusError APIStatus = "error"

	CachePrefixRecordStats CachePrefix = "RECORD_STATS_"
	CachePrefixRedisCache  CachePrefix = "collector:cache:"
)
