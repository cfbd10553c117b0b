package constants

// Job kinds. They double as lock namespaces and metric labels.
const (
	JobKindCollect  = "collect"
	JobKindValidate = "validate"
	JobKindCleanup  = "cleanup"
)

// Job execution states
const (
	JobStatusPending = "pending"
	JobStatusStarted = "started"
	JobStatusSuccess = "success"
	JobStatusFailure = "failure"
	JobStatusSkipped = "skipped"
)

// Triggers
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Platforms with a registered provider
const (
	PlatformJira     = "jira"
	PlatformFeishu   = "feishu"
	PlatformHTTPFeed = "httpfeed"
)

// Initial collection ranges
const (
	InitialRangeOneMonth    = "1m"
	InitialRangeThreeMonths = "3m"
)

const (
	DefaultScheduleCron  = "0 */2 * * *"
	DefaultCleanupCron   = "0 3 * * *"
	DefaultRetentionDays = 180
)

// Job queue stream
const (
	JobStream        = "collector:jobs"
	JobConsumerGroup = "collector-workers"
)
