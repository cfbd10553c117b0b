package constants

// Data Provider Error Codes
// These constants define specific error scenarios for external platforms

// Credential-related errors
const (
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeNetworkError         = "NETWORK_ERROR"
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrCodeResourceNotFound     = "RESOURCE_NOT_FOUND"
	ErrCodeUpstreamError        = "UPSTREAM_ERROR"
	ErrCodeInvalidDataFormat    = "INVALID_DATA_FORMAT"
)

// Configuration errors
const (
	ErrCodeConfigMalformed    = "CONFIG_MALFORMED"
	ErrCodeConfigNotFound     = "CONFIG_NOT_FOUND"
	ErrCodeConfigExists       = "CONFIG_EXISTS"
	ErrCodeVersionConflict    = "VERSION_CONFLICT"
	ErrCodeUnknownPlatform    = "UNKNOWN_PLATFORM"
	ErrCodeInvalidTimeRange   = "INVALID_TIME_RANGE"
	ErrCodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	ErrCodeInvalidCron        = "INVALID_CRON"
	ErrCodeProjectListFailed  = "PROJECT_LIST_FAILED"
)

// Lookup errors
const (
	ErrCodeRecordNotFound     = "RECORD_NOT_FOUND"
	ErrCodeAttachmentNotFound = "ATTACHMENT_NOT_FOUND"
	ErrCodeJobNotFound        = "JOB_NOT_FOUND"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// Error Messages
// Human-readable messages corresponding to error codes

var DataProviderErrorMessages = map[string]string{
	ErrCodeInvalidCredentials:   "The platform credentials are invalid or have been revoked",
	ErrCodeRateLimited:          "Rate limit exceeded. Please try again later",
	ErrCodeNetworkError:         "Unable to reach the platform. Please check connectivity",
	ErrCodeAuthenticationFailed: "Authentication failed.",
	ErrCodeResourceNotFound:     "The requested resource was not found on the platform",
	ErrCodeUpstreamError:        "The platform returned an unexpected error",
	ErrCodeInvalidDataFormat:    "The platform returned data in an unexpected format",

	ErrCodeConfigMalformed:    "The collector configuration is malformed",
	ErrCodeConfigNotFound:     "Collector configuration not found",
	ErrCodeConfigExists:       "A collector configuration for this platform already exists",
	ErrCodeVersionConflict:    "The configuration was modified by someone else. Reload and retry",
	ErrCodeUnknownPlatform:    "Unknown platform.",
	ErrCodeInvalidTimeRange:   "Invalid time range",
	ErrCodeStorageUnavailable: "Attachment storage is unavailable",
	ErrCodeInvalidCron:        "Invalid cron expression",
	ErrCodeProjectListFailed:  "Unable to list projects on the platform",

	ErrCodeRecordNotFound:     "Record not found",
	ErrCodeAttachmentNotFound: "Attachment not found",
	ErrCodeJobNotFound:        "Job execution not found",
	ErrCodeInternal:           "Internal server error",
}

// GetErrorMessage returns the human-readable message for an error code
func GetErrorMessage(code string) string {
	if msg, ok := DataProviderErrorMessages[code]; ok {
		return msg
	}
	return "An unknown error occurred"
}
