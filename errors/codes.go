package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Failure taxonomy recorded on jobs.
const (
	// ErrCodeNetworkTimeout indicates a backend did not answer in time or the connection failed.
	ErrCodeNetworkTimeout ErrorCode = "NETWORK_TIMEOUT"
	// ErrCodeAuth indicates a backend rejected the supplied credential.
	ErrCodeAuth ErrorCode = "AUTH_ERROR"
	// ErrCodeSensitiveContent indicates the transcription backend masked the output.
	ErrCodeSensitiveContent ErrorCode = "SENSITIVE_CONTENT_BLOCKED"
	// ErrCodeAudioFormat indicates the audio could not be decoded or assembled.
	ErrCodeAudioFormat ErrorCode = "AUDIO_FORMAT_ERROR"
	// ErrCodeVoiceprintAuth indicates the identity-search backend rejected the credential.
	ErrCodeVoiceprintAuth ErrorCode = "VOICEPRINT_AUTH_ERROR"
	// ErrCodeQuotaExceeded indicates every credential of a provider is out of quota.
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"
	// ErrCodeRateLimited indicates the provider throttled the request.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrCodeLLMContentBlocked indicates the generation backend refused the content.
	ErrCodeLLMContentBlocked ErrorCode = "LLM_CONTENT_BLOCKED"
	// ErrCodeUnknown is the conservative default for anything unclassified.
	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// Service errors used outside the job taxonomy (repositories, admin API).
const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	ErrCodeCircuitOpen   ErrorCode = "CIRCUIT_OPEN"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeNetworkTimeout: true,
	ErrCodeRateLimited:    true,
	ErrCodeDatabaseError:  true,
	ErrCodeCircuitOpen:    true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

// TaxonomyCodes lists the codes a failed job can carry, in reporting order.
func TaxonomyCodes() []ErrorCode {
	return []ErrorCode{
		ErrCodeNetworkTimeout,
		ErrCodeAuth,
		ErrCodeSensitiveContent,
		ErrCodeAudioFormat,
		ErrCodeVoiceprintAuth,
		ErrCodeQuotaExceeded,
		ErrCodeRateLimited,
		ErrCodeLLMContentBlocked,
		ErrCodeUnknown,
	}
}

// IsTaxonomyCode reports whether code belongs to the job failure taxonomy.
func IsTaxonomyCode(code ErrorCode) bool {
	for _, c := range TaxonomyCodes() {
		if c == code {
			return true
		}
	}
	return false
}
