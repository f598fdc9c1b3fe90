package keyquota

import "time"

// State is the health state of one credential.
type State string

const (
	StateActive        State = "ACTIVE"
	StateRateLimited   State = "RATE_LIMITED"
	StateQuotaExceeded State = "QUOTA_EXCEEDED"
	StateCircuitOpen   State = "CIRCUIT_OPEN"
	StateDisabled      State = "DISABLED"
)

// FailureKind classifies a failed call for the credential state machine.
type FailureKind int

const (
	// FailureOther counts toward the circuit threshold.
	FailureOther FailureKind = iota
	// FailureRateLimit parks the credential for the retry-after window.
	FailureRateLimit
	// FailureQuota parks the credential for the quota cooldown.
	FailureQuota
)

func (k FailureKind) String() string {
	switch k {
	case FailureRateLimit:
		return "rate_limit"
	case FailureQuota:
		return "quota"
	default:
		return "other"
	}
}

// Failure describes a failed call made with a credential.
type Failure struct {
	Kind FailureKind
	// RetryAfter is the provider's hint; zero means use the configured default.
	RetryAfter time.Duration
}

// Credential is what Acquire hands out. It is a copy; holding it does not
// pin the credential.
type Credential struct {
	Provider string
	ID       string
	Secret   string
}

// Snapshot is a read-only view of one credential's state.
type Snapshot struct {
	ID                  string    `json:"id"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	CooldownUntil       time.Time `json:"cooldown_until,omitzero"`
	Requests            int64     `json:"requests"`
	Successes           int64     `json:"successes"`
	Failures            int64     `json:"failures"`
	LastUsed            time.Time `json:"last_used,omitzero"`
}
