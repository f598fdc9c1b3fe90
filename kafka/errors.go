package kafka

import (
	"context"
	stderrors "errors"
	"strings"
)

var (
	retryablePatterns = []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"no route to host",
		"network is unreachable",
		"broker not available",
		"leader not available",
		"not enough replicas",
		"request timed out",
		"temporary",
		"dial tcp",
	}
	permanentPatterns = []string{
		"message too large",
		"invalid topic",
		"unknown topic",
		"authorization failed",
	}
)

// IsRetryableError reports whether a write or fetch error is transient.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range permanentPatterns {
		if strings.Contains(msg, p) {
			return false
		}
	}
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
