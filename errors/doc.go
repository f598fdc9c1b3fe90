// Package errors provides the structured error type shared by every stage of
// the meeting pipeline.
//
// Each AppError carries a stable machine-readable code from the failure
// taxonomy, a human-readable message and a retryable flag. The flag is what a
// calling system reads to decide whether a failed job should be requeued.
package errors
