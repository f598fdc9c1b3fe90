package logger

import "fmt"

// Field keys shared across packages so logs can be filtered by job.
const (
	FieldComponent  = "component"
	FieldOperation  = "operation"
	FieldError      = "error"
	FieldDuration   = "duration_ms"
	FieldAttempt    = "attempt"
	FieldJobID      = "job_id"
	FieldTenantID   = "tenant_id"
	FieldStage      = "stage"
	FieldState      = "state"
	FieldProgress   = "progress"
	FieldProvider   = "provider"
	FieldCredential = "credential"
	FieldLabel      = "label"
)

// Fields pairs up alternating keys and values. Non-string keys are
// formatted with %v; a trailing key without a value is dropped.
//
//	log.Info("stage done", logger.Fields(logger.FieldJobID, id, logger.FieldStage, "summarizing"))
func Fields(kvs ...any) map[string]any {
	m := make(map[string]any, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			key = fmt.Sprint(kvs[i])
		}
		m[key] = kvs[i+1]
	}
	return m
}

// ErrorFields tags err with the operation that produced it.
func ErrorFields(op string, err error) map[string]any {
	return map[string]any{FieldOperation: op, FieldError: err.Error()}
}
