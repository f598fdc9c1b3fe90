package errors

// ErrorResponse is the admin API error envelope, {"error": {...}}.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	// RequestID is filled in by the HTTP layer.
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToResponse leaves the cause out; it is logged, not returned.
func (e *AppError) ToResponse() ErrorResponse {
	body := ErrorBody{Code: e.Code, Message: e.Message, Retryable: e.Retryable}
	if len(e.Details) > 0 {
		body.Details = e.Details
	}
	return ErrorResponse{Error: body}
}
