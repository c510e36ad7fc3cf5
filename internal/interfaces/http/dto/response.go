package dto

// Response represents a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message, requestID string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	}
}

// ReconciliationRunRequest is the optional body of a reconciliation run
type ReconciliationRunRequest struct {
	Limit int `json:"limit" binding:"omitempty,min=1,max=1000"`
}

// AlertRunRequest is the optional body of an alert run
type AlertRunRequest struct {
	DryRun bool `json:"dry_run"`
}

// IDRequest represents a request with a UUID path parameter
type IDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// TransitionRequest addresses a named transition on a case
type TransitionRequest struct {
	Number string `uri:"number" binding:"required,max=50"`
	Name   string `uri:"name" binding:"required,max=40"`
}
