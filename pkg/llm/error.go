// Package llm provides the wire shapes the relay shares with OpenAI-compatible
// inference APIs: the error envelope returned to clients and the subset of the
// chat request the relay inspects before forwarding.
package llm

// ErrorResponse is the error envelope returned to clients, matching the
// upstream API so clients can handle relay and upstream errors alike.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the human readable error message.
type ErrorDetail struct {
	Message string `json:"message"`
}

// NewErrorResponse wraps message in an ErrorResponse.
func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Message: message}}
}
