package anthropic

import (
	"encoding/json"
	"fmt"
)

// ErrorDetail is the inner error object of the wire error shape.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorResponse is the error body shared by HTTP error responses and in-band
// SSE error events: {"type":"error","error":{"type":...,"message":...}}.
type ErrorResponse struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// NewErrorResponse builds the standard error body for a kind and message.
func NewErrorResponse(kind, message string) ErrorResponse {
	return ErrorResponse{
		Type:  "error",
		Error: ErrorDetail{Type: kind, Message: message},
	}
}

// FormatSSEError renders an error as a single event-stream frame. Used once a
// streaming response has committed and HTTP-level errors are no longer
// possible.
func FormatSSEError(kind, message string) string {
	payload, _ := json.Marshal(NewErrorResponse(kind, message))
	return fmt.Sprintf("event: error\ndata: %s\n\n", payload)
}

// ExtractErrorMessage pulls the nested error.message out of an upstream error
// body, falling back to the raw text when the body is not the expected shape.
func ExtractErrorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(body)
}
