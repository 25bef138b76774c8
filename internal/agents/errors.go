package agents

import "fmt"

// APIError is a non-2xx response from the agent service, carrying whatever
// detail the service put in its error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("agent service error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("agent service error (status %d): %s", e.StatusCode, e.Message)
}

// errorEnvelope is the service's error response body.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
