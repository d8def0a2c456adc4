// Package dto contains the request and response shapes of the character registry API
package dto

// APIResponse is the envelope every JSON endpoint answers with.
// Data is set on success; Error carries an ErrorDetail on failure.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   any    `json:"error,omitempty"`
}

// ErrorDetail is the machine-readable part of a failed response
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}
