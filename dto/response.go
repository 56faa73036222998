package dto

import "errors"

// Custom errors
var (
	ErrNoFiles = errors.New("at least one PDF file is required")
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// ProcessResponse is the final response for a processed batch.
type ProcessResponse struct {
	Batch       BatchResult `json:"batch"`
	ProcessedAt string      `json:"processed_at"`
}
