package dto

import (
	"net/http"
	"time"
)

// ApiResponse standardizes the envelope returned by business endpoints.
type ApiResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Message   string    `json:"message"`
	Data      any       `json:"data"`
	Path      string    `json:"path"`
}

// Success builds a 200 envelope.
func Success(message string, data any, path string) ApiResponse {
	return ApiResponse{
		Timestamp: time.Now(),
		Status:    http.StatusOK,
		Message:   message,
		Data:      data,
		Path:      path,
	}
}

// Error builds an error envelope with the given status code.
func Error(status int, message, path string) ApiResponse {
	return ApiResponse{
		Timestamp: time.Now(),
		Status:    status,
		Message:   message,
		Path:      path,
	}
}
