package provider

import (
	"fmt"
	"net/http"
)

// Error is returned when a provider responds with a non-2xx status.
//
// RawResponse holds the provider response body and must never include API keys.
type Error struct {
	Provider    string
	StatusCode  int
	Status      string
	Message     string
	RawResponse []byte
}

func (e *Error) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
}

// Temporary reports whether the status usually clears on its own.
func (e *Error) Temporary() bool {
	if e == nil {
		return false
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}
