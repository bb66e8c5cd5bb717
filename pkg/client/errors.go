package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrCircuitOpen is returned when the breaker rejects a call and no
	// stale payload can stand in.
	ErrCircuitOpen = errors.New("upstream circuit open")

	// ErrNotFound matches an UpstreamError carrying status 404.
	ErrNotFound = errors.New("upstream resource not found")
)

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors and unexpected statuses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"
)

// UpstreamError is a failed upstream call.
type UpstreamError struct {
	StatusCode int // 0 for network errors
	Class      ErrorClass
	Endpoint   string
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (status %d) for %s: %v",
			e.Class, e.StatusCode, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("upstream %s error (status %d) for %s: %s",
		e.Class, e.StatusCode, e.Endpoint, http.StatusText(e.StatusCode))
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is reports ErrNotFound for 404 responses.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// classify maps a status code or transport error to an ErrorClass.
func classify(statusCode int, err error) ErrorClass {
	switch {
	case err != nil:
		return ErrorClassNetwork
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}
