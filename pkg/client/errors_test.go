package client

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		err        error
		want       ErrorClass
	}{
		{"network error", 0, io.ErrUnexpectedEOF, ErrorClassNetwork},
		{"not found", http.StatusNotFound, nil, ErrorClassClient},
		{"throttled", http.StatusTooManyRequests, nil, ErrorClassClient},
		{"server error", http.StatusInternalServerError, nil, ErrorClassServer},
		{"bad gateway", http.StatusBadGateway, nil, ErrorClassServer},
		{"unexpected 304", http.StatusNotModified, nil, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.statusCode, tt.err); got != tt.want {
				t.Errorf("classify(%d, %v) = %q, want %q", tt.statusCode, tt.err, got, tt.want)
			}
		})
	}
}

func TestUpstreamError_Is(t *testing.T) {
	notFound := &UpstreamError{StatusCode: http.StatusNotFound, Class: ErrorClassClient, Endpoint: "/products/1.json"}
	if !errors.Is(notFound, ErrNotFound) {
		t.Error("404 should match ErrNotFound")
	}

	serverErr := &UpstreamError{StatusCode: http.StatusInternalServerError, Class: ErrorClassServer}
	if errors.Is(serverErr, ErrNotFound) {
		t.Error("500 should not match ErrNotFound")
	}
}

func TestUpstreamError_Unwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := &UpstreamError{Class: ErrorClassNetwork, Endpoint: "/products.json", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the transport cause")
	}
	if !strings.Contains(err.Error(), "network") {
		t.Errorf("Error() = %q, want class in message", err.Error())
	}
}
