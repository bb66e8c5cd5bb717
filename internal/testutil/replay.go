package testutil

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/Sternrassler/ucp-catalog-adapter/pkg/client"
)

// ErrReplayExhausted is returned once every scripted step was consumed.
var ErrReplayExhausted = errors.New("replay transport: no scripted response left")

// ReplayStep is one scripted transport outcome.
type ReplayStep struct {
	StatusCode int
	Body       string
	Header     http.Header
	Err        error
}

// ReplayTransport answers calls from a script, in order, and records every
// request it receives.
type ReplayTransport struct {
	mu       sync.Mutex
	steps    []ReplayStep
	requests []client.Request
}

// NewReplayTransport creates a transport that plays steps in order.
func NewReplayTransport(steps ...ReplayStep) *ReplayTransport {
	return &ReplayTransport{steps: steps}
}

// Push appends steps to the script.
func (t *ReplayTransport) Push(steps ...ReplayStep) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, steps...)
}

// RoundTrip implements client.Transport.
func (t *ReplayTransport) RoundTrip(ctx context.Context, req client.Request) (*client.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.requests = append(t.requests, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(t.steps) == 0 {
		return nil, ErrReplayExhausted
	}

	step := t.steps[0]
	t.steps = t.steps[1:]

	if step.Err != nil {
		return nil, step.Err
	}

	header := step.Header
	if header == nil {
		header = http.Header{}
	}
	return &client.Response{
		StatusCode: step.StatusCode,
		Header:     header,
		Body:       []byte(step.Body),
	}, nil
}

// Requests returns the requests received so far.
func (t *ReplayTransport) Requests() []client.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]client.Request(nil), t.requests...)
}

// Calls returns the number of requests received so far.
func (t *ReplayTransport) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}

// OK is a 200 step with body and an optional validator.
func OK(body, etag string) ReplayStep {
	header := http.Header{}
	if etag != "" {
		header.Set("ETag", etag)
	}
	return ReplayStep{StatusCode: http.StatusOK, Body: body, Header: header}
}

// Status is a bodiless step with the given status code.
func Status(code int) ReplayStep {
	return ReplayStep{StatusCode: code}
}

// Fail is a step whose call produces no response.
func Fail(err error) ReplayStep {
	return ReplayStep{Err: err}
}
