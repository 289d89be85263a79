// Package transport carries wire requests to the translation server.
//
// Two implementations exist and one is selected at construction time:
// HTTP talks to a remote server with resty, InProcess hands the request to an
// http.Handler in the same process (the sandbox server) without a socket.
// Transports never interpret status codes; callers decide what a non-2xx
// response means.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrTransport is matched by every network-level failure.
var ErrTransport = errors.New("transport error")

// Error describes a failed round-trip or a non-2xx status.
type Error struct {
	Op     string // HTTP method
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d", e.Op, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransport) true for *Error.
func (e *Error) Is(target error) bool { return target == ErrTransport }

// Request is one call to the server. Body is JSON-encoded when non-nil.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Response is the raw status and body of a call.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Transport executes requests against the translation server.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Options configure transport construction.
type Options struct {
	BaseURL string
	APIKey  string
	Proxy   string
	Timeout time.Duration
}

// New returns an InProcess transport when handler is non-nil, otherwise HTTP.
func New(opts Options, handler http.Handler) Transport {
	if handler != nil {
		return NewInProcess(handler, opts.APIKey)
	}
	return NewHTTP(opts)
}

// authHeaders are sent on every request when an API key is configured.
func authHeaders(apiKey string) map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if apiKey != "" {
		h["X-Api-Key"] = apiKey
		h["Authorization"] = "Bearer " + apiKey
	}
	return h
}
