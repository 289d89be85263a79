package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
)

// inProcessHost is the synthetic host used for in-process requests.
const inProcessHost = "http://in-process"

// InProcess serves requests with an http.Handler in the same process.
type InProcess struct {
	handler http.Handler
	apiKey  string
}

// NewInProcess wraps handler as a Transport.
func NewInProcess(handler http.Handler, apiKey string) *InProcess {
	return &InProcess{handler: handler, apiKey: apiKey}
}

// Do runs the handler synchronously and returns what it wrote.
func (p *InProcess) Do(ctx context.Context, req *Request) (*Response, error) {
	target := inProcessHost + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: req.Method, URL: target, Err: err}
	}

	var body io.Reader = http.NoBody
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	hr, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, &Error{Op: req.Method, URL: target, Err: err}
	}
	for k, v := range authHeaders(p.apiKey) {
		hr.Header.Set(k, v)
	}
	if req.Body != nil {
		hr.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	p.handler.ServeHTTP(rec, hr)
	return &Response{Status: rec.Code, Body: rec.Body.Bytes()}, nil
}
