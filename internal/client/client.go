// Package client speaks the translation server's wire contract over a
// transport.Transport. It returns canonical wire types and typed errors:
// transport.ErrTransport for failed round-trips and non-2xx statuses,
// wire.ErrMalformedResponse for payloads that are not JSON objects.
package client

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/survos/lingua/internal/transport"
	"github.com/survos/lingua/internal/wire"
)

// Client calls the translation server.
type Client struct {
	tr     transport.Transport
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client over tr.
func New(tr transport.Transport, opts ...Option) *Client {
	c := &Client{tr: tr, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestBatch submits one chunk to /batch-translate.
//
// A non-2xx status returns the decoded response (when decodable) together
// with a *transport.Error, so callers can still report what the server said.
func (c *Client) RequestBatch(ctx context.Context, req wire.BatchRequest) (*wire.BatchResponse, error) {
	resp, err := c.tr.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   wire.RouteBatch,
		Body:   req,
	})
	if err != nil {
		return nil, err
	}

	br, decodeErr := wire.DecodeBatchResponse(resp.Body, resp.OK())
	if !resp.OK() {
		c.logger.Warn("batch request returned error status",
			"status", resp.Status,
			"source", req.Source,
			"targets", req.Target,
			"texts", len(req.Texts),
		)
		return br, statusError(http.MethodPost, wire.RouteBatch, resp.Status)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	if br.Error != "" {
		c.logger.Warn("batch request reported error", "error", br.Error, "status", br.Status)
	}
	return br, nil
}

// PullByKeys fetches translations for one chunk of source keys.
// locale and engine are sent as query hints when non-empty.
func (c *Client) PullByKeys(ctx context.Context, keys []string, locale, engine string) (map[string]string, error) {
	q := url.Values{}
	if locale != "" {
		q.Set("locale", locale)
	}
	if engine != "" {
		q.Set("engine", engine)
	}

	resp, err := c.tr.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   wire.RoutePull,
		Query:  q,
		Body:   wire.NewPullRequest(keys),
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, statusError(http.MethodPost, wire.RoutePull, resp.Status)
	}
	return wire.DecodePullResponse(resp.Body)
}

// JobStatus polls an asynchronous job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*wire.JobStatus, error) {
	path := wire.JobPath(url.PathEscape(jobID))
	resp, err := c.tr.Do(ctx, &transport.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, statusError(http.MethodGet, path, resp.Status)
	}
	return wire.DecodeJobStatus(resp.Body, jobID)
}

// Source fetches the server's record for a source key.
func (c *Client) Source(ctx context.Context, key string) (map[string]any, error) {
	path := wire.SourcePath(url.PathEscape(key))
	resp, err := c.tr.Do(ctx, &transport.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, statusError(http.MethodGet, path, resp.Status)
	}
	inner, _, err := wire.Unwrap(resp.Body)
	return inner, err
}

func statusError(method, path string, status int) error {
	return &transport.Error{Op: method, URL: path, Status: status}
}
