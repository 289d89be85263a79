package transport

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTimeout applies when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// HTTP is the resty-backed transport for a remote server.
type HTTP struct {
	baseURL string
	client  *resty.Client
}

// NewHTTP builds an HTTP transport. A configured proxy is bypassed for
// loopback hosts; without one, proxy settings come from the environment.
func NewHTTP(opts Options) *HTTP {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := strings.TrimRight(opts.BaseURL, "/")

	hc := &http.Client{Transport: newRoundTripper(opts.Proxy), Timeout: timeout}
	c := resty.NewWithClient(hc).
		SetBaseURL(base).
		SetHeaders(authHeaders(opts.APIKey))

	return &HTTP{baseURL: base, client: c}
}

// Do executes req. Only failures to obtain a response are errors.
func (h *HTTP) Do(ctx context.Context, req *Request) (*Response, error) {
	r := h.client.R().SetContext(ctx)
	if req.Query != nil {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, req.Path)
	if err != nil {
		return nil, &Error{Op: req.Method, URL: h.baseURL + req.Path, Err: err}
	}
	return &Response{Status: resp.StatusCode(), Body: resp.Body()}, nil
}

func newRoundTripper(proxy string) *http.Transport {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if proxy == "" {
		tr.Proxy = http.ProxyFromEnvironment
		return tr
	}
	proxyURL, err := url.Parse(proxy)
	if err != nil {
		tr.Proxy = http.ProxyFromEnvironment
		return tr
	}
	tr.Proxy = func(r *http.Request) (*url.URL, error) {
		if isLoopback(r.URL.Hostname()) {
			return nil, nil
		}
		return proxyURL, nil
	}
	return tr
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
