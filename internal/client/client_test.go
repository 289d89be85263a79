package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/survos/lingua/internal/transport"
	"github.com/survos/lingua/internal/wire"
)

// stubServer answers every request with a fixed status and body and records
// the last request.
type stubServer struct {
	status int
	body   string

	lastPath  string
	lastQuery string
	lastBody  map[string]any
}

func (s *stubServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.lastPath = r.URL.Path
	s.lastQuery = r.URL.RawQuery
	s.lastBody = nil
	if b, _ := io.ReadAll(r.Body); len(b) > 0 {
		_ = json.Unmarshal(b, &s.lastBody)
	}
	w.WriteHeader(s.status)
	_, _ = w.Write([]byte(s.body))
}

func newClient(s *stubServer) *Client {
	return New(transport.NewInProcess(s, ""))
}

func TestRequestBatch_OK(t *testing.T) {
	s := &stubServer{status: 200, body: `{"status":"ok","response":{"sources":["a","b"],"queued":2}}`}
	c := newClient(s)

	br, err := c.RequestBatch(context.Background(), wire.BatchRequest{
		Texts: []string{"a", "b"}, Source: "en", Target: []string{"es"}, InsertNewStrings: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, br.Accepted)
	assert.Equal(t, 2, br.Queued)
	assert.Equal(t, "/batch-translate", s.lastPath)
	assert.Equal(t, "en", s.lastBody["source"])
	assert.Equal(t, true, s.lastBody["insertNewStrings"])
}

func TestRequestBatch_ErrorStatus(t *testing.T) {
	s := &stubServer{status: 500, body: `{"error":"engine down"}`}

	br, err := newClient(s).RequestBatch(context.Background(), wire.BatchRequest{Texts: []string{"a"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, transport.ErrTransport))
	require.NotNil(t, br, "decodable error payloads are still returned")
	assert.Equal(t, "engine down", br.Error)

	var te *transport.Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 500, te.Status)
}

func TestRequestBatch_Malformed(t *testing.T) {
	s := &stubServer{status: 200, body: `<html>maintenance</html>`}

	_, err := newClient(s).RequestBatch(context.Background(), wire.BatchRequest{Texts: []string{"a"}})
	assert.ErrorIs(t, err, wire.ErrMalformedResponse)
}

func TestPullByKeys(t *testing.T) {
	s := &stubServer{status: 200, body: `{"response":{"h1":"hola"}}`}

	m, err := newClient(s).PullByKeys(context.Background(), []string{"h1", "h2"}, "es", "libre")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"h1": "hola"}, m)
	assert.Equal(t, "/babel/pull", s.lastPath)
	assert.Equal(t, "engine=libre&locale=es", s.lastQuery)
	assert.Equal(t, []any{"h1", "h2"}, s.lastBody["hashes"])
	assert.Equal(t, []any{"h1", "h2"}, s.lastBody["keys"])
}

func TestPullByKeys_NoHints(t *testing.T) {
	s := &stubServer{status: 200, body: `[]`}

	m, err := newClient(s).PullByKeys(context.Background(), []string{"h1"}, "", "")
	require.NoError(t, err)
	assert.Empty(t, m)
	assert.Empty(t, s.lastQuery)
}

func TestPullByKeys_ErrorStatus(t *testing.T) {
	s := &stubServer{status: 404, body: `{}`}

	_, err := newClient(s).PullByKeys(context.Background(), []string{"h1"}, "es", "")
	assert.ErrorIs(t, err, transport.ErrTransport)
}

func TestJobStatus(t *testing.T) {
	s := &stubServer{status: 200, body: `{"state":"completed","progress":100}`}

	js, err := newClient(s).JobStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "/job/job-1.json", s.lastPath)
	assert.Equal(t, wire.JobCompleted, js.State)
	assert.Equal(t, "job-1", js.JobID)
}

func TestSource(t *testing.T) {
	s := &stubServer{status: 200, body: `{"code":"k1","text":"Save","locale":"en"}`}

	src, err := newClient(s).Source(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, "/source/k1.json", s.lastPath)
	assert.Equal(t, "Save", src["text"])
}
