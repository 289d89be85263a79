package sandbox

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/survos/lingua/internal/client"
	"github.com/survos/lingua/internal/keys"
	"github.com/survos/lingua/internal/transport"
	"github.com/survos/lingua/internal/wire"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newSandbox(opts ...Option) (*Server, *client.Client) {
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s := New(opts...)
	return s, client.New(transport.NewInProcess(s.Handler(), ""))
}

func TestBatch_SyncTranslatesImmediately(t *testing.T) {
	s, c := newSandbox()
	ctx := context.Background()

	br, err := c.RequestBatch(ctx, wire.BatchRequest{
		Texts: []string{"Save", "Open"}, Source: "en", Target: []string{"es"}, InsertNewStrings: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", br.Status)
	assert.Equal(t, 2, br.Accepted)
	require.Len(t, br.Items, 2)
	assert.Equal(t, "[es] Save", br.Items[0].Text)
	assert.Equal(t, keys.MustSourceKey("Save", "en"), br.Items[0].Key)

	text, ok := s.Translation(keys.MustSourceKey("Open", "en"), "es")
	require.True(t, ok)
	assert.Equal(t, "[es] Open", text)
}

func TestBatch_CachedUnlessForced(t *testing.T) {
	_, c := newSandbox()
	ctx := context.Background()
	req := wire.BatchRequest{Texts: []string{"Save"}, Source: "en", Target: []string{"fr"}, InsertNewStrings: true}

	_, err := c.RequestBatch(ctx, req)
	require.NoError(t, err)

	br, err := c.RequestBatch(ctx, req)
	require.NoError(t, err)
	require.Len(t, br.Items, 1)
	assert.True(t, br.Items[0].Cached)

	req.ForceDispatch = true
	br, err = c.RequestBatch(ctx, req)
	require.NoError(t, err)
	assert.False(t, br.Items[0].Cached)
}

func TestBatch_NoInsertReportsMissing(t *testing.T) {
	_, c := newSandbox()

	br, err := c.RequestBatch(context.Background(), wire.BatchRequest{
		Texts: []string{"Unknown"}, Source: "en", Target: []string{"es"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, br.Accepted)
	assert.Equal(t, 1, br.Missing)
}

func TestBatch_AsyncCompletesAfterDelay(t *testing.T) {
	s, c := newSandbox(WithDelay(1), WithIDFunc(func() string { return "job-1" }))
	ctx := context.Background()
	key := keys.MustSourceKey("Save", "en")

	br, err := c.RequestBatch(ctx, wire.BatchRequest{
		Texts: []string{"Save"}, Source: "en", Target: []string{"es"},
		InsertNewStrings: true, Transport: wire.TransportAsync,
	})
	require.NoError(t, err)
	assert.Equal(t, "queued", br.Status)
	assert.Equal(t, "job-1", br.JobID)
	assert.Equal(t, 1, br.Queued)
	assert.Equal(t, 1, s.PendingJobs())

	st, err := c.JobStatus(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, wire.JobPending, st.State)

	got, err := c.PullByKeys(ctx, []string{key}, "es", "")
	require.NoError(t, err)
	assert.Empty(t, got, "first pull only advances the job")

	got, err = c.PullByKeys(ctx, []string{key}, "es", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{key: "[es] Save"}, got)

	st, err = c.JobStatus(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, wire.JobCompleted, st.State)
	require.Len(t, st.Items, 1)
	assert.Equal(t, 0, s.PendingJobs())
}

func TestPull_WithoutLocale(t *testing.T) {
	_, c := newSandbox()
	ctx := context.Background()

	_, err := c.RequestBatch(ctx, wire.BatchRequest{
		Texts: []string{"Save"}, Source: "en", Target: []string{"fr", "es"}, InsertNewStrings: true,
	})
	require.NoError(t, err)

	key := keys.MustSourceKey("Save", "en")
	got, err := c.PullByKeys(ctx, []string{key, "unknown"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{key: "[es] Save"}, got)
}

func TestSourceLookup(t *testing.T) {
	_, c := newSandbox()
	ctx := context.Background()

	_, err := c.RequestBatch(ctx, wire.BatchRequest{
		Texts: []string{"Save"}, Source: "en", Target: []string{"es"}, InsertNewStrings: true,
	})
	require.NoError(t, err)

	src, err := c.Source(ctx, keys.MustSourceKey("Save", "en"))
	require.NoError(t, err)
	assert.Equal(t, "Save", src["text"])

	_, err = c.Source(ctx, "missing")
	assert.ErrorIs(t, err, transport.ErrTransport)
}

func TestJob_Unknown(t *testing.T) {
	_, c := newSandbox()
	_, err := c.JobStatus(context.Background(), "nope")
	assert.ErrorIs(t, err, transport.ErrTransport)
}

func TestAuth(t *testing.T) {
	s := New(WithAPIKey("secret"), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	denied := client.New(transport.NewInProcess(s.Handler(), "wrong"))
	_, err := denied.PullByKeys(context.Background(), []string{"a"}, "es", "")
	assert.ErrorIs(t, err, transport.ErrTransport)

	allowed := client.New(transport.NewInProcess(s.Handler(), "secret"))
	_, err = allowed.PullByKeys(context.Background(), []string{"a"}, "es", "")
	assert.NoError(t, err)
}

func TestBatch_BadRequest(t *testing.T) {
	s := New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	h := s.Handler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, wire.RouteBatch, http.NoBody)
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPseudoTranslate(t *testing.T) {
	assert.Equal(t, "[de] Hello", PseudoTranslate("Hello", "de"))
}
