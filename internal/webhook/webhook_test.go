package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/survos/lingua/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type update struct {
	u store.Update
	m map[string]string
}

type fakeUpdater struct {
	calls []update
	err   error
}

func (f *fakeUpdater) ApplyTranslations(_ context.Context, u store.Update, m map[string]string) (int64, error) {
	f.calls = append(f.calls, update{u: u, m: m})
	return int64(len(m)), f.err
}

func post(h http.Handler, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, Route, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-Api-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWebhook_AppliesItemsPerLocale(t *testing.T) {
	up := &fakeUpdater{}
	h := New(up, "secret", quiet()).Handler()

	rec := post(h, "secret", `{"jobId":"j1","state":"completed","items":[
		{"key":"k1","target":"fr","text":"bonjour"},
		{"hash":"k2","target":"es","text":"hola"},
		{"key":"k3","target":"es","text":""}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, float64(3), resp["received"])
	assert.Equal(t, float64(2), resp["updated"])

	require.Len(t, up.calls, 2)
	assert.Equal(t, "es", up.calls[0].u.Locale)
	assert.Equal(t, map[string]string{"k2": "hola"}, up.calls[0].m)
	assert.Equal(t, "fr", up.calls[1].u.Locale)
}

func TestWebhook_RejectsWrongKey(t *testing.T) {
	up := &fakeUpdater{}
	h := New(up, "secret", quiet()).Handler()

	assert.Equal(t, http.StatusForbidden, post(h, "", `{}`).Code)
	assert.Equal(t, http.StatusForbidden, post(h, "nope", `{}`).Code)
	assert.Empty(t, up.calls)
}

func TestWebhook_NoKeyConfigured(t *testing.T) {
	h := New(&fakeUpdater{}, "", quiet()).Handler()
	assert.Equal(t, http.StatusOK, post(h, "", `{"items":[]}`).Code)
}

func TestWebhook_Malformed(t *testing.T) {
	h := New(&fakeUpdater{}, "", quiet()).Handler()
	assert.Equal(t, http.StatusBadRequest, post(h, "", `not json`).Code)
}

func TestWebhook_UpdateFailure(t *testing.T) {
	h := New(&fakeUpdater{err: errors.New("locked")}, "", quiet()).Handler()
	rec := post(h, "", `{"items":[{"key":"k","target":"es","text":"x"}]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
