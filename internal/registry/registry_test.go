package registry

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/survos/lingua/internal/keys"
	"github.com/survos/lingua/internal/model"
	"github.com/survos/lingua/internal/store"
)

func newRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "lingua.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, "", slog.New(slog.NewTextHandler(io.Discard, nil))), s
}

func TestRegister(t *testing.T) {
	r, s := newRegistry(t)
	ctx := context.Background()

	res, err := r.Register(ctx, "EN", []string{"es", "fr", "en"}, []string{"Save", "", "Open"})
	require.NoError(t, err)
	assert.Equal(t, Result{Sources: 2, Stubs: 4, Skipped: 1}, res)

	src, err := s.Source(ctx, keys.MustSourceKey("Save", "en"))
	require.NoError(t, err)
	assert.Equal(t, "en", src.SourceLocale)

	res, err = r.Register(ctx, "en", []string{"es"}, []string{"Save"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Stubs, "re-registering is a no-op")
}

func TestRegister_NFC(t *testing.T) {
	r, s := newRegistry(t)
	ctx := context.Background()

	decomposed := "Cafe\u0301"
	_, err := r.Register(ctx, "fr", []string{"en"}, []string{decomposed, "Caf\u00e9"})
	require.NoError(t, err)

	all, err := s.Sources(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Caf\u00e9", all[0].Text)
}

func TestRegister_InvalidLocale(t *testing.T) {
	r, _ := newRegistry(t)
	_, err := r.Register(context.Background(), "x", []string{"es"}, []string{"Save"})
	assert.ErrorIs(t, err, keys.ErrInvalidLocale)
}

func TestImportPO(t *testing.T) {
	r, s := newRegistry(t)
	ctx := context.Background()

	res, err := r.ImportPO(ctx, filepath.Join("testdata", "messages.es.po"), ImportOptions{
		SourceLocale: "en",
		Targets:      []string{"fr"},
		Locale:       "es",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sources)
	assert.Equal(t, 6, res.Stubs)
	assert.Equal(t, int64(2), res.Translated)

	save, err := s.Stub(ctx, keys.MustSourceKey("Save", "en"), "es", model.DefaultEngine)
	require.NoError(t, err)
	assert.Equal(t, "Guardar", save.Text)

	open, err := s.Stub(ctx, keys.MustSourceKey("Open", "en"), "es", model.DefaultEngine)
	require.NoError(t, err)
	assert.True(t, open.Pending())

	stats, err := s.Completion(ctx, []string{"es"})
	require.NoError(t, err)
	assert.Equal(t, 66.7, stats[0].Pct)
}

func TestImportPO_MissingFile(t *testing.T) {
	r, _ := newRegistry(t)
	_, err := r.ImportPO(context.Background(), "testdata/nope.po", ImportOptions{SourceLocale: "en"})
	assert.Error(t, err)
}
