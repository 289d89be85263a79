package cli

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/survos/lingua/internal/model"
)

func TestRenderCompletion_Golden(t *testing.T) {
	stats := []model.LocaleStats{
		model.NewLocaleStats("de", 0, 0),
		model.NewLocaleStats("es", 3, 1),
		model.NewLocaleStats("fr", 3, 3),
		model.NewLocaleStats("pt-BR", 12, 7),
	}

	var buf bytes.Buffer
	renderCompletion(&buf, stats)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "completion_table", buf.Bytes())
}
