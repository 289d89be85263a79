// Package registry creates source strings and their pending translation
// stubs, from plain text or gettext catalogs.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/unicode/norm"

	"github.com/survos/lingua/internal/keys"
	"github.com/survos/lingua/internal/model"
	"github.com/survos/lingua/internal/store"
)

// Store persists sources, stubs and imported translations.
type Store interface {
	RegisterSource(ctx context.Context, src model.SourceString, targets []string, engine string) (int, error)
	ApplyTranslations(ctx context.Context, u store.Update, translations map[string]string) (int64, error)
}

// Result counts what a registration created.
type Result struct {
	Sources    int
	Stubs      int
	Skipped    int
	Translated int64
}

// Registry registers content.
type Registry struct {
	store  Store
	engine string
	logger *slog.Logger
}

// New creates a Registry recording stubs for engine ("" = model.DefaultEngine).
func New(s Store, engine string, logger *slog.Logger) *Registry {
	if engine == "" {
		engine = model.DefaultEngine
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: s, engine: engine, logger: logger}
}

// Register records texts in sourceLocale with a pending stub per target.
// Texts are NFC-normalized so visually identical input shares one key.
func (r *Registry) Register(ctx context.Context, sourceLocale string, targets, texts []string) (Result, error) {
	var res Result
	sourceLocale = keys.NormalizeLocale(sourceLocale)
	targets = keys.UniqueLocales(targets)

	for _, text := range texts {
		text = norm.NFC.String(text)
		if text == "" {
			res.Skipped++
			continue
		}
		code, err := keys.SourceKey(text, sourceLocale)
		if err != nil {
			return res, err
		}
		n, err := r.store.RegisterSource(ctx, model.SourceString{
			Code:         code,
			Text:         text,
			SourceLocale: sourceLocale,
		}, targets, r.engine)
		if err != nil {
			return res, fmt.Errorf("register %q: %w", code, err)
		}
		res.Sources++
		res.Stubs += n
	}

	r.logger.Info("registered sources", "sources", res.Sources, "stubs", res.Stubs, "skipped", res.Skipped)
	return res, nil
}

// ImportOptions controls ImportPO.
type ImportOptions struct {
	SourceLocale string
	Targets      []string
	// Locale, when set, applies the catalog's msgstr values as translations
	// into that locale.
	Locale string
}

// ImportPO registers every msgid of a .po file as a source string.
func (r *Registry) ImportPO(ctx context.Context, path string, opts ImportOptions) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("import po: %w", err)
	}

	po := gotext.NewPo()
	po.Parse(data)
	translations := po.GetDomain().GetTranslations()

	ids := make([]string, 0, len(translations))
	for id := range translations {
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	targets := opts.Targets
	locale := keys.NormalizeLocale(opts.Locale)
	if locale != "" {
		targets = append(append([]string(nil), targets...), locale)
	}

	res, err := r.Register(ctx, opts.SourceLocale, targets, ids)
	if err != nil || locale == "" {
		return res, err
	}

	sourceLocale := keys.NormalizeLocale(opts.SourceLocale)
	existing := make(map[string]string)
	for _, id := range ids {
		msgstr := translations[id].Trs[0]
		if msgstr == "" {
			continue
		}
		code, err := keys.SourceKey(norm.NFC.String(id), sourceLocale)
		if err != nil {
			return res, err
		}
		existing[code] = msgstr
	}

	n, err := r.store.ApplyTranslations(ctx, store.Update{Locale: locale, Engine: r.engine}, existing)
	if err != nil {
		return res, fmt.Errorf("import po: apply %s: %w", locale, err)
	}
	res.Translated = n
	return res, nil
}
