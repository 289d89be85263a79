package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"github.com/survos/lingua/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// PendingFilter narrows pending reads.
type PendingFilter struct {
	Targets []string // empty: all target locales
	Engine  string   // empty: all engines
	Limit   int      // 0: no limit
}

// apply adds the untranslated predicate and the filter to q.
func (f PendingFilter) apply(q sq.SelectBuilder) sq.SelectBuilder {
	q = q.Where(sq.Or{sq.Eq{"t.text": nil}, sq.Eq{"t.text": ""}})
	if f.Engine != "" {
		q = q.Where(sq.Eq{"t.engine": f.Engine})
	}
	if len(f.Targets) > 0 {
		q = q.Where(sq.Eq{"t.target_locale": f.Targets})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	return q
}

// PendingRows returns untranslated stubs with their original text, ordered
// by target locale, source locale, then key. Stubs whose source is unknown
// are skipped.
func (s *Store) PendingRows(ctx context.Context, f PendingFilter) ([]model.PendingRow, error) {
	rows, err := s.selectRows(ctx, f.apply(
		s.sq.Select("t.source_key", "s.text", "s.source_locale", "t.target_locale").
			From("translations t").
			Join("sources s ON s.code = t.source_key").
			OrderBy("t.target_locale", "s.source_locale", "t.source_key"),
	))
	if err != nil {
		return nil, fmt.Errorf("pending rows: %w", err)
	}
	defer rows.Close()

	var out []model.PendingRow
	for rows.Next() {
		var r model.PendingRow
		if err := rows.Scan(&r.Key, &r.Text, &r.SourceLocale, &r.TargetLocale); err != nil {
			return nil, fmt.Errorf("pending rows: scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending rows: %w", err)
	}
	return out, nil
}

// PendingKeys returns (key, target locale) of untranslated stubs without
// touching the sources table, ordered by key then locale.
func (s *Store) PendingKeys(ctx context.Context, f PendingFilter) ([]model.PendingRow, error) {
	rows, err := s.selectRows(ctx, f.apply(
		s.sq.Select("t.source_key", "t.target_locale").
			Distinct().
			From("translations t").
			OrderBy("t.source_key", "t.target_locale"),
	))
	if err != nil {
		return nil, fmt.Errorf("pending keys: %w", err)
	}
	defer rows.Close()

	var out []model.PendingRow
	for rows.Next() {
		var r model.PendingRow
		if err := rows.Scan(&r.Key, &r.TargetLocale); err != nil {
			return nil, fmt.Errorf("pending keys: scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending keys: %w", err)
	}
	return out, nil
}

// Sources returns registered originals ordered by code.
func (s *Store) Sources(ctx context.Context, limit int) ([]model.SourceString, error) {
	q := s.sq.Select("code", "text", "source_locale").From("sources").OrderBy("code")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	rows, err := s.selectRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sources: %w", err)
	}
	defer rows.Close()

	var out []model.SourceString
	for rows.Next() {
		var src model.SourceString
		if err := rows.Scan(&src.Code, &src.Text, &src.SourceLocale); err != nil {
			return nil, fmt.Errorf("sources: scan: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// Source returns one original by code.
func (s *Store) Source(ctx context.Context, code string) (model.SourceString, error) {
	var src model.SourceString
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT code, text, source_locale FROM sources WHERE code = ?`), code,
	).Scan(&src.Code, &src.Text, &src.SourceLocale)
	if errors.Is(err, sql.ErrNoRows) {
		return src, fmt.Errorf("source %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return src, fmt.Errorf("source %s: %w", code, err)
	}
	return src, nil
}

// Stub returns one translation stub.
func (s *Store) Stub(ctx context.Context, key, locale, engine string) (model.TranslationStub, error) {
	st := model.TranslationStub{Key: key, TargetLocale: locale, Engine: engine}
	var text sql.NullString
	var status string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT text, status FROM translations
		WHERE source_key = ? AND target_locale = ? AND engine = ?
	`), key, locale, engine).Scan(&text, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return st, fmt.Errorf("stub %s/%s: %w", key, locale, ErrNotFound)
	}
	if err != nil {
		return st, fmt.Errorf("stub %s/%s: %w", key, locale, err)
	}
	st.Text = text.String
	st.Status = model.Status(status)
	return st, nil
}

// Completion computes per-locale completion. With no targets every locale
// present in the table is reported; requested targets without rows are
// reported with zero totals. Results are sorted by locale.
func (s *Store) Completion(ctx context.Context, targets []string) ([]model.LocaleStats, error) {
	q := s.sq.Select(
		"target_locale",
		"COUNT(*) AS total",
		"SUM(CASE WHEN text IS NOT NULL AND text <> '' THEN 1 ELSE 0 END) AS translated",
	).From("translations").GroupBy("target_locale")
	if len(targets) > 0 {
		q = q.Where(sq.Eq{"target_locale": targets})
	}

	rows, err := s.selectRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}
	defer rows.Close()

	byLocale := make(map[string]model.LocaleStats)
	for rows.Next() {
		var locale string
		var total, translated int64
		if err := rows.Scan(&locale, &total, &translated); err != nil {
			return nil, fmt.Errorf("completion: scan: %w", err)
		}
		byLocale[locale] = model.NewLocaleStats(locale, int(total), int(translated))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}

	for _, t := range targets {
		if _, ok := byLocale[t]; !ok {
			byLocale[t] = model.NewLocaleStats(t, 0, 0)
		}
	}

	out := make([]model.LocaleStats, 0, len(byLocale))
	for _, st := range byLocale {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Locale < out[j].Locale })
	return out, nil
}
