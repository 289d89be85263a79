package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/survos/lingua/internal/model"
)

// RegisterSource inserts src and one pending stub per target locale.
// Existing rows are left untouched. Returns the number of stubs created.
//
// Keys use only the language part of the source locale, so the same text
// registered under "pt" and "pt-BR" shares one sources row; the second
// registration keeps the first source_locale.
func (s *Store) RegisterSource(ctx context.Context, src model.SourceString, targets []string, engine string) (int, error) {
	if engine == "" {
		engine = model.DefaultEngine
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("register source: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO sources (code, text, source_locale)
		VALUES (?, ?, ?)
		ON CONFLICT (code) DO NOTHING
	`), src.Code, src.Text, src.SourceLocale)
	if err != nil {
		return 0, fmt.Errorf("register source: insert source: %w", err)
	}

	created := 0
	for _, target := range targets {
		if target == "" || target == src.SourceLocale {
			continue
		}
		res, err := tx.ExecContext(ctx, s.dialect.rebind(`
			INSERT INTO translations (source_key, target_locale, engine, text, status)
			VALUES (?, ?, ?, NULL, ?)
			ON CONFLICT (source_key, target_locale, engine) DO NOTHING
		`), src.Code, target, engine, string(model.StatusNew))
		if err != nil {
			return 0, fmt.Errorf("register source: insert stub %s: %w", target, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("register source: rows affected: %w", err)
		}
		created += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("register source: commit: %w", err)
	}
	return created, nil
}

// MarkQueued advances pending stubs from new to queued after a batch was
// accepted by the server. engine "" matches any engine.
func (s *Store) MarkQueued(ctx context.Context, rows []model.PendingRow, engine string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mark queued: begin tx: %w", err)
	}
	defer tx.Rollback()

	q := `
		UPDATE translations SET status = ?
		WHERE source_key = ? AND target_locale = ? AND status = ?
		  AND (text IS NULL OR text = '')`
	if engine != "" {
		q += ` AND engine = ?`
	}
	q = s.dialect.rebind(q)

	var total int64
	for _, r := range rows {
		args := []any{string(model.StatusQueued), r.Key, r.TargetLocale, string(model.StatusNew)}
		if engine != "" {
			args = append(args, engine)
		}
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("mark queued: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("mark queued: rows affected: %w", err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mark queued: commit: %w", err)
	}
	return total, nil
}

// ErrNoLocale is returned by ApplyTranslations when Update.Locale is empty.
var ErrNoLocale = errors.New("target locale is required")

// Update is the target of one bulk translation update.
type Update struct {
	// Locale is the target locale of the rows. Required: source keys do not
	// carry their target.
	Locale string
	// Engine restricts rows to one engine; "" matches every engine.
	Engine string
	// Force overwrites rows that already hold a translation.
	Force bool
}

// ApplyTranslations writes every non-empty text in translations to the rows
// matching its key, marking them translated. Rows are never loaded; each call
// commits independently. Returns the number of rows changed.
//
// Re-applying the same map is a no-op unless Force is set.
func (s *Store) ApplyTranslations(ctx context.Context, u Update, translations map[string]string) (int64, error) {
	if len(translations) == 0 {
		return 0, nil
	}
	if u.Locale == "" {
		return 0, fmt.Errorf("apply translations: %w", ErrNoLocale)
	}

	q := `UPDATE translations SET text = ?, status = ?, revision = revision + 1 WHERE source_key = ? AND target_locale = ?`
	if u.Engine != "" {
		q += ` AND engine = ?`
	}
	if !u.Force {
		q += ` AND (text IS NULL OR text = '')`
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("apply translations: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(q))
	if err != nil {
		return 0, fmt.Errorf("apply translations: prepare: %w", err)
	}
	defer stmt.Close()

	var total int64
	for key, text := range translations {
		if text == "" {
			continue
		}
		args := []any{text, string(model.StatusTranslated), key, u.Locale}
		if u.Engine != "" {
			args = append(args, u.Engine)
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, fmt.Errorf("apply translations: update %s: %w", key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("apply translations: rows affected: %w", err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("apply translations: commit: %w", err)
	}
	return total, nil
}

// MarkReviewed advances a translated stub to reviewed.
func (s *Store) MarkReviewed(ctx context.Context, key, locale, engine string) (bool, error) {
	res, err := s.exec(ctx, `
		UPDATE translations SET status = ?
		WHERE source_key = ? AND target_locale = ? AND engine = ? AND status = ?
	`, string(model.StatusReviewed), key, locale, engine, string(model.StatusTranslated))
	if err != nil {
		return false, fmt.Errorf("mark reviewed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark reviewed: rows affected: %w", err)
	}
	return n > 0, nil
}
