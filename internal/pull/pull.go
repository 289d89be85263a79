// Package pull harvests translations by source key and writes them back to
// local storage with targeted bulk updates.
package pull

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/survos/lingua/internal/batch"
	"github.com/survos/lingua/internal/keys"
	"github.com/survos/lingua/internal/model"
	"github.com/survos/lingua/internal/store"
)

// DefaultBatchSize is the number of keys per pull request.
const DefaultBatchSize = 500

// KeyClient fetches one chunk of keys.
type KeyClient interface {
	PullByKeys(ctx context.Context, keys []string, locale, engine string) (map[string]string, error)
}

// KeySource reads pending (key, target locale) pairs.
type KeySource interface {
	PendingKeys(ctx context.Context, f store.PendingFilter) ([]model.PendingRow, error)
}

// BulkUpdater applies resolved texts without loading rows.
type BulkUpdater interface {
	ApplyTranslations(ctx context.Context, u store.Update, translations map[string]string) (int64, error)
}

// Options controls PullPending.
type Options struct {
	Targets    []string
	Engine     string // engine hint sent to the server
	OnlyEngine string // restrict stubs (read and update) to this engine
	BatchSize  int
	Limit      int
	// NoLocaleGrouping chunks rows without regard to target locale. Each
	// chunk is still requested and applied one target locale at a time.
	NoLocaleGrouping bool
	// Force overwrites rows that already hold a translation.
	Force bool
}

// Result aggregates one pull pass.
type Result struct {
	Rows         int
	Chunks       int
	Updated      int64
	Pending      int
	FailedChunks int
	Errors       []error
}

// Summary renders the pass counters on one line.
func (r Result) Summary() string {
	return fmt.Sprintf("rows=%d, chunks=%d, updated=%d, pending=%d, failed=%d",
		r.Rows, r.Chunks, r.Updated, r.Pending, r.FailedChunks)
}

// Fetcher pulls translations.
type Fetcher struct {
	client    KeyClient
	source    KeySource
	updater   BulkUpdater
	batchSize int
	logger    *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithStore sets where pending keys are read from and results written to.
func WithStore(src KeySource, up BulkUpdater) Option {
	return func(f *Fetcher) {
		f.source = src
		f.updater = up
	}
}

// WithBatchSize sets the default keys per request.
func WithBatchSize(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.batchSize = n
		}
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher.
func New(client KeyClient, opts ...Option) *Fetcher {
	f := &Fetcher{client: client, batchSize: DefaultBatchSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// PullByKeys fetches keys in chunks and merges the results. Chunk failures do
// not stop later chunks; they are joined into the returned error alongside
// whatever was resolved.
func (f *Fetcher) PullByKeys(ctx context.Context, keyList []string, locale, engine string) (map[string]string, error) {
	out := make(map[string]string)
	var errs []error
	for _, chunk := range batch.Chunk(keyList, f.batchSize) {
		if err := ctx.Err(); err != nil {
			return out, errors.Join(append(errs, err)...)
		}
		m, err := f.client.PullByKeys(ctx, chunk, locale, engine)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for k, v := range m {
			out[k] = v
		}
	}
	return out, errors.Join(errs...)
}

// PullPending fetches every pending stub and applies what the server has
// resolved, one committed update per chunk. Chunk failures are logged and
// counted; only storage failures and cancellation end the pass early.
func (f *Fetcher) PullPending(ctx context.Context, opts Options) (Result, error) {
	var res Result
	if f.source == nil || f.updater == nil {
		return res, fmt.Errorf("pull pending: %w: no store", store.ErrMissingCollaborator)
	}

	rows, err := f.source.PendingKeys(ctx, store.PendingFilter{
		Targets: opts.Targets,
		Engine:  opts.OnlyEngine,
		Limit:   opts.Limit,
	})
	if err != nil {
		return res, fmt.Errorf("pull pending: %w", err)
	}
	res.Rows = len(rows)
	if len(rows) == 0 {
		f.logger.Info("no untranslated rows match filters")
		return res, nil
	}

	mode := batch.ModeByTarget
	if opts.NoLocaleGrouping {
		mode = batch.ModeNone
	}
	size := opts.BatchSize
	if size <= 0 {
		size = f.batchSize
	}

	buckets := batch.Group(rows, size, mode)
	rows = nil

	for _, b := range buckets {
		f.logger.Debug("pull locale", "locale", b.TargetLocale, "rows", b.Rows())
		for i, chunk := range b.Chunks {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			res.Chunks++

			updated, pending, err := f.pullChunk(ctx, b.TargetLocale, chunk, opts)
			b.Chunks[i] = nil
			res.Updated += updated
			res.Pending += pending
			if err != nil {
				if errors.Is(err, errStorage) {
					return res, err
				}
				res.FailedChunks++
				res.Errors = append(res.Errors, err)
				f.logger.Warn("pull chunk failed", "locale", b.TargetLocale, "keys", len(chunk), "error", err)
			}
		}
	}

	f.logger.Info("pull complete", "updated", res.Updated, "chunks", res.Chunks, "pending", res.Pending)
	return res, nil
}

var errStorage = errors.New("storage update failed")

// pullChunk resolves one chunk. Ungrouped chunks (locale "") are split by
// target locale: a source key names the text, not the target, so every
// request and update is scoped to one locale. Client failures leave the
// affected rows pending and are joined into the returned error.
func (f *Fetcher) pullChunk(ctx context.Context, locale string, chunk []model.PendingRow, opts Options) (int64, int, error) {
	if locale != "" {
		return f.pullLocale(ctx, locale, chunk, opts)
	}

	var order []string
	byLocale := make(map[string][]model.PendingRow)
	for _, r := range chunk {
		if _, ok := byLocale[r.TargetLocale]; !ok {
			order = append(order, r.TargetLocale)
		}
		byLocale[r.TargetLocale] = append(byLocale[r.TargetLocale], r)
	}

	var (
		updated int64
		pending int
		errs    []error
	)
	for _, loc := range order {
		n, p, err := f.pullLocale(ctx, loc, byLocale[loc], opts)
		updated += n
		pending += p
		if err != nil {
			if errors.Is(err, errStorage) {
				return updated, pending, err
			}
			errs = append(errs, fmt.Errorf("%s: %w", loc, err))
		}
	}
	return updated, pending, errors.Join(errs...)
}

func (f *Fetcher) pullLocale(ctx context.Context, locale string, rows []model.PendingRow, opts Options) (int64, int, error) {
	keyList := make([]string, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		if r.Key == "" || seen[r.Key] {
			continue
		}
		seen[r.Key] = true
		keyList = append(keyList, r.Key)
	}

	m, err := f.client.PullByKeys(ctx, keyList, keys.NormalizeLocale(locale), opts.Engine)
	if err != nil {
		return 0, len(rows), err
	}

	resolved := make(map[string]string, len(m))
	for _, k := range keyList {
		if text := m[k]; text != "" {
			resolved[k] = text
		}
	}

	pending := 0
	for _, r := range rows {
		if _, ok := resolved[r.Key]; !ok {
			pending++
		}
	}
	if len(resolved) == 0 {
		return 0, pending, nil
	}

	n, err := f.updater.ApplyTranslations(ctx, store.Update{
		Locale: locale,
		Engine: opts.OnlyEngine,
		Force:  opts.Force,
	}, resolved)
	if err != nil {
		return 0, pending, fmt.Errorf("%w: %w", errStorage, err)
	}
	return n, pending, nil
}
