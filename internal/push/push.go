// Package push dispatches pending source texts to the translation server.
//
// Every chunk is one request and the unit of failure isolation: a failed
// chunk is recorded and the run moves on. Counters are advisory; the pull
// phase re-derives correctness from local storage.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/survos/lingua/internal/batch"
	"github.com/survos/lingua/internal/config"
	"github.com/survos/lingua/internal/model"
	"github.com/survos/lingua/internal/store"
	"github.com/survos/lingua/internal/wire"
)

// ErrStrict is matched by *StrictError.
var ErrStrict = errors.New("strict push failed")

// ErrRejected marks a chunk whose response carried an error field.
var ErrRejected = errors.New("batch rejected by server")

// StrictError reports a push run that strict mode turned into a failure.
type StrictError struct {
	ErroredChunks int
	Texts         int
	Accepted      int
	Queued        int
}

func (e *StrictError) Error() string {
	if e.ErroredChunks > 0 {
		return fmt.Sprintf("strict push failed: %d chunk(s) errored", e.ErroredChunks)
	}
	return fmt.Sprintf("strict push failed: nothing accepted or queued for %d text(s)", e.Texts)
}

// Is makes errors.Is(err, ErrStrict) work.
func (e *StrictError) Is(target error) bool { return target == ErrStrict }

// BatchClient submits one chunk.
type BatchClient interface {
	RequestBatch(ctx context.Context, req wire.BatchRequest) (*wire.BatchResponse, error)
}

// PendingRowSource reads untranslated stubs together with their originals.
type PendingRowSource interface {
	PendingRows(ctx context.Context, f store.PendingFilter) ([]model.PendingRow, error)
}

// SourceLister lists every registered original.
type SourceLister interface {
	Sources(ctx context.Context, limit int) ([]model.SourceString, error)
}

// QueueMarker advances dispatched stubs to queued.
type QueueMarker interface {
	MarkQueued(ctx context.Context, rows []model.PendingRow, engine string) (int64, error)
}

// Options controls one push run.
type Options struct {
	Engine     string         // engine hint sent to the server
	OnlyEngine string         // restrict pending stubs to this engine
	BatchSize  int            // texts per request; <= 0 uses batch.DefaultBatchSize
	Limit      int            // cap on rows considered; 0 = no cap
	Targets    []string       // target locale filter (stubs) or target list (all sources)
	Transport  wire.Transport // sync or async execution on the server
	// Enqueue selects async transport when Transport is unset.
	Enqueue       bool
	ForceDispatch bool
	// Strict fails the run when any chunk errored or nothing was accepted.
	Strict     bool
	ShowServer bool
}

func (o Options) transport() wire.Transport {
	if o.Transport == "" && o.Enqueue {
		return wire.TransportAsync
	}
	return o.Transport
}

func (o Options) batchSize() int {
	if o.BatchSize <= 0 {
		return batch.DefaultBatchSize
	}
	return o.BatchSize
}

// Result aggregates a push run.
type Result struct {
	Batches       int
	Texts         int
	Accepted      int
	Queued        int
	Missing       int
	ErroredChunks int
	Marked        int64
	JobIDs        []string
	Errors        []error
}

// Summary renders the run counters on one line.
func (r Result) Summary() string {
	return fmt.Sprintf("batches=%d, texts=%d, accepted=%d, queued=%d, missing=%d, errored=%d",
		r.Batches, r.Texts, r.Accepted, r.Queued, r.Missing, r.ErroredChunks)
}

func (r *Result) add(c chunkOutcome) {
	r.Batches++
	r.Texts += c.texts
	r.Accepted += c.accepted
	r.Queued += c.queued
	r.Missing += c.missing
	if c.jobID != "" {
		r.JobIDs = append(r.JobIDs, c.jobID)
	}
	if c.err != nil {
		r.ErroredChunks++
		r.Errors = append(r.Errors, c.err)
	}
}

// Dispatcher sends batches to the server.
type Dispatcher struct {
	client  BatchClient
	pending PendingRowSource
	sources SourceLister
	marker  QueueMarker
	logger  *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPendingSource sets where PushPending reads stubs from.
func WithPendingSource(src PendingRowSource) Option {
	return func(d *Dispatcher) { d.pending = src }
}

// WithSourceLister sets where PushAll reads originals from.
func WithSourceLister(l SourceLister) Option {
	return func(d *Dispatcher) { d.sources = l }
}

// WithQueueMarker marks stubs of accepted chunks as queued.
func WithQueueMarker(m QueueMarker) Option {
	return func(d *Dispatcher) { d.marker = m }
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a Dispatcher.
func New(client BatchClient, opts ...Option) *Dispatcher {
	d := &Dispatcher{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Push sends texts from sourceLocale to targetLocales, one request per chunk.
func (d *Dispatcher) Push(ctx context.Context, sourceLocale string, targetLocales, texts []string, opts Options) (Result, error) {
	var res Result
	for _, chunk := range batch.Chunk(texts, opts.batchSize()) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.add(d.send(ctx, sourceLocale, targetLocales, chunk, opts))
	}
	return res, d.verdict(res, opts)
}

// PushPending pushes every untranslated stub, grouped by source and target
// locale. Stubs of chunks the server took are marked queued.
func (d *Dispatcher) PushPending(ctx context.Context, opts Options) (Result, error) {
	if d.pending == nil {
		return Result{}, fmt.Errorf("push pending: %w: no pending row source", store.ErrMissingCollaborator)
	}

	rows, err := d.pending.PendingRows(ctx, store.PendingFilter{
		Targets: opts.Targets,
		Engine:  opts.OnlyEngine,
		Limit:   opts.Limit,
	})
	if err != nil {
		return Result{}, fmt.Errorf("push pending: %w", err)
	}

	usable := rows[:0]
	for _, r := range rows {
		if strings.TrimSpace(r.TargetLocale) == "" || strings.TrimSpace(r.SourceLocale) == "" || r.Text == "" {
			continue
		}
		usable = append(usable, r)
	}

	var res Result
	if len(usable) == 0 {
		d.logger.Info("no untranslated stubs found, nothing to push")
		return res, nil
	}

	buckets := batch.Group(usable, opts.batchSize(), batch.ModeByLocale)
	d.logger.Info("pushing untranslated stubs", "texts", len(usable), "groups", len(buckets))

	for _, b := range buckets {
		d.logger.Debug("push group", "target", b.TargetLocale, "source", b.SourceLocale, "texts", b.Rows())
		for _, chunk := range b.Chunks {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			texts := make([]string, len(chunk))
			for i, r := range chunk {
				texts[i] = r.Text
			}
			out := d.send(ctx, b.SourceLocale, []string{b.TargetLocale}, texts, opts)
			res.add(out)
			if out.err == nil && out.accepted+out.queued > 0 {
				res.Marked += d.markQueued(ctx, chunk, opts)
			}
		}
	}
	return res, d.verdict(res, opts)
}

// PushAll pushes every registered original to the given targets, grouped by
// source locale. Targets are required.
func (d *Dispatcher) PushAll(ctx context.Context, opts Options) (Result, error) {
	if len(opts.Targets) == 0 {
		return Result{}, config.ErrNoTargets
	}
	if d.sources == nil {
		return Result{}, fmt.Errorf("push all: %w: no source lister", store.ErrMissingCollaborator)
	}

	srcs, err := d.sources.Sources(ctx, opts.Limit)
	if err != nil {
		return Result{}, fmt.Errorf("push all: %w", err)
	}

	bySource := make(map[string][]string)
	for _, s := range srcs {
		if s.Text == "" {
			continue
		}
		loc := s.SourceLocale
		if loc == "" {
			loc = "en"
		}
		bySource[loc] = append(bySource[loc], s.Text)
	}
	locales := make([]string, 0, len(bySource))
	for loc := range bySource {
		locales = append(locales, loc)
	}
	sort.Strings(locales)

	var res Result
	for _, loc := range locales {
		for _, chunk := range batch.Chunk(bySource[loc], opts.batchSize()) {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			res.add(d.send(ctx, loc, opts.Targets, chunk, opts))
		}
	}
	return res, d.verdict(res, opts)
}

func (d *Dispatcher) verdict(res Result, opts Options) error {
	if !opts.Strict {
		return nil
	}
	if res.ErroredChunks > 0 || (res.Texts > 0 && res.Accepted+res.Queued == 0) {
		return &StrictError{
			ErroredChunks: res.ErroredChunks,
			Texts:         res.Texts,
			Accepted:      res.Accepted,
			Queued:        res.Queued,
		}
	}
	return nil
}

func (d *Dispatcher) markQueued(ctx context.Context, chunk []model.PendingRow, opts Options) int64 {
	if d.marker == nil {
		return 0
	}
	n, err := d.marker.MarkQueued(ctx, chunk, opts.OnlyEngine)
	if err != nil {
		d.logger.Warn("failed to mark stubs queued", "rows", len(chunk), "error", err)
		return 0
	}
	return n
}

type chunkOutcome struct {
	texts    int
	accepted int
	queued   int
	missing  int
	jobID    string
	err      error
}

func (d *Dispatcher) send(ctx context.Context, source string, targets, texts []string, opts Options) chunkOutcome {
	out := chunkOutcome{texts: len(texts)}
	if len(texts) == 0 {
		return out
	}

	d.logger.Info("sending batch",
		"source", source,
		"targets", strings.Join(targets, ","),
		"count", len(texts),
	)

	br, err := d.client.RequestBatch(ctx, wire.BatchRequest{
		Texts:            texts,
		Source:           source,
		Target:           targets,
		Engine:           opts.Engine,
		InsertNewStrings: true,
		ForceDispatch:    opts.ForceDispatch,
		Transport:        opts.transport(),
	})
	if err != nil {
		out.err = fmt.Errorf("batch %s→%s: %w", source, strings.Join(targets, ","), err)
		d.logger.Error("batch failed", "source", source, "targets", strings.Join(targets, ","), "error", err)
		return out
	}

	out.accepted = br.Accepted
	out.queued = br.Queued
	out.missing = br.Missing
	out.jobID = br.JobID

	if opts.ShowServer {
		raw, _ := json.Marshal(br.Raw)
		d.logger.Info("server payload", "payload", string(raw))
	}

	if br.Error != "" {
		out.err = fmt.Errorf("batch %s→%s: %w: %s", source, strings.Join(targets, ","), ErrRejected, br.Error)
		d.logger.Error("batch result",
			"accepted", out.accepted, "queued", out.queued, "missing", out.missing, "error", br.Error)
		return out
	}

	d.logger.Info("batch result",
		"accepted", out.accepted, "queued", out.queued, "missing", out.missing, "job", out.jobID)
	return out
}
