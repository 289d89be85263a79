package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/survos/lingua/internal/model"
	"github.com/survos/lingua/internal/pull"
	"github.com/survos/lingua/internal/push"
)

// State is a place in the run state machine.
type State string

const (
	StatePushing    State = "pushing"
	StatePulling    State = "pulling"
	StateEvaluating State = "evaluating"
	StateSleeping   State = "sleeping"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// ErrHandoff wraps a failed downstream hand-off.
var ErrHandoff = errors.New("hand-off failed")

// Pusher dispatches pending work once per run.
type Pusher interface {
	PushPending(ctx context.Context, opts push.Options) (push.Result, error)
}

// Puller harvests resolved translations.
type Puller interface {
	PullPending(ctx context.Context, opts pull.Options) (pull.Result, error)
}

// CompletionSource computes per-locale completion from local storage.
type CompletionSource interface {
	Completion(ctx context.Context, targets []string) ([]model.LocaleStats, error)
}

// Handoff is the downstream step run after convergence.
type Handoff interface {
	Run(ctx context.Context) error
}

// Options controls one run.
type Options struct {
	Push push.Options
	Pull pull.Options
	// SkipPush starts in Pulling, for harvesting work pushed earlier.
	SkipPush bool
	// PollInterval <= 0 disables polling: one push and one pull.
	PollInterval time.Duration
	// MaxPolls caps pull attempts; values below 1 mean one attempt.
	MaxPolls      int
	StopThreshold float64
	// Targets restricts completion; empty means every locale in storage.
	Targets []string
}

// Report is the outcome of a run. It is populated even when Run fails.
type Report struct {
	RunID      string
	Push       push.Result
	Pulls      []pull.Result
	PullErrors []error
	Stats      []model.LocaleStats
	Attempts   int
	Converged  bool
	FinalState State
	HandoffRan bool
	HandoffErr error
}

// Updated sums rows updated across all pulls.
func (r Report) Updated() int64 {
	var n int64
	for _, p := range r.Pulls {
		n += p.Updated
	}
	return n
}

// Orchestrator runs the push → pull → poll loop.
type Orchestrator struct {
	pusher     Pusher
	puller     Puller
	completion CompletionSource
	handoff    Handoff
	sleeper    Sleeper
	ids        IDGenerator
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHandoff sets the step run after convergence.
func WithHandoff(h Handoff) Option {
	return func(o *Orchestrator) { o.handoff = h }
}

// WithSleeper replaces the real timer.
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) { o.sleeper = s }
}

// WithIDGenerator replaces the UUIDv7 run ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *Orchestrator) { o.ids = g }
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator.
func New(pusher Pusher, puller Puller, completion CompletionSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		pusher:     pusher,
		puller:     puller,
		completion: completion,
		sleeper:    TimerSleeper{},
		ids:        UUIDv7Generator{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one synchronization run. It returns an error only when the
// run ends in StateFailed or the hand-off fails; partial pulls are progress,
// not failures.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Report, error) {
	rep := Report{RunID: o.ids.Generate()}
	log := o.logger.With("run", rep.RunID)

	maxPolls := max(1, opts.MaxPolls)
	state := StatePushing
	if opts.SkipPush {
		state = StatePulling
	}

	for {
		log.Debug("sync state", "state", state, "attempt", rep.Attempts)

		switch state {
		case StatePushing:
			res, err := o.pusher.PushPending(ctx, opts.Push)
			rep.Push = res
			log.Info("push finished", "summary", res.Summary())
			if err != nil {
				log.Error("push failed, pull skipped", "error", err)
				return o.fail(rep, fmt.Errorf("push: %w", err))
			}
			state = StatePulling

		case StatePulling:
			rep.Attempts++
			res, err := o.puller.PullPending(ctx, opts.Pull)
			rep.Pulls = append(rep.Pulls, res)
			if err != nil {
				if ctx.Err() != nil {
					return o.fail(rep, err)
				}
				rep.PullErrors = append(rep.PullErrors, err)
				log.Warn("pull failed, evaluating local state", "attempt", rep.Attempts, "error", err)
			} else {
				log.Info("pull finished", "attempt", rep.Attempts, "max", maxPolls, "summary", res.Summary())
			}
			state = StateEvaluating

		case StateEvaluating:
			stats, err := o.completion.Completion(ctx, opts.Targets)
			if err != nil {
				return o.fail(rep, fmt.Errorf("completion: %w", err))
			}
			rep.Stats = stats
			for _, s := range stats {
				log.Info("completion", "locale", s.Locale, "translated", s.Translated, "total", s.Total, "pct", s.Pct)
			}

			switch {
			case MeetsThreshold(stats, opts.StopThreshold):
				rep.Converged = true
				log.Info("reached translation threshold", "threshold", opts.StopThreshold)
				state = StateDone
			case opts.PollInterval <= 0:
				log.Info("polling disabled, stopping after one pull")
				state = StateDone
			case rep.Attempts >= maxPolls:
				log.Warn("max polls reached, stopping", "attempts", rep.Attempts)
				state = StateDone
			default:
				state = StateSleeping
			}

		case StateSleeping:
			log.Info("sleeping before next pull", "interval", opts.PollInterval)
			if err := o.sleeper.Sleep(ctx, opts.PollInterval); err != nil {
				return o.fail(rep, err)
			}
			state = StatePulling

		case StateDone:
			rep.FinalState = StateDone
			if rep.Converged && o.handoff != nil {
				rep.HandoffRan = true
				if err := o.handoff.Run(ctx); err != nil {
					rep.HandoffErr = err
					log.Error("hand-off failed", "error", err)
					return rep, fmt.Errorf("%w: %w", ErrHandoff, err)
				}
			}
			return rep, nil
		}
	}
}

func (o *Orchestrator) fail(rep Report, err error) (Report, error) {
	rep.FinalState = StateFailed
	return rep, err
}
