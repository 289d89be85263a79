package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/survos/lingua/internal/client"
	"github.com/survos/lingua/internal/config"
	"github.com/survos/lingua/internal/pull"
	"github.com/survos/lingua/internal/push"
	"github.com/survos/lingua/internal/registry"
	"github.com/survos/lingua/internal/sandbox"
	"github.com/survos/lingua/internal/store"
	"github.com/survos/lingua/internal/syncer"
	"github.com/survos/lingua/internal/testutil"
	"github.com/survos/lingua/internal/transport"
	"github.com/survos/lingua/internal/wire"
)

// env is the isolated world one scenario runs in.
type env struct {
	store    *store.Store
	server   *sandbox.Server
	pusher   *push.Dispatcher
	puller   *pull.Fetcher
	registry *registry.Registry
	sleeper  *testutil.FakeSleeper
	ids      *testutil.FixedIDGenerator
	logger   *slog.Logger
}

func newEnv(s *Scenario) (*env, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	jobs := 0
	srv := sandbox.New(
		sandbox.WithDelay(s.Server.Delay),
		sandbox.WithIDFunc(func() string {
			jobs++
			return fmt.Sprintf("job-%d", jobs)
		}),
		sandbox.WithLogger(logger),
	)
	c := client.New(transport.NewInProcess(srv.Handler(), ""), client.WithLogger(logger))

	return &env{
		store:  st,
		server: srv,
		pusher: push.New(c,
			push.WithPendingSource(st),
			push.WithSourceLister(st),
			push.WithQueueMarker(st),
			push.WithLogger(logger),
		),
		puller:   pull.New(c, pull.WithStore(st, st), pull.WithLogger(logger)),
		registry: registry.New(st, "", logger),
		sleeper:  &testutil.FakeSleeper{},
		ids:      testutil.NewFixedIDGenerator(s.RunID),
		logger:   logger,
	}, nil
}

// Run executes a scenario and returns the result.
//
// Every step runs in order regardless of earlier step failures; assertions
// are evaluated against the final state. The returned error is reserved for
// failures to build the environment; scenario failures are reported in
// Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	e, err := newEnv(scenario)
	if err != nil {
		return nil, err
	}
	defer e.store.Close()

	result := NewResult()

	for i, step := range scenario.Steps {
		outcome, stepErr := e.execute(ctx, step)
		ev := result.AddTrace(step.Op(), outcome, stepErr)
		for _, msg := range checkStep(step, ev) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i+1, ev.Op, msg))
		}
	}

	for _, err := range e.evaluateAssertions(ctx, scenario.Assertions, result.Trace) {
		result.AddError(err.Error())
	}
	return result, nil
}

func (e *env) execute(ctx context.Context, step Step) (map[string]any, error) {
	switch {
	case step.Register != nil:
		return e.register(ctx, step.Register)
	case step.Push != nil:
		return e.push(ctx, step.Push)
	case step.Pull != nil:
		return e.pull(ctx, step.Pull)
	case step.Sync != nil:
		return e.sync(ctx, step.Sync)
	}
	return nil, fmt.Errorf("step has no operation")
}

func (e *env) register(ctx context.Context, r *RegisterStep) (map[string]any, error) {
	res, err := e.registry.Register(ctx, r.Source, r.Targets, r.Texts)
	return map[string]any{
		"sources": res.Sources,
		"stubs":   res.Stubs,
		"skipped": res.Skipped,
	}, err
}

func (e *env) push(ctx context.Context, p *PushStep) (map[string]any, error) {
	tr, err := wire.ParseTransport(p.Transport)
	if err != nil {
		return nil, err
	}
	opts := push.Options{
		Targets:       p.Targets,
		BatchSize:     p.BatchSize,
		Transport:     tr,
		ForceDispatch: p.Force,
		Strict:        p.Strict,
	}

	var res push.Result
	if p.Mode == "str" {
		res, err = e.pusher.PushAll(ctx, opts)
	} else {
		res, err = e.pusher.PushPending(ctx, opts)
	}
	return pushOutcome(res), err
}

func pushOutcome(r push.Result) map[string]any {
	return map[string]any{
		"batches":  r.Batches,
		"texts":    r.Texts,
		"accepted": r.Accepted,
		"queued":   r.Queued,
		"missing":  r.Missing,
		"errored":  r.ErroredChunks,
		"marked":   r.Marked,
	}
}

func (e *env) pull(ctx context.Context, p *PullStep) (map[string]any, error) {
	res, err := e.puller.PullPending(ctx, pull.Options{
		Targets:          p.Targets,
		BatchSize:        p.BatchSize,
		NoLocaleGrouping: p.NoLocaleGrouping,
		Force:            p.Force,
	})
	return map[string]any{
		"rows":    res.Rows,
		"chunks":  res.Chunks,
		"updated": res.Updated,
		"pending": res.Pending,
		"failed":  res.FailedChunks,
	}, err
}

func (e *env) sync(ctx context.Context, s *SyncStep) (map[string]any, error) {
	tr, err := wire.ParseTransport(s.Transport)
	if err != nil {
		return nil, err
	}
	var interval time.Duration
	if s.Poll != "" {
		if interval, err = config.ParseSeconds(s.Poll); err != nil {
			return nil, err
		}
	}
	threshold := float64(config.DefaultStopThreshold)
	if s.StopThreshold != nil {
		threshold = *s.StopThreshold
	}
	maxPolls := s.MaxPolls
	if maxPolls <= 0 {
		maxPolls = config.DefaultMaxPolls
	}

	o := syncer.New(e.pusher, e.puller, e.store,
		syncer.WithSleeper(e.sleeper),
		syncer.WithIDGenerator(e.ids),
		syncer.WithLogger(e.logger),
	)
	rep, err := o.Run(ctx, syncer.Options{
		Push: push.Options{
			Targets:   s.Targets,
			BatchSize: s.BatchSize,
			Transport: tr,
		},
		Pull:          pull.Options{Targets: s.Targets, BatchSize: s.BatchSize},
		SkipPush:      s.SkipPush,
		PollInterval:  interval,
		MaxPolls:      maxPolls,
		StopThreshold: threshold,
		Targets:       s.Targets,
	})
	return map[string]any{
		"run_id":    rep.RunID,
		"state":     string(rep.FinalState),
		"attempts":  rep.Attempts,
		"converged": rep.Converged,
		"updated":   rep.Updated(),
		"accepted":  rep.Push.Accepted,
		"queued":    rep.Push.Queued,
	}, err
}

// checkStep compares a step's trace event against its expect clause.
func checkStep(step Step, ev TraceEvent) []string {
	var errs []string

	wantErr, hasWantErr := step.Expect["error"]
	switch {
	case hasWantErr && ev.Error == "":
		errs = append(errs, fmt.Sprintf("expected error containing %q, got none", fmt.Sprint(wantErr)))
	case hasWantErr && !strings.Contains(ev.Error, fmt.Sprint(wantErr)):
		errs = append(errs, fmt.Sprintf("expected error containing %q, got %q", fmt.Sprint(wantErr), ev.Error))
	case !hasWantErr && ev.Error != "":
		errs = append(errs, fmt.Sprintf("unexpected error: %s", ev.Error))
	}

	expect := make(map[string]any, len(step.Expect))
	for k, v := range step.Expect {
		if k != "error" {
			expect[k] = v
		}
	}
	return append(errs, matchFields(expect, ev.Outcome)...)
}

// matchFields reports every key of expect whose value differs from actual.
// Values are compared by their printed form so YAML ints match int64 counters.
func matchFields(expect, actual map[string]any) []string {
	keys := make([]string, 0, len(expect))
	for k := range expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []string
	for _, k := range keys {
		got, ok := actual[k]
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: no such field", k))
			continue
		}
		if fmt.Sprint(expect[k]) != fmt.Sprint(got) {
			errs = append(errs, fmt.Sprintf("%s: expected %v, got %v", k, expect[k], got))
		}
	}
	return errs
}
