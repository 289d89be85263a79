package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/survos/lingua/internal/config"
	"github.com/survos/lingua/internal/handoff"
	"github.com/survos/lingua/internal/model"
	"github.com/survos/lingua/internal/pull"
	"github.com/survos/lingua/internal/push"
	"github.com/survos/lingua/internal/syncer"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Push pushFlags
	Pull pullFlags

	Poll                 string
	MaxPolls             int
	StopWhen             float64
	SkipPush             bool
	Handoff              string
	TranslationThreshold int

	// Sleeper and IDs replace the real timer and UUIDv7 run IDs (for testing).
	Sleeper syncer.Sleeper
	IDs     syncer.IDGenerator
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return newSyncCommand(&SyncOptions{RootOptions: rootOpts})
}

func newSyncCommand(opts *SyncOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push pending strings, then pull until translated",
		Long: `Push pending strings once, then pull and re-check completion until
every target locale reaches the stop threshold, polling stops, or the
poll budget is spent.

With --poll 0 (the default) sync is one push followed by one pull.
A hand-off command runs only when the threshold was reached; its
failure fails the run.

Example:
  lingua sync --targets es,fr --poll 5 --max-polls 30
  lingua sync --enqueue --poll 10 --stop-when 95 --handoff "make deploy"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	opts.Push.register(cmd)
	opts.Pull.register(cmd, "pull-batch")
	f := cmd.Flags()
	f.StringVar(&opts.Poll, "poll", "", "seconds between pulls; 0 disables polling (default from config)")
	f.IntVar(&opts.MaxPolls, "max-polls", config.DefaultMaxPolls, "maximum pull attempts")
	f.Float64Var(&opts.StopWhen, "stop-when", config.DefaultStopThreshold, "stop once every locale is at least this percent complete")
	f.BoolVar(&opts.SkipPush, "skip-push", false, "only pull, for work pushed earlier")
	f.StringVar(&opts.Handoff, "handoff", "", "command to run after the threshold is reached")
	f.IntVar(&opts.TranslationThreshold, "translation-threshold", 0, "pass --translation-threshold=N to the hand-off command")

	return cmd
}

func runSync(cmd *cobra.Command, opts *SyncOptions) error {
	var poll time.Duration
	if opts.Poll != "" {
		d, err := config.ParseSeconds(opts.Poll)
		if err != nil {
			return commandError(newFormatter(cmd, opts.RootOptions), ErrCodeGeneric, "invalid --poll", err)
		}
		poll = d
	}

	fs := cmd.Flags()
	override := func(c *config.Config) {
		if opts.Poll != "" {
			c.PollInterval = poll
		}
		if fs.Changed("max-polls") {
			c.MaxPolls = opts.MaxPolls
		}
		if fs.Changed("stop-when") {
			c.StopThreshold = opts.StopWhen
		}
		if opts.Handoff != "" {
			c.Handoff = handoff.Parse(opts.Handoff)
		}
	}

	a, err := openApp(cmd, opts.RootOptions, needs{store: true, client: true}, override)
	if err != nil {
		return err
	}
	defer a.Close()

	pushOpts, err := opts.Push.options(a.cfg)
	if err != nil {
		return commandError(a.out, ErrCodeGeneric, "invalid flags", err)
	}
	pullOpts := opts.Pull.options(a.cfg, pushOpts.Targets, opts.Push.Engine, opts.Push.OnlyEngine, opts.Push.Limit)

	ctx, cancel := signalContext(cmd)
	defer cancel()

	orchOpts := []syncer.Option{syncer.WithLogger(a.logger)}
	if opts.Sleeper != nil {
		orchOpts = append(orchOpts, syncer.WithSleeper(opts.Sleeper))
	}
	if opts.IDs != nil {
		orchOpts = append(orchOpts, syncer.WithIDGenerator(opts.IDs))
	}
	if len(a.cfg.Handoff) > 0 {
		h := handoff.Command{Argv: a.cfg.Handoff, Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
		if a.out.JSON() {
			h.Stdout = cmd.ErrOrStderr()
		}
		if fs.Changed("translation-threshold") {
			t := opts.TranslationThreshold
			h.Threshold = &t
		}
		a.logger.Debug("hand-off configured", "command", h.String())
		orchOpts = append(orchOpts, syncer.WithHandoff(h))
	}

	pusher := push.New(a.client,
		push.WithPendingSource(a.store),
		push.WithQueueMarker(a.store),
		push.WithLogger(a.logger),
	)
	puller := pull.New(a.client,
		pull.WithStore(a.store, a.store),
		pull.WithBatchSize(a.cfg.PullBatchSize),
		pull.WithLogger(a.logger),
	)
	orch := syncer.New(pusher, puller, a.store, orchOpts...)

	rep, err := orch.Run(ctx, syncer.Options{
		Push:          pushOpts,
		Pull:          pullOpts,
		SkipPush:      opts.SkipPush,
		PollInterval:  a.cfg.PollInterval,
		MaxPolls:      a.cfg.MaxPolls,
		StopThreshold: a.cfg.StopThreshold,
		Targets:       pushOpts.Targets,
	})

	view := newSyncView(rep, opts.SkipPush)
	if err != nil {
		if !a.out.JSON() {
			printSync(a.out.Writer, view)
		}
		return fail(a.out, "sync", err, view)
	}
	if a.out.JSON() {
		return a.out.Success(view)
	}
	printSync(a.out.Writer, view)
	return nil
}

type syncView struct {
	RunID        string              `json:"run_id"`
	State        string              `json:"state"`
	Attempts     int                 `json:"attempts"`
	Converged    bool                `json:"converged"`
	Updated      int64               `json:"updated"`
	Push         *pushView           `json:"push,omitempty"`
	Pulls        []pullView          `json:"pulls"`
	PullErrors   []string            `json:"pull_errors,omitempty"`
	Completion   []model.LocaleStats `json:"completion"`
	HandoffRan   bool                `json:"handoff_ran"`
	HandoffError string              `json:"handoff_error,omitempty"`
}

func newSyncView(rep syncer.Report, skipPush bool) syncView {
	v := syncView{
		RunID:      rep.RunID,
		State:      string(rep.FinalState),
		Attempts:   rep.Attempts,
		Converged:  rep.Converged,
		Updated:    rep.Updated(),
		Pulls:      make([]pullView, 0, len(rep.Pulls)),
		PullErrors: errorStrings(rep.PullErrors),
		Completion: rep.Stats,
		HandoffRan: rep.HandoffRan,
	}
	if !skipPush {
		pv := newPushView(rep.Push)
		v.Push = &pv
	}
	for _, p := range rep.Pulls {
		v.Pulls = append(v.Pulls, newPullView(p))
	}
	if rep.HandoffErr != nil {
		v.HandoffError = rep.HandoffErr.Error()
	}
	return v
}

func printSync(w io.Writer, v syncView) {
	fmt.Fprintf(w, "Sync %s: state=%s, attempts=%d, converged=%t, updated=%d\n",
		v.RunID, v.State, v.Attempts, v.Converged, v.Updated)
	if v.Push != nil {
		printPush(w, *v.Push)
	}
	for _, e := range v.PullErrors {
		fmt.Fprintf(w, "  pull error: %s\n", e)
	}
	if len(v.Completion) > 0 {
		fmt.Fprintln(w)
		renderCompletion(w, v.Completion)
	}
	if v.HandoffRan {
		if v.HandoffError != "" {
			fmt.Fprintf(w, "Hand-off failed: %s\n", v.HandoffError)
		} else {
			fmt.Fprintln(w, "Hand-off completed")
		}
	}
}
