package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/survos/lingua/internal/config"
	"github.com/survos/lingua/internal/push"
	"github.com/survos/lingua/internal/wire"
)

// Push modes.
const (
	ModePending = "tr"  // untranslated stubs
	ModeSources = "str" // every source string to the resolved targets
)

// pushFlags are shared by push and sync.
type pushFlags struct {
	Targets    []string
	Engine     string
	OnlyEngine string
	BatchSize  int
	Limit      int
	Enqueue    bool
	Force      bool
	Transport  string
	ShowServer bool
	Strict     bool
}

func (p *pushFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVar(&p.Targets, "targets", nil, "target locales (comma-separated); default from config")
	f.StringVar(&p.Engine, "engine", "", "engine hint sent to the server")
	f.StringVar(&p.OnlyEngine, "only-engine", "", "only consider stubs recorded for this engine")
	f.IntVarP(&p.BatchSize, "batch", "b", 0, "texts per request (default from config)")
	f.IntVar(&p.Limit, "limit", 0, "maximum rows to consider (0 = no limit)")
	f.BoolVar(&p.Enqueue, "enqueue", false, "queue work on the server (alias for --transport=async)")
	f.BoolVar(&p.Force, "force", false, "ask the server to dispatch even cached strings")
	f.StringVar(&p.Transport, "transport", "", "server execution: sync or async")
	f.BoolVar(&p.ShowServer, "show-server", false, "log the raw server payload for every batch")
	f.BoolVar(&p.Strict, "strict", false, "fail when a batch errors or nothing is accepted")
}

func (p *pushFlags) options(cfg *config.Config) (push.Options, error) {
	tr, err := wire.ParseTransport(p.Transport)
	if err != nil {
		return push.Options{}, err
	}
	targets, err := cfg.ResolveTargets(p.Targets)
	if err != nil {
		targets = nil
	}
	return push.Options{
		Engine:        firstNonEmpty(p.Engine, cfg.Engine),
		OnlyEngine:    p.OnlyEngine,
		BatchSize:     firstPositive(p.BatchSize, cfg.BatchSize),
		Limit:         p.Limit,
		Targets:       targets,
		Transport:     tr,
		Enqueue:       p.Enqueue,
		ForceDispatch: p.Force,
		Strict:        p.Strict,
		ShowServer:    p.ShowServer,
	}, nil
}

// PushOptions holds flags for the push command.
type PushOptions struct {
	*RootOptions
	pushFlags
	Mode string
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PushOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Send untranslated strings to the translation server",
		Long: `Send untranslated strings to the translation server.

Mode "tr" pushes every pending translation stub, grouped by source and
target locale. Mode "str" pushes every registered source string to the
resolved target locales and requires targets.

Example:
  lingua push --targets es,fr
  lingua push --mode str --targets de --enqueue --strict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(cmd, opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.Mode, "mode", ModePending, "what to push: tr (pending stubs) or str (all source strings)")

	return cmd
}

func runPush(cmd *cobra.Command, opts *PushOptions) error {
	if opts.Mode != ModePending && opts.Mode != ModeSources {
		return commandError(newFormatter(cmd, opts.RootOptions), ErrCodeGeneric, "invalid flags",
			fmt.Errorf("mode %q: must be %s or %s", opts.Mode, ModePending, ModeSources))
	}

	a, err := openApp(cmd, opts.RootOptions, needs{store: true, client: true}, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	popts, err := opts.options(a.cfg)
	if err != nil {
		return commandError(a.out, ErrCodeGeneric, "invalid flags", err)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	d := push.New(a.client,
		push.WithPendingSource(a.store),
		push.WithSourceLister(a.store),
		push.WithQueueMarker(a.store),
		push.WithLogger(a.logger),
	)

	var res push.Result
	if opts.Mode == ModeSources {
		res, err = d.PushAll(ctx, popts)
	} else {
		res, err = d.PushPending(ctx, popts)
	}

	view := newPushView(res)
	if err != nil {
		if !a.out.JSON() {
			printPush(a.out.Writer, view)
		}
		return fail(a.out, "push", err, view)
	}
	if a.out.JSON() {
		return a.out.Success(view)
	}
	printPush(a.out.Writer, view)
	return nil
}

type pushView struct {
	Batches  int      `json:"batches"`
	Texts    int      `json:"texts"`
	Accepted int      `json:"accepted"`
	Queued   int      `json:"queued"`
	Missing  int      `json:"missing"`
	Errored  int      `json:"errored"`
	Marked   int64    `json:"marked"`
	JobIDs   []string `json:"job_ids,omitempty"`
	Errors   []string `json:"errors,omitempty"`

	summary string
}

func newPushView(r push.Result) pushView {
	return pushView{
		Batches:  r.Batches,
		Texts:    r.Texts,
		Accepted: r.Accepted,
		Queued:   r.Queued,
		Missing:  r.Missing,
		Errored:  r.ErroredChunks,
		Marked:   r.Marked,
		JobIDs:   r.JobIDs,
		Errors:   errorStrings(r.Errors),
		summary:  r.Summary(),
	}
}

func printPush(w io.Writer, v pushView) {
	fmt.Fprintf(w, "Push: %s\n", v.summary)
	if v.Marked > 0 {
		fmt.Fprintf(w, "  marked queued: %d\n", v.Marked)
	}
	for _, id := range v.JobIDs {
		fmt.Fprintf(w, "  job: %s\n", id)
	}
	for _, e := range v.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
}
