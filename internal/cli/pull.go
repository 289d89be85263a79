package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/survos/lingua/internal/config"
	"github.com/survos/lingua/internal/pull"
)

// pullFlags are shared by pull and sync.
type pullFlags struct {
	BatchSize        int
	NoLocaleGrouping bool
	Force            bool
}

func (p *pullFlags) register(cmd *cobra.Command, batchFlag string) {
	f := cmd.Flags()
	f.IntVar(&p.BatchSize, batchFlag, 0, "keys per pull request (default from config)")
	f.BoolVar(&p.NoLocaleGrouping, "no-locale-grouping", false, "chunk rows across target locales (requests stay per locale)")
}

func (p *pullFlags) options(cfg *config.Config, targets []string, engine, onlyEngine string, limit int) pull.Options {
	return pull.Options{
		Targets:          targets,
		Engine:           firstNonEmpty(engine, cfg.Engine),
		OnlyEngine:       onlyEngine,
		BatchSize:        firstPositive(p.BatchSize, cfg.PullBatchSize),
		Limit:            limit,
		NoLocaleGrouping: p.NoLocaleGrouping,
		Force:            p.Force,
	}
}

// PullOptions holds flags for the pull command.
type PullOptions struct {
	*RootOptions
	pullFlags
	Targets    []string
	Engine     string
	OnlyEngine string
	Limit      int
}

// NewPullCommand creates the pull command.
func NewPullCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PullOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Fetch finished translations by content key",
		Long: `Fetch finished translations by content key and store them.

Only stubs without text are requested. Rows that already hold a
translation are left alone unless --force is given.

Example:
  lingua pull --targets es
  lingua pull --no-locale-grouping --batch 1000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPull(cmd, opts)
		},
	}

	opts.register(cmd, "batch")
	f := cmd.Flags()
	f.StringSliceVar(&opts.Targets, "targets", nil, "target locales (comma-separated); default from config")
	f.StringVar(&opts.Engine, "engine", "", "engine hint sent to the server")
	f.StringVar(&opts.OnlyEngine, "only-engine", "", "only consider stubs recorded for this engine")
	f.IntVar(&opts.Limit, "limit", 0, "maximum rows to consider (0 = no limit)")
	f.BoolVar(&opts.Force, "force", false, "overwrite rows that already hold a translation")

	return cmd
}

func runPull(cmd *cobra.Command, opts *PullOptions) error {
	a, err := openApp(cmd, opts.RootOptions, needs{store: true, client: true}, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	targets, _ := a.cfg.ResolveTargets(opts.Targets)
	popts := opts.options(a.cfg, targets, opts.Engine, opts.OnlyEngine, opts.Limit)

	f := pull.New(a.client,
		pull.WithStore(a.store, a.store),
		pull.WithBatchSize(a.cfg.PullBatchSize),
		pull.WithLogger(a.logger),
	)
	res, err := f.PullPending(ctx, popts)

	view := newPullView(res)
	if err != nil {
		return fail(a.out, "pull", err, view)
	}
	if a.out.JSON() {
		return a.out.Success(view)
	}
	printPull(a.out.Writer, view)
	return nil
}

type pullView struct {
	Rows    int      `json:"rows"`
	Chunks  int      `json:"chunks"`
	Updated int64    `json:"updated"`
	Pending int      `json:"pending"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`

	summary string
}

func newPullView(r pull.Result) pullView {
	return pullView{
		Rows:    r.Rows,
		Chunks:  r.Chunks,
		Updated: r.Updated,
		Pending: r.Pending,
		Failed:  r.FailedChunks,
		Errors:  errorStrings(r.Errors),
		summary: r.Summary(),
	}
}

func printPull(w io.Writer, v pullView) {
	fmt.Fprintf(w, "Pull: %s\n", v.summary)
	for _, e := range v.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
}
