package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/survos/lingua/internal/keys"
	"github.com/survos/lingua/internal/wire"
)

// DemoOptions holds flags for the demo command.
type DemoOptions struct {
	*RootOptions
	From      string
	To        []string
	Engine    string
	Enqueue   bool
	Force     bool
	Transport string
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "demo <text>...",
		Short: "Translate texts right away without touching local storage",
		Long: `Send texts in one batch and print what the server returns: the
translations when it answers synchronously, or the job id when the
batch was queued.

Example:
  lingua demo "Hello world" --to es,fr
  lingua demo "Hello" --to de --enqueue`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.From, "from", "en", "source locale")
	f.StringSliceVar(&opts.To, "to", nil, "target locales (default from config)")
	f.StringVar(&opts.Engine, "engine", "", "engine hint sent to the server")
	f.BoolVar(&opts.Enqueue, "enqueue", false, "queue the batch (alias for --transport=async)")
	f.BoolVar(&opts.Force, "force", false, "dispatch even cached strings")
	f.StringVar(&opts.Transport, "transport", "", "server execution: sync or async")

	return cmd
}

func runDemo(cmd *cobra.Command, opts *DemoOptions, texts []string) error {
	tr, err := wire.ParseTransport(opts.Transport)
	if err != nil {
		return commandError(newFormatter(cmd, opts.RootOptions), ErrCodeGeneric, "invalid flags", err)
	}
	if tr == "" && opts.Enqueue {
		tr = wire.TransportAsync
	}

	a, err := openApp(cmd, opts.RootOptions, needs{client: true}, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	targets, err := a.cfg.ResolveTargets(opts.To)
	if err != nil {
		return commandError(a.out, ErrCodeConfig, "demo", err)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	resp, err := a.client.RequestBatch(ctx, wire.BatchRequest{
		Texts:            texts,
		Source:           keys.NormalizeLocale(opts.From),
		Target:           targets,
		Engine:           firstNonEmpty(opts.Engine, a.cfg.Engine),
		InsertNewStrings: true,
		ForceDispatch:    opts.Force,
		Transport:        tr,
	})
	if err != nil {
		return fail(a.out, "demo", err, nil)
	}

	v := demoView{
		Status:   resp.Status,
		JobID:    resp.JobID,
		Accepted: resp.Accepted,
		Queued:   resp.Queued,
		Missing:  resp.Missing,
		Items:    resp.Items,
	}
	if a.out.JSON() {
		return a.out.Success(v)
	}
	printDemo(a.out.Writer, v)
	return nil
}

type demoView struct {
	Status   string                 `json:"status"`
	JobID    string                 `json:"job_id,omitempty"`
	Accepted int                    `json:"accepted"`
	Queued   int                    `json:"queued"`
	Missing  int                    `json:"missing"`
	Items    []wire.TranslationItem `json:"items,omitempty"`
}

func printDemo(w io.Writer, v demoView) {
	fmt.Fprintf(w, "Status: %s (accepted=%d, queued=%d, missing=%d)\n", v.Status, v.Accepted, v.Queued, v.Missing)
	if v.JobID != "" {
		fmt.Fprintf(w, "Job: %s\n", v.JobID)
	}
	printItems(w, v.Items)
}

func printItems(w io.Writer, items []wire.TranslationItem) {
	for _, it := range items {
		cached := ""
		if it.Cached {
			cached = " (cached)"
		}
		fmt.Fprintf(w, "  [%s] %s  %s%s\n", it.Target, it.Key, it.Text, cached)
	}
}

// NewJobCommand creates the job command.
func NewJobCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Show the state of a queued server job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts, needs{client: true}, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			js, err := a.client.JobStatus(cmd.Context(), args[0])
			if err != nil {
				return fail(a.out, "job", err, nil)
			}
			if a.out.JSON() {
				return a.out.Success(js)
			}

			w := a.out.Writer
			fmt.Fprintf(w, "Job %s: %s", js.JobID, js.State)
			if js.Progress != nil {
				fmt.Fprintf(w, " (%d%%)", *js.Progress)
			}
			fmt.Fprintln(w)
			if js.Message != "" {
				fmt.Fprintf(w, "  %s\n", js.Message)
			}
			printItems(w, js.Items)
			return nil
		},
	}
}

// NewSourceCommand creates the source command.
func NewSourceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "source <key>",
		Short: "Look up a source string on the server by content key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts, needs{client: true}, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			src, err := a.client.Source(cmd.Context(), args[0])
			if err != nil {
				return fail(a.out, "source", err, nil)
			}
			if a.out.JSON() {
				return a.out.Success(src)
			}

			enc := json.NewEncoder(a.out.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(src)
		},
	}
}
