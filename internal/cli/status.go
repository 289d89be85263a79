package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/survos/lingua/internal/model"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Targets []string
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show translation completion per target locale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Targets, "targets", nil, "target locales (default: every locale in storage)")

	return cmd
}

func runStatus(cmd *cobra.Command, opts *StatusOptions) error {
	a, err := openApp(cmd, opts.RootOptions, needs{store: true}, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	targets, _ := a.cfg.ResolveTargets(opts.Targets)
	stats, err := a.store.Completion(cmd.Context(), targets)
	if err != nil {
		return fail(a.out, "status", err, nil)
	}

	if a.out.JSON() {
		return a.out.Success(stats)
	}
	if len(stats) == 0 {
		fmt.Fprintln(a.out.Writer, "No translation stubs found.")
		return nil
	}
	renderCompletion(a.out.Writer, stats)
	return nil
}

// renderCompletion writes one aligned row per locale.
func renderCompletion(w io.Writer, stats []model.LocaleStats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Target\tTranslated\tTotal\t% Complete\tMissing")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f%%\t%d\n", s.Locale, s.Translated, s.Total, s.Pct, s.Missing)
	}
	_ = tw.Flush()
}
