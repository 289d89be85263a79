package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/survos/lingua/internal/registry"
)

// RegisterOptions holds flags for the register and import-po commands.
type RegisterOptions struct {
	*RootOptions
	Source  string
	Targets []string
	Engine  string
	Locale  string
}

func (o *RegisterOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.Source, "source", "en", "source locale of the texts")
	f.StringSliceVar(&o.Targets, "targets", nil, "target locales to create stubs for (default from config)")
	f.StringVar(&o.Engine, "engine", "", "engine recorded on new stubs (default babel)")
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register <text>...",
		Short: "Register source strings and create translation stubs",
		Long: `Register source strings under their content key and create an
untranslated stub for every target locale. Registering the same text
again is a no-op.

Example:
  lingua register --source en --targets es,fr "Save" "Cancel"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd, opts, args)
		},
	}

	opts.register(cmd)

	return cmd
}

func runRegister(cmd *cobra.Command, opts *RegisterOptions, texts []string) error {
	a, err := openApp(cmd, opts.RootOptions, needs{store: true}, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	targets, err := a.cfg.ResolveTargets(opts.Targets)
	if err != nil {
		a.logger.Warn("no target locales, registering sources only")
	}

	reg := registry.New(a.store, opts.Engine, a.logger)
	res, err := reg.Register(cmd.Context(), opts.Source, targets, texts)
	if err != nil {
		return fail(a.out, "register", err, res)
	}
	return outputRegister(a.out, res)
}

// NewImportPOCommand creates the import-po command.
func NewImportPOCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import-po <file.po>",
		Short: "Register every msgid of a gettext catalog",
		Long: `Register every msgid of a gettext .po catalog as a source string.

With --locale, non-empty msgstr values are stored as translations into
that locale, so only the untranslated entries remain pending.

Example:
  lingua import-po messages.es.po --source en --targets es --locale es`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportPO(cmd, opts, args[0])
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.Locale, "locale", "", "store msgstr values as translations into this locale")

	return cmd
}

func runImportPO(cmd *cobra.Command, opts *RegisterOptions, path string) error {
	a, err := openApp(cmd, opts.RootOptions, needs{store: true}, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	targets, _ := a.cfg.ResolveTargets(opts.Targets)

	reg := registry.New(a.store, opts.Engine, a.logger)
	res, err := reg.ImportPO(cmd.Context(), path, registry.ImportOptions{
		SourceLocale: opts.Source,
		Targets:      targets,
		Locale:       opts.Locale,
	})
	if err != nil {
		return fail(a.out, "import-po", err, res)
	}
	return outputRegister(a.out, res)
}

type registerView struct {
	Sources    int   `json:"sources"`
	Stubs      int   `json:"stubs"`
	Skipped    int   `json:"skipped"`
	Translated int64 `json:"translated"`
}

func outputRegister(f *OutputFormatter, res registry.Result) error {
	v := registerView(res)
	if f.JSON() {
		return f.Success(v)
	}
	printRegister(f.Writer, v)
	return nil
}

func printRegister(w io.Writer, v registerView) {
	fmt.Fprintf(w, "Registered %d source string(s), %d new stub(s)", v.Sources, v.Stubs)
	if v.Skipped > 0 {
		fmt.Fprintf(w, ", %d skipped", v.Skipped)
	}
	if v.Translated > 0 {
		fmt.Fprintf(w, ", %d translated", v.Translated)
	}
	fmt.Fprintln(w)
}
