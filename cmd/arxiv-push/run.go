package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryosukesatoh/arxiv-push/internal/config"
	"github.com/ryosukesatoh/arxiv-push/internal/report"
	"github.com/ryosukesatoh/arxiv-push/internal/runner"
	"github.com/ryosukesatoh/arxiv-push/internal/summarizer"
)

const pollInterval = 200 * time.Millisecond

type runOptions struct {
	keywords []string
	days     int
	max      int
	language string
	format   string
	noSave   bool
}

func newRunCmd(root *rootOptions, opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one search and print the report",
		Long: `Run searches arXiv once, summarizes the matching papers, prints the
report to the console and saves it under the output directory.

Flags override the corresponding config file values.`,
		Example: `  arxiv-push run -k "large language model,retrieval" -d 3 -n 5 -l english
  arxiv-push run -k diffusion -f markdown --no-save`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, root, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.keywords, "keywords", "k", nil, "comma-separated search keywords")
	cmd.Flags().IntVarP(&opts.days, "days", "d", 0, "only include papers from the last N days")
	cmd.Flags().IntVarP(&opts.max, "max", "n", 0, "maximum number of papers")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "summary language (chinese, english)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "report file format (html, markdown)")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "do not save the report to a file")
	return cmd
}

// apply overlays the flags that were set on cfg.
func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("keywords") {
		cfg.Keywords = o.keywords
	}
	if flags.Changed("days") {
		days := o.days
		cfg.DaysBack = &days
	}
	if flags.Changed("max") {
		cfg.MaxResults = o.max
	}
	if flags.Changed("language") {
		lang, err := summarizer.ParseLanguage(o.language)
		if err != nil {
			return err
		}
		cfg.Language = string(lang)
	}
	if flags.Changed("format") {
		f, err := report.ParseFormat(o.format)
		if err != nil {
			return err
		}
		if f == report.Console {
			return errorf("console output is always printed; --format takes html or markdown")
		}
		cfg.Output.Formats = []string{string(f)}
	}
	if o.noSave {
		cfg.Output.NoSave = true
	}
	// The report is printed below, so the stdout publisher would repeat it.
	cfg.Publisher.Types = slices.DeleteFunc(slices.Clone(cfg.Publisher.Types), func(t string) bool {
		return t == "stdout"
	})
	return nil
}

func runOnce(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	cfg, l, err := setup(root, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	if err := opts.apply(cmd, cfg); err != nil {
		return err
	}

	a, err := newApp(cfg, l)
	if err != nil {
		return err
	}
	defer a.shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := printProgress(a.runner, cmd.ErrOrStderr())
	st, err := a.runner.Run(ctx, a.defaultRequest())
	done()
	if err != nil {
		return err
	}

	switch st.Kind {
	case runner.KindCompleted:
		renderer := report.NewRenderer(st.Language)
		return renderer.Console(cmd.OutOrStdout(), st.Results, st.Keywords)
	case runner.KindNoResults:
		fmt.Fprintln(cmd.OutOrStdout(), st.Message)
		return nil
	case runner.KindStopped:
		return nil
	default:
		return errorf("%s", st.Message)
	}
}

// printProgress prints each new progress message of r to w until the
// returned function is called. That call prints the final state and waits
// for the printer to exit.
func printProgress(r *runner.Runner, w io.Writer) func() {
	quit := make(chan struct{})
	exited := make(chan struct{})

	var last string
	emit := func() {
		st := r.Status()
		if st.RunID == "" {
			return
		}
		if line := fmt.Sprintf("[%3d%%] %s", st.Progress, st.Message); line != last {
			fmt.Fprintln(w, line)
			last = line
		}
	}

	go func() {
		defer close(exited)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				emit()
			}
		}
	}()

	return func() {
		close(quit)
		<-exited
		emit()
	}
}
