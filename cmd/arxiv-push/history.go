package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryosukesatoh/arxiv-push/internal/history"
	"github.com/ryosukesatoh/arxiv-push/internal/jsonutil"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			path := cfg.HistoryPath()
			if path == "" {
				return errorf("history is disabled in the config")
			}

			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				out, err := jsonutil.Marshal(entries)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return err
			}
			return printHistory(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printHistory(w io.Writer, entries []history.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "no runs recorded")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tKIND\tPAPERS\tDURATION\tKEYWORDS\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			e.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			e.Kind,
			e.ResultCount,
			e.Duration().Round(time.Millisecond),
			strings.Join(e.Keywords, ", "),
			e.Message,
		)
	}
	return tw.Flush()
}
