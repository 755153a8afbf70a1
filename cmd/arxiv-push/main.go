// Command arxiv-push searches arXiv for recent papers, summarizes them and
// delivers the digest once, on a daily schedule or behind an HTTP API.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "arxiv-push",
		Short: "Search, summarize and deliver recent arXiv papers",
		Long: `arxiv-push queries arXiv for papers matching a set of keywords,
summarizes each one and delivers the digest to the console, report files,
email or Discord.

Run a single search with "run", start a daily trigger with "schedule" or
expose the search API with "serve".`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&root.configPath, "config", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&root.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")

	rootCmd.AddCommand(
		newRunCmd(root, &runOptions{}),
		newScheduleCmd(root),
		newServeCmd(root),
		newHistoryCmd(root),
		newVersionCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
