package cmd

import (
	"github.com/spf13/cobra"
)

func Execute() error {
	var rootCmd = &cobra.Command{
		Use:           "crawlrt",
		Short:         "crawl runtime: reactor, memory monitor and status server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newRunCmd(), versionCmd)
	return rootCmd.Execute()
}
