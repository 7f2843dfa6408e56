// Package main provides the entry point for the sprintstats CLI tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sprintstats/cmd/sprintstats/commands"
	"github.com/Sumatoshi-tech/sprintstats/pkg/version"
)

func main() {
	version.Init()

	rootCmd := &cobra.Command{
		Use:   "sprintstats",
		Short: "Per-sprint engineering activity report",
		Long: `sprintstats attributes commits, pull requests and reviews to tracked users
for every configured sprint and renders one report per team.

Commands:
  report    Fetch all repositories and render the team reports
  validate  Check the user, sprint and repository catalogs`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	commands.RegisterPersistentFlags(rootCmd)

	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
