package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sprintstats/pkg/analyzer"
	"github.com/Sumatoshi-tech/sprintstats/pkg/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the user, sprint and repository catalogs",
		Long: `Load the three catalogs, check them against their schemas and the
cross-entry rules (unique aliases, ordered sprint bounds) and print a summary.`,
		Args: cobra.NoArgs,
		RunE: runValidate,
	}

	registerCatalogFlags(cmd)
	cmd.Flags().Bool("no-color", false, "Disable colored output")

	return cmd
}

func runValidate(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	if settings.NoColor {
		color.NoColor = true
	}

	catalogs, err := config.LoadCatalogs(settings.CatalogPaths())
	if err != nil {
		printProblems(cmd.ErrOrStderr(), err)

		return fmt.Errorf("catalogs are invalid: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), summaryTable(catalogs))
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	_, _ = statusOK.Fprintln(cmd.ErrOrStderr(), "catalogs are valid")

	return nil
}

func printProblems(w io.Writer, err error) {
	var joined interface{ Unwrap() []error }

	problems := []error{err}
	if errors.As(err, &joined) {
		problems = joined.Unwrap()
	}

	for _, problem := range problems {
		_, _ = statusFail.Fprintf(w, "invalid: %v\n", problem)
	}
}

func summaryTable(catalogs *config.Catalogs) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Catalog", "Entries", "Details"})

	tw.AppendRow(table.Row{
		config.CatalogUsers, len(catalogs.Users),
		"teams: " + strings.Join(analyzer.Teams(catalogs.Users), ", "),
	})

	span := ""
	if since, err := analyzer.MinSince(catalogs.Sprints); err == nil {
		span = fmt.Sprintf("from %s to %s", since.Format(time.DateOnly), lastUntil(catalogs).Format(time.DateOnly))
	}

	tw.AppendRow(table.Row{config.CatalogSprints, len(catalogs.Sprints), span})

	owners := make([]string, 0, len(catalogs.Repositories))
	for _, repo := range catalogs.Repositories {
		owners = append(owners, repo.Owner+"/"+repo.Name)
	}

	tw.AppendRow(table.Row{config.CatalogRepositories, len(catalogs.Repositories), strings.Join(owners, ", ")})

	return tw.Render()
}

func lastUntil(catalogs *config.Catalogs) time.Time {
	var last time.Time

	for _, sprint := range catalogs.Sprints {
		if sprint.Until.After(last) {
			last = sprint.Until
		}
	}

	return last
}
