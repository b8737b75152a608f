package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"remnantsync/internal/config"
	"remnantsync/internal/db"
	"remnantsync/internal/model"
	"remnantsync/internal/repository"
	"remnantsync/internal/syncer"
)

func init() {
	reportCmd.Flags().Bool("db", false, "Read the latest run from sync_runs instead of the report file")
	reportCmd.Flags().Int("limit", 50, "Maximum issues to list (0 lists all)")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report [path]",
	Short: "Renders the last sync run report.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fromDB, _ := cmd.Flags().GetBool("db")
		limit, _ := cmd.Flags().GetInt("limit")
		cfg := config.Load()

		var rep model.Report
		if fromDB {
			latest, err := latestRun(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			rep = *latest
		} else {
			path := cfg.ReportPath
			if len(args) == 1 {
				path = args[0]
			}
			r, err := syncer.ReadReport(path)
			if err != nil {
				return err
			}
			rep = r
		}

		renderReport(cmd.OutOrStdout(), rep, limit)
		return nil
	},
}

func latestRun(ctx context.Context, databaseURL string) (*model.Report, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	conn, err := db.New(databaseURL)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rep, err := (&repository.RunRepository{DB: conn}).Latest(ctx)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		return nil, errors.New("no sync runs recorded")
	}
	return rep, nil
}

func renderReport(out io.Writer, rep model.Report, limit int) {
	s := rep.Summary
	t := newTable(out)
	t.SetTitle("Run %s", rep.RunID)
	t.AppendRows([]table.Row{
		{"Started", rep.RunStartedAt.Format(time.RFC3339)},
		{"Finished", rep.FinishedAt.Format(time.RFC3339)},
		{"Crawl completed", rep.CrawlCompletedSuccessfully},
		{"Reconciled", rep.Reconciled},
		{"Jobs processed", s.JobsProcessed},
		{"Rows seen", s.RowsSeen},
		{"Rows with id", s.RowsWithID},
		{"Changed", s.Changed},
		{"No change", s.NoChange},
		{"Photos downloaded", s.PhotosDownloaded},
		{"Photos skipped (same hash)", s.PhotosSkippedSameHash},
		{"Photos uploaded", s.PhotosUploaded},
		{"Errors", rep.TotalErrors},
	})
	if rep.FatalError != "" {
		t.AppendRow(table.Row{"Fatal error", rep.FatalError})
	}
	t.Render()

	if len(rep.Issues) == 0 {
		fmt.Fprintln(out, "no issues recorded")
		return
	}

	counts := newTable(out)
	counts.AppendHeader(table.Row{"Issue", "Count"})
	for _, kc := range model.IssueCounts(rep.Issues) {
		counts.AppendRow(table.Row{kc.Kind, kc.Count})
	}
	counts.Render()

	shown := rep.Issues
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	issues := newTable(out)
	issues.AppendHeader(table.Row{"Kind", "Remnant", "Job", "Details"})
	for _, issue := range shown {
		remnant := ""
		if issue.RemnantID != nil {
			remnant = fmt.Sprintf("#%d", *issue.RemnantID)
		}
		issues.AppendRow(table.Row{issue.Kind, remnant, issue.JobURL, issue.Details})
	}
	issues.Render()
	if hidden := len(rep.Issues) - len(shown); hidden > 0 {
		fmt.Fprintf(out, "%d more issues not shown\n", hidden)
	}
}
