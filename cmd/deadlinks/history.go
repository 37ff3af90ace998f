package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/deadlinks/internal/config"
	"github.com/nao1215/deadlinks/internal/database"
	"github.com/nao1215/deadlinks/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show dead links recorded by past runs",
		Long: `History reads the database written by 'deadlinks check --history'.

Without arguments it lists recent runs. With --run it lists the dead links
of one run, and with a URL it lists every run in which that URL was dead.
The history is only a record; it is never used to skip checks.

Examples:
  # List the last 10 runs
  deadlinks history

  # Dead links found by run 12
  deadlinks history --run 12

  # Show the full report of run 12 as Markdown
  deadlinks history --run 12 --markdown

  # When did this link start failing?
  deadlinks history https://example.org/moved`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 10,
		"Number of runs to list (0 lists all)")
	cmd.Flags().Int64P("run", "r", 0,
		"Show the dead links of this run ID")
	cmd.Flags().BoolP("json", "J", false,
		"Print the full report of --run as JSON")
	cmd.Flags().BoolP("markdown", "m", false,
		"Print the full report of --run as Markdown")
	cmd.Flags().String("history-dir", "",
		"History database directory (default: XDG data directory)")

	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	runID, err := flags.GetInt64("run")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	dir, err := flags.GetString("history-dir")
	if err != nil {
		return err
	}
	if dir == "" {
		dir = config.XDGDataDir()
	}

	if (jsonOutput || markdownOutput) && runID == 0 {
		return errors.New("--json and --markdown require --run")
	}

	db, err := database.Open(dir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case runID != 0 && (jsonOutput || markdownOutput):
		build, err := db.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		var w report.Writer = report.NewMarkdownWriter(out)
		if jsonOutput {
			w = report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
		}
		_, err = w.Write(build)
		return err
	case runID != 0 || len(args) == 1:
		filter := database.FindingFilter{RunID: runID}
		if len(args) == 1 {
			filter.URL = args[0]
		}
		return listFindings(ctx, out, db, filter)
	default:
		return listRuns(ctx, out, db, limit)
	}
}

// listRuns prints recent runs, newest first.
func listRuns(ctx context.Context, out io.Writer, db *database.HistoryDB, limit int) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		fmt.Fprintln(out, "\nUse 'deadlinks check --history' to record a run.")
		return nil
	}

	fmt.Fprintf(out, "Recorded runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-9s  %-6s  %-5s  %s\n", "ID", "Started", "Documents", "Links", "Dead", "Site")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))

	for _, r := range runs {
		fmt.Fprintf(out, "  %-6d  %-20s  %-9d  %-6d  %-5d  %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Summary.Documents,
			r.Summary.Links,
			r.Summary.Dead,
			r.SiteURL,
		)
	}

	fmt.Fprintln(out, "\nUse 'deadlinks history --run <id>' to list the dead links of a run.")
	return nil
}

// listFindings prints stored dead links matching filter.
func listFindings(ctx context.Context, out io.Writer, db *database.HistoryDB, filter database.FindingFilter) error {
	findings, err := db.Findings(ctx, filter)
	if err != nil {
		return err
	}

	if len(findings) == 0 {
		fmt.Fprintln(out, "No dead links recorded.")
		return nil
	}

	fmt.Fprintf(out, "Dead links (%d):\n\n", len(findings))
	for _, f := range findings {
		fmt.Fprintf(out, "  run %-4d  %-16s  %-15s  %s\n", f.RunID, f.Verdict, f.Detail, f.URL)
		fmt.Fprintf(out, "            in %s (<%s>)\n", f.Source, f.Tag)
	}
	return nil
}
