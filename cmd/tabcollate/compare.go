package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nao1215/tabcollate/internal/config"
	"github.com/nao1215/tabcollate/internal/database"
	"github.com/nao1215/tabcollate/internal/model"
	"github.com/nao1215/tabcollate/internal/report"
)

// NewCompareCmd creates the compare command.
// This command compares stored runs of the same page.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [url]",
		Short: "Compare a page's stored runs",
		Long: `Compare shows which cells changed, appeared or disappeared between two
stored runs of the same page. By default the latest run is compared with the
one before it. Runs whose datasets have the same digest are reported as
identical without walking the cells.

Examples:
  # Compare the latest two runs of a page
  tabcollate compare https://stats.example.org/permits

  # List stored runs of a page
  tabcollate compare --list https://stats.example.org/permits

  # Compare the latest run with run 5
  tabcollate compare --with-run-id 5 https://stats.example.org/permits

  # Compare two runs by ID
  tabcollate compare --old 5 --new 9

  # List every page in the history
  tabcollate compare --list-targets`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List stored runs of the specified page")
	cmd.Flags().BoolP("list-targets", "L", false,
		"List every page in the history")

	// Comparison target flags
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare the latest run with this run (use --list to see IDs)")
	cmd.Flags().Int64("old", 0, "ID of the older run")
	cmd.Flags().Int64("new", 0, "ID of the newer run")

	// Output flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run history database")

	return cmd
}

// compareOptions are the parsed compare flags.
type compareOptions struct {
	target      string
	list        bool
	listTargets bool
	withRunID   int64
	oldID       int64
	newID       int64
	json        bool
	dbDir       string
}

func parseCompareFlags(cmd *cobra.Command, args []string) (compareOptions, error) {
	var o compareOptions
	var err error
	flags := cmd.Flags()

	if o.list, err = flags.GetBool("list"); err != nil {
		return o, err
	}
	if o.listTargets, err = flags.GetBool("list-targets"); err != nil {
		return o, err
	}
	if o.withRunID, err = flags.GetInt64("with-run-id"); err != nil {
		return o, err
	}
	if o.oldID, err = flags.GetInt64("old"); err != nil {
		return o, err
	}
	if o.newID, err = flags.GetInt64("new"); err != nil {
		return o, err
	}
	if o.json, err = flags.GetBool("json"); err != nil {
		return o, err
	}
	if o.dbDir, err = flags.GetString("db-dir"); err != nil {
		return o, err
	}
	if len(args) > 0 {
		o.target = args[0]
	}

	// Validate before opening the database.
	byID := o.oldID != 0 || o.newID != 0
	switch {
	case o.listTargets:
	case byID && (o.oldID == 0 || o.newID == 0):
		return o, errors.New("--old and --new must be given together")
	case byID:
	case o.target == "":
		return o, errors.New("page URL is required (use --list-targets to see stored pages)")
	}
	return o, nil
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseCompareFlags(cmd, args)
	if err != nil {
		return err
	}

	db, err := database.Open(opts.dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	switch {
	case opts.listTargets:
		return listTargets(ctx, out, db)
	case opts.list:
		return listRunHistory(ctx, out, db, opts.target)
	}

	older, newer, err := resolveRuns(ctx, db, opts)
	if err != nil {
		return err
	}
	if older.Axes != newer.Axes {
		return fmt.Errorf("runs %d and %d collated different axes (%v and %v)", older.ID, newer.ID, older.Axes, newer.Axes)
	}

	c := model.Compare(older.Dataset, newer.Dataset)
	var w report.ComparisonWriter = report.NewTextWriter(out)
	if opts.json {
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	}
	_, err = w.WriteComparison(older, newer, c)
	return err
}

// resolveRuns loads the two runs to compare, older first.
func resolveRuns(ctx context.Context, db *database.RunDB, opts compareOptions) (*model.RunReport, *model.RunReport, error) {
	if opts.oldID != 0 {
		older, err := loadRun(ctx, db, opts.oldID)
		if err != nil {
			return nil, nil, err
		}
		newer, err := loadRun(ctx, db, opts.newID)
		if err != nil {
			return nil, nil, err
		}
		if older.Target != newer.Target {
			return nil, nil, fmt.Errorf("runs %d and %d are of different pages", older.ID, newer.ID)
		}
		return older, newer, nil
	}

	history, err := db.GetRunHistory(ctx, opts.target)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get run history: %w", err)
	}
	if len(history) == 0 {
		return nil, nil, fmt.Errorf("no stored runs of %s", opts.target)
	}
	newer, err := loadRun(ctx, db, history[0].ID)
	if err != nil {
		return nil, nil, err
	}

	var olderID int64
	switch {
	case opts.withRunID != 0:
		olderID = opts.withRunID
	case len(history) < 2:
		return nil, nil, fmt.Errorf("only one stored run of %s; collate it again to compare", opts.target)
	default:
		olderID = history[1].ID
	}
	older, err := loadRun(ctx, db, olderID)
	if err != nil {
		return nil, nil, err
	}
	if older.Target != newer.Target {
		return nil, nil, fmt.Errorf("run %d is of %s, not %s", older.ID, older.Target, newer.Target)
	}
	if older.StartedAt.After(newer.StartedAt) {
		older, newer = newer, older
	}
	return older, newer, nil
}

func loadRun(ctx context.Context, db *database.RunDB, id int64) (*model.RunReport, error) {
	r, err := db.GetRunByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %d: %w", id, err)
	}
	if r == nil {
		return nil, fmt.Errorf("run %d not found", id)
	}
	return r, nil
}

// listTargets prints every page with stored runs.
func listTargets(ctx context.Context, out io.Writer, db *database.RunDB) error {
	targets, err := db.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	if len(targets) == 0 {
		fmt.Fprintln(out, "No stored runs.")
		return nil
	}
	for _, t := range targets {
		fmt.Fprintln(out, t)
	}
	return nil
}

// listRunHistory prints the stored runs of a page, newest first.
func listRunHistory(ctx context.Context, out io.Writer, db *database.RunDB, target string) error {
	history, err := db.GetRunHistory(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}
	if len(history) == 0 {
		fmt.Fprintf(out, "No stored runs of %s.\n", target)
		return nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Started", "Route", "Completed", "Failed", "Cells", "Status", "Digest"})
	for _, m := range history {
		status := "complete"
		switch {
		case m.Aborted:
			status = "aborted"
		case m.Failed > 0:
			status = "partial"
		}
		t.AppendRow(table.Row{
			m.ID, m.Timestamp.Format("2006-01-02 15:04:05"), m.Route,
			m.Completed, m.Failed, m.Cells, status, shortDigest(m.Digest),
		})
	}
	fmt.Fprintln(out, t.Render())
	return nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
