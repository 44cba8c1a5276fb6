package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	cli "github.com/spf13/cobra"
	"jordanella.com/feed-liker/internal/database"
)

var historyOpts struct {
	limit  int
	errors bool
	stats  bool
}

var historyCmd = &cli.Command{
	Use:   "history [run-id]",
	Short: "List recent runs, or the decisions of one run",
	Args:  cli.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.IntVarP(&historyOpts.limit, "limit", "l", 10, "number of runs or errors to list")
	f.BoolVarP(&historyOpts.errors, "errors", "e", false, "list recent errors instead of runs")
	f.BoolVar(&historyOpts.stats, "stats", false, "show journal location, schema version and row counts")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cli.Command, args []string) error {
	settings, _, err := loadSettings()
	if err != nil {
		return err
	}

	db, err := database.OpenJournal(settings.Paths.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	w := cmd.OutOrStdout()
	switch {
	case len(args) == 1:
		return showRun(w, db, args[0])
	case historyOpts.stats:
		return showStats(w, db)
	case historyOpts.errors:
		return listErrors(w, db, historyOpts.limit)
	}
	return listRuns(w, db, historyOpts.limit)
}

func listRuns(w io.Writer, db *database.DB, limit int) error {
	runs, err := db.RecentRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tRUN\tSTATUS\tMODE\tPROCESSED\tCOMMITTED\tSCROLLS\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			shortID(r.ID),
			r.Status,
			mode(r.DryRun),
			r.Processed, r.TargetCount,
			r.Committed,
			r.Scrolls,
			r.Duration().Round(time.Second),
		)
	}
	return tw.Flush()
}

func listErrors(w io.Writer, db *database.DB, limit int) error {
	errs, err := db.GetRecentErrors(limit)
	if err != nil {
		return err
	}
	if len(errs) == 0 {
		fmt.Fprintln(w, "No errors recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OCCURRED\tRUN\tSOURCE\tERROR")
	for _, e := range errs {
		run := "-"
		if e.RunID != nil {
			run = shortID(*e.RunID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.OccurredAt.Local().Format(time.DateTime), run, e.Source, e.ErrorMessage)
	}
	return tw.Flush()
}

func showStats(w io.Writer, db *database.DB) error {
	version, err := db.GetVersion()
	if err != nil {
		return err
	}
	stats, err := db.GetStats()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Journal %s (schema v%d)\n", db.Path(), version)
	for _, table := range []string{"runs", "dispositions", "error_log"} {
		fmt.Fprintf(w, "  %-13s %d\n", table, stats[table])
	}
	return nil
}

func showRun(w io.Writer, db *database.DB, id string) error {
	run, err := db.GetRun(id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run %s (%s, %s)\n", run.ID, run.Status, mode(run.DryRun))
	fmt.Fprintf(w, "  Started:     %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  Probability: %.0f%%\n", run.Probability*100)
	fmt.Fprintf(w, "  Processed:   %d of %d\n", run.Processed, run.TargetCount)
	if run.StopReason != nil {
		fmt.Fprintf(w, "  Stopped:     %s\n", *run.StopReason)
	}
	if run.ErrorMessage != nil {
		fmt.Fprintf(w, "  Error:       %s\n", *run.ErrorMessage)
	}

	counts, err := db.DispositionCounts(id)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "  Decisions:")
	for _, name := range names {
		fmt.Fprintf(w, "    %-22s %d\n", name, counts[name])
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func mode(dryRun bool) string {
	if dryRun {
		return "dry-run"
	}
	return "live"
}
