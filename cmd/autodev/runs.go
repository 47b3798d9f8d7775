package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	runsLimit      int
	pruneOlderThan time.Duration
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored project runs (requires DB_PATH)",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		if st == nil {
			return errors.New("DB_PATH is not set")
		}
		defer st.Close()

		runs, err := st.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tREQUEST")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Status,
				time.UnixMilli(r.CreatedAt).Format(time.RFC3339), r.Request)
		}
		return w.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run's transitions and latest fact sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		if st == nil {
			return errors.New("DB_PATH is not set")
		}
		defer st.Close()

		ctx := cmd.Context()
		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run %s not found", args[0])
		}
		fmt.Printf("run %s: %s\n", run.ID, run.Status)
		if run.Error != "" {
			fmt.Printf("error: %s\n", run.Error)
		}

		transitions, err := st.ListTransitions(ctx, run.ID)
		if err != nil {
			return err
		}
		for _, t := range transitions {
			fmt.Printf("  %-20s %s -> %s\n", t.Agent, t.From, t.To)
		}

		fs, agentName, err := st.LatestSnapshot(ctx, run.ID)
		if err != nil {
			return err
		}
		if fs != nil {
			fmt.Printf("fact sheet after %s:\n%s\n", agentName, fs.JSON())
		}
		return nil
	},
}

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete finished runs older than --older-than",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		if st == nil {
			return errors.New("DB_PATH is not set")
		}
		defer st.Close()

		n, err := st.RunRetention(cmd.Context(), pruneOlderThan)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d runs\n", n)
		return nil
	},
}

func init() {
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list")
	runsPruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 30*24*time.Hour, "Age of finished runs to delete")
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsPruneCmd)
	rootCmd.AddCommand(runsCmd)
}
