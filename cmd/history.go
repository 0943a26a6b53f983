/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/perepys/internal/store"
)

var historyDBPath string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the pipeline audit trail",
	Long:  `List, inspect, and clear the SQLite record of past pipeline runs.`,
}

var (
	historyListURL      string
	historyListState    string
	historyListAccepted bool
	historyListLimit    int
)

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List past pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(historyDBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), store.RunFilter{
			URL:          historyListURL,
			State:        historyListState,
			AcceptedOnly: historyListAccepted,
			Limit:        historyListLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tURL\tMODEL\tSTATE\tOK\tSEO\tCONTENT\tITER\tCREATED")
		for _, r := range runs {
			u := r.URL
			if len(u) > 48 {
				u = u[:45] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%.1f\t%.1f\t%d\t%s\n",
				r.ID, u, r.Model, r.State, r.Accepted,
				r.SEOScore, r.ContentScore, r.Iterations,
				r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show audit trail statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(historyDBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Total runs:      %d\n", stats.TotalRuns)
		fmt.Printf("Accepted runs:   %d\n", stats.AcceptedRuns)
		fmt.Printf("Published runs:  %d\n", stats.PublishedRuns)
		fmt.Printf("Total attempts:  %d\n", stats.TotalAttempts)
		fmt.Printf("Avg iterations:  %.1f\n", stats.AvgIterations)
		fmt.Printf("Avg SEO score:   %.1f\n", stats.AvgSEOScore)
		fmt.Printf("Avg content:     %.1f\n", stats.AvgContentScore)
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run and its attempts by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(historyDBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteRun(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete run: %w", err)
		}
		fmt.Printf("Deleted run: %s\n", args[0])
		return nil
	},
}

var historyClearCache bool

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(historyDBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.ClearRuns(context.Background())
		if err != nil {
			return fmt.Errorf("failed to clear runs: %w", err)
		}
		fmt.Printf("Cleared %d runs from the audit trail.\n", n)

		if historyClearCache {
			n, err := db.ClearCache(context.Background())
			if err != nil {
				return fmt.Errorf("failed to clear caches: %w", err)
			}
			fmt.Printf("Cleared %d cache entries.\n", n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.PersistentFlags().StringVar(&historyDBPath, "db", "", "Database path (default from store.path)")

	historyListCmd.Flags().StringVar(&historyListURL, "url", "", "Filter by source URL")
	historyListCmd.Flags().StringVar(&historyListState, "state", "", "Filter by terminal state (ACCEPTED or EXHAUSTED)")
	historyListCmd.Flags().BoolVar(&historyListAccepted, "accepted", false, "Show only accepted runs")
	historyListCmd.Flags().IntVar(&historyListLimit, "limit", 20, "Maximum rows to show (0 = all)")

	historyClearCmd.Flags().BoolVar(&historyClearCache, "cache", false, "Also clear the article and rewrite caches")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
}
